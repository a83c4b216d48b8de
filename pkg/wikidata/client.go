package wikidata

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"

	"poiatlas/pkg/request"
)

const apiEndpoint = "https://www.wikidata.org/w/api.php"

// ErrNotFound is returned when an entity does not exist.
var ErrNotFound = errors.New("wikidata: entity not found")

// Client handles Wikidata API interactions.
type Client struct {
	request     *request.Client
	APIEndpoint string
	Languages   []string // label/description preference, first wins
	Logger      *slog.Logger
}

// NewClient creates a new Wikidata client.
func NewClient(r *request.Client, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		request:     r,
		APIEndpoint: apiEndpoint,
		Languages:   []string{"pt", "en"},
		Logger:      logger,
	}
}

// SearchEntities searches for items in Wikidata by name/label.
func (c *Client) SearchEntities(ctx context.Context, query string) ([]SearchResult, error) {
	u, _ := url.Parse(c.APIEndpoint)
	q := u.Query()
	q.Add("action", "wbsearchentities")
	q.Add("search", query)
	q.Add("language", c.primaryLanguage())
	q.Add("uselang", c.primaryLanguage())
	q.Add("format", "json")
	q.Add("type", "item")
	q.Add("limit", "5")
	u.RawQuery = q.Encode()

	body, err := c.request.Get(ctx, u.String(), "wd:search:"+c.primaryLanguage()+":"+query)
	if err != nil {
		return nil, err
	}

	var result struct {
		Search []SearchResult `json:"search"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode json: %w", err)
	}

	return result.Search, nil
}

// Search returns the first entity ID matching name, or "" when nothing matches.
func (c *Client) Search(ctx context.Context, name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", nil
	}
	res, err := c.SearchEntities(ctx, name)
	if err != nil {
		return "", err
	}
	for _, r := range res {
		if r.ID != "" {
			return r.ID, nil
		}
	}
	return "", nil
}

type SearchResult struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description"`
}

// GetEntity fetches labels, descriptions, claims and sitelinks of one entity.
func (c *Client) GetEntity(ctx context.Context, id string) (*Entity, error) {
	id = strings.ToUpper(strings.TrimSpace(id))
	if !isQID(id) {
		return nil, fmt.Errorf("invalid wikidata id %q", id)
	}

	u, _ := url.Parse(c.APIEndpoint)
	q := u.Query()
	q.Add("action", "wbgetentities")
	q.Add("format", "json")
	q.Add("ids", id)
	q.Add("props", "labels|descriptions|claims|sitelinks")
	q.Add("languages", strings.Join(c.Languages, "|"))
	u.RawQuery = q.Encode()

	body, err := c.request.Get(ctx, u.String(), "wd:entity:"+id)
	if err != nil {
		return nil, err
	}

	var result wrapperEntityResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode json: %w", err)
	}
	raw, ok := result.Entities[id]
	if !ok || raw.Missing != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return parseEntity(id, raw, c.Languages), nil
}

// GetLabels resolves labels for many entities, batching 50 IDs per request.
// Entities without a label in any preferred language are left out.
func (c *Client) GetLabels(ctx context.Context, ids []string) (map[string]string, error) {
	labels := make(map[string]string)
	if len(ids) == 0 {
		return labels, nil
	}

	// Sort IDs to ensure consistent caching, as map iteration order is random.
	// Work on a copy to avoid side effects.
	sortedIDs := make([]string, 0, len(ids))
	seen := make(map[string]bool)
	for _, id := range ids {
		if !seen[id] && isQID(id) {
			seen[id] = true
			sortedIDs = append(sortedIDs, id)
		}
	}
	sort.Strings(sortedIDs)

	// Wikidata allows max 50 IDs per request
	const batchSize = 50
	for i := 0; i < len(sortedIDs); i += batchSize {
		end := i + batchSize
		if end > len(sortedIDs) {
			end = len(sortedIDs)
		}
		idStr := strings.Join(sortedIDs[i:end], "|")

		// Create stable cache key
		hash := md5.Sum([]byte(idStr))
		cacheKey := fmt.Sprintf("wd:labels:%s", hex.EncodeToString(hash[:]))

		u, _ := url.Parse(c.APIEndpoint)
		q := u.Query()
		q.Add("action", "wbgetentities")
		q.Add("format", "json")
		q.Add("ids", idStr)
		q.Add("props", "labels")
		q.Add("languages", strings.Join(c.Languages, "|"))
		u.RawQuery = q.Encode()

		body, err := c.request.Get(ctx, u.String(), cacheKey)
		if err != nil {
			return labels, err
		}

		var result wrapperEntityResponse
		if err := json.Unmarshal(body, &result); err != nil {
			return labels, fmt.Errorf("failed to decode json: %w", err)
		}
		for id, ent := range result.Entities {
			if l := pickLang(ent.Labels, c.Languages); l != "" {
				labels[id] = l
			}
		}
	}
	return labels, nil
}

func (c *Client) primaryLanguage() string {
	if len(c.Languages) > 0 {
		return c.Languages[0]
	}
	return "pt"
}

func isQID(id string) bool {
	if len(id) < 2 || id[0] != 'Q' {
		return false
	}
	for _, r := range id[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// -- Internal parsing structs --

type langValue struct {
	Value string `json:"value"`
}

type wrapperEntityResponse struct {
	Entities map[string]rawEntity `json:"entities"`
}

type rawEntity struct {
	Missing      *string              `json:"missing"`
	Labels       map[string]langValue `json:"labels"`
	Descriptions map[string]langValue `json:"descriptions"`
	Claims       map[string][]struct {
		Mainsnak map[string]interface{} `json:"mainsnak"`
		Rank     string                 `json:"rank"`
	} `json:"claims"`
	Sitelinks map[string]struct {
		Title string `json:"title"`
	} `json:"sitelinks"`
}

func pickLang(values map[string]langValue, langs []string) string {
	for _, l := range langs {
		if v, ok := values[l]; ok && v.Value != "" {
			return v.Value
		}
	}
	return ""
}
