package wikipedia

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"poiatlas/pkg/articleproc"
	"poiatlas/pkg/commons"
	"poiatlas/pkg/geo"
	"poiatlas/pkg/model"
	"poiatlas/pkg/request"
)

var (
	// ErrNotFound is returned for missing and disambiguation pages.
	ErrNotFound = errors.New("wikipedia: page not found")
	// ErrTooFar is returned when a page's coordinates are beyond the distance gate.
	ErrTooFar = errors.New("wikipedia: page too far from poi")
)

// Client handles Wikipedia API interactions.
type Client struct {
	request      *request.Client
	APIEndpoint  string // Optional override of the Action API for testing
	RESTEndpoint string // Optional override of the REST API base for testing
}

// NewClient creates a new Wikipedia client.
func NewClient(r *request.Client) *Client {
	return &Client{request: r}
}

func (c *Client) apiURL(lang string) string {
	if c.APIEndpoint != "" {
		return c.APIEndpoint
	}
	return fmt.Sprintf("https://%s.wikipedia.org/w/api.php", langOrDefault(lang))
}

func (c *Client) restURL(lang, kind, title string) string {
	base := c.RESTEndpoint
	if base == "" {
		base = fmt.Sprintf("https://%s.wikipedia.org/api/rest_v1", langOrDefault(lang))
	}
	return base + "/page/" + kind + "/" + url.PathEscape(strings.ReplaceAll(title, " ", "_"))
}

func langOrDefault(lang string) string {
	if lang == "" {
		return "pt"
	}
	return lang
}

// ParseTag splits a "<lang>:<Title>" reference. A tag without a language defaults to pt.
func ParseTag(tag string) (lang, title string, ok bool) {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return "", "", false
	}
	if i := strings.Index(tag, ":"); i >= 2 && i <= 3 {
		lang, title = strings.ToLower(tag[:i]), strings.TrimSpace(tag[i+1:])
	} else {
		lang, title = "pt", tag
	}
	return lang, title, title != ""
}

// Summary is the REST page summary of one article.
type Summary struct {
	Title       string
	Extract     string
	Description string
	URL         string
	WikidataID  string
	Image       string
	Coords      *model.Coords
}

type summaryResponse struct {
	Type        string `json:"type"`
	Title       string `json:"title"`
	Extract     string `json:"extract"`
	Description string `json:"description"`
	Wikibase    string `json:"wikibase_item"`
	Coordinates *struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	} `json:"coordinates"`
	Thumbnail *struct {
		Source string `json:"source"`
	} `json:"thumbnail"`
	OriginalImage *struct {
		Source string `json:"source"`
	} `json:"originalimage"`
	ContentURLs *struct {
		Desktop *struct {
			Page string `json:"page"`
		} `json:"desktop"`
	} `json:"content_urls"`
}

// GetSummary fetches the page summary.
func (c *Client) GetSummary(ctx context.Context, lang, title string) (*Summary, error) {
	body, err := c.request.Get(ctx, c.restURL(lang, "summary", title), fmt.Sprintf("wp:summary:%s:%s", lang, title))
	if err != nil {
		if request.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s:%s", ErrNotFound, lang, title)
		}
		return nil, err
	}

	var resp summaryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode summary json: %w", err)
	}
	if resp.Type == "disambiguation" || resp.Title == "" {
		return nil, fmt.Errorf("%w: %s:%s", ErrNotFound, lang, title)
	}

	s := &Summary{
		Title:       resp.Title,
		Extract:     strings.TrimSpace(resp.Extract),
		Description: resp.Description,
		WikidataID:  resp.Wikibase,
	}
	if resp.Coordinates != nil {
		s.Coords = &model.Coords{Lat: resp.Coordinates.Lat, Lon: resp.Coordinates.Lon}
	}
	switch {
	case resp.OriginalImage != nil && resp.OriginalImage.Source != "":
		s.Image = resp.OriginalImage.Source
	case resp.Thumbnail != nil:
		s.Image = resp.Thumbnail.Source
	}
	if commons.IsUnwantedImage(s.Image) {
		s.Image = ""
	}
	if resp.ContentURLs != nil && resp.ContentURLs.Desktop != nil {
		s.URL = resp.ContentURLs.Desktop.Page
	}
	if s.URL == "" {
		s.URL = fmt.Sprintf("https://%s.wikipedia.org/wiki/%s", langOrDefault(lang), url.PathEscape(strings.ReplaceAll(s.Title, " ", "_")))
	}
	return s, nil
}

// CheckDistance rejects a summary whose own coordinates lie farther than maxKm from near.
// Summaries without coordinates, or calls without a reference point, pass.
func CheckDistance(s *Summary, near *geo.Point, maxKm float64) error {
	if s == nil || s.Coords == nil || near == nil || maxKm <= 0 {
		return nil
	}
	d := geo.DistanceKm(*near, geo.Point{Lat: s.Coords.Lat, Lon: s.Coords.Lon})
	if d > maxKm {
		return fmt.Errorf("%w: %s is %.1f km away (max %.0f km)", ErrTooFar, s.Title, d, maxKm)
	}
	return nil
}

// Fragment converts the summary into a partial record.
func (s *Summary) Fragment() *model.PoiInfo {
	return &model.PoiInfo{
		Label:        s.Title,
		Description:  s.Extract,
		Image:        s.Image,
		Coords:       s.Coords,
		WikipediaURL: s.URL,
		WikidataID:   s.WikidataID,
	}
}

// SummaryFragment fetches a summary and applies the distance gate.
func (c *Client) SummaryFragment(ctx context.Context, lang, title string, near *geo.Point, maxKm float64) (*model.PoiInfo, error) {
	s, err := c.GetSummary(ctx, lang, title)
	if err != nil {
		return nil, err
	}
	if err := CheckDistance(s, near, maxKm); err != nil {
		return nil, err
	}
	return s.Fragment(), nil
}

// GetMediaList returns Special:FilePath URLs for the image media items of a page.
// Vector graphics, icons, flags and logos are dropped.
func (c *Client) GetMediaList(ctx context.Context, lang, title string) ([]string, error) {
	body, err := c.request.Get(ctx, c.restURL(lang, "media-list", title), fmt.Sprintf("wp:media:%s:%s", lang, title))
	if err != nil {
		if request.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s:%s", ErrNotFound, lang, title)
		}
		return nil, err
	}

	var resp struct {
		Items []struct {
			Title string `json:"title"`
			Type  string `json:"type"`
		} `json:"items"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode media-list json: %w", err)
	}

	var out []string
	for _, it := range resp.Items {
		if it.Type != "image" || it.Title == "" || commons.IsUnwantedImage(it.Title) {
			continue
		}
		out = append(out, commons.FilePathURL(it.Title))
	}
	return out, nil
}

// Sections holds the history and architecture prose of an article.
type Sections struct {
	History      string
	Architecture string
}

var (
	historyTerms      = [][]string{{"história", "historia"}, {"history"}}
	architectureTerms = [][]string{{"arquitetura", "arquitectura"}, {"architecture"}}
)

// GetSections parses the rendered page and returns the first history and architecture
// sections, trying Portuguese headings before English ones.
func (c *Client) GetSections(ctx context.Context, lang, title string) (*Sections, error) {
	body, err := c.request.Get(ctx, c.restURL(lang, "html", title), fmt.Sprintf("wp:html:%s:%s", lang, title))
	if err != nil {
		if request.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s:%s", ErrNotFound, lang, title)
		}
		return nil, err
	}

	blocks, err := articleproc.ExtractBlocks(strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page html: %w", err)
	}
	sections := articleproc.Sections(blocks)

	return &Sections{
		History:      findFirst(sections, historyTerms),
		Architecture: findFirst(sections, architectureTerms),
	}, nil
}

func findFirst(sections []articleproc.Section, groups [][]string) string {
	for _, terms := range groups {
		if s, ok := articleproc.FindSection(sections, terms...); ok {
			return s.Text
		}
	}
	return ""
}

// GeoResult is one page returned by a coordinate search.
type GeoResult struct {
	PageID int     `json:"pageid"`
	Title  string  `json:"title"`
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`
	Dist   float64 `json:"dist"` // meters
}

// GeoSearch lists pages with coordinates within radiusM of lat/lon.
func (c *Client) GeoSearch(ctx context.Context, lang string, lat, lon float64, radiusM, limit int) ([]GeoResult, error) {
	if radiusM < 10 {
		radiusM = 10
	}
	if radiusM > 10000 {
		radiusM = 10000
	}
	if limit <= 0 {
		limit = 10
	}

	u, _ := url.Parse(c.apiURL(lang))
	q := u.Query()
	q.Set("action", "query")
	q.Set("list", "geosearch")
	q.Set("gscoord", fmt.Sprintf("%.6f|%.6f", lat, lon))
	q.Set("gsradius", strconv.Itoa(radiusM))
	q.Set("gslimit", strconv.Itoa(limit))
	q.Set("format", "json")
	q.Set("formatversion", "2")
	u.RawQuery = q.Encode()

	body, err := c.request.Get(ctx, u.String(), fmt.Sprintf("wp:geo:%s:%.5f:%.5f:%d", lang, lat, lon, radiusM))
	if err != nil {
		return nil, err
	}

	var resp struct {
		Query struct {
			GeoSearch []GeoResult `json:"geosearch"`
		} `json:"query"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode geosearch json: %w", err)
	}
	return resp.Query.GeoSearch, nil
}

// Search runs a full-text title search and returns matching titles in rank order.
func (c *Client) Search(ctx context.Context, lang, query string, limit int) ([]string, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 5
	}

	u, _ := url.Parse(c.apiURL(lang))
	q := u.Query()
	q.Set("action", "query")
	q.Set("list", "search")
	q.Set("srsearch", query)
	q.Set("srlimit", strconv.Itoa(limit))
	q.Set("format", "json")
	q.Set("formatversion", "2")
	u.RawQuery = q.Encode()

	body, err := c.request.Get(ctx, u.String(), fmt.Sprintf("wp:search:%s:%s", lang, query))
	if err != nil {
		return nil, err
	}

	var resp struct {
		Query struct {
			Search []struct {
				Title string `json:"title"`
			} `json:"search"`
		} `json:"query"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode search json: %w", err)
	}

	titles := make([]string, 0, len(resp.Query.Search))
	for _, s := range resp.Query.Search {
		if s.Title != "" {
			titles = append(titles, s.Title)
		}
	}
	return titles, nil
}

// ImageInfo describes one file used on a page.
type ImageInfo struct {
	Title  string
	URL    string
	Width  int
	Height int
}

// PageImages lists the files used on a page with their original URL and size.
func (c *Client) PageImages(ctx context.Context, lang, title string, limit int) ([]ImageInfo, error) {
	if limit <= 0 {
		limit = 50
	}

	u, _ := url.Parse(c.apiURL(lang))
	q := u.Query()
	q.Set("action", "query")
	q.Set("generator", "images")
	q.Set("titles", title)
	q.Set("gimlimit", strconv.Itoa(limit))
	q.Set("prop", "imageinfo")
	q.Set("iiprop", "url|size")
	q.Set("redirects", "1")
	q.Set("format", "json")
	q.Set("formatversion", "2")
	u.RawQuery = q.Encode()

	body, err := c.request.Get(ctx, u.String(), fmt.Sprintf("wp:images:%s:%s", lang, title))
	if err != nil {
		return nil, err
	}

	var resp struct {
		Query struct {
			Pages []struct {
				Title     string `json:"title"`
				ImageInfo []struct {
					URL    string `json:"url"`
					Width  int    `json:"width"`
					Height int    `json:"height"`
				} `json:"imageinfo"`
			} `json:"pages"`
		} `json:"query"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode imageinfo json: %w", err)
	}

	var out []ImageInfo
	for _, p := range resp.Query.Pages {
		if len(p.ImageInfo) == 0 || p.ImageInfo[0].URL == "" {
			slog.Debug("Page image without info", "page", title, "file", p.Title)
			continue
		}
		ii := p.ImageInfo[0]
		out = append(out, ImageInfo{Title: p.Title, URL: ii.URL, Width: ii.Width, Height: ii.Height})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, nil
}
