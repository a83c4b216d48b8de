// Package sipa scrapes heritage records from the SIPA inventory
// (Sistema de Informação para o Património Arquitectónico).
package sipa

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"time"

	"golang.org/x/net/html/charset"

	"poiatlas/pkg/articleproc"
	"poiatlas/pkg/model"
	"poiatlas/pkg/request"
)

const defaultEndpoint = "http://www.monumentos.gov.pt/Site/APP_PagesUser/SIPA.aspx"

// ErrNoReference is returned when neither an ID nor a URL is given.
var ErrNoReference = errors.New("sipa: no id or url")

// Client fetches and parses SIPA pages.
type Client struct {
	request  *request.Client
	Endpoint string
	ProxyURL string // optional; "{url}" is replaced by the escaped target, otherwise it is appended
	CacheTTL time.Duration
}

// NewClient creates a new SIPA client.
func NewClient(r *request.Client, endpoint, proxyURL string, ttl time.Duration) *Client {
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Client{
		request:  r,
		Endpoint: endpoint,
		ProxyURL: proxyURL,
		CacheTTL: ttl,
	}
}

var reDigits = regexp.MustCompile(`\d+`)

// NormalizeID reduces "IPA.00006533", "PT011303110014" style references to the
// numeric page id ("6533"). It returns "" when s carries no digits.
func NormalizeID(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(strings.ToUpper(s), "PT") {
		// Inventory numbers are not page ids.
		return ""
	}
	d := reDigits.FindString(s)
	d = strings.TrimLeft(d, "0")
	return d
}

// PageURL returns the page URL for a numeric id.
func (c *Client) PageURL(id string) string {
	return c.Endpoint + "?id=" + url.QueryEscape(id)
}

func (c *Client) proxied(target string) string {
	escaped := url.QueryEscape(target)
	if strings.Contains(c.ProxyURL, "{url}") {
		return strings.ReplaceAll(c.ProxyURL, "{url}", escaped)
	}
	return c.ProxyURL + escaped
}

// Fetch returns the decoded page text for an id or direct URL. The direct fetch
// is tried first; the proxy, when configured, is the fallback.
func (c *Client) Fetch(ctx context.Context, id, pageURL string) (string, error) {
	target := strings.TrimSpace(pageURL)
	if target == "" {
		nid := NormalizeID(id)
		if nid == "" {
			return "", ErrNoReference
		}
		target = c.PageURL(nid)
	}
	cacheKey := "sipa:" + target

	body, err := c.request.GetWithTTL(ctx, target, nil, cacheKey, c.CacheTTL)
	if err != nil && c.ProxyURL != "" && ctx.Err() == nil {
		slog.Warn("SIPA direct fetch failed, trying proxy", "url", target, "error", err)
		body, err = c.request.GetWithTTL(ctx, c.proxied(target), nil, cacheKey+":proxy", c.CacheTTL)
	}
	if err != nil {
		return "", fmt.Errorf("sipa fetch %s: %w", target, err)
	}

	enc, name, _ := charset.DetermineEncoding(body, "text/html")
	decoded, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return "", fmt.Errorf("sipa decode (%s): %w", name, err)
	}
	return articleproc.PlainText(bytes.NewReader(decoded))
}

// Lookup fetches a record and returns its fragment.
func (c *Client) Lookup(ctx context.Context, id, pageURL string) (*model.PoiInfo, error) {
	text, err := c.Fetch(ctx, id, pageURL)
	if err != nil {
		return nil, err
	}
	rec := Parse(text)
	f := rec.Fragment()
	if nid := NormalizeID(id); nid != "" {
		f.SIPAID = strings.TrimSpace(id)
	}
	return f, nil
}
