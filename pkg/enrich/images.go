package enrich

import (
	"context"
	"math"
	"net/http"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"poiatlas/pkg/commons"
	"poiatlas/pkg/request"
)

// NormalizeImageURL rewrites Commons file links to the Special:FilePath form.
func NormalizeImageURL(u string) string {
	return commons.NormalizeURL(u)
}

// DedupImages normalizes urls and drops empties and duplicates, keeping first-seen
// order. A positive limit caps the result.
func DedupImages(urls []string, limit int) []string {
	if len(urls) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(urls))
	var out []string
	for _, u := range urls {
		n := NormalizeImageURL(u)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// GalleryImage is a district gallery candidate.
type GalleryImage struct {
	URL    string `json:"url"`
	Title  string `json:"title,omitempty"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// FilterDistrictImages drops non-photographic assets and duplicates.
func FilterDistrictImages(imgs []GalleryImage) []GalleryImage {
	seen := make(map[string]struct{}, len(imgs))
	var out []GalleryImage
	for _, img := range imgs {
		u := NormalizeImageURL(img.URL)
		if u == "" || commons.IsBlockedDistrictImage(u) || commons.IsBlockedDistrictImage(img.Title) {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		img.URL = u
		out = append(out, img)
	}
	return out
}

// GalleryScore is 3 for landscape images plus min(megapixels, 3).
func GalleryScore(img GalleryImage) float64 {
	score := 0.0
	if img.Width >= img.Height && img.Height > 0 {
		score += 3
	}
	area := float64(img.Width) * float64(img.Height)
	return score + math.Min(area/1_000_000, 3)
}

// RankDistrictImages sorts imgs best first; equal scores keep input order.
func RankDistrictImages(imgs []GalleryImage) []GalleryImage {
	out := append([]GalleryImage(nil), imgs...)
	sort.SliceStable(out, func(i, j int) bool { return GalleryScore(out[i]) > GalleryScore(out[j]) })
	return out
}

// Prober checks whether image URLs actually load.
type Prober struct {
	client      *http.Client
	Timeout     time.Duration
	Concurrency int
}

// NewProber creates a prober with a per-candidate timeout and a parallelism bound.
func NewProber(timeout time.Duration, concurrency int) *Prober {
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Prober{
		client:      &http.Client{},
		Timeout:     timeout,
		Concurrency: concurrency,
	}
}

// Alive fetches u and reports a 2xx image response.
func (p *Prober) Alive(ctx context.Context, u string) bool {
	return p.check(ctx, http.MethodGet, u, true)
}

// HeadAlive issues a HEAD request and reports a 2xx response.
func (p *Prober) HeadAlive(ctx context.Context, u string) bool {
	return p.check(ctx, http.MethodHead, u, false)
}

func (p *Prober) check(ctx context.Context, method, u string, wantImage bool) bool {
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, u, http.NoBody)
	if err != nil {
		return false
	}
	req.Header.Set("User-Agent", request.UserAgent())
	if wantImage {
		req.Header.Set("Accept", "image/*")
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false
	}
	if wantImage {
		ct := strings.ToLower(resp.Header.Get("Content-Type"))
		return strings.HasPrefix(ct, "image/")
	}
	return true
}

// FilterLive probes urls in windows of Concurrency and returns up to want live
// URLs in candidate order, plus how many candidates were used up.
func (p *Prober) FilterLive(ctx context.Context, urls []string, want int) ([]string, int) {
	return p.filter(ctx, urls, want, p.Alive)
}

// FilterHeadAlive is FilterLive with HEAD probes.
func (p *Prober) FilterHeadAlive(ctx context.Context, urls []string, want int) ([]string, int) {
	return p.filter(ctx, urls, want, p.HeadAlive)
}

func (p *Prober) filter(ctx context.Context, urls []string, want int, alive func(context.Context, string) bool) ([]string, int) {
	if want <= 0 || len(urls) == 0 {
		return nil, 0
	}
	var live []string
	for start := 0; start < len(urls); start += p.Concurrency {
		if ctx.Err() != nil {
			return live, start
		}
		end := min(start+p.Concurrency, len(urls))
		ok := make([]bool, end-start)

		var g errgroup.Group
		g.SetLimit(p.Concurrency)
		for i := start; i < end; i++ {
			g.Go(func() error {
				ok[i-start] = alive(ctx, urls[i])
				return nil
			})
		}
		_ = g.Wait()

		for i := start; i < end; i++ {
			if !ok[i-start] {
				continue
			}
			live = append(live, urls[i])
			if len(live) >= want {
				return live, i + 1
			}
		}
	}
	return live, len(urls)
}
