package enrich

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poiatlas/pkg/commons"
)

func TestNormalizeImageURL(t *testing.T) {
	canonical := commons.FilePathPrefix + "Torre_de_Belém.jpg"
	assert.Equal(t, canonical, NormalizeImageURL(canonical), "idempotent")
	assert.Equal(t, canonical, NormalizeImageURL(NormalizeImageURL(canonical)))

	file := NormalizeImageURL("https://commons.wikimedia.org/wiki/File:Torre_de_Belém.jpg")
	redirect := NormalizeImageURL("https://commons.wikimedia.org/wiki/Special:Redirect/file/Torre_de_Belém.jpg")
	ficheiro := NormalizeImageURL("https://commons.wikimedia.org/wiki/ficheiro:Torre_de_Belém.jpg")
	assert.Equal(t, canonical, file)
	assert.Equal(t, canonical, redirect)
	assert.Equal(t, canonical, ficheiro)

	other := "https://upload.wikimedia.org/wikipedia/commons/a/a1/Torre.jpg"
	assert.Equal(t, other, NormalizeImageURL(other))
}

func TestDedupImages(t *testing.T) {
	in := []string{
		"",
		"https://commons.wikimedia.org/wiki/File:A.jpg",
		commons.FilePathPrefix + "A.jpg",
		"https://example.org/b.jpg",
		"https://example.org/c.jpg",
	}
	assert.Equal(t, []string{commons.FilePathPrefix + "A.jpg", "https://example.org/b.jpg", "https://example.org/c.jpg"}, DedupImages(in, 0))
	assert.Len(t, DedupImages(in, 2), 2)
	assert.Nil(t, DedupImages(nil, 10))
}

func TestFilterAndRankDistrictImages(t *testing.T) {
	imgs := []GalleryImage{
		{URL: "https://upload.wikimedia.org/Braga_coat_of_arms.png", Title: "Ficheiro:Braga_coat_of_arms.png", Width: 800, Height: 900},
		{URL: "https://upload.wikimedia.org/Sé_de_Braga.jpg", Title: "Ficheiro:Sé de Braga.jpg", Width: 1200, Height: 1600},
		{URL: "https://upload.wikimedia.org/Bom_Jesus.jpg", Title: "Ficheiro:Bom Jesus.jpg", Width: 4000, Height: 3000},
		{URL: "https://upload.wikimedia.org/Mapa.png", Title: "Ficheiro:Localização.png", Width: 500, Height: 400},
		{URL: "https://upload.wikimedia.org/Escudo.jpg", Title: "Escudo de Braga", Width: 100, Height: 100},
		{URL: "https://upload.wikimedia.org/Braga_location.svg", Title: "Ficheiro:Braga.svg", Width: 1000, Height: 800},
		{URL: "https://upload.wikimedia.org/Bom_Jesus.jpg", Title: "dup", Width: 4000, Height: 3000},
		{URL: "https://upload.wikimedia.org/Jardim.jpg", Title: "Ficheiro:Jardim.jpg", Width: 1000, Height: 500},
	}
	filtered := FilterDistrictImages(imgs)
	var titles []string
	for _, img := range filtered {
		titles = append(titles, img.Title)
	}
	assert.Equal(t, []string{"Ficheiro:Sé de Braga.jpg", "Ficheiro:Bom Jesus.jpg", "Ficheiro:Jardim.jpg"}, titles)

	ranked := RankDistrictImages(filtered)
	assert.Equal(t, "Ficheiro:Bom Jesus.jpg", ranked[0].Title)  // 3 + 3
	assert.Equal(t, "Ficheiro:Jardim.jpg", ranked[1].Title)     // 3 + 0.5
	assert.Equal(t, "Ficheiro:Sé de Braga.jpg", ranked[2].Title) // portrait, 1.92
	assert.Equal(t, "Ficheiro:Sé de Braga.jpg", filtered[0].Title, "input is not reordered")

	assert.Equal(t, 0.0, GalleryScore(GalleryImage{}))
	assert.InDelta(t, 3.0001, GalleryScore(GalleryImage{Width: 10, Height: 10}), 1e-9)
}

func newImageServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/ok"):
			w.Header().Set("Content-Type", "image/jpeg")
			if r.Method == http.MethodGet {
				w.Write([]byte{0xff, 0xd8, 0xff})
			}
		case strings.HasPrefix(r.URL.Path, "/html"):
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte("<html></html>"))
		case strings.HasPrefix(r.URL.Path, "/slow"):
			time.Sleep(300 * time.Millisecond)
			w.Header().Set("Content-Type", "image/png")
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestProber_Alive(t *testing.T) {
	ts := newImageServer(t)
	defer ts.Close()
	p := NewProber(100*time.Millisecond, 2)
	ctx := context.Background()

	assert.True(t, p.Alive(ctx, ts.URL+"/ok/a.jpg"))
	assert.False(t, p.Alive(ctx, ts.URL+"/html/a.jpg"), "non-image content type")
	assert.False(t, p.Alive(ctx, ts.URL+"/missing.jpg"))
	assert.False(t, p.Alive(ctx, ts.URL+"/slow/a.png"), "timeout")
	assert.False(t, p.Alive(ctx, "::bad url"))

	assert.True(t, p.HeadAlive(ctx, ts.URL+"/ok/a.jpg"))
	assert.True(t, p.HeadAlive(ctx, ts.URL+"/html/a"), "HEAD only needs 2xx")
	assert.False(t, p.HeadAlive(ctx, ts.URL+"/missing.jpg"))
}

func TestProber_FilterLiveKeepsCandidateOrder(t *testing.T) {
	ts := newImageServer(t)
	defer ts.Close()
	p := NewProber(time.Second, 3)

	var urls []string
	for i, kind := range []string{"missing", "ok", "gone", "ok", "html", "ok", "ok", "ok"} {
		urls = append(urls, fmt.Sprintf("%s/%s/%d.jpg", ts.URL, kind, i))
	}

	live, used := p.FilterLive(context.Background(), urls, 3)
	require.Len(t, live, 3)
	assert.Equal(t, []string{urls[1], urls[3], urls[5]}, live)
	assert.Equal(t, 6, used)

	live, used = p.FilterLive(context.Background(), urls[:3], 3)
	assert.Equal(t, []string{urls[1]}, live)
	assert.Equal(t, 3, used)

	live, _ = p.FilterLive(context.Background(), urls, 0)
	assert.Empty(t, live)
}
