package places

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	placesapi "google.golang.org/api/places/v1"

	"poiatlas/pkg/model"
	"poiatlas/pkg/tracker"
)

func TestQueryText(t *testing.T) {
	assert.Equal(t, "Miradouro da Graça", QueryText("Miradouro da Graça"))
	assert.Equal(t, "Viewpoint Serra", QueryText("Viewpoint Serra"))
	assert.Equal(t, "miradouro Senhora do Monte", QueryText("Senhora do Monte"))
	assert.Equal(t, "miradouro", QueryText(""))
}

func TestPick(t *testing.T) {
	cands := []Candidate{
		{ID: "a", Name: "Miradouro de São Pedro de Alcântara", Rating: 4.8},
		{ID: "b", Name: "Miradouro da Graça", Rating: 4.6},
		{ID: "c", Name: "Miradouro Sophia de Mello Breyner", Rating: 4.7},
	}
	best := Pick(cands, "Miradouro da Graça")
	require.NotNil(t, best)
	assert.Equal(t, "b", best.ID)

	// Without a name the rating decides.
	assert.Equal(t, "a", Pick(cands, "").ID)
	assert.Nil(t, Pick(nil, "x"))

	// Ties keep result order.
	tie := []Candidate{{ID: "x", Name: "A", Rating: 4}, {ID: "y", Name: "B", Rating: 4}}
	assert.Equal(t, "x", Pick(tie, "").ID)
}

func TestQueryTexts(t *testing.T) {
	assert.Equal(t, []string{"Miradouro da Graça"}, QueryTexts("Miradouro da Graça"))
	got := QueryTexts("Senhora do Monte")
	require.Len(t, got, len(Keywords))
	assert.Equal(t, "miradouro Senhora do Monte", got[0])
	assert.Equal(t, "mirante Senhora do Monte", got[len(got)-1])
}

func TestLookup_RadiusAndKeywordFallback(t *testing.T) {
	var (
		mu      sync.Mutex
		queries []string
	)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/v1/places:searchText"):
			var req placesapi.GoogleMapsPlacesV1SearchTextRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			mu.Lock()
			queries = append(queries, req.TextQuery)
			mu.Unlock()
			switch req.TextQuery {
			case "miradouro Senhora do Monte":
				// Same name, 270 km away in Porto.
				fmt.Fprint(w, `{"places":[
					{"id":"FAR","displayName":{"text":"Miradouro da Senhora do Monte"},"rating":4.9,"location":{"latitude":41.1496,"longitude":-8.6109}}
				]}`)
			case "viewpoint Senhora do Monte":
				fmt.Fprint(w, `{"places":[
					{"id":"FAR2","displayName":{"text":"Senhora do Monte"},"rating":5,"location":{"latitude":41.1496,"longitude":-8.6109}},
					{"id":"NEAR","displayName":{"text":"Miradouro Sophia"},"rating":4.2,"location":{"latitude":38.7192,"longitude":-9.1327}},
					{"id":"NOLOC","displayName":{"text":"Senhora do Monte"},"rating":5}
				]}`)
			default:
				t.Errorf("unexpected query %q", req.TextQuery)
				fmt.Fprint(w, `{}`)
			}
		case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/v1/places/NEAR"):
			fmt.Fprint(w, `{"id":"NEAR","displayName":{"text":"Miradouro Sophia"},"location":{"latitude":38.7192,"longitude":-9.1327}}`)
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()

	c, err := NewClient(context.Background(), "test-key", ts.URL, nil)
	require.NoError(t, err)

	f, err := c.Lookup(context.Background(), "Senhora do Monte", 38.7190, -9.1329)
	require.NoError(t, err)
	assert.Equal(t, "Miradouro Sophia", f.Label)
	require.NotNil(t, f.Coords)
	assert.InDelta(t, 38.7192, f.Coords.Lat, 1e-9)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"miradouro Senhora do Monte", "viewpoint Senhora do Monte"}, queries)
}

func TestSearch_NothingInRadius(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"places":[{"id":"FAR","displayName":{"text":"Miradouro"},"location":{"latitude":41.1496,"longitude":-8.6109}}]}`)
	}))
	defer ts.Close()

	tr := tracker.New()
	c, err := NewClient(context.Background(), "test-key", ts.URL, tr)
	require.NoError(t, err)

	_, err = c.Lookup(context.Background(), "Monsanto", 38.7190, -9.1329)
	assert.ErrorIs(t, err, ErrNoMatch)
	assert.Equal(t, int64(len(Keywords)), tr.Snapshot()["google"].APISuccess)
	assert.Equal(t, int64(1), tr.Snapshot()["google"].APIZeroResult)
}

func TestNewClient_NoKey(t *testing.T) {
	_, err := NewClient(context.Background(), "", "", nil)
	assert.ErrorIs(t, err, ErrNoKey)
}

func TestLookup(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Query().Get("key")
		if key == "" {
			key = r.Header.Get("X-Goog-Api-Key")
		}
		assert.Equal(t, "test-key", key)
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/v1/places:searchText"):
			var req placesapi.GoogleMapsPlacesV1SearchTextRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "Miradouro da Graça", req.TextQuery)
			require.NotNil(t, req.LocationBias)
			assert.Equal(t, 3000.0, req.LocationBias.Circle.Radius)
			fmt.Fprint(w, `{"places":[
				{"id":"P1","displayName":{"text":"Miradouro Sophia de Mello Breyner"},"rating":4.7,"location":{"latitude":38.7161,"longitude":-9.1318}},
				{"id":"P2","displayName":{"text":"Miradouro da Graça"},"rating":4.6,"location":{"latitude":38.7163,"longitude":-9.1313}}
			]}`)
		case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/v1/places/P2"):
			fmt.Fprint(w, `{
				"id":"P2",
				"displayName":{"text":"Miradouro da Graça"},
				"rating":4.6,"userRatingCount":15230,
				"websiteUri":"https://www.lisboa.pt",
				"location":{"latitude":38.7163,"longitude":-9.1313},
				"regularOpeningHours":{"openNow":true,"nextCloseTime":"2026-10-15T23:00:00Z","weekdayDescriptions":["segunda-feira: Aberto 24 horas"]},
				"photos":[{"name":"places/P2/photos/a"},{"name":"places/P2/photos/b"},{"name":""}]
			}`)
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()

	tr := tracker.New()
	c, err := NewClient(context.Background(), "test-key", ts.URL, tr)
	require.NoError(t, err)

	f, err := c.Lookup(context.Background(), "Miradouro da Graça", 38.7163, -9.1313)
	require.NoError(t, err)

	assert.Equal(t, "Miradouro da Graça", f.Label)
	assert.Equal(t, "https://www.lisboa.pt", f.Website)
	assert.Equal(t, []model.Rating{{Source: model.SourceGoogle, Value: 4.6, Votes: 15230}}, f.Ratings)
	require.NotNil(t, f.OpeningHours)
	assert.True(t, *f.OpeningHours.IsOpenNow)
	assert.Equal(t, "2026-10-15T23:00:00Z", f.OpeningHours.NextChange)
	assert.Equal(t, "segunda-feira: Aberto 24 horas", f.OpeningHours.Raw)
	require.Len(t, f.Images, 2)
	assert.Equal(t, ts.URL+"/v1/places/P2/photos/a/media?key=test-key&maxWidthPx=1600", f.Images[0])
	assert.Equal(t, f.Images[0], f.Image)
	require.NotNil(t, f.Coords)
	assert.InDelta(t, 38.7163, f.Coords.Lat, 1e-9)

	assert.Equal(t, int64(2), tr.Snapshot()["google"].APISuccess)
}

func TestFragment_PhotoCap(t *testing.T) {
	c := &Client{key: "k", photoBase: defaultPhotoBase, MaxPhotos: 8, PhotoWidth: 1600}
	p := &placesapi.GoogleMapsPlacesV1Place{}
	for i := 0; i < 12; i++ {
		p.Photos = append(p.Photos, &placesapi.GoogleMapsPlacesV1Photo{Name: fmt.Sprintf("places/X/photos/%d", i)})
	}
	f := c.Fragment(p)
	assert.Len(t, f.Images, 8)
	assert.Nil(t, f.OpeningHours)
	assert.Empty(t, f.Ratings)
	assert.Nil(t, f.Contacts)
}
