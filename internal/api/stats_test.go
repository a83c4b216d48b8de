package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poiatlas/pkg/tracker"
)

func TestStatsHandler(t *testing.T) {
	tr := tracker.New()
	tr.TrackCacheHit("wikipedia")
	tr.TrackCacheHit("wikipedia")
	tr.TrackCacheHit("wikipedia")
	tr.TrackCacheMiss("wikipedia")
	tr.TrackAPISuccess("wikipedia")
	tr.TrackAPIFailure("overpass")

	h := NewStatsHandler(tr, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stats", http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp StatsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(75), resp.Providers["wikipedia"].HitRate)
	assert.Equal(t, int64(1), resp.Providers["overpass"].APIFailures)
	assert.Equal(t, []string{"overpass", "wikipedia"}, resp.Order)
	assert.Positive(t, resp.Diagnostics.Goroutines)
}
