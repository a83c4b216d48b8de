package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poiatlas/pkg/logging"
)

func TestFormatLogLine(t *testing.T) {
	input := `time=2026-01-18T06:50:46.074+01:00 level=INFO msg="Enriched POI" component=enricher images="3 " name=Sé trace=5f3a9c1e wikipedia_url=https://pt.wikipedia.org/wiki/S%C3%A9_de_Lisboa`
	expected := "06:50:46 Enriched POI (component=enricher, images=3, name=Sé, trace=5f3a9c1e)"
	assert.Equal(t, expected, formatLogLine(input))

	assert.Equal(t, "not a structured line", formatLogLine("not a structured line"))
}

func TestHandleLatestLog(t *testing.T) {
	_, _ = logging.GlobalLogCapture.Write([]byte(`time=2026-01-18T06:50:46Z level=INFO msg="first"` + "\n"))
	_, _ = logging.GlobalLogCapture.Write([]byte(`time=2026-01-18T06:50:47Z level=INFO msg="second" id=42` + "\n"))

	rec := httptest.NewRecorder()
	handleLatestLog(rec, httptest.NewRequest(http.MethodGet, "/api/log/latest", http.NoBody))
	var one map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &one))
	assert.Contains(t, one["log"], "second (id=42)")

	rec = httptest.NewRecorder()
	handleLatestLog(rec, httptest.NewRequest(http.MethodGet, "/api/log/latest?n=2", http.NoBody))
	var many map[string][]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &many))
	require.Len(t, many["logs"], 2)
	assert.Contains(t, many["logs"][0], "first")
}
