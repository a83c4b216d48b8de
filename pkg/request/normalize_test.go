package request

import "testing"

func TestNormalizeProvider(t *testing.T) {
	tests := []struct {
		host     string
		expected string
	}{
		{"www.wikidata.org", "wikidata"},
		{"query.wikidata.org", "wikidata"},
		{"pt.wikipedia.org", "wikipedia"},
		{"en.wikipedia.org", "wikipedia"},
		{"commons.wikimedia.org", "wikimedia"},
		{"overpass-api.de", "overpass"},
		{"overpass.kumi.systems", "overpass"},
		{"api.opentripmap.com", "opentripmap"},
		{"places.googleapis.com", "google"},
		{"www.monumentos.gov.pt", "sipa"},
		{"other.com", "other.com"},
	}

	for _, tt := range tests {
		got := normalizeProvider(tt.host)
		if got != tt.expected {
			t.Errorf("normalizeProvider(%q) = %q; want %q", tt.host, got, tt.expected)
		}
	}
}
