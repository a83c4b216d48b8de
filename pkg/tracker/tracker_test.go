package tracker

import (
	"sync"
	"testing"
)

func TestTracker(t *testing.T) {
	tr := New()
	provider := "test.provider"

	// Test Initial State
	stats := tr.Snapshot()
	if len(stats) != 0 {
		t.Errorf("Expected empty stats, got %d", len(stats))
	}

	// Test Tracking
	tr.TrackCacheHit(provider)
	tr.TrackCacheMiss(provider)
	tr.TrackAPISuccess(provider)
	tr.TrackAPIFailure(provider)
	tr.TrackAPIZero(provider)
	tr.TrackBreakerReject(provider)

	// Verify Snapshot
	stats = tr.Snapshot()
	pStats, ok := stats[provider]
	if !ok {
		t.Fatalf("Expected stats for provider %s", provider)
	}

	if pStats.CacheHits != 1 {
		t.Errorf("Expected 1 CacheHit, got %d", pStats.CacheHits)
	}
	if pStats.CacheMisses != 1 {
		t.Errorf("Expected 1 CacheMiss, got %d", pStats.CacheMisses)
	}
	if pStats.APISuccess != 1 {
		t.Errorf("Expected 1 APISuccess, got %d", pStats.APISuccess)
	}
	if pStats.APIFailures != 1 {
		t.Errorf("Expected 1 APIFailure, got %d", pStats.APIFailures)
	}
	if pStats.APIZeroResult != 1 {
		t.Errorf("Expected 1 APIZeroResult, got %d", pStats.APIZeroResult)
	}
	if pStats.BreakerRejects != 1 {
		t.Errorf("Expected 1 BreakerReject, got %d", pStats.BreakerRejects)
	}
}

func TestResetKeepsProviders(t *testing.T) {
	tr := New()
	tr.TrackAPISuccess("wikipedia")
	tr.TrackAPISuccess("osm")

	tr.Reset()

	stats := tr.Snapshot()
	if len(stats) != 2 {
		t.Fatalf("Post-Reset: expected 2 providers, got %d", len(stats))
	}
	if stats["wikipedia"].APISuccess != 0 {
		t.Errorf("Post-Reset: APISuccess should be 0, got %d", stats["wikipedia"].APISuccess)
	}
	if got := tr.Providers(); len(got) != 2 || got[0] != "osm" || got[1] != "wikipedia" {
		t.Errorf("Providers() = %v, want [osm wikipedia]", got)
	}
}

func TestConcurrentTracking(t *testing.T) {
	tr := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.TrackCacheHit("wikidata")
		}()
	}
	wg.Wait()
	if got := tr.Snapshot()["wikidata"].CacheHits; got != 50 {
		t.Errorf("Expected 50 CacheHits, got %d", got)
	}
}
