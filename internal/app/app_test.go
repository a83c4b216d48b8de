package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poiatlas/pkg/cache"
	"poiatlas/pkg/config"
	"poiatlas/pkg/probe"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.DB.Path = filepath.Join(t.TempDir(), "poiatlas.db")
	return cfg
}

func TestBuild_DefaultsWithoutKeys(t *testing.T) {
	cfg := testConfig(t)
	s, err := Build(context.Background(), cfg)
	require.NoError(t, err)
	defer s.Close()

	assert.Same(t, s.Store, s.Records, "sqlite backend reuses the store")
	assert.Nil(t, s.Places)
	assert.False(t, s.OTM.Enabled())
	assert.Equal(t, []string{"pt", "en"}, s.Wikidata.Languages)
	assert.Equal(t, 350.0, s.Overpass.Radius)

	src := s.Sources()
	assert.NotNil(t, src.Wikipedia)
	assert.NotNil(t, src.OSM)
	assert.Nil(t, src.OTM, "disabled adapter stays a nil interface")
	assert.Nil(t, src.Places)

	results := probe.Run(context.Background(), s.Probes())
	require.Len(t, results, 2)
	assert.NoError(t, probe.AnalyzeResults(results))
}

func TestBuild_MemoryBackendAndKeys(t *testing.T) {
	cfg := testConfig(t)
	cfg.Cache.Backend = "memory"
	cfg.Providers.OpenTripMap.Key = "otm-key"
	cfg.Providers.GooglePlaces.Key = "places-key"
	cfg.Enrich.Languages = []string{"en"}

	s, err := Build(context.Background(), cfg)
	require.NoError(t, err)
	defer s.Close()

	_, ok := s.Records.(*cache.Memory)
	assert.True(t, ok)
	require.NotNil(t, s.Places)
	assert.Equal(t, 3000.0, s.Places.Radius)
	assert.Equal(t, "en", s.OTM.Lang)

	src := s.Sources()
	assert.NotNil(t, src.OTM)
	assert.NotNil(t, src.Places)
}

func TestProviderProbes(t *testing.T) {
	cfg := config.DefaultConfig()
	assert.Len(t, ProviderProbes(cfg), 3)
	cfg.Providers.OpenTripMap.Key = "k"
	assert.Len(t, ProviderProbes(cfg), 4)
}
