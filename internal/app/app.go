// Package app wires configuration, storage and the provider adapters into an Enricher.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"poiatlas/pkg/cache"
	"poiatlas/pkg/config"
	"poiatlas/pkg/db"
	"poiatlas/pkg/enrich"
	"poiatlas/pkg/opentripmap"
	"poiatlas/pkg/overpass"
	"poiatlas/pkg/places"
	"poiatlas/pkg/probe"
	"poiatlas/pkg/request"
	"poiatlas/pkg/sipa"
	"poiatlas/pkg/store"
	"poiatlas/pkg/tracker"
	"poiatlas/pkg/wikidata"
	"poiatlas/pkg/wikipedia"
)

// Services holds the long-lived components of one process.
type Services struct {
	DB      *db.DB
	Store   *store.SQLiteStore
	Records cache.Cacher // backing of resolved records
	Tracker *tracker.Tracker
	Request *request.Client

	Wikipedia *wikipedia.Client
	Wikidata  *wikidata.Client
	Overpass  *overpass.Client
	OTM       *opentripmap.Client
	Places    *places.Client // nil without an API key
	SIPA      *sipa.Client

	Prober   *enrich.Prober
	Enricher *enrich.Enricher

	redis *cache.Redis
}

// Build opens the database, selects the record cache backend and creates all adapters.
func Build(ctx context.Context, cfg *config.Config) (*Services, error) {
	dbConn, err := db.Init(cfg.DB.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	s := &Services{
		DB:      dbConn,
		Store:   store.NewSQLiteStore(dbConn),
		Tracker: tracker.New(),
	}

	switch cfg.Cache.Backend {
	case "redis":
		r, err := cache.NewRedis(ctx, cfg.Cache.Redis)
		if err != nil {
			dbConn.Close()
			return nil, err
		}
		s.redis, s.Records = r, r
	case "memory":
		s.Records = cache.NewMemory()
	default:
		s.Records = s.Store
	}

	s.Request = request.New(s.Store, s.Tracker, request.ConfigFrom(cfg.Request, cfg.Cache.ResponseTTL.Std()))
	s.buildAdapters(ctx, cfg)

	s.Prober = enrich.NewProber(cfg.Enrich.ProbeTimeout.Std(), cfg.Enrich.ProbeConcurrency)
	s.Enricher = enrich.New(s.Sources(), s.Prober, enrich.OptionsFrom(cfg.Enrich))
	return s, nil
}

func (s *Services) buildAdapters(ctx context.Context, cfg *config.Config) {
	p := cfg.Providers
	e := cfg.Enrich

	s.Wikipedia = wikipedia.NewClient(s.Request)

	s.Wikidata = wikidata.NewClient(s.Request, slog.With("component", "wikidata_client"))
	s.Wikidata.Languages = append([]string(nil), e.Languages...)

	s.Overpass = overpass.NewClient(s.Request, p.Overpass.Endpoint)
	s.Overpass.Radius = e.OSMRadius.Meters()

	s.OTM = opentripmap.NewClient(s.Request, p.OpenTripMap.Endpoint, p.OpenTripMap.Key)
	s.OTM.Radius = e.OTMRadius.Meters()
	if len(e.Languages) > 0 {
		s.OTM.Lang = e.Languages[0]
	}

	pc, err := places.NewClient(ctx, p.GooglePlaces.Key, p.GooglePlaces.Endpoint, s.Tracker)
	switch {
	case errors.Is(err, places.ErrNoKey):
		slog.Info("Google Places disabled, viewpoints use the general pipeline")
	case err != nil:
		slog.Warn("Google Places unavailable", "error", err)
	default:
		pc.Radius = e.PlacesRadius.Meters()
		s.Places = pc
	}

	s.SIPA = sipa.NewClient(s.Request, p.SIPA.Endpoint, p.SIPA.ProxyURL, p.SIPA.CacheTTL.Std())
}

// Sources returns the adapters as enrichment sources. Disabled adapters stay nil.
func (s *Services) Sources() enrich.Sources {
	src := enrich.Sources{
		Wikipedia: s.Wikipedia,
		Wikidata:  s.Wikidata,
		OSM:       s.Overpass,
		SIPA:      s.SIPA,
	}
	if s.OTM != nil && s.OTM.Enabled() {
		src.OTM = s.OTM
	}
	if s.Places != nil {
		src.Places = s.Places
	}
	return src
}

// Probes returns the startup checks for the local stores.
func (s *Services) Probes() []probe.Probe {
	probes := []probe.Probe{
		{Name: "Database", Check: probe.Ping(s.DB), Critical: true},
		{Name: "Response Cache", Check: probe.CacheRoundTrip(s.Store), Critical: true},
	}
	if s.redis != nil {
		probes = append(probes, probe.Probe{Name: "Redis", Check: s.redis.Health, Critical: true})
	}
	return probes
}

// ProviderProbes returns non-critical reachability checks for the external APIs.
func ProviderProbes(cfg *config.Config) []probe.Probe {
	probes := []probe.Probe{
		{Name: "Wikipedia", Check: probe.Reachable(nil, "https://pt.wikipedia.org/w/api.php")},
		{Name: "Wikidata", Check: probe.Reachable(nil, "https://www.wikidata.org/w/api.php")},
		{Name: "Overpass", Check: probe.Reachable(nil, cfg.Providers.Overpass.Endpoint)},
	}
	if cfg.Providers.OpenTripMap.Key != "" {
		probes = append(probes, probe.Probe{Name: "OpenTripMap", Check: probe.Reachable(nil, cfg.Providers.OpenTripMap.Endpoint)})
	}
	return probes
}

// MaintenanceMaxAge bounds how long any response stays in the cache, whatever its TTL.
const MaintenanceMaxAge = 30 * 24 * time.Hour

// Close releases the stores.
func (s *Services) Close() {
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			slog.Warn("Failed to close redis", "error", err)
		}
	}
	if err := s.DB.Close(); err != nil {
		slog.Warn("Failed to close database", "error", err)
	}
}
