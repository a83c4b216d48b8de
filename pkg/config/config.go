package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	DB        DBConfig        `yaml:"db"`
	Cache     CacheConfig     `yaml:"cache"`
	Request   RequestConfig   `yaml:"request"`
	Enrich    EnrichConfig    `yaml:"enrich"`
	Providers ProvidersConfig `yaml:"providers"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Address string `yaml:"address"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Server   LogSettings `yaml:"server"`
	Requests LogSettings `yaml:"requests"`
}

// LogSettings holds settings for a specific logger.
type LogSettings struct {
	Path  string `yaml:"path"`
	Level string `yaml:"level"`
}

// DBConfig holds database settings.
type DBConfig struct {
	Path string `yaml:"path"`
}

// CacheConfig holds settings for the resolved-record cache and the HTTP response cache.
type CacheConfig struct {
	Backend     string      `yaml:"backend"` // "sqlite", "redis", "memory"
	TTL         Duration    `yaml:"ttl"`
	NegativeTTL Duration    `yaml:"negative_ttl"`
	ResponseTTL Duration    `yaml:"response_ttl"`
	Redis       RedisConfig `yaml:"redis"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// RequestConfig holds HTTP request settings.
type RequestConfig struct {
	Retries     int           `yaml:"retries"`
	Timeout     Duration      `yaml:"timeout"`
	MinInterval Duration      `yaml:"min_interval"`
	Backoff     BackoffConfig `yaml:"backoff"`
	Breaker     BreakerConfig `yaml:"breaker"`
}

// BackoffConfig holds exponential backoff settings.
type BackoffConfig struct {
	BaseDelay Duration `yaml:"base_delay"`
	MaxDelay  Duration `yaml:"max_delay"`
}

// BreakerConfig holds per-provider circuit breaker settings.
type BreakerConfig struct {
	Failures int      `yaml:"failures"`
	Cooldown Duration `yaml:"cooldown"`
}

// EnrichConfig holds the heuristics of the enrichment pipeline.
type EnrichConfig struct {
	Languages            []string `yaml:"languages"`
	MaxDistance          Distance `yaml:"max_distance"`
	GeoSearchRadius      Distance `yaml:"geosearch_radius"`
	OverlapThreshold     float64  `yaml:"overlap_threshold"`
	OSMRadius            Distance `yaml:"osm_radius"`
	OTMRadius            Distance `yaml:"otm_radius"`
	PlacesRadius         Distance `yaml:"places_radius"`
	ImagePool            int      `yaml:"image_pool"`
	ModalPrecap          int      `yaml:"modal_precap"`
	GalleryLive          int      `yaml:"gallery_live"`
	GalleryTarget        int      `yaml:"gallery_target"`
	DistrictGallery      int      `yaml:"district_gallery"`
	ProbeTimeout         Duration `yaml:"probe_timeout"`
	ProbeConcurrency     int      `yaml:"probe_concurrency"`
	CommercialCategories []string `yaml:"commercial_categories"`
}

// ProvidersConfig holds endpoints and credentials of the external sources.
type ProvidersConfig struct {
	OpenTripMap  KeyedProvider `yaml:"opentripmap"`
	GooglePlaces KeyedProvider `yaml:"google_places"`
	Overpass     Provider      `yaml:"overpass"`
	SIPA         SIPAConfig    `yaml:"sipa"`
}

// Provider holds an endpoint override.
type Provider struct {
	Endpoint string `yaml:"endpoint"`
}

// KeyedProvider holds an endpoint override and an API key.
type KeyedProvider struct {
	Endpoint string `yaml:"endpoint"`
	Key      string `yaml:"key"`
}

// SIPAConfig holds settings for the heritage registry scrape.
type SIPAConfig struct {
	Endpoint string   `yaml:"endpoint"`
	ProxyURL string   `yaml:"proxy_url"`
	CacheTTL Duration `yaml:"cache_ttl"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Address: "localhost:8640",
		},
		Log: LogConfig{
			Server: LogSettings{
				Path:  "./logs/server.log",
				Level: "INFO",
			},
			Requests: LogSettings{
				Path:  "./logs/requests.log",
				Level: "INFO",
			},
		},
		DB: DBConfig{
			Path: "./data/poiatlas.db",
		},
		Cache: CacheConfig{
			Backend:     "sqlite",
			TTL:         Duration(14 * Day),
			NegativeTTL: Duration(1 * time.Hour),
			ResponseTTL: Duration(7 * Day),
			Redis: RedisConfig{
				Addr:   "localhost:6379",
				Prefix: "poiatlas:",
			},
		},
		Request: RequestConfig{
			Retries:     3,
			Timeout:     Duration(30 * time.Second),
			MinInterval: Duration(100 * time.Millisecond),
			Backoff: BackoffConfig{
				BaseDelay: Duration(500 * time.Millisecond),
				MaxDelay:  Duration(30 * time.Second),
			},
			Breaker: BreakerConfig{
				Failures: 5,
				Cooldown: Duration(1 * time.Minute),
			},
		},
		Enrich: EnrichConfig{
			Languages:        []string{"pt", "en"},
			MaxDistance:      Distance(60000),
			GeoSearchRadius:  Distance(800),
			OverlapThreshold: 0.35,
			OSMRadius:        Distance(350),
			OTMRadius:        Distance(300),
			PlacesRadius:     Distance(3000),
			ImagePool:        48,
			ModalPrecap:      10,
			GalleryLive:      3,
			GalleryTarget:    10,
			DistrictGallery:  10,
			ProbeTimeout:     Duration(8 * time.Second),
			ProbeConcurrency: 4,
			CommercialCategories: []string{
				"restaurant", "cafe", "bar", "hotel", "shop", "business", "alojamento", "restauracao", "comercio",
			},
		},
		Providers: ProvidersConfig{
			OpenTripMap: KeyedProvider{
				Endpoint: "https://api.opentripmap.com/0.1",
			},
			Overpass: Provider{
				Endpoint: "https://overpass-api.de/api/interpreter",
			},
			SIPA: SIPAConfig{
				Endpoint: "http://www.monumentos.gov.pt/Site/APP_PagesUser/SIPA.aspx",
				CacheTTL: Duration(7 * Day),
			},
		},
	}
}

// Load loads the configuration from the given path.
// If the file does not exist, it creates it with default values.
// API keys left empty in the file are taken from the environment and never written back.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if err := Save(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to save config file: %w", err)
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if cfg.Providers.OpenTripMap.Key == "" {
		cfg.Providers.OpenTripMap.Key = os.Getenv("OPENTRIPMAP_API_KEY")
	}
	if cfg.Providers.GooglePlaces.Key == "" {
		cfg.Providers.GooglePlaces.Key = os.Getenv("GOOGLE_PLACES_API_KEY")
	}
	if cfg.Cache.Redis.Password == "" {
		cfg.Cache.Redis.Password = os.Getenv("REDIS_PASSWORD")
	}
}

var langCode = regexp.MustCompile(`^[a-z]{2,3}$`)

// Validate checks values the pipeline cannot work without.
func (c *Config) Validate() error {
	if len(c.Enrich.Languages) == 0 {
		return fmt.Errorf("enrich.languages must not be empty")
	}
	for _, l := range c.Enrich.Languages {
		if !langCode.MatchString(l) {
			return fmt.Errorf("invalid language code '%s' in enrich.languages", l)
		}
	}
	if c.Enrich.OverlapThreshold < 0 || c.Enrich.OverlapThreshold > 1 {
		return fmt.Errorf("enrich.overlap_threshold must be within [0, 1], got %v", c.Enrich.OverlapThreshold)
	}
	if c.Enrich.GalleryLive <= 0 || c.Enrich.GalleryTarget < c.Enrich.GalleryLive {
		return fmt.Errorf("enrich.gallery_target (%d) must be >= gallery_live (%d) > 0", c.Enrich.GalleryTarget, c.Enrich.GalleryLive)
	}
	switch c.Cache.Backend {
	case "sqlite", "redis", "memory":
	default:
		return fmt.Errorf("unknown cache.backend '%s'", c.Cache.Backend)
	}
	return nil
}

// Save writes the configuration to the path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# poiatlas configuration
# ---------------------
# Supported Units:
#   Duration: ms, s, m, h, d (day), w (week)
#   Distance: m (meters), km (kilometers)
# API keys may be left empty and supplied via OPENTRIPMAP_API_KEY / GOOGLE_PLACES_API_KEY.

`)
	data = append(header, data...)

	reBackend := regexp.MustCompile(`(?m)^(\s+)backend:`)
	data = reBackend.ReplaceAll(data, []byte("${1}# Options: sqlite, redis, memory\n${1}backend:"))

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GenerateDefault creates a default config file at the given path.
// Returns nil if the file already exists.
func GenerateDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return Save(path, DefaultConfig())
}
