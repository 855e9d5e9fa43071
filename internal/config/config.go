// Package config loads application configuration from file and environment.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Server        ServerConfig        `yaml:"server" mapstructure:"server"`
	Log           LogConfig           `yaml:"log" mapstructure:"log"`
	Anthropic     AnthropicConfig     `yaml:"anthropic" mapstructure:"anthropic"`
	Serper        SerperConfig        `yaml:"serper" mapstructure:"serper"`
	Jina          JinaConfig          `yaml:"jina" mapstructure:"jina"`
	Nominatim     NominatimConfig     `yaml:"nominatim" mapstructure:"nominatim"`
	GooglePlaces  GooglePlacesConfig  `yaml:"google_places" mapstructure:"google_places"`
	Mapbox        MapboxConfig        `yaml:"mapbox" mapstructure:"mapbox"`
	EventRegistry EventRegistryConfig `yaml:"event_registry" mapstructure:"event_registry"`
	Resolver      ResolverConfig      `yaml:"resolver" mapstructure:"resolver"`
	Boundary      BoundaryConfig      `yaml:"boundary" mapstructure:"boundary"`
	Agents        AgentsConfig        `yaml:"agents" mapstructure:"agents"`
	Aggregate     AggregateConfig     `yaml:"aggregate" mapstructure:"aggregate"`
	Pipeline      PipelineConfig      `yaml:"pipeline" mapstructure:"pipeline"`
}

// ServerConfig configures the HTTP serving boundary.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// SerperConfig holds Serper.dev search API settings.
type SerperConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// JinaConfig holds Jina AI Reader settings.
type JinaConfig struct {
	Key           string `yaml:"key" mapstructure:"key"`
	BaseURL       string `yaml:"base_url" mapstructure:"base_url"`
	SearchBaseURL string `yaml:"search_base_url" mapstructure:"search_base_url"`
}

// NominatimConfig holds OpenStreetMap Nominatim settings.
type NominatimConfig struct {
	BaseURL   string  `yaml:"base_url" mapstructure:"base_url"`
	UserAgent string  `yaml:"user_agent" mapstructure:"user_agent"`
	RPS       float64 `yaml:"rps" mapstructure:"rps"`
}

// GooglePlacesConfig holds Google Places API settings.
type GooglePlacesConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// MapboxConfig holds Mapbox Geocoding API settings.
type MapboxConfig struct {
	Token   string `yaml:"token" mapstructure:"token"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// EventRegistryConfig holds Event Registry (newsapi.ai) settings.
type EventRegistryConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// ResolverConfig configures the staged geocoding resolver.
type ResolverConfig struct {
	CandidateTimeoutSecs int      `yaml:"candidate_timeout_secs" mapstructure:"candidate_timeout_secs"`
	SiteTimeoutSecs      int      `yaml:"site_timeout_secs" mapstructure:"site_timeout_secs"`
	MaxConcurrent        int      `yaml:"max_concurrent" mapstructure:"max_concurrent"`
	MaxPerSite           int      `yaml:"max_per_site" mapstructure:"max_per_site"`
	ListingSites         []string `yaml:"listing_sites" mapstructure:"listing_sites"`
	CachePath            string   `yaml:"cache_path" mapstructure:"cache_path"`
	CacheTTLHours        int      `yaml:"cache_ttl_hours" mapstructure:"cache_ttl_hours"`
}

// BoundaryConfig configures city boundary validation.
type BoundaryConfig struct {
	RadiusKM    float64 `yaml:"radius_km" mapstructure:"radius_km"`
	PolygonFile string  `yaml:"polygon_file" mapstructure:"polygon_file"`
}

// AgentsConfig configures the source agents.
type AgentsConfig struct {
	MaxCandidates int `yaml:"max_candidates" mapstructure:"max_candidates"`
	MunicipalMax  int `yaml:"municipal_max" mapstructure:"municipal_max"`
	NewsArticles  int `yaml:"news_articles" mapstructure:"news_articles"`
}

// AggregateConfig configures POI deduplication.
type AggregateConfig struct {
	H3Resolution int `yaml:"h3_resolution" mapstructure:"h3_resolution"`
}

// PipelineConfig configures the per-request pipeline run.
type PipelineConfig struct {
	RequestTimeoutSecs int `yaml:"request_timeout_secs" mapstructure:"request_timeout_secs"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("AROUNDME")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("serper.base_url", "https://google.serper.dev")
	v.SetDefault("jina.base_url", "https://r.jina.ai")
	v.SetDefault("jina.search_base_url", "https://s.jina.ai")
	v.SetDefault("nominatim.base_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("nominatim.user_agent", "AroundMeAgent/1.0")
	v.SetDefault("nominatim.rps", 1)
	v.SetDefault("google_places.base_url", "https://maps.googleapis.com/maps/api/place")
	v.SetDefault("mapbox.base_url", "https://api.mapbox.com/geocoding/v5/mapbox.places")
	v.SetDefault("event_registry.base_url", "https://eventregistry.org/api/v1")
	v.SetDefault("resolver.candidate_timeout_secs", 45)
	v.SetDefault("resolver.site_timeout_secs", 10)
	v.SetDefault("resolver.max_concurrent", 4)
	v.SetDefault("resolver.max_per_site", 3)
	v.SetDefault("resolver.listing_sites", []string{
		"google.com/maps",
		"yelp.com",
		"yellowpages.com",
		"facebook.com",
		"opentable.com",
	})
	v.SetDefault("resolver.cache_ttl_hours", 24)
	v.SetDefault("boundary.radius_km", 25)
	v.SetDefault("agents.max_candidates", 8)
	v.SetDefault("agents.municipal_max", 25)
	v.SetDefault("agents.news_articles", 25)
	v.SetDefault("aggregate.h3_resolution", 10)
	v.SetDefault("pipeline.request_timeout_secs", 120)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
