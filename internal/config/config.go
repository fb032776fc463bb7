package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	// ServiceWeather is the limiter/cache service name of the weather provider.
	ServiceWeather = "weather"
)

// Empty-category-match policies understood by the reorder generator.
const (
	PolicyTopN  = "top-n"
	PolicySkip  = "skip"
	PolicyError = "error"
)

// Live weather providers selectable with WEATHER_PROVIDER.
const (
	ProviderOpenWeather = "openweathermap"
	ProviderWeatherAPI  = "weatherapi"
)

// ServiceConfig is the resolved configuration of one outbound service for the
// active environment.
type ServiceConfig struct {
	APIKey          string        `yaml:"-"`
	HourlyRateLimit int           `yaml:"hourly_rate_limit"`
	CacheTTL        time.Duration `yaml:"cache_ttl"`
	RetryAttempts   int           `yaml:"retry_attempts"`
}

// AppConfig is read once at startup and handed to constructors.
type AppConfig struct {
	Env         string        `yaml:"env" envconfig:"APP_ENV"`
	Port        string        `yaml:"port" envconfig:"PORT"`
	LogLevel    string        `yaml:"log_level" envconfig:"LOG_LEVEL"`
	HTTPTimeout time.Duration `yaml:"http_timeout" envconfig:"HTTP_TIMEOUT"`

	WeatherProvider string `yaml:"weather_provider" envconfig:"WEATHER_PROVIDER"`
	WeatherAPIKey   string `yaml:"-" envconfig:"WEATHER_API_KEY"`

	// WeatherBaseURL overrides the provider's default endpoint when set.
	WeatherBaseURL string `yaml:"weather_base_url" envconfig:"WEATHER_BASE_URL"`

	DefaultLocation string `yaml:"default_location" envconfig:"DEFAULT_LOCATION"`

	// WarmLocations are refreshed by the scheduler every WarmInterval.
	WarmLocations []string      `yaml:"warm_locations" envconfig:"WARM_LOCATIONS"`
	WarmInterval  time.Duration `yaml:"warm_interval" envconfig:"WARM_INTERVAL"`

	CatalogFile string `yaml:"catalog_file" envconfig:"CATALOG_FILE"`

	EmptyMatchPolicy string `yaml:"empty_match_policy" envconfig:"REORDER_EMPTY_MATCH_POLICY"`
	FallbackProducts int    `yaml:"fallback_products" envconfig:"REORDER_FALLBACK_PRODUCTS"`
	RevenuePerUnit   string `yaml:"revenue_per_unit" envconfig:"REORDER_REVENUE_PER_UNIT"`

	// Report store retention.
	StoreMaxHistory int           `yaml:"store_max_history" envconfig:"STORE_MAX_HISTORY"`
	StoreMaxAge     time.Duration `yaml:"store_max_age" envconfig:"STORE_MAX_AGE"`

	// Services holds per-service, per-environment profiles.
	Services map[string]map[string]ServiceConfig `yaml:"services" ignored:"true"`
}

// Defaults returns the configuration used when nothing else is set.
func Defaults() *AppConfig {
	return &AppConfig{
		Env:              EnvDevelopment,
		Port:             "8080",
		LogLevel:         "info",
		HTTPTimeout:      10 * time.Second,
		WeatherProvider:  ProviderOpenWeather,
		DefaultLocation:  "New York",
		WarmInterval:     15 * time.Minute,
		CatalogFile:      "config/catalog.yaml",
		EmptyMatchPolicy: PolicyTopN,
		FallbackProducts: 3,
		RevenuePerUnit:   "25",
		StoreMaxHistory:  96,
		StoreMaxAge:      24 * time.Hour,
		Services: map[string]map[string]ServiceConfig{
			ServiceWeather: {
				EnvDevelopment: {HourlyRateLimit: 60, CacheTTL: 5 * time.Minute, RetryAttempts: 2},
				EnvProduction:  {HourlyRateLimit: 800, CacheTTL: 10 * time.Minute, RetryAttempts: 3},
			},
		},
	}
}

// Load builds the configuration from defaults, the optional YAML file named by
// CONFIG_FILE (config/config.yaml by default) and the environment, in that
// order of precedence from lowest to highest.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}

	cfg := Defaults()

	path := getenvDefault("CONFIG_FILE", "config/config.yaml")
	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("error environment variable parsing: %w", err)
	}

	cfg.Env = strings.ToLower(strings.TrimSpace(cfg.Env))
	cfg.WeatherProvider = strings.ToLower(strings.TrimSpace(cfg.WeatherProvider))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFile merges a YAML file into cfg. A missing file is not an error.
func (c *AppConfig) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	defaults := c.Services
	c.Services = nil
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	var raw struct {
		Services map[string]map[string]yaml.Node `yaml:"services"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	// Profiles are merged field by field over the defaults; a new
	// environment starts from the development profile of its service.
	for name, envs := range raw.Services {
		if defaults[name] == nil {
			defaults[name] = make(map[string]ServiceConfig)
		}
		for env, node := range envs {
			sc, ok := defaults[name][env]
			if !ok {
				sc = defaults[name][EnvDevelopment]
			}
			if err := node.Decode(&sc); err != nil {
				return fmt.Errorf("parse services.%s.%s in %s: %w", name, env, path, err)
			}
			defaults[name][env] = sc
		}
	}
	c.Services = defaults
	return nil
}

// Validate reports the first invalid setting.
func (c *AppConfig) Validate() error {
	if strings.TrimSpace(c.Port) == "" {
		return errors.New("port is required")
	}
	switch c.WeatherProvider {
	case ProviderOpenWeather, ProviderWeatherAPI:
	default:
		return fmt.Errorf("invalid weather provider %q", c.WeatherProvider)
	}
	switch c.EmptyMatchPolicy {
	case PolicyTopN, PolicySkip, PolicyError:
	default:
		return fmt.Errorf("invalid empty match policy %q", c.EmptyMatchPolicy)
	}
	if c.EmptyMatchPolicy == PolicyTopN && c.FallbackProducts <= 0 {
		return fmt.Errorf("fallback products must be positive, got %d", c.FallbackProducts)
	}
	for name, envs := range c.Services {
		for env, sc := range envs {
			if sc.HourlyRateLimit <= 0 {
				return fmt.Errorf("services.%s.%s.hourly_rate_limit must be positive", name, env)
			}
			if sc.CacheTTL <= 0 {
				return fmt.Errorf("services.%s.%s.cache_ttl must be positive", name, env)
			}
			if sc.RetryAttempts < 1 {
				return fmt.Errorf("services.%s.%s.retry_attempts must be at least 1", name, env)
			}
		}
	}
	return nil
}

// Service resolves the profile of a service for the active environment.
// Unknown environments use the development profile.
func (c *AppConfig) Service(name string) ServiceConfig {
	envs := c.Services[name]
	sc, ok := envs[c.Env]
	if !ok {
		sc = envs[EnvDevelopment]
	}
	if name == ServiceWeather {
		sc.APIKey = strings.TrimSpace(c.WeatherAPIKey)
	}
	return sc
}

// ServiceConfigs resolves every known service for the active environment.
func (c *AppConfig) ServiceConfigs() map[string]ServiceConfig {
	out := make(map[string]ServiceConfig, len(c.Services))
	for name := range c.Services {
		out[name] = c.Service(name)
	}
	return out
}

// ActiveEnv returns the environment whose profiles are in effect.
func (c *AppConfig) ActiveEnv() string {
	if envs, ok := c.Services[ServiceWeather]; ok {
		if _, ok := envs[c.Env]; ok {
			return c.Env
		}
	}
	return EnvDevelopment
}

func (c *AppConfig) IsProduction() bool {
	return c.ActiveEnv() == EnvProduction
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
