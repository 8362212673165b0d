package env

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"time"

	"github.com/joho/godotenv"
)

type RealEstateConfig struct {
	BaseURL            string
	Timeout            time.Duration
	RPS                float64
	InitialFilter      string
	EmptyAsError       bool
	ConnectivityPolicy string
}

type LogConfig struct {
	Level string
	JSON  bool
}

type FluentBitConfig struct {
	Enabled bool
	Host    string
	Port    int
	Level   string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Channel  string
}

type HTTPConfig struct {
	Port            int
	CORSOrigins     []string
	RateLimitPerMin int
}

type Config struct {
	AppName     string
	HTTP        HTTPConfig
	RealEstate  RealEstateConfig
	Log         LogConfig
	FluentBit   FluentBitConfig
	Redis       RedisConfig
	PostgresDSN string
}

// Load reads the configuration from the environment. Files in envPath (or
// ./.env) are loaded first when present; a missing file is not an error.
func Load(envPath ...string) (*Config, error) {
	if err := godotenv.Load(envPath...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("could not load env file %v: %w", envPath, err)
	}

	cfg := &Config{
		AppName: Get("APP_NAME", "overview-api"),
		HTTP: HTTPConfig{
			Port:            GetInt("PORT", 4002),
			CORSOrigins:     GetList("CORS_ORIGINS"),
			RateLimitPerMin: GetInt("RATE_LIMIT_PER_MIN", 100),
		},
		RealEstate: RealEstateConfig{
			BaseURL:            Get("REALESTATE_BASE_URL", "https://mars.udacity.com/"),
			Timeout:            GetDuration("REALESTATE_TIMEOUT", 0),
			RPS:                GetFloat("UPSTREAM_RPS", 0),
			InitialFilter:      Get("INITIAL_FILTER", "all"),
			EmptyAsError:       GetBool("EMPTY_AS_ERROR", false),
			ConnectivityPolicy: Get("CONNECTIVITY_POLICY", "observe"),
		},
		Log: LogConfig{
			Level: Get("LOG_LEVEL", "info"),
			JSON:  GetBool("LOG_JSON", false),
		},
		Redis: RedisConfig{
			Addr:     Get("REDIS_ADDR", ""),
			Password: Get("REDIS_PASSWORD", ""),
			DB:       GetInt("REDIS_DB", 0),
			Channel:  Get("EVENTS_CHANNEL", "overview.events"),
		},
		PostgresDSN: Get("PG_DSN", ""),
	}

	cfg.FluentBit.Enabled = GetBool("FLUENTBIT_ENABLED", false)
	if cfg.FluentBit.Enabled {
		cfg.FluentBit.Host = Get("FLUENTBIT_HOST", "")
		if cfg.FluentBit.Host == "" {
			log.Println("WARNING: FLUENTBIT_ENABLED is true, but FLUENTBIT_HOST is not set. Disabling Fluent Bit.")
			cfg.FluentBit.Enabled = false
		}
		cfg.FluentBit.Port = GetInt("FLUENTBIT_PORT", 24224)
		cfg.FluentBit.Level = Get("FLUENTBIT_LOG_LEVEL", "info")
	}

	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return nil, fmt.Errorf("PORT %d out of range", cfg.HTTP.Port)
	}
	return cfg, nil
}
