package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server    ServerConfig
	GRPC      GRPCConfig
	Worker    WorkerConfig
	Providers ProvidersConfig
	LLM       LLMConfig
	Fallback  FallbackConfig
	DB        DatabaseConfig
	Notify    NotifyConfig
	Registry  RegistryConfig
	Logging   LoggingConfig
}

type GRPCConfig struct {
	Port int
}

type ServerConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string
	RateLimit      float64
	RateBurst      int
}

type WorkerConfig struct {
	Count      int
	BufferSize int
}

type ProvidersConfig struct {
	FIRMSKey       string
	FIRMSURL       string
	FIRMSDays      int
	OpenWeatherKey string
	OpenWeatherURL string
	GeoHubURL      string
	RadiusKm       float64
	HTTPTimeout    time.Duration
}

type LLMConfig struct {
	APIKey  string
	URL     string
	Model   string
	Timeout time.Duration
}

type FallbackConfig struct {
	CacheDir string
}

type DatabaseConfig struct {
	Path string
}

type NotifyConfig struct {
	NATSURL      string
	KafkaBrokers []string
	KafkaTopic   string
}

type RegistryConfig struct {
	TTL           time.Duration
	SweepSchedule string
	RunTimeout    time.Duration
}

type LoggingConfig struct {
	Level string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "localhost"),
			Port:           getEnvInt("SERVER_PORT", 8080),
			AllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
			RateLimit:      getEnvFloat("RATE_LIMIT_RPS", 10),
			RateBurst:      getEnvInt("RATE_LIMIT_BURST", 20),
		},
		GRPC: GRPCConfig{
			Port: getEnvInt("GRPC_PORT", 50051),
		},
		Worker: WorkerConfig{
			Count:      getEnvInt("WORKER_COUNT", 2),
			BufferSize: getEnvInt("WORKER_BUFFER_SIZE", 20),
		},
		Providers: ProvidersConfig{
			FIRMSKey:       getEnv("NASA_FIRMS_KEY", ""),
			FIRMSURL:       getEnv("NASA_FIRMS_URL", "https://firms.modaps.eosdis.nasa.gov/api/area/csv"),
			FIRMSDays:      getEnvInt("NASA_FIRMS_DAYS", 1),
			OpenWeatherKey: getEnv("OPENWEATHER_API_KEY", ""),
			OpenWeatherURL: getEnv("OPENWEATHER_URL", "https://api.openweathermap.org/data/2.5"),
			GeoHubURL:      getEnv("GEOHUB_URL", ""),
			RadiusKm:       getEnvFloat("PROVIDER_RADIUS_KM", 50),
			HTTPTimeout:    getEnvDuration("PROVIDER_HTTP_TIMEOUT", 15*time.Second),
		},
		LLM: LLMConfig{
			APIKey:  getEnv("OPENROUTER_API_KEY", ""),
			URL:     getEnv("OPENROUTER_URL", "https://openrouter.ai/api/v1"),
			Model:   getEnv("OPENROUTER_MODEL", "anthropic/claude-3.5-sonnet"),
			Timeout: getEnvDuration("OPENROUTER_TIMEOUT", 60*time.Second),
		},
		Fallback: FallbackConfig{
			CacheDir: getEnv("FALLBACK_CACHE_DIR", "./data/cache"),
		},
		DB: DatabaseConfig{
			Path: getEnv("DB_PATH", "./data/rapidresponse.db"),
		},
		Notify: NotifyConfig{
			NATSURL:      getEnv("NATS_URL", ""),
			KafkaBrokers: getEnvList("KAFKA_BROKERS", nil),
			KafkaTopic:   getEnv("KAFKA_TOPIC", "disaster-events"),
		},
		Registry: RegistryConfig{
			TTL:           getEnvDuration("RUN_TTL", 24*time.Hour),
			SweepSchedule: getEnv("RUN_SWEEP_SCHEDULE", "@every 10m"),
			RunTimeout:    getEnvDuration("RUN_TIMEOUT", 5*time.Minute),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.GRPC.Port < 1 || c.GRPC.Port > 65535 {
		return fmt.Errorf("invalid grpc port: %d", c.GRPC.Port)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.Worker.Count < 1 {
		return fmt.Errorf("worker count must be at least 1")
	}
	if c.Providers.RadiusKm <= 0 {
		return fmt.Errorf("provider radius must be positive")
	}
	if c.LLM.Timeout <= 0 {
		return fmt.Errorf("LLM timeout must be positive")
	}
	if c.Registry.TTL < time.Minute {
		return fmt.Errorf("run TTL must be at least 1 minute")
	}
	if len(c.Notify.KafkaBrokers) > 0 && c.Notify.KafkaTopic == "" {
		return fmt.Errorf("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}

	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}

// getEnvList splits a comma separated value, dropping blanks.
func getEnvList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
