package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port               string        `yaml:"port"`
	DatabaseURL        string        `yaml:"database_url"`
	DBMaxConns         int           `yaml:"db_max_conns"`
	CorsAllowedOrigins []string      `yaml:"cors_allowed_origins"`
	JWTSecret          string        `yaml:"jwt_secret"`
	RequireEditToken   bool          `yaml:"require_edit_token"`
	EditTokenTTL       time.Duration `yaml:"edit_token_ttl"`
	CheckRateLimit     int           `yaml:"check_rate_limit"`
	CheckRateWindow    time.Duration `yaml:"check_rate_window"`
	BcryptCost         int           `yaml:"bcrypt_cost"`
	LogLevel           string        `yaml:"log_level"`
	// TrustProxyHeaders lets X-Real-IP / X-Forwarded-For replace the peer
	// address. Enable only behind a proxy that overwrites them.
	TrustProxyHeaders bool `yaml:"trust_proxy_headers"`
}

func Defaults() Config {
	return Config{
		Port:               "8080",
		DatabaseURL:        "sqlite:./data/blog.db",
		DBMaxConns:         10,
		CorsAllowedOrigins: []string{"*"},
		EditTokenTTL:       15 * time.Minute,
		CheckRateLimit:     10,
		CheckRateWindow:    time.Minute,
		BcryptCost:         10,
		LogLevel:           "info",
	}
}

// Load builds the config from defaults, then the YAML file named by
// CONFIG_FILE, then environment variables (a .env file is loaded first).
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Defaults()
	if path := getEnv("CONFIG_FILE", ""); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return cfg, err
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.JWTSecret = getEnv("JWT_SECRET", cfg.JWTSecret)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	if v := getEnv("CORS_ALLOWED_ORIGINS", ""); v != "" {
		cfg.CorsAllowedOrigins = splitCSV(v)
	}

	var errs []error
	cfg.DBMaxConns = getInt("DB_MAX_CONNS", cfg.DBMaxConns, &errs)
	cfg.CheckRateLimit = getInt("CHECK_RATE_LIMIT", cfg.CheckRateLimit, &errs)
	cfg.BcryptCost = getInt("BCRYPT_COST", cfg.BcryptCost, &errs)
	cfg.EditTokenTTL = getDuration("EDIT_TOKEN_TTL", cfg.EditTokenTTL, &errs)
	cfg.CheckRateWindow = getDuration("CHECK_RATE_WINDOW", cfg.CheckRateWindow, &errs)
	cfg.RequireEditToken = getBool("REQUIRE_EDIT_TOKEN", cfg.RequireEditToken, &errs)
	cfg.TrustProxyHeaders = getBool("TRUST_PROXY_HEADERS", cfg.TrustProxyHeaders, &errs)
	return errors.Join(errs...)
}

func (c Config) Validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if c.RequireEditToken && c.JWTSecret == "" {
		errs = append(errs, errors.New("REQUIRE_EDIT_TOKEN needs JWT_SECRET"))
	}
	if c.CheckRateLimit <= 0 {
		errs = append(errs, errors.New("CHECK_RATE_LIMIT must be positive"))
	}
	if c.CheckRateWindow <= 0 {
		errs = append(errs, errors.New("CHECK_RATE_WINDOW must be positive"))
	}
	if c.EditTokenTTL <= 0 {
		errs = append(errs, errors.New("EDIT_TOKEN_TTL must be positive"))
	}
	return errors.Join(errs...)
}

func (c Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getInt(key string, fallback int, errs *[]error) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return n
}

func getBool(key string, fallback bool, errs *[]error) bool {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return b
}

func getDuration(key string, fallback time.Duration, errs *[]error) time.Duration {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return d
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		item := strings.TrimSpace(part)
		if item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
