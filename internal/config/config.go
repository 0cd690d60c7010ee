// Package config loads runtime configuration from the environment.
//
// A .env file in the working directory is read first when present; real
// environment variables always win over it.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"

	"github.com/ironforge/athlete-api/internal/auth"
)

// Database drivers accepted in DB_DRIVER.
const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

// defaultClientURLs are always allowed by CORS, in addition to CLIENT_URLS.
var defaultClientURLs = []string{
	"http://127.0.0.1:3000",
	"http://localhost:5500",
	"http://127.0.0.1:5500",
}

// Window is a fixed rate-limit window: at most Limit requests per Period.
type Window struct {
	Limit  int
	Period time.Duration
}

// Config holds everything the server needs at startup.
type Config struct {
	Env  string
	Port int

	DBDriver   string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPath     string

	JWTSecret  string
	SessionTTL time.Duration

	ClientURLs []string
	StaticDir  string

	GitHubClientID     string
	GitHubClientSecret string
	GitHubCallbackURL  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	RateLimitEnabled bool
	AuthLimit        Window
	WriteLimit       Window
}

// IsProduction reports whether the server runs with production cookie and
// error-detail settings.
func (c Config) IsProduction() bool {
	return c.Env == "production"
}

// GitHubEnabled reports whether the GitHub sign-in routes should be mounted.
func (c Config) GitHubEnabled() bool {
	return c.GitHubClientID != "" && c.GitHubClientSecret != ""
}

// MySQLDSN builds the go-sql-driver DSN. Dates come back as time.Time in UTC
// and UPDATE reports matched rows, so an unchanged row still counts as found.
func (c Config) MySQLDSN() string {
	mc := mysql.NewConfig()
	mc.User = c.DBUser
	mc.Passwd = c.DBPassword
	mc.Net = "tcp"
	mc.Addr = c.DBHost + ":" + c.DBPort
	mc.DBName = c.DBName
	mc.ParseTime = true
	mc.ClientFoundRows = true
	mc.Loc = time.UTC
	mc.Params = map[string]string{"charset": "utf8mb4"}
	return mc.FormatDSN()
}

// DSN returns the data source name for the configured driver.
func (c Config) DSN() string {
	if c.DBDriver == DriverSQLite {
		return c.DBPath
	}
	return c.MySQLDSN()
}

// Load reads the configuration. A missing .env file is not an error.
func Load() (Config, error) {
	_ = godotenv.Load()
	return fromEnv(os.LookupEnv)
}

// fromEnv builds a Config from lookup so tests can supply their own
// environment.
func fromEnv(lookup func(string) (string, bool)) (Config, error) {
	get := func(key, fallback string) string {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return fallback
	}

	var errs []error

	cfg := Config{
		Env:                get("APP_ENV", get("NODE_ENV", "development")),
		DBDriver:           strings.ToLower(get("DB_DRIVER", DriverMySQL)),
		DBHost:             get("DB_HOST", "localhost"),
		DBPort:             get("DB_PORT", "3306"),
		DBUser:             get("DB_USER", "root"),
		DBPassword:         get("DB_PASSWORD", ""),
		DBName:             get("DB_NAME", "athlete_management"),
		DBPath:             get("DB_PATH", "data/athletes.db"),
		JWTSecret:          get("JWT_SECRET", ""),
		StaticDir:          get("STATIC_DIR", "public"),
		GitHubClientID:     get("GITHUB_CLIENT_ID", ""),
		GitHubClientSecret: get("GITHUB_CLIENT_SECRET", ""),
		RedisAddr:          get("REDIS_ADDR", ""),
		RedisPassword:      get("REDIS_PASSWORD", ""),
		RateLimitEnabled:   get("RATE_LIMIT_ENABLED", "true") != "false",
		AuthLimit:          Window{Limit: 20, Period: 15 * time.Minute},
		WriteLimit:         Window{Limit: 120, Period: 10 * time.Minute},
	}

	port, err := strconv.Atoi(get("PORT", "5000"))
	if err != nil || port <= 0 || port > 65535 {
		errs = append(errs, fmt.Errorf("PORT must be a valid port number, got %q", get("PORT", "")))
	}
	cfg.Port = port

	if cfg.DBDriver != DriverMySQL && cfg.DBDriver != DriverSQLite {
		errs = append(errs, fmt.Errorf("DB_DRIVER must be %q or %q, got %q", DriverMySQL, DriverSQLite, cfg.DBDriver))
	}

	if len(cfg.JWTSecret) < auth.MinSecretLength {
		errs = append(errs, fmt.Errorf("JWT_SECRET must be at least %d characters", auth.MinSecretLength))
	}

	ttl, err := ParseDuration(get("JWT_EXPIRES_IN", "7d"))
	if err != nil {
		errs = append(errs, fmt.Errorf("JWT_EXPIRES_IN: %w", err))
	}
	cfg.SessionTTL = ttl

	if db, err := strconv.Atoi(get("REDIS_DB", "0")); err != nil {
		errs = append(errs, fmt.Errorf("REDIS_DB must be an integer, got %q", get("REDIS_DB", "")))
	} else {
		cfg.RedisDB = db
	}

	cfg.ClientURLs = clientURLs(get("CLIENT_URLS", get("CLIENT_URL", "")))
	cfg.GitHubCallbackURL = get("GITHUB_CALLBACK_URL",
		fmt.Sprintf("http://localhost:%d/api/auth/github/callback", cfg.Port))

	if err := errors.Join(errs...); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// ParseDuration accepts Go durations ("12h", "90m") plus a whole-day suffix
// ("7d"), the format JWT_EXPIRES_IN has always used.
func ParseDuration(s string) (time.Duration, error) {
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("invalid day count %q", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration must be positive, got %q", s)
	}
	return d, nil
}

func clientURLs(raw string) []string {
	out := append([]string(nil), defaultClientURLs...)
	for _, u := range strings.Split(raw, ",") {
		u = strings.TrimRight(strings.TrimSpace(u), "/")
		if u != "" && !slices.Contains(out, u) {
			out = append(out, u)
		}
	}
	return out
}
