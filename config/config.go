package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config хранит все конфигурационные параметры приложения.
type Config struct {
	DatabaseURL  string
	JWTSecretKey string
	ServerPort   int
	LogLevel     string

	RedisURL      string
	CachePath     string
	StatsCacheTTL time.Duration

	R2 *R2Config

	Strava *StravaConfig

	SyncEnabled     bool
	SyncCron        string
	SyncConcurrency int

	CORSAllowedOrigins []string
}

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicBaseURL   string
}

type StravaConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	SyncDays     int
	Timeout      time.Duration
}

// Load загружает конфигурацию из переменных окружения.
// Опционально подгружает .env файл (полезно для локальной разработки).
func Load() (*Config, error) {
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
	}

	jwtKey := os.Getenv("JWT_SECRET_KEY")
	if jwtKey == "" {
		return nil, fmt.Errorf("JWT_SECRET_KEY environment variable is not set")
	}

	port, err := intEnv("SERVER_PORT", 8080)
	if err != nil {
		return nil, err
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", port)
	}

	cfg := &Config{
		DatabaseURL:  dbURL,
		JWTSecretKey: jwtKey,
		ServerPort:   port,
		LogLevel:     strings.ToLower(stringEnv("LOG_LEVEL", "info")),
		RedisURL:     os.Getenv("REDIS_URL"),
		CachePath:    os.Getenv("CACHE_PATH"),
		SyncCron:     stringEnv("SYNC_CRON", "0 */6 * * *"),
	}

	if cfg.StatsCacheTTL, err = durationEnv("STATS_CACHE_TTL", 10*time.Minute); err != nil {
		return nil, err
	}
	if cfg.SyncEnabled, err = boolEnv("SYNC_ENABLED", false); err != nil {
		return nil, err
	}
	if cfg.SyncConcurrency, err = intEnv("SYNC_CONCURRENCY", 4); err != nil {
		return nil, err
	}
	if cfg.SyncConcurrency < 1 {
		return nil, fmt.Errorf("SYNC_CONCURRENCY must be positive, got %d", cfg.SyncConcurrency)
	}

	if cfg.R2, err = loadR2(); err != nil {
		return nil, err
	}
	if cfg.Strava, err = loadStrava(); err != nil {
		return nil, err
	}

	for _, origin := range strings.Split(stringEnv("CORS_ALLOWED_ORIGINS", "*"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, origin)
		}
	}

	return cfg, nil
}

// loadR2 returns nil when archival is not configured at all.
func loadR2() (*R2Config, error) {
	r2 := &R2Config{
		AccountID:       os.Getenv("R2_ACCOUNT_ID"),
		AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("R2_SECRET_ACCESS_KEY"),
		BucketName:      os.Getenv("R2_BUCKET_NAME"),
		PublicBaseURL:   os.Getenv("R2_PUBLIC_BASE_URL"),
	}
	values := []string{r2.AccountID, r2.AccessKeyID, r2.SecretAccessKey, r2.BucketName, r2.PublicBaseURL}
	set := 0
	for _, v := range values {
		if v != "" {
			set++
		}
	}
	switch set {
	case 0:
		return nil, nil
	case len(values):
		return r2, nil
	default:
		return nil, fmt.Errorf("R2 storage is partially configured: R2_ACCOUNT_ID, R2_ACCESS_KEY_ID, R2_SECRET_ACCESS_KEY, R2_BUCKET_NAME and R2_PUBLIC_BASE_URL must all be set")
	}
}

func loadStrava() (*StravaConfig, error) {
	clientID := os.Getenv("STRAVA_CLIENT_ID")
	secret := os.Getenv("STRAVA_CLIENT_SECRET")
	if clientID == "" && secret == "" {
		return nil, nil
	}
	if clientID == "" || secret == "" {
		return nil, fmt.Errorf("STRAVA_CLIENT_ID and STRAVA_CLIENT_SECRET must be set together")
	}

	days, err := intEnv("STRAVA_SYNC_DAYS", 60)
	if err != nil {
		return nil, err
	}
	if days < 1 {
		return nil, fmt.Errorf("STRAVA_SYNC_DAYS must be positive, got %d", days)
	}
	timeout, err := durationEnv("STRAVA_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, err
	}

	return &StravaConfig{
		ClientID:     clientID,
		ClientSecret: secret,
		RedirectURL:  os.Getenv("STRAVA_REDIRECT_URL"),
		SyncDays:     days,
		Timeout:      timeout,
	}, nil
}

func stringEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func intEnv(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", key, err)
	}
	return n, nil
}

func boolEnv(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s environment variable: %w", key, err)
	}
	return b, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", key, d)
	}
	return d, nil
}
