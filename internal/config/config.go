package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App       AppConfig
	Auth      AuthConfig
	Upstream  UpstreamConfig
	Cache     CacheConfig
	Lifecycle LifecycleConfig
	Feed      FeedConfig
	Session   SessionConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	LiveLogFilePath    string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
}

type AuthConfig struct {
	JwtSecret string
}

// UpstreamConfig points at the portal REST API the views aggregate from.
type UpstreamConfig struct {
	BaseURL string
	Timeout time.Duration
}

type CacheConfig struct {
	Backend         string // "memory" or "redis"
	RedisPrefix     string
	DefaultTTL      time.Duration
	ConnectionsTTL  time.Duration
	RequestsTTL     time.Duration
	SuggestionsTTL  time.Duration
	CoursesTTL      time.Duration
	AnnouncementTTL time.Duration
	LiveSessionsTTL time.Duration
	ProgressTTL     time.Duration
}

type LifecycleConfig struct {
	SettleDelay time.Duration
}

type FeedConfig struct {
	MaxCourses        int
	AnnouncementLimit int
	FeedSize          int
	SuggestionLimit   int
}

type SessionConfig struct {
	IdleTTL time.Duration
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			LiveLogFilePath:    getEnv("LIVE_LOG_FILE_PATH", "logs/live.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", ""),
			RedisURL:           getEnv("REDIS_URL", ""),
		},
		Auth: AuthConfig{
			JwtSecret: getEnv("JWT_SECRET", ""),
		},
		Upstream: UpstreamConfig{
			BaseURL: getEnv("UPSTREAM_BASE_URL", "http://localhost:5000/api"),
			Timeout: getEnvAsDuration("UPSTREAM_TIMEOUT", 10*time.Second),
		},
		Cache: CacheConfig{
			Backend:         getEnv("CACHE_BACKEND", "memory"),
			RedisPrefix:     getEnv("CACHE_REDIS_PREFIX", "learnlink:cache:"),
			DefaultTTL:      getEnvAsDuration("CACHE_DEFAULT_TTL", 5*time.Minute),
			ConnectionsTTL:  getEnvAsDuration("CACHE_CONNECTIONS_TTL", 5*time.Minute),
			RequestsTTL:     getEnvAsDuration("CACHE_REQUESTS_TTL", 2*time.Minute),
			SuggestionsTTL:  getEnvAsDuration("CACHE_SUGGESTIONS_TTL", 5*time.Minute),
			CoursesTTL:      getEnvAsDuration("CACHE_COURSES_TTL", 5*time.Minute),
			AnnouncementTTL: getEnvAsDuration("CACHE_ANNOUNCEMENTS_TTL", 2*time.Minute),
			LiveSessionsTTL: getEnvAsDuration("CACHE_LIVE_SESSIONS_TTL", 1*time.Minute),
			ProgressTTL:     getEnvAsDuration("CACHE_PROGRESS_TTL", 2*time.Minute),
		},
		Lifecycle: LifecycleConfig{
			SettleDelay: getEnvAsDuration("LIFECYCLE_SETTLE_DELAY", 1*time.Second),
		},
		Feed: FeedConfig{
			MaxCourses:        getEnvAsInt("FEED_MAX_COURSES", 5),
			AnnouncementLimit: getEnvAsInt("FEED_ANNOUNCEMENT_LIMIT", 5),
			FeedSize:          getEnvAsInt("FEED_SIZE", 5),
			SuggestionLimit:   getEnvAsInt("FEED_SUGGESTION_LIMIT", 20),
		},
		Session: SessionConfig{
			IdleTTL: getEnvAsDuration("SESSION_IDLE_TTL", 30*time.Minute),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

// getEnvAsDuration accepts Go duration strings ("90s", "2m").
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}
