package config

import (
	"os"
	"time"
)

type Config struct {
	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// State persistence
	StateBackend string // "postgres" or "redis"
	RedisAddr    string

	// Device sessions
	JWTSecret       string
	JWTAccessExpiry time.Duration

	// Admin (status feed injection)
	AdminToken string

	// Collaborators
	SubmitURL        string
	StatusFeedURL    string
	NotifyWebhookURL string
	FetchTimeout     time.Duration

	// Reconciler
	ReconcileInterval time.Duration

	// Notifications
	DedupWindow        time.Duration
	DraftReminderAfter time.Duration
	CheckInAfter       time.Duration

	// Server
	Port        string
	CORSOrigins string
}

func Load() *Config {
	return &Config{
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "safevoice"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		StateBackend: getEnv("STATE_BACKEND", "postgres"),
		RedisAddr:    getEnv("REDIS_ADDR", "localhost:6379"),

		JWTSecret:       getEnv("JWT_SECRET", ""),
		JWTAccessExpiry: parseDuration(getEnv("JWT_ACCESS_EXPIRY", "720h"), 720*time.Hour),

		AdminToken: getEnv("ADMIN_TOKEN", ""),

		SubmitURL:        getEnv("SUBMIT_URL", ""),
		StatusFeedURL:    getEnv("STATUS_FEED_URL", ""),
		NotifyWebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
		FetchTimeout:     parseDuration(getEnv("FETCH_TIMEOUT", "15s"), 15*time.Second),

		ReconcileInterval: parseDuration(getEnv("RECONCILE_INTERVAL", "10m"), 10*time.Minute),

		DedupWindow:        parseDuration(getEnv("DEDUP_WINDOW", "60s"), 60*time.Second),
		DraftReminderAfter: parseDuration(getEnv("DRAFT_REMINDER_AFTER", "24h"), 24*time.Hour),
		CheckInAfter:       parseDuration(getEnv("CHECKIN_AFTER", "48h"), 48*time.Hour),

		Port:        getEnv("PORT", "8080"),
		CORSOrigins: getEnv("CORS_ORIGINS", "*"),
	}
}

func (c *Config) DSN() string {
	return "host=" + c.DBHost +
		" user=" + c.DBUser +
		" password=" + c.DBPassword +
		" dbname=" + c.DBName +
		" port=" + c.DBPort +
		" sslmode=" + c.DBSSLMode +
		" TimeZone=UTC"
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
