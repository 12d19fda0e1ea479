package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port                 string
	AllowedOrigin        string
	DatabaseURL          string
	MigrationsDir        string
	RedisAddr            string
	RedisPassword        string
	RedisDB              int
	AuthSecret           string
	SecureCookies        bool
	SessionTTLMinutes    int
	StatsCacheTTLSeconds int
	SMSEndpoint          string
	SMSAPIKey            string
	SMSSender            string
}

// Load reads configuration from the environment, after loading a .env file
// when one is present.
func Load() Config {
	_ = godotenv.Load()

	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	sessionTTL, err := strconv.Atoi(getEnv("SESSION_TTL_MINUTES", "720"))
	if err != nil || sessionTTL < 1 {
		sessionTTL = 720
	}
	statsTTL, err := strconv.Atoi(getEnv("STATS_CACHE_TTL_SECONDS", "30"))
	if err != nil || statsTTL < 1 {
		statsTTL = 30
	}

	return Config{
		Port:                 getEnv("PORT", "8080"),
		AllowedOrigin:        getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		MigrationsDir:        getEnv("MIGRATIONS_DIR", "migrations"),
		RedisAddr:            os.Getenv("REDIS_ADDR"),
		RedisPassword:        os.Getenv("REDIS_PASSWORD"),
		RedisDB:              redisDB,
		AuthSecret:           strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		SecureCookies:        strings.EqualFold(getEnv("SECURE_COOKIES", "false"), "true"),
		SessionTTLMinutes:    sessionTTL,
		StatsCacheTTLSeconds: statsTTL,
		SMSEndpoint:          strings.TrimSpace(os.Getenv("SMS_ENDPOINT")),
		SMSAPIKey:            strings.TrimSpace(os.Getenv("SMS_API_KEY")),
		SMSSender:            getEnv("SMS_SENDER", "TOKOBILL"),
	}
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}
