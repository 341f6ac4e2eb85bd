package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port string
	Env  string

	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// JWT
	JWTSecret string

	// Gemini AI
	GeminiAPIKey         string
	GeminiModel          string
	GeminiConcurrentReqs int

	// Chat
	ChatTimeout time.Duration

	// OTP
	OTPIssuer      string
	OTPTTL         time.Duration
	OTPMaxAttempts int

	// Location & SOS
	LocationTTL time.Duration
	WorkerCount int

	// Logging
	LogLevel  string
	LogFormat string
	LogFile   string

	// Frontend
	FrontendURL string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:                 getEnvOrDefault("PORT", "8080"),
		Env:                  getEnvOrDefault("ENV", "development"),
		DatabaseURL:          mustGetEnv("DATABASE_URL"),
		RedisURL:             mustGetEnv("REDIS_URL"),
		JWTSecret:            mustGetEnv("JWT_SECRET"),
		GeminiAPIKey:         mustGetEnv("GEMINI_API_KEY"),
		GeminiModel:          getEnvOrDefault("GEMINI_MODEL", "gemini-2.0-flash"),
		GeminiConcurrentReqs: getEnvAsIntOrDefault("GEMINI_CONCURRENT_REQUESTS", 5),
		ChatTimeout:          getEnvAsDurationOrDefault("CHAT_TIMEOUT", 60*time.Second),
		OTPIssuer:            getEnvOrDefault("OTP_ISSUER", "E-Mitra"),
		OTPTTL:               getEnvAsDurationOrDefault("OTP_TTL", 5*time.Minute),
		OTPMaxAttempts:       getEnvAsIntOrDefault("OTP_MAX_ATTEMPTS", 5),
		LocationTTL:          getEnvAsDurationOrDefault("LOCATION_TTL", 30*time.Minute),
		WorkerCount:          getEnvAsIntOrDefault("WORKER_COUNT", 3),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "text"),
		LogFile:              getEnvOrDefault("LOG_FILE", ""),
		FrontendURL:          getEnvOrDefault("FRONTEND_URL", "http://localhost:9002"),
	}

	return cfg
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

// getEnvAsDurationOrDefault accepts Go durations ("90s") or plain seconds.
func getEnvAsDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	if n, err := strconv.Atoi(val); err == nil {
		return time.Duration(n) * time.Second
	}
	return defaultVal
}
