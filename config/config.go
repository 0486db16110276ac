package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port         string
	RealtimePort string
	LogMode      string

	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string

	JWTKey string

	RedisAddr    string
	RedisChannel string

	// WSInsecureSkipVerify disables the websocket origin check. Development only.
	WSInsecureSkipVerify bool

	MaxModuleDepth int
	ReleaseCron    string
	// PingInterval is how often idle websocket clients are pinged.
	PingInterval time.Duration
}

// AppConfig is a global variable to access configuration
var AppConfig *Config

// LoadConfig initializes configuration from environment variables or defaults
func LoadConfig() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found. Using system environment variables.")
	}

	AppConfig = &Config{
		Port:         getEnv("PORT", "3000"),
		RealtimePort: getEnv("REALTIME_PORT", "3001"),
		LogMode:      getEnv("LOG_MODE", "development"),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "coursehub"),
		DBPort:     getEnv("DB_PORT", "5432"),

		JWTKey: getEnv("JWT_SECRET_KEY", "defaultSecret"),

		RedisAddr:    getEnv("REDIS_ADDR", ""),
		RedisChannel: getEnv("REDIS_CHANNEL", "coursehub:changes"),

		WSInsecureSkipVerify: getEnvBool("WS_INSECURE_SKIP_VERIFY", false),

		MaxModuleDepth: getEnvInt("MAX_MODULE_DEPTH", 3),
		ReleaseCron:    getEnv("RELEASE_CRON", "* * * * *"),
		PingInterval:   getEnvDuration("WS_PING_INTERVAL", 25*time.Second),
	}

	if AppConfig.JWTKey == "defaultSecret" {
		log.Println("Warning: Using default JWT_SECRET_KEY. Update it in your environment.")
	}
	if AppConfig.WSInsecureSkipVerify {
		log.Println("Warning: websocket origin check disabled. Do not use in production.")
	}
	if AppConfig.MaxModuleDepth < 1 {
		log.Printf("Warning: MAX_MODULE_DEPTH %d is invalid, using 1", AppConfig.MaxModuleDepth)
		AppConfig.MaxModuleDepth = 1
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvInt retrieves an environment variable as an integer or returns the default integer value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Error converting environment variable %s to int: %v", key, err)
		return defaultValue
	}
	return intValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		log.Printf("Error converting environment variable %s to bool: %v", key, err)
		return defaultValue
	}
	return b
}

// getEnvDuration accepts Go durations ("30s", "2m").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		log.Printf("Error converting environment variable %s to duration: %v", key, err)
		return defaultValue
	}
	return d
}
