package config

import (
	"fmt"
	"log"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	ServerPort  string
	CORSOrigins []string

	DBDriver   string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
	SQLitePath string

	JWTSecret    string
	JWTExpiry    time.Duration
	CookieSecure bool

	StrictStatusTransitions bool

	EventQueueSize         int
	ClientBufferSize       int
	RealtimeAllowAnonymous bool

	RedisAddr    string
	RedisChannel string
}

func Load() *Config {
	err := godotenv.Load()
	if err != nil {
		log.Println("⚠️  No .env file found, using system environment variables")
	}

	return &Config{
		ServerPort:  getEnv("SERVER_PORT", "8080"),
		CORSOrigins: getList("CORS_ORIGINS", "http://localhost:3000"),

		DBDriver:   getEnv("DB_DRIVER", DriverPostgres),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "taskhub_user"),
		DBPassword: getEnv("DB_PASSWORD", "taskhub_pass"),
		DBName:     getEnv("DB_NAME", "taskhub_db"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),
		SQLitePath: getEnv("SQLITE_PATH", "taskhub.db"),

		JWTSecret:    getEnv("JWT_SECRET", "supersecretkey"),
		JWTExpiry:    time.Duration(getInt("JWT_EXPIRY_HOURS", 168)) * time.Hour,
		CookieSecure: getBool("COOKIE_SECURE", false),

		StrictStatusTransitions: getBool("STRICT_STATUS_TRANSITIONS", false),

		EventQueueSize:         getInt("EVENT_QUEUE_SIZE", 256),
		ClientBufferSize:       getInt("CLIENT_BUFFER_SIZE", 32),
		RealtimeAllowAnonymous: getBool("REALTIME_ALLOW_ANONYMOUS", false),

		RedisAddr:    getEnv("REDIS_ADDR", ""),
		RedisChannel: getEnv("REDIS_CHANNEL", "taskhub:events"),
	}
}

// PostgresDSN is the key/value DSN used by the gorm postgres driver.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode,
	)
}

// PostgresURL is the same database as a URL, the form golang-migrate expects.
func (c *Config) PostgresURL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DBUser, c.DBPassword),
		Host:     net.JoinHostPort(c.DBHost, c.DBPort),
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=" + url.QueryEscape(c.DBSSLMode),
	}
	return u.String()
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

// getList splits a comma-separated value. An explicitly empty variable
// yields an empty list.
func getList(key, defaultVal string) []string {
	items := make([]string, 0)
	for _, item := range strings.Split(getEnv(key, defaultVal), ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func getInt(key string, defaultVal int) int {
	raw, exists := os.LookupEnv(key)
	if !exists {
		return defaultVal
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("⚠️  %s=%q is not a number, using %d", key, raw, defaultVal)
		return defaultVal
	}
	return v
}

func getBool(key string, defaultVal bool) bool {
	raw, exists := os.LookupEnv(key)
	if !exists {
		return defaultVal
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		log.Printf("⚠️  %s=%q is not a boolean, using %t", key, raw, defaultVal)
		return defaultVal
	}
	return v
}
