package config_test

import (
	"testing"
	"time"

	"taskhub/internal/config"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := config.Load()

	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.CORSOrigins)
	assert.Equal(t, config.DriverPostgres, cfg.DBDriver)
	assert.Equal(t, 168*time.Hour, cfg.JWTExpiry)
	assert.False(t, cfg.StrictStatusTransitions)
	assert.False(t, cfg.RealtimeAllowAnonymous)
	assert.Equal(t, 256, cfg.EventQueueSize)
	assert.Equal(t, 32, cfg.ClientBufferSize)
	assert.Empty(t, cfg.RedisAddr)
	assert.Equal(t, "taskhub:events", cfg.RedisChannel)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("JWT_EXPIRY_HOURS", "2")
	t.Setenv("STRICT_STATUS_TRANSITIONS", "true")
	t.Setenv("EVENT_QUEUE_SIZE", "lots")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("CORS_ORIGINS", " http://localhost:3000, https://tasks.example.com ,")

	cfg := config.Load()

	assert.Equal(t, config.DriverSQLite, cfg.DBDriver)
	assert.Equal(t, 2*time.Hour, cfg.JWTExpiry)
	assert.True(t, cfg.StrictStatusTransitions)
	assert.Equal(t, 256, cfg.EventQueueSize)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, []string{"http://localhost:3000", "https://tasks.example.com"}, cfg.CORSOrigins)
}

func TestLoad_EmptyCORSOrigins(t *testing.T) {
	t.Setenv("CORS_ORIGINS", "")

	cfg := config.Load()

	assert.Empty(t, cfg.CORSOrigins)
}

func TestPostgresURL_EscapesCredentials(t *testing.T) {
	cfg := &config.Config{
		DBUser: "task", DBPassword: "p@ss/word", DBHost: "db", DBPort: "5432",
		DBName: "taskhub", DBSSLMode: "disable",
	}

	assert.Equal(t, "postgres://task:p%40ss%2Fword@db:5432/taskhub?sslmode=disable", cfg.PostgresURL())
	assert.Equal(t, "host=db port=5432 user=task password=p@ss/word dbname=taskhub sslmode=disable", cfg.PostgresDSN())
}
