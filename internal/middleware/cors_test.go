package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"taskhub/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func setupCORSRouter(origins []string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.CORSMiddleware(origins))
	r.GET("/api/v1/tasks", func(c *gin.Context) { c.JSON(http.StatusOK, []string{}) })
	return r
}

func TestCORSMiddleware_PreflightFromAllowedOrigin(t *testing.T) {
	r := setupCORSRouter([]string{"http://localhost:3000"})

	req, _ := http.NewRequest("OPTIONS", "/api/v1/tasks", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "PUT")
	req.Header.Set("Access-Control-Request-Headers", "Content-Type, Authorization")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusNoContent, resp.Code)
	assert.Equal(t, "http://localhost:3000", resp.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", resp.Header().Get("Access-Control-Allow-Credentials"))
	assert.Contains(t, resp.Header().Get("Access-Control-Allow-Methods"), "PUT")
}

func TestCORSMiddleware_SimpleRequestCarriesHeaders(t *testing.T) {
	r := setupCORSRouter([]string{"http://localhost:3000"})

	req, _ := http.NewRequest("GET", "/api/v1/tasks", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "http://localhost:3000", resp.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSMiddleware_RejectsUnknownOrigin(t *testing.T) {
	r := setupCORSRouter([]string{"http://localhost:3000"})

	req, _ := http.NewRequest("GET", "/api/v1/tasks", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusForbidden, resp.Code)
	assert.Empty(t, resp.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSMiddleware_NoOriginsPassesThrough(t *testing.T) {
	r := setupCORSRouter(nil)

	req, _ := http.NewRequest("GET", "/api/v1/tasks", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Empty(t, resp.Header().Get("Access-Control-Allow-Origin"))
}

func TestOriginChecker(t *testing.T) {
	check := middleware.OriginChecker([]string{"http://localhost:3000"})

	tests := []struct {
		name   string
		host   string
		origin string
		want   bool
	}{
		{"no origin header", "api.example.com", "", true},
		{"listed origin", "api.example.com", "http://localhost:3000", true},
		{"same host", "api.example.com", "https://api.example.com", true},
		{"other origin", "api.example.com", "https://evil.example.com", false},
		{"malformed origin", "api.example.com", "://bad", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest("GET", "/api/v1/ws", nil)
			req.Host = tt.host
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, check(req))
		})
	}
}
