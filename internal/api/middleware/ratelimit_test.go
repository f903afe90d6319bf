package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func limitedRouter(rl *RateLimiter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/login", rl.Middleware(), func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func hit(r *gin.Engine, ip string) int {
	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.RemoteAddr = ip + ":5555"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestRateLimiter_PerClient(t *testing.T) {
	rl := NewRateLimiter(rate.Every(time.Hour), 2)
	r := limitedRouter(rl)

	assert.Equal(t, http.StatusOK, hit(r, "10.0.0.1"))
	assert.Equal(t, http.StatusOK, hit(r, "10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, hit(r, "10.0.0.1"))

	// Another client has its own bucket.
	assert.Equal(t, http.StatusOK, hit(r, "10.0.0.2"))
}

func TestRateLimiter_EvictsIdleClients(t *testing.T) {
	rl := NewRateLimiter(rate.Every(time.Hour), 1)
	now := time.Now()
	rl.now = func() time.Time { return now }
	r := limitedRouter(rl)

	assert.Equal(t, http.StatusOK, hit(r, "10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, hit(r, "10.0.0.1"))

	now = now.Add(idleLimiterTTL + time.Second)
	assert.Equal(t, http.StatusOK, hit(r, "10.0.0.1"))
	assert.Len(t, rl.limiters, 1)
}
