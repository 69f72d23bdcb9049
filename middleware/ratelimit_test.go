package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/MouadFiali/gke-cloud-project/middleware"
)

func TestRateLimiter_PerUser(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl := middleware.NewRateLimiter(rate.Limit(0.0001), 2)

	r := gin.New()
	r.Use(middleware.AuthMiddleware(nil), rl.Middleware())
	r.GET("/cart", func(c *gin.Context) { c.Status(http.StatusOK) })

	call := func(user string) int {
		req := httptest.NewRequest(http.MethodGet, "/cart", nil)
		req.Header.Set("X-User-ID", user)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, call("u1"))
	assert.Equal(t, http.StatusOK, call("u1"))
	assert.Equal(t, http.StatusTooManyRequests, call("u1"))
	assert.Equal(t, http.StatusOK, call("u2"), "buckets are per user")
}

func TestPerMinute_DisabledWhenNonPositive(t *testing.T) {
	rl := middleware.PerMinute(0)
	for i := 0; i < 100; i++ {
		assert.True(t, rl.GetLimiter("k").Allow())
	}
}

func TestRateLimiter_SweepDropsIdleCallers(t *testing.T) {
	clock := clockwork.NewFakeClock()
	rl := middleware.NewRateLimiterWithClock(rate.Limit(0.0001), 1, clock)

	require.True(t, rl.GetLimiter("user:idle").Allow())
	clock.Advance(2 * time.Minute)
	require.True(t, rl.GetLimiter("user:active").Allow())

	assert.Equal(t, 1, rl.Sweep(time.Minute))
	assert.Equal(t, 1, rl.Len())
	assert.False(t, rl.GetLimiter("user:active").Allow(), "recent buckets keep their state")
	assert.True(t, rl.GetLimiter("user:idle").Allow(), "a swept caller starts with a full bucket")
}
