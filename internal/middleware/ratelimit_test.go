package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yyozen/linkgate/pkg/clienthash"
	"github.com/yyozen/linkgate/pkg/ratelimit"
)

func newRateLimitedHandler(t *testing.T, limit int) http.Handler {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	limiter := ratelimit.NewSlidingWindowLimiter(client, limit, time.Minute, nil)
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return RateLimit(limiter, clienthash.New("test-salt"))(ok)
}

func doReq(h http.Handler, ip string) *httptest.ResponseRecorder {
	r := httptest.NewRequest("GET", "/promo", nil)
	r.RemoteAddr = ip + ":12345"
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func TestRateLimit_SetsHeaders(t *testing.T) {
	h := newRateLimitedHandler(t, 5)

	w := doReq(h, "203.0.113.9")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "5", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "4", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
}

func TestRateLimit_Breach(t *testing.T) {
	h := newRateLimitedHandler(t, 2)

	require.Equal(t, http.StatusNoContent, doReq(h, "203.0.113.9").Code)
	require.Equal(t, http.StatusNoContent, doReq(h, "203.0.113.9").Code)

	w := doReq(h, "203.0.113.9")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Too many requests", body["error"])

	// Other clients are unaffected.
	assert.Equal(t, http.StatusNoContent, doReq(h, "198.51.100.7").Code)
}
