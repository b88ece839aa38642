package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func setupIdempotencyRouter(t *testing.T) (*gin.Engine, *int32) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	var calls int32
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(contextActorID, c.GetHeader("X-Test-Actor"))
		c.Next()
	})
	router.Use(IdempotencyMiddleware(client))

	handle := func(c *gin.Context) {
		n := atomic.AddInt32(&calls, 1)
		c.JSON(http.StatusOK, gin.H{"calls": n})
	}
	router.POST("/do", handle)
	router.PUT("/do", handle)
	router.GET("/do", handle)

	return router, &calls
}

func perform(router *gin.Engine, method, actor, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/do", nil)
	req.Header.Set("X-Test-Actor", actor)
	if key != "" {
		req.Header.Set(idempotencyHeader, key)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestIdempotency_ReplaysPostResponse(t *testing.T) {
	router, calls := setupIdempotencyRouter(t)

	first := perform(router, http.MethodPost, "user-1", "key-1")
	second := perform(router, http.MethodPost, "user-1", "key-1")

	if atomic.LoadInt32(calls) != 1 {
		t.Errorf("expected handler to run once, ran %d times", *calls)
	}
	if first.Body.String() != second.Body.String() {
		t.Errorf("expected identical bodies, got %q vs %q", first.Body.String(), second.Body.String())
	}
}

func TestIdempotency_CoversPut(t *testing.T) {
	router, calls := setupIdempotencyRouter(t)

	perform(router, http.MethodPut, "user-1", "key-1")
	perform(router, http.MethodPut, "user-1", "key-1")

	if atomic.LoadInt32(calls) != 1 {
		t.Errorf("expected PUT to be covered, handler ran %d times", *calls)
	}
}

func TestIdempotency_KeysScopedPerActor(t *testing.T) {
	router, calls := setupIdempotencyRouter(t)

	perform(router, http.MethodPost, "user-1", "key-1")
	w := perform(router, http.MethodPost, "user-2", "key-1")

	if atomic.LoadInt32(calls) != 2 {
		t.Errorf("expected one run per actor, got %d", *calls)
	}
	if w.Body.String() != `{"calls":2}` {
		t.Errorf("user-2 must not see user-1's cached response, got %s", w.Body.String())
	}
}

func TestIdempotency_GetAndKeylessRequestsPassThrough(t *testing.T) {
	router, calls := setupIdempotencyRouter(t)

	perform(router, http.MethodGet, "user-1", "key-1")
	perform(router, http.MethodGet, "user-1", "key-1")
	perform(router, http.MethodPost, "user-1", "")
	perform(router, http.MethodPost, "user-1", "")

	if got := atomic.LoadInt32(calls); got != 4 {
		t.Errorf("expected 4 handler runs, got %d", got)
	}
}

func TestIdempotency_DistinctKeysRunSeparately(t *testing.T) {
	router, calls := setupIdempotencyRouter(t)

	for i := 0; i < 3; i++ {
		perform(router, http.MethodPost, "user-1", "key-"+strconv.Itoa(i))
	}

	if got := atomic.LoadInt32(calls); got != 3 {
		t.Errorf("expected 3 handler runs, got %d", got)
	}
}
