package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

const (
	idempotencyHeader = "Idempotency-Key"
	idempotencyTTL    = time.Hour
)

// cachedResponse stores the response for idempotent requests.
type cachedResponse struct {
	StatusCode int             `json:"status_code"`
	Body       json.RawMessage `json:"body"`
}

// responseWriter wraps gin.ResponseWriter to capture the response body.
type responseWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *responseWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// IdempotencyMiddleware replays the cached response for a repeated
// Idempotency-Key. Keys are scoped to the authenticated actor so one
// client's key can never replay another's response. Mobile clients retry
// ride requests aggressively on flaky networks; without this a retry
// after a timed-out 201 would hit the active-ride conflict.
func IdempotencyMiddleware(redisClient *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Only apply to mutating methods.
		if c.Request.Method != http.MethodPost && c.Request.Method != http.MethodPut && c.Request.Method != http.MethodPatch {
			c.Next()
			return
		}

		key := c.GetHeader(idempotencyHeader)
		if key == "" {
			c.Next()
			return
		}

		actor := ActorFrom(c)
		cacheKey := "idempotency:" + actor.ID + ":" + key
		ctx := c.Request.Context()

		data, err := redisClient.Get(ctx, cacheKey).Bytes()
		if err == nil {
			var cached cachedResponse
			if json.Unmarshal(data, &cached) == nil {
				c.Data(cached.StatusCode, "application/json", cached.Body)
				c.Abort()
				return
			}
		} else if !errors.Is(err, redis.Nil) {
			// Redis outage: degrade to non-idempotent rather than fail.
			c.Next()
			return
		}

		w := &responseWriter{ResponseWriter: c.Writer, body: &bytes.Buffer{}}
		c.Writer = w

		c.Next()

		if c.Writer.Status() >= 200 && c.Writer.Status() < 500 {
			cached, err := json.Marshal(cachedResponse{
				StatusCode: c.Writer.Status(),
				Body:       w.body.Bytes(),
			})
			if err == nil {
				_ = redisClient.Set(ctx, cacheKey, cached, idempotencyTTL).Err()
			}
		}
	}
}
