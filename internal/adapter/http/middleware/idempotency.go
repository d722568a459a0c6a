package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/nithin1018/Village-Banking-App/internal/core/ports"
	"github.com/nithin1018/Village-Banking-App/pkg/apperror"
	"github.com/nithin1018/Village-Banking-App/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const (
	HeaderIdempotencyKey = "Idempotency-Key"
	HeaderReplayed       = "Idempotent-Replayed"

	maxIdempotencyKeyLen = 128

	// CtxIdempotentReplay is set when the response came from the cache.
	CtxIdempotentReplay = "idempotent_replay"
)

type storedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// bodyRecorder tees the handler's response so it can be stored.
type bodyRecorder struct {
	gin.ResponseWriter
	buf bytes.Buffer
}

func (w *bodyRecorder) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *bodyRecorder) WriteString(s string) (int, error) {
	w.buf.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Idempotency replays the stored response for a repeated Idempotency-Key.
// Requests without the header pass straight through. Keys are scoped to the
// caller. Responses with a 5xx status are not stored so the client may retry.
// Cache failures let the request through.
func Idempotency(cache ports.IdempotencyCache, ttl, pendingTTL time.Duration, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		clientKey := strings.TrimSpace(c.GetHeader(HeaderIdempotencyKey))
		if clientKey == "" {
			c.Next()
			return
		}
		if len(clientKey) > maxIdempotencyKeyLen {
			response.Error(c, apperror.Validation("Idempotency-Key must be at most 128 characters"))
			c.Abort()
			return
		}

		ctx := c.Request.Context()
		key := Principal(c) + ":" + c.Request.Method + ":" + c.FullPath() + ":" + clientKey

		reserved, err := cache.Reserve(ctx, key, pendingTTL)
		if err != nil {
			log.Warn().Err(err).Str("key", clientKey).Msg("idempotency reserve failed, processing without replay protection")
			c.Next()
			return
		}

		if !reserved {
			cached, err := cache.Get(ctx, key)
			if err != nil {
				log.Warn().Err(err).Str("key", clientKey).Msg("idempotency lookup failed, processing without replay protection")
				c.Next()
				return
			}
			if cached == nil {
				response.Error(c, apperror.ErrIdempotencyInProgress())
				c.Abort()
				return
			}
			var stored storedResponse
			if err := json.Unmarshal(cached, &stored); err != nil {
				log.Error().Err(err).Str("key", clientKey).Msg("corrupt idempotency entry")
				response.Error(c, apperror.InternalError(err))
				c.Abort()
				return
			}
			c.Set(CtxIdempotentReplay, true)
			c.Header(HeaderReplayed, "true")
			c.Data(stored.Status, stored.ContentType, stored.Body)
			c.Abort()
			return
		}

		rec := &bodyRecorder{ResponseWriter: c.Writer}
		c.Writer = rec
		c.Next()

		// The outcome must be recorded even if the client has gone away.
		storeCtx := context.WithoutCancel(ctx)
		status := rec.Status()
		if status >= 500 {
			if err := cache.Release(storeCtx, key); err != nil {
				log.Warn().Err(err).Str("key", clientKey).Msg("idempotency release failed")
			}
			return
		}

		payload, err := json.Marshal(storedResponse{
			Status:      status,
			ContentType: rec.Header().Get("Content-Type"),
			Body:        rec.buf.Bytes(),
		})
		if err == nil {
			err = cache.Set(storeCtx, key, payload, ttl)
		}
		if err != nil {
			log.Warn().Err(err).Str("key", clientKey).Msg("idempotency store failed")
		}
	}
}
