package controller

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/reelparty/server/pkg/ctxlogger"
	"github.com/reelparty/server/pkg/wsrouter"
)

func generateTimeBasedId() string {
	return strconv.FormatInt(time.Now().UnixNano(), 36)
}

func (c *controller) requestIdMw() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := ctxlogger.AppendCtx(r.Context(), slog.String("request_id", generateTimeBasedId()))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (c *controller) loggingMw() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			c.logger.InfoContext(r.Context(), "request received",
				"method", r.Method,
				"path", r.URL.Path,
			)

			next.ServeHTTP(w, r)

			c.logger.InfoContext(r.Context(), "request handled",
				"processing_time_us", time.Since(start).Microseconds(),
			)
		})
	}
}

func (c *controller) requestIdWSMw() wsrouter.Middleware {
	return func(next wsrouter.HandlerFunc[any]) wsrouter.HandlerFunc[any] {
		return func(ctx context.Context, conn *websocket.Conn, payload any) error {
			ctx = ctxlogger.AppendCtx(ctx, slog.String("request_id", generateTimeBasedId()))
			return next(ctx, conn, payload)
		}
	}
}

func (c *controller) loggerWSMw() wsrouter.Middleware {
	return func(next wsrouter.HandlerFunc[any]) wsrouter.HandlerFunc[any] {
		return func(ctx context.Context, conn *websocket.Conn, payload any) error {
			start := time.Now()
			messageType := wsrouter.GetMessageTypeFromCtx(ctx)
			c.logger.DebugContext(ctx, "message received", "type", messageType)

			err := next(ctx, conn, payload)

			c.logger.DebugContext(ctx, "message handled",
				"type", messageType,
				"processing_time_us", time.Since(start).Microseconds(),
				"error", err,
			)
			return err
		}
	}
}
