package controller

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/sharetube/watchroom/internal/domain"
	"github.com/sharetube/watchroom/pkg/ctxlogger"
)

func (c controller) requestIdMw(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestId := uuid.NewString()
		w.Header().Set(headerPrefix+requestIdHeader, requestId)
		ctx := ctxlogger.AppendCtx(r.Context(), slog.String("request_id", requestId))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (c controller) requestLoggingMw(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		c.logger.InfoContext(r.Context(), "request",
			"method", r.Method,
			"url", r.URL.String(),
			"remote_addr", r.RemoteAddr,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

// identityMw resolves the sender from a bearer token or, for guests, from the
// guest id header.
func (c controller) identityMw(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		senderId, err := c.getSenderId(r)
		if err != nil {
			c.writeError(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), senderIdCtxKey, senderId)
		ctx = ctxlogger.AppendCtx(ctx, slog.String("sender_id", senderId))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (c controller) getSenderId(r *http.Request) (string, error) {
	if authorization := r.Header.Get("Authorization"); authorization != "" {
		token, ok := strings.CutPrefix(authorization, "Bearer ")
		if !ok || token == "" {
			return "", fmt.Errorf("%w: malformed authorization header", domain.ErrUnauthenticated)
		}

		return c.roomService.ParseIdentityToken(token)
	}

	guestId, err := c.mustHeader(r, guestIdHeader)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrUnauthenticated, err)
	}

	if !guestIdRe.MatchString(guestId) {
		return "", fmt.Errorf("%w: malformed guest id", domain.ErrUnauthenticated)
	}

	return guestId, nil
}

func (c controller) roomIdMw(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		roomId := chi.URLParam(r, "room-id")
		if roomId == "" {
			c.writeError(w, r, domain.ErrRoomNotFound)
			return
		}

		ctx := context.WithValue(r.Context(), roomIdCtxKey, roomId)
		ctx = ctxlogger.AppendCtx(ctx, slog.String("room_id", roomId))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
