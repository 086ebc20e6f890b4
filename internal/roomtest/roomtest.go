// Package roomtest runs a complete room server against an in-memory redis for
// client tests.
package roomtest

import (
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/sharetube/watchroom/internal/controller"
	roomRedis "github.com/sharetube/watchroom/internal/repository/room/redis"
	"github.com/sharetube/watchroom/internal/service/room"
	"github.com/sharetube/watchroom/internal/stats"
)

const Secret = "roomtest-secret"

type Server struct {
	*httptest.Server
	Redis *miniredis.Miniredis
}

func NewServer(t testing.TB) *Server {
	t.Helper()

	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rc.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	su := stats.NewStatsUpdater()

	roomService := room.NewService(roomRedis.NewRepo(rc, logger, time.Hour), nil, su, logger, &room.Config{Secret: Secret})
	srv := httptest.NewServer(controller.NewController(roomService, su.Handler(), logger).GetMux())
	t.Cleanup(srv.Close)

	return &Server{Server: srv, Redis: mr}
}

// Token returns a bearer token for userID signed with Secret.
func Token(t testing.TB, userID string) string {
	t.Helper()

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: userID}).SignedString([]byte(Secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}

	return token
}
