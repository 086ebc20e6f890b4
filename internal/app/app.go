package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sharetube/watchroom/internal/controller"
	"github.com/sharetube/watchroom/internal/repository/room/redis"
	"github.com/sharetube/watchroom/internal/service/room"
	"github.com/sharetube/watchroom/internal/stats"
	"github.com/sharetube/watchroom/pkg/ctxlogger"
	"github.com/sharetube/watchroom/pkg/oembed"
	"github.com/sharetube/watchroom/pkg/redisclient"
)

type AppConfig struct {
	Secret          string        `json:"-"`
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	LogLevel        string        `json:"log_level"`
	RoomExpire      time.Duration `json:"room_expire"`
	PresenceTimeout time.Duration `json:"presence_timeout"`
	PruneAfter      time.Duration `json:"prune_after"`
	PruneInterval   time.Duration `json:"prune_interval"`
	RedisPort       int           `json:"redis_port"`
	RedisHost       string        `json:"redis_host"`
	RedisPassword   string        `json:"-"`
}

func (cfg *AppConfig) Validate() error {
	if cfg.Secret == "" {
		return errors.New("secret must be set")
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("port %d is out of range", cfg.Port)
	}
	if cfg.RoomExpire < time.Minute {
		return errors.New("room expire must be at least one minute")
	}
	if cfg.PresenceTimeout <= 0 {
		return errors.New("presence timeout must be greater than 0")
	}
	if cfg.PruneAfter < cfg.PresenceTimeout {
		return errors.New("prune after must not be shorter than presence timeout")
	}
	if cfg.PruneInterval <= 0 {
		return errors.New("prune interval must be greater than 0")
	}
	return nil
}

func Run(ctx context.Context, cfg *AppConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, err := ctxlogger.New(os.Stdout, cfg.LogLevel)
	if err != nil {
		return err
	}

	rc, err := redisclient.NewRedisClient(ctx, &redisclient.Config{
		Port:     cfg.RedisPort,
		Host:     cfg.RedisHost,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		return fmt.Errorf("failed to create redis client: %w", err)
	}
	defer rc.Close()

	su := stats.NewStatsUpdater()
	su.Run()
	defer su.Stop()

	roomRepo := redis.NewRepo(rc, logger, cfg.RoomExpire)
	roomService := room.NewService(roomRepo, oembed.NewClient(), su, logger, &room.Config{
		Secret:          cfg.Secret,
		PresenceTimeout: cfg.PresenceTimeout,
		PruneAfter:      cfg.PruneAfter,
	})
	controller := controller.NewController(roomService, su.Handler(), logger)
	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           controller.GetMux(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// graceful shutdown
	serverCtx, serverStopCtx := context.WithCancel(ctx)
	defer serverStopCtx()

	go runJanitor(serverCtx, roomService, cfg.PruneInterval, logger)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		<-sig

		shutdownCtx, c := context.WithTimeout(serverCtx, 30*time.Second)
		defer c()

		go func() {
			<-shutdownCtx.Done()
			if shutdownCtx.Err() == context.DeadlineExceeded {
				log.Fatal("graceful shutdown timed out.. forcing exit.")
			}
		}()

		err := server.Shutdown(shutdownCtx)
		if err != nil {
			log.Fatal(err)
		}
		serverStopCtx()
	}()

	logger.InfoContext(serverCtx, "starting server", "address", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	<-serverCtx.Done()

	return nil
}
