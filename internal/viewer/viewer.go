package viewer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sharetube/watchroom/internal/apiclient"
	"github.com/sharetube/watchroom/internal/domain"
	"github.com/sharetube/watchroom/internal/identity"
	"github.com/sharetube/watchroom/internal/player"
	"github.com/sharetube/watchroom/internal/presence"
	"github.com/sharetube/watchroom/internal/syncengine"
	"github.com/sharetube/watchroom/internal/watch"
	"github.com/sharetube/watchroom/pkg/ctxlogger"
)

type Config struct {
	ServerURL         string        `json:"server_url"`
	RoomID            string        `json:"room_id"`
	RoomName          string        `json:"room_name"`
	DisplayName       string        `json:"display_name"`
	Token             string        `json:"-"`
	IdentityFile      string        `json:"identity_file"`
	LogLevel          string        `json:"log_level"`
	PullInterval      time.Duration `json:"pull_interval"`
	HeartbeatInterval time.Duration `json:"heartbeat_interval"`
	RefreshInterval   time.Duration `json:"refresh_interval"`
	DriftThreshold    time.Duration `json:"drift_threshold"`
	SuppressionWindow time.Duration `json:"suppression_window"`
	Playlist          []string      `json:"playlist"`
}

func (cfg *Config) Validate() error {
	u, err := url.Parse(cfg.ServerURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("server url %q is not an absolute url", cfg.ServerURL)
	}
	if cfg.DisplayName == "" {
		return errors.New("display name must be set")
	}
	if cfg.PullInterval <= 0 || cfg.HeartbeatInterval <= 0 || cfg.RefreshInterval <= 0 {
		return errors.New("intervals must be greater than 0")
	}
	if cfg.DriftThreshold <= 0 || cfg.SuppressionWindow <= 0 {
		return errors.New("drift threshold and suppression window must be greater than 0")
	}
	return nil
}

type logListener struct {
	logger *slog.Logger
}

func (l logListener) OnParticipants(list []domain.Participant) {
	names := make([]string, 0, len(list))
	for _, p := range list {
		names = append(names, fmt.Sprintf("%s (%s)", p.DisplayName, p.Status))
	}
	l.logger.Debug("participants", "list", names)
}

func (l logListener) OnTransition(t presence.Transition) {
	l.logger.Info("participant status changed", "participant_id", t.ParticipantID, "display_name", t.DisplayName, "from", t.From, "to", t.To)
}

func (l logListener) OnKicked() {
	l.logger.Warn("you were kicked from the room")
}

func newClient(cfg *Config, logger *slog.Logger) (*apiclient.Client, error) {
	if cfg.Token != "" {
		return apiclient.New(cfg.ServerURL, logger, apiclient.WithToken(cfg.Token)), nil
	}

	path := cfg.IdentityFile
	if path == "" {
		var err error
		if path, err = identity.DefaultPath(); err != nil {
			return nil, err
		}
	}

	guestID, err := identity.NewStore(path).GuestID()
	if err != nil {
		return nil, fmt.Errorf("failed to load guest id: %w", err)
	}

	return apiclient.New(cfg.ServerURL, logger, apiclient.WithGuestID(guestID)), nil
}

// Run opens a room view with headless players and keeps it open until ctx is
// done, a signal arrives or this identity is kicked.
func Run(ctx context.Context, cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, err := ctxlogger.New(os.Stderr, cfg.LogLevel)
	if err != nil {
		return err
	}

	client, err := newClient(cfg, logger)
	if err != nil {
		return err
	}
	selfID, err := client.Identity()
	if err != nil {
		return err
	}
	ctx = ctxlogger.AppendCtx(ctx, slog.String("identity", selfID))

	roomID := cfg.RoomID
	if roomID == "" {
		room, _, err := client.CreateRoom(ctx, cfg.RoomName, cfg.DisplayName)
		if err != nil {
			return fmt.Errorf("failed to create room: %w", err)
		}
		roomID = room.ID
		logger.InfoContext(ctx, "room created", "room_id", roomID)
	}

	session := watch.NewSession(client, player.NewHeadlessRegistry(time.Now, logger), selfID, logger, watch.Config{
		RoomID:      roomID,
		DisplayName: cfg.DisplayName,
		Sync: syncengine.Config{
			PullInterval:      cfg.PullInterval,
			DriftThreshold:    cfg.DriftThreshold,
			SuppressionWindow: cfg.SuppressionWindow,
		},
		Presence: presence.Config{
			HeartbeatInterval: cfg.HeartbeatInterval,
			RefreshInterval:   cfg.RefreshInterval,
			Timeout:           domain.DefaultPresenceTimeout,
			SelfFirst:         true,
		},
	})
	session.Presence().SetListener(logListener{logger: logger})

	p, err := session.Enter(ctx)
	if err != nil {
		return fmt.Errorf("failed to enter room: %w", err)
	}
	logger.InfoContext(ctx, "entered room", "room_id", roomID, "is_owner", p.IsOwner)

	if len(cfg.Playlist) > 0 {
		items := make([]watch.PlaylistItem, 0, len(cfg.Playlist))
		for _, u := range cfg.Playlist {
			items = append(items, watch.PlaylistItem{URL: u})
		}
		session.SetPlaylist("", items)
		if err := session.PlayIndex(ctx, 0); err != nil {
			logger.WarnContext(ctx, "failed to start playlist", "error", err)
		}
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer signal.Stop(sig)

	select {
	case <-session.Done():
		if session.Presence().IsKicked() {
			return domain.ErrKicked
		}
		return nil
	case <-sig:
	case <-ctx.Done():
	}

	logger.InfoContext(ctx, "leaving room", "room_id", roomID)
	<-session.Exit()

	return nil
}
