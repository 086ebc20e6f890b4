package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sharetube/watchroom/internal/viewer"
)

type configVar[T any] struct {
	envKey       string
	flagKey      string
	defaultValue T
}

var (
	serverURL = configVar[string]{
		envKey:       "VIEWER_SERVER_URL",
		flagKey:      "server-url",
		defaultValue: "http://localhost:80",
	}
	roomID = configVar[string]{
		envKey:       "VIEWER_ROOM_ID",
		flagKey:      "room-id",
		defaultValue: "",
	}
	roomName = configVar[string]{
		envKey:       "VIEWER_ROOM_NAME",
		flagKey:      "room-name",
		defaultValue: "",
	}
	displayName = configVar[string]{
		envKey:       "VIEWER_DISPLAY_NAME",
		flagKey:      "display-name",
		defaultValue: "viewer",
	}
	token = configVar[string]{
		envKey:       "VIEWER_TOKEN",
		flagKey:      "token",
		defaultValue: "",
	}
	identityFile = configVar[string]{
		envKey:       "VIEWER_IDENTITY_FILE",
		flagKey:      "identity-file",
		defaultValue: "",
	}
	logLevel = configVar[string]{
		envKey:       "VIEWER_LOG_LEVEL",
		flagKey:      "log-level",
		defaultValue: "INFO",
	}
	pullInterval = configVar[time.Duration]{
		envKey:       "VIEWER_PULL_INTERVAL",
		flagKey:      "pull-interval",
		defaultValue: 2 * time.Second,
	}
	heartbeatInterval = configVar[time.Duration]{
		envKey:       "VIEWER_HEARTBEAT_INTERVAL",
		flagKey:      "heartbeat-interval",
		defaultValue: 5 * time.Second,
	}
	refreshInterval = configVar[time.Duration]{
		envKey:       "VIEWER_REFRESH_INTERVAL",
		flagKey:      "refresh-interval",
		defaultValue: 5 * time.Second,
	}
	driftThreshold = configVar[time.Duration]{
		envKey:       "VIEWER_DRIFT_THRESHOLD",
		flagKey:      "drift-threshold",
		defaultValue: 3 * time.Second,
	}
	suppressionWindow = configVar[time.Duration]{
		envKey:       "VIEWER_SUPPRESSION_WINDOW",
		flagKey:      "suppression-window",
		defaultValue: 2 * time.Second,
	}
	playlist = configVar[[]string]{
		envKey:       "VIEWER_PLAYLIST",
		flagKey:      "playlist",
		defaultValue: nil,
	}
)

func loadConfig() *viewer.Config {
	pflag.String(serverURL.flagKey, serverURL.defaultValue, "Room server base url")
	pflag.String(roomID.flagKey, roomID.defaultValue, "Room to join; a new room is created when empty")
	pflag.String(roomName.flagKey, roomName.defaultValue, "Name of the room to create")
	pflag.String(displayName.flagKey, displayName.defaultValue, "Display name")
	pflag.String(token.flagKey, token.defaultValue, "Bearer token of a signed in user; a guest id is used when empty")
	pflag.String(identityFile.flagKey, identityFile.defaultValue, "File holding the guest id")
	pflag.String(logLevel.flagKey, logLevel.defaultValue, "Logging level")
	pflag.Duration(pullInterval.flagKey, pullInterval.defaultValue, "Interval between room state pulls")
	pflag.Duration(heartbeatInterval.flagKey, heartbeatInterval.defaultValue, "Interval between presence heartbeats")
	pflag.Duration(refreshInterval.flagKey, refreshInterval.defaultValue, "Interval between participant list refreshes")
	pflag.Duration(driftThreshold.flagKey, driftThreshold.defaultValue, "Position difference that causes a seek")
	pflag.Duration(suppressionWindow.flagKey, suppressionWindow.defaultValue, "Time after a local change during which remote state is ignored")
	pflag.StringSlice(playlist.flagKey, playlist.defaultValue, "Media urls to play in order")
	pflag.Parse()

	viper.BindPFlags(pflag.CommandLine)

	viper.BindEnv(serverURL.flagKey, serverURL.envKey)
	viper.BindEnv(roomID.flagKey, roomID.envKey)
	viper.BindEnv(roomName.flagKey, roomName.envKey)
	viper.BindEnv(displayName.flagKey, displayName.envKey)
	viper.BindEnv(token.flagKey, token.envKey)
	viper.BindEnv(identityFile.flagKey, identityFile.envKey)
	viper.BindEnv(logLevel.flagKey, logLevel.envKey)
	viper.BindEnv(pullInterval.flagKey, pullInterval.envKey)
	viper.BindEnv(heartbeatInterval.flagKey, heartbeatInterval.envKey)
	viper.BindEnv(refreshInterval.flagKey, refreshInterval.envKey)
	viper.BindEnv(driftThreshold.flagKey, driftThreshold.envKey)
	viper.BindEnv(suppressionWindow.flagKey, suppressionWindow.envKey)
	viper.BindEnv(playlist.flagKey, playlist.envKey)

	viper.SetDefault(serverURL.flagKey, serverURL.defaultValue)
	viper.SetDefault(displayName.flagKey, displayName.defaultValue)
	viper.SetDefault(logLevel.flagKey, logLevel.defaultValue)
	viper.SetDefault(pullInterval.flagKey, pullInterval.defaultValue)
	viper.SetDefault(heartbeatInterval.flagKey, heartbeatInterval.defaultValue)
	viper.SetDefault(refreshInterval.flagKey, refreshInterval.defaultValue)
	viper.SetDefault(driftThreshold.flagKey, driftThreshold.defaultValue)
	viper.SetDefault(suppressionWindow.flagKey, suppressionWindow.defaultValue)

	return &viewer.Config{
		ServerURL:         viper.GetString(serverURL.flagKey),
		RoomID:            viper.GetString(roomID.flagKey),
		RoomName:          viper.GetString(roomName.flagKey),
		DisplayName:       viper.GetString(displayName.flagKey),
		Token:             viper.GetString(token.flagKey),
		IdentityFile:      viper.GetString(identityFile.flagKey),
		LogLevel:          viper.GetString(logLevel.flagKey),
		PullInterval:      viper.GetDuration(pullInterval.flagKey),
		HeartbeatInterval: viper.GetDuration(heartbeatInterval.flagKey),
		RefreshInterval:   viper.GetDuration(refreshInterval.flagKey),
		DriftThreshold:    viper.GetDuration(driftThreshold.flagKey),
		SuppressionWindow: viper.GetDuration(suppressionWindow.flagKey),
		Playlist:          viper.GetStringSlice(playlist.flagKey),
	}
}

func main() {
	cfg := loadConfig()

	jsonConfig, _ := json.MarshalIndent(cfg, "", "  ")
	fmt.Printf("starting viewer with config: %s\n", jsonConfig)

	if err := viewer.Run(context.Background(), cfg); err != nil {
		log.Fatal(err)
	}
}
