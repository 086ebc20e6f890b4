package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sharetube/watchroom/internal/app"
)

type configVar[T any] struct {
	envKey       string
	flagKey      string
	defaultValue T
}

var (
	secret = configVar[string]{
		envKey:       "SERVER_SECRET",
		flagKey:      "secret",
		defaultValue: "",
	}
	port = configVar[int]{
		envKey:       "SERVER_PORT",
		flagKey:      "port",
		defaultValue: 80,
	}
	host = configVar[string]{
		envKey:       "SERVER_HOST",
		flagKey:      "host",
		defaultValue: "0.0.0.0",
	}
	logLevel = configVar[string]{
		envKey:       "SERVER_LOG_LEVEL",
		flagKey:      "log-level",
		defaultValue: "INFO",
	}
	roomExpire = configVar[time.Duration]{
		envKey:       "SERVER_ROOM_EXPIRE",
		flagKey:      "room-expire",
		defaultValue: 14 * 24 * time.Hour,
	}
	presenceTimeout = configVar[time.Duration]{
		envKey:       "SERVER_PRESENCE_TIMEOUT",
		flagKey:      "presence-timeout",
		defaultValue: 30 * time.Second,
	}
	pruneAfter = configVar[time.Duration]{
		envKey:       "SERVER_PRUNE_AFTER",
		flagKey:      "prune-after",
		defaultValue: time.Hour,
	}
	pruneInterval = configVar[time.Duration]{
		envKey:       "SERVER_PRUNE_INTERVAL",
		flagKey:      "prune-interval",
		defaultValue: 5 * time.Minute,
	}
	redisPort = configVar[int]{
		envKey:       "REDIS_PORT",
		flagKey:      "redis-port",
		defaultValue: 6379,
	}
	redisHost = configVar[string]{
		envKey:       "REDIS_HOST",
		flagKey:      "redis-host",
		defaultValue: "localhost",
	}
	redisPassword = configVar[string]{
		envKey:       "REDIS_PASSWORD",
		flagKey:      "redis-password",
		defaultValue: "",
	}
)

func loadAppConfig() *app.AppConfig {
	pflag.String(secret.flagKey, secret.defaultValue, "Secret shared with the auth service for verifying user tokens")
	pflag.Int(port.flagKey, port.defaultValue, "Server port")
	pflag.String(host.flagKey, host.defaultValue, "Server host")
	pflag.String(logLevel.flagKey, logLevel.defaultValue, "Logging level")
	pflag.Duration(roomExpire.flagKey, roomExpire.defaultValue, "Idle time after which room data expires")
	pflag.Duration(presenceTimeout.flagKey, presenceTimeout.defaultValue, "Heartbeat age after which a participant is offline")
	pflag.Duration(pruneAfter.flagKey, pruneAfter.defaultValue, "Heartbeat age after which a participant is removed")
	pflag.Duration(pruneInterval.flagKey, pruneInterval.defaultValue, "Interval between stale participant cleanups")
	pflag.Int(redisPort.flagKey, redisPort.defaultValue, "Redis port")
	pflag.String(redisHost.flagKey, redisHost.defaultValue, "Redis host")
	pflag.String(redisPassword.flagKey, redisPassword.defaultValue, "Redis password")
	pflag.Parse()

	viper.BindPFlags(pflag.CommandLine)

	viper.BindEnv(secret.flagKey, secret.envKey)
	viper.BindEnv(port.flagKey, port.envKey)
	viper.BindEnv(host.flagKey, host.envKey)
	viper.BindEnv(logLevel.flagKey, logLevel.envKey)
	viper.BindEnv(roomExpire.flagKey, roomExpire.envKey)
	viper.BindEnv(presenceTimeout.flagKey, presenceTimeout.envKey)
	viper.BindEnv(pruneAfter.flagKey, pruneAfter.envKey)
	viper.BindEnv(pruneInterval.flagKey, pruneInterval.envKey)
	viper.BindEnv(redisPort.flagKey, redisPort.envKey)
	viper.BindEnv(redisHost.flagKey, redisHost.envKey)
	viper.BindEnv(redisPassword.flagKey, redisPassword.envKey)

	viper.SetDefault(secret.flagKey, secret.defaultValue)
	viper.SetDefault(port.flagKey, port.defaultValue)
	viper.SetDefault(host.flagKey, host.defaultValue)
	viper.SetDefault(logLevel.flagKey, logLevel.defaultValue)
	viper.SetDefault(roomExpire.flagKey, roomExpire.defaultValue)
	viper.SetDefault(presenceTimeout.flagKey, presenceTimeout.defaultValue)
	viper.SetDefault(pruneAfter.flagKey, pruneAfter.defaultValue)
	viper.SetDefault(pruneInterval.flagKey, pruneInterval.defaultValue)
	viper.SetDefault(redisPort.flagKey, redisPort.defaultValue)
	viper.SetDefault(redisHost.flagKey, redisHost.defaultValue)
	viper.SetDefault(redisPassword.flagKey, redisPassword.defaultValue)

	config := &app.AppConfig{
		Secret:          viper.GetString(secret.flagKey),
		Host:            viper.GetString(host.flagKey),
		Port:            viper.GetInt(port.flagKey),
		LogLevel:        viper.GetString(logLevel.flagKey),
		RoomExpire:      viper.GetDuration(roomExpire.flagKey),
		PresenceTimeout: viper.GetDuration(presenceTimeout.flagKey),
		PruneAfter:      viper.GetDuration(pruneAfter.flagKey),
		PruneInterval:   viper.GetDuration(pruneInterval.flagKey),
		RedisPort:       viper.GetInt(redisPort.flagKey),
		RedisHost:       viper.GetString(redisHost.flagKey),
		RedisPassword:   viper.GetString(redisPassword.flagKey),
	}

	return config
}

func main() {
	ctx := context.Background()

	appConfig := loadAppConfig()

	jsonConfig, _ := json.MarshalIndent(appConfig, "", "  ")
	fmt.Printf("starting app with config: %s\n", jsonConfig)

	if err := app.Run(ctx, appConfig); err != nil {
		log.Fatal(err)
	}
}
