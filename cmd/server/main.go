package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/reelparty/server/internal/app"
)

type configVar[T any] struct {
	envKey       string
	flagKey      string
	defaultValue T
}

var (
	port = configVar[int]{
		envKey:       "SERVER_PORT",
		flagKey:      "port",
		defaultValue: 8080,
	}
	host = configVar[string]{
		envKey:       "SERVER_HOST",
		flagKey:      "host",
		defaultValue: "0.0.0.0",
	}
	logLevel = configVar[string]{
		envKey:       "SERVER_LOG_LEVEL",
		flagKey:      "log-level",
		defaultValue: "info",
	}
	membersLimit = configVar[int]{
		envKey:       "SERVER_MEMBERS_LIMIT",
		flagKey:      "members-limit",
		defaultValue: 16,
	}
	chatHistoryLimit = configVar[int]{
		envKey:       "SERVER_CHAT_HISTORY_LIMIT",
		flagKey:      "chat-history-limit",
		defaultValue: 200,
	}
	chatMessageMaxLen = configVar[int]{
		envKey:       "SERVER_CHAT_MESSAGE_MAX_LEN",
		flagKey:      "chat-message-max-len",
		defaultValue: 500,
	}
	heartbeatInterval = configVar[time.Duration]{
		envKey:       "SERVER_HEARTBEAT_INTERVAL",
		flagKey:      "heartbeat-interval",
		defaultValue: 5 * time.Second,
	}
	reconnectGrace = configVar[time.Duration]{
		envKey:       "SERVER_RECONNECT_GRACE",
		flagKey:      "reconnect-grace",
		defaultValue: 30 * time.Second,
	}
	roomIdleTimeout = configVar[time.Duration]{
		envKey:       "SERVER_ROOM_IDLE_TIMEOUT",
		flagKey:      "room-idle-timeout",
		defaultValue: 10 * time.Minute,
	}
	driftThreshold = configVar[float64]{
		envKey:       "SERVER_DRIFT_THRESHOLD",
		flagKey:      "drift-threshold",
		defaultValue: 1.5,
	}
	outboundQueueLimit = configVar[int]{
		envKey:       "SERVER_OUTBOUND_QUEUE_LIMIT",
		flagKey:      "outbound-queue-limit",
		defaultValue: 64,
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
	pflag.Int(port.flagKey, port.defaultValue, "Server port")
	pflag.String(host.flagKey, host.defaultValue, "Server host")
	pflag.String(logLevel.flagKey, logLevel.defaultValue, "Logging level")
	pflag.Int(membersLimit.flagKey, membersLimit.defaultValue, "Maximum number of participants in a room")
	pflag.Int(chatHistoryLimit.flagKey, chatHistoryLimit.defaultValue, "Number of chat messages retained per room")
	pflag.Int(chatMessageMaxLen.flagKey, chatMessageMaxLen.defaultValue, "Maximum chat message length in characters")
	pflag.Duration(heartbeatInterval.flagKey, heartbeatInterval.defaultValue, "Expected interval between participant heartbeats")
	pflag.Duration(reconnectGrace.flagKey, reconnectGrace.defaultValue, "Grace period before a reconnecting participant is dropped")
	pflag.Duration(roomIdleTimeout.flagKey, roomIdleTimeout.defaultValue, "Time an empty room is kept before closing")
	pflag.Float64(driftThreshold.flagKey, driftThreshold.defaultValue, "Playback drift threshold in seconds")
	pflag.Int(outboundQueueLimit.flagKey, outboundQueueLimit.defaultValue, "Per-connection outbound message queue size")
	pflag.Int(redisPort.flagKey, redisPort.defaultValue, "Redis port")
	pflag.String(redisHost.flagKey, redisHost.defaultValue, "Redis host")
	pflag.String(redisPassword.flagKey, redisPassword.defaultValue, "Redis password")
	pflag.Parse()

	viper.BindPFlags(pflag.CommandLine)

	viper.BindEnv(port.flagKey, port.envKey)
	viper.BindEnv(host.flagKey, host.envKey)
	viper.BindEnv(logLevel.flagKey, logLevel.envKey)
	viper.BindEnv(membersLimit.flagKey, membersLimit.envKey)
	viper.BindEnv(chatHistoryLimit.flagKey, chatHistoryLimit.envKey)
	viper.BindEnv(chatMessageMaxLen.flagKey, chatMessageMaxLen.envKey)
	viper.BindEnv(heartbeatInterval.flagKey, heartbeatInterval.envKey)
	viper.BindEnv(reconnectGrace.flagKey, reconnectGrace.envKey)
	viper.BindEnv(roomIdleTimeout.flagKey, roomIdleTimeout.envKey)
	viper.BindEnv(driftThreshold.flagKey, driftThreshold.envKey)
	viper.BindEnv(outboundQueueLimit.flagKey, outboundQueueLimit.envKey)
	viper.BindEnv(redisPort.flagKey, redisPort.envKey)
	viper.BindEnv(redisHost.flagKey, redisHost.envKey)
	viper.BindEnv(redisPassword.flagKey, redisPassword.envKey)

	viper.SetDefault(port.flagKey, port.defaultValue)
	viper.SetDefault(host.flagKey, host.defaultValue)
	viper.SetDefault(logLevel.flagKey, logLevel.defaultValue)
	viper.SetDefault(membersLimit.flagKey, membersLimit.defaultValue)
	viper.SetDefault(chatHistoryLimit.flagKey, chatHistoryLimit.defaultValue)
	viper.SetDefault(chatMessageMaxLen.flagKey, chatMessageMaxLen.defaultValue)
	viper.SetDefault(heartbeatInterval.flagKey, heartbeatInterval.defaultValue)
	viper.SetDefault(reconnectGrace.flagKey, reconnectGrace.defaultValue)
	viper.SetDefault(roomIdleTimeout.flagKey, roomIdleTimeout.defaultValue)
	viper.SetDefault(driftThreshold.flagKey, driftThreshold.defaultValue)
	viper.SetDefault(outboundQueueLimit.flagKey, outboundQueueLimit.defaultValue)
	viper.SetDefault(redisPort.flagKey, redisPort.defaultValue)
	viper.SetDefault(redisHost.flagKey, redisHost.defaultValue)
	viper.SetDefault(redisPassword.flagKey, redisPassword.defaultValue)

	return &app.AppConfig{
		Host:               viper.GetString(host.flagKey),
		Port:               viper.GetInt(port.flagKey),
		LogLevel:           viper.GetString(logLevel.flagKey),
		MembersLimit:       viper.GetInt(membersLimit.flagKey),
		ChatHistoryLimit:   viper.GetInt(chatHistoryLimit.flagKey),
		ChatMessageMaxLen:  viper.GetInt(chatMessageMaxLen.flagKey),
		HeartbeatInterval:  viper.GetDuration(heartbeatInterval.flagKey),
		ReconnectGrace:     viper.GetDuration(reconnectGrace.flagKey),
		RoomIdleTimeout:    viper.GetDuration(roomIdleTimeout.flagKey),
		DriftThreshold:     viper.GetFloat64(driftThreshold.flagKey),
		OutboundQueueLimit: viper.GetInt(outboundQueueLimit.flagKey),
		RedisPort:          viper.GetInt(redisPort.flagKey),
		RedisHost:          viper.GetString(redisHost.flagKey),
		RedisPassword:      viper.GetString(redisPassword.flagKey),
	}
}

func main() {
	ctx := context.Background()

	appConfig := loadAppConfig()
	if err := appConfig.Validate(); err != nil {
		log.Fatalf("invalid config: %s", err)
	}

	jsonConfig, _ := json.MarshalIndent(appConfig, "", "  ")
	fmt.Printf("starting app with config: %s\n", jsonConfig)

	log.Fatal(app.Run(ctx, appConfig))
}
