package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/reelparty/server/internal/controller"
	"github.com/reelparty/server/internal/repository/catalog"
	cataloginmemory "github.com/reelparty/server/internal/repository/catalog/inmemory"
	conninmemory "github.com/reelparty/server/internal/repository/connection/inmemory"
	roomredis "github.com/reelparty/server/internal/repository/room/redis"
	roomservice "github.com/reelparty/server/internal/service/room"
	"github.com/reelparty/server/pkg/ctxlogger"
	"github.com/reelparty/server/pkg/redisclient"
)

type AppConfig struct {
	Host     string
	Port     int
	LogLevel string

	MembersLimit       int
	ChatHistoryLimit   int
	ChatMessageMaxLen  int
	HeartbeatInterval  time.Duration
	ReconnectGrace     time.Duration
	RoomIdleTimeout    time.Duration
	DriftThreshold     float64
	OutboundQueueLimit int

	RedisHost     string
	RedisPort     int
	RedisPassword string
}

func (cfg *AppConfig) Validate() error {
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return fmt.Errorf("invalid port: %d", cfg.Port)
	}
	if cfg.MembersLimit <= 0 {
		return fmt.Errorf("members limit must be positive, got %d", cfg.MembersLimit)
	}
	if cfg.ChatHistoryLimit <= 0 {
		return fmt.Errorf("chat history limit must be positive, got %d", cfg.ChatHistoryLimit)
	}
	if cfg.ChatMessageMaxLen <= 0 {
		return fmt.Errorf("chat message max length must be positive, got %d", cfg.ChatMessageMaxLen)
	}
	if cfg.HeartbeatInterval <= 0 {
		return fmt.Errorf("heartbeat interval must be positive, got %s", cfg.HeartbeatInterval)
	}
	if cfg.ReconnectGrace <= 0 {
		return fmt.Errorf("reconnect grace must be positive, got %s", cfg.ReconnectGrace)
	}
	if cfg.RoomIdleTimeout <= 0 {
		return fmt.Errorf("room idle timeout must be positive, got %s", cfg.RoomIdleTimeout)
	}
	if cfg.DriftThreshold <= 0 {
		return fmt.Errorf("drift threshold must be positive, got %f", cfg.DriftThreshold)
	}
	if cfg.OutboundQueueLimit <= 0 {
		return fmt.Errorf("outbound queue limit must be positive, got %d", cfg.OutboundQueueLimit)
	}
	return nil
}

func parseLogLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// demoLibrary seeds the media catalog until an external catalog service is
// wired in. Durations are in seconds.
func demoLibrary() []catalog.Media {
	return []catalog.Media{
		{Id: "big-buck-bunny", Title: "Big Buck Bunny", Duration: 596},
		{Id: "sintel", Title: "Sintel", Duration: 888},
		{Id: "tears-of-steel", Title: "Tears of Steel", Duration: 734},
		{Id: "elephants-dream", Title: "Elephants Dream", Duration: 654},
	}
}

func Run(ctx context.Context, cfg *AppConfig) error {
	logger := slog.New(ctxlogger.ContextHandler{
		Handler: slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: parseLogLevel(cfg.LogLevel),
		}),
	})
	slog.SetDefault(logger)

	rc, err := redisclient.NewRedisClient(ctx, &redisclient.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer rc.Close()

	roomRepo := roomredis.NewRepo(rc, logger, 14*24*time.Hour)
	senderRepo := conninmemory.NewRepo(logger, cfg.OutboundQueueLimit)
	mediaCatalog := cataloginmemory.NewRepo(demoLibrary()...)

	roomService := roomservice.NewService(roomRepo, senderRepo, mediaCatalog, clockwork.NewRealClock(), logger, &roomservice.Config{
		MembersLimit:      cfg.MembersLimit,
		ChatHistoryLimit:  cfg.ChatHistoryLimit,
		ChatMessageMaxLen: cfg.ChatMessageMaxLen,
		HeartbeatInterval: cfg.HeartbeatInterval,
		ReconnectGrace:    cfg.ReconnectGrace,
		RoomIdleTimeout:   cfg.RoomIdleTimeout,
		DriftThreshold:    cfg.DriftThreshold,
	})
	defer roomService.Close()

	ctrl := controller.NewController(roomService, senderRepo, logger)

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: ctrl.GetRouter(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.InfoContext(ctx, "server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-stop:
	case <-ctx.Done():
	}

	logger.InfoContext(ctx, "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}

	return nil
}
