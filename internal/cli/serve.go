package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/stawikopa-del/fitfly-sub001/internal/api"
	"github.com/stawikopa-del/fitfly-sub001/internal/config"
	"github.com/stawikopa-del/fitfly-sub001/internal/presets"
	"github.com/stawikopa-del/fitfly-sub001/internal/service"
	"github.com/stawikopa-del/fitfly-sub001/internal/storage"
	"github.com/stawikopa-del/fitfly-sub001/internal/storage/cassandra"
	"github.com/stawikopa-del/fitfly-sub001/internal/storage/redis"
	"github.com/stawikopa-del/fitfly-sub001/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the session HTTP service (configured from the environment)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return serve(cmd.Context(), cfg, logger.New())
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	catalog, err := presets.Load(cfg.PresetsFile)
	if err != nil {
		return fmt.Errorf("load presets: %w", err)
	}

	mem := storage.NewMemoryStorage()
	var sessions storage.SessionRepository = mem
	var completions storage.CompletionRepository = mem

	if cfg.SessionStore == config.BackendRedis {
		store, err := redis.NewStore(cfg.Redis, cfg.SessionTTL, log)
		if err != nil {
			return err
		}
		defer store.Close()
		sessions = store
	}

	if cfg.CompletionStore == config.BackendCassandra {
		client, err := cassandra.NewClient(cfg.Cassandra, log)
		if err != nil {
			return err
		}
		defer client.Close()
		completions = cassandra.NewRepository(client, log, cfg.Cassandra.Timeout)
	}

	svc := service.NewSessionService(sessions, completions, catalog, service.Options{
		ServerTicks:   cfg.ServerTicks(),
		TickInterval:  cfg.TickInterval,
		PointsPerStep: cfg.PointsPerStep,
	}, log)

	handler := api.NewHandler(svc, log, cfg.RateLimitPerMinute)
	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Server starting",
			logger.F("addr", cfg.Address()),
			logger.F("tick_mode", cfg.TickMode),
			logger.F("session_store", cfg.SessionStore),
			logger.F("completion_store", cfg.CompletionStore))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", logger.Err(err))
	}
	svc.Shutdown(shutdownCtx)

	log.Info("Server exited")
	return nil
}
