// Package memoryservice boots the mnemo HTTP service: configuration,
// dependency construction, health gating, and graceful shutdown.
package memoryservice

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/mnemolab/mnemo/internal/api"
	"github.com/mnemolab/mnemo/internal/config"
	"github.com/mnemolab/mnemo/internal/embeddings"
	"github.com/mnemolab/mnemo/internal/extractor"
	"github.com/mnemolab/mnemo/internal/factory"
	"github.com/mnemolab/mnemo/internal/health"
	"github.com/mnemolab/mnemo/internal/logger"
	"github.com/mnemolab/mnemo/internal/memory"
	"github.com/mnemolab/mnemo/internal/metadatalog"
	"github.com/mnemolab/mnemo/internal/services"
	"github.com/mnemolab/mnemo/internal/vectorindex"
)

// Run starts the memory service HTTP server and blocks until shutdown or error.
func Run() error {
	log := logger.New("mnemo")

	cfg, err := config.New()
	if err != nil {
		log.Error().Err(err).Msg("Failed to load configuration")
		return err
	}

	log.Info().
		Str("db_driver", cfg.DBDriver).
		Str("vector_store", cfg.VectorStore).
		Int("http_port", cfg.HTTPPort).
		Str("embed_provider", cfg.EmbedProvider).
		Str("embed_model", cfg.EmbedModel).
		Msg("Memory service starting")

	ctx, stop := newServerContext()
	defer stop()

	metaLog, idx, embedder, ext, err := initDependencies(ctx, cfg, log)
	if err != nil {
		return err
	}

	router := buildRouter(metaLog, idx, embedder, ext, cfg, log)

	svcHealth := startHealthCheckers(ctx, cfg, log, metaLog, idx, embedder)

	// Block startup until dependencies report healthy; fail fast otherwise.
	if err := waitUntilHealthy(ctx, cfg, svcHealth); err != nil {
		log.Error().Stack().Err(err).Msg("startup health check failed")
		return err
	}

	server := newHTTPServer(ctx, cfg, router)
	errCh := serveHTTP(server, log, cfg)

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down server")
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctxShutdown); err != nil {
			log.Error().Stack().Err(err).Msg("Server forced to shutdown")
			return err
		}
		log.Info().Msg("Server exited")
		return nil
	case err := <-errCh:
		log.Error().Stack().Err(err).Msg("HTTP server failed")
		return err
	}
}

// initDependencies constructs required components and enforces fail-fast on
// missing configuration.
func initDependencies(ctx context.Context, cfg *config.Config, log zerolog.Logger) (metadatalog.Log, vectorindex.Index, embeddings.Provider, extractor.Extractor, error) {
	metaLog, err := factory.NewMetadataLog(ctx, cfg, log)
	if err != nil {
		log.Error().Stack().Err(err).Msg("Metadata log unavailable")
		return nil, nil, nil, nil, err
	}

	idx, err := factory.NewVectorIndex(ctx, cfg, log)
	if err != nil {
		log.Error().Stack().Err(err).Msg("Vector index unavailable")
		return nil, nil, nil, nil, err
	}

	embedder, err := factory.NewEmbedder(ctx, cfg, log)
	if err != nil {
		log.Error().Stack().Err(err).Msg("Embedding provider unavailable")
		return nil, nil, nil, nil, err
	}

	ext, err := factory.NewExtractor(cfg, log)
	if err != nil {
		log.Error().Stack().Err(err).Msg("Fact extractor unavailable")
		return nil, nil, nil, nil, err
	}
	return metaLog, idx, embedder, ext, nil
}

// buildRouter wires the coordinator and services into HTTP routes.
func buildRouter(metaLog metadatalog.Log, idx vectorindex.Index, embedder embeddings.Provider, ext extractor.Extractor, cfg *config.Config, log zerolog.Logger) *mux.Router {
	var opts []memory.Option
	if cfg.DeleteMaxDistance > 0 {
		opts = append(opts, memory.WithDeleteMaxDistance(cfg.DeleteMaxDistance))
	}
	coord := memory.New(metaLog, idx, log, opts...)
	svc := services.NewMemoryService(coord, embedder, ext, cfg.RetrieveCount, log)
	return api.NewRouter(svc)
}

// startHealthCheckers starts per-component checkers and the service-level
// aggregator, and binds the health endpoint to it.
func startHealthCheckers(ctx context.Context, cfg *config.Config, log zerolog.Logger, metaLog metadatalog.Log, idx vectorindex.Index, embedder embeddings.Provider) *health.ServiceHealthChecker {
	probeTimeout := time.Duration(cfg.HealthProbeTimeoutSeconds) * time.Second
	interval := time.Duration(cfg.HealthIntervalSeconds) * time.Second

	var checkers []health.HealthChecker
	addChecker := func(name string, dep interface{}) {
		pinger, ok := dep.(health.HealthPinger)
		if !ok {
			return
		}
		c := health.NewPingChecker(name, pinger, log, probeTimeout)
		go c.Start(ctx, interval)
		checkers = append(checkers, c)
	}
	addChecker("metadata-log", metaLog)
	addChecker("vector-index", idx)
	addChecker("embedder", embedder)

	svcHealth := health.NewServiceHealthChecker(log, checkers...)
	go svcHealth.Start(ctx, interval)
	api.BindServiceHealth(svcHealth.IsHealthy)
	return svcHealth
}

func newHTTPServer(ctx context.Context, cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.GetHTTPAddr(),
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
}

func serveHTTP(server *http.Server, log zerolog.Logger, cfg *config.Config) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.HTTPPort).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	return errCh
}

// calculateStartupHealthTimeout returns the startup health timeout in
// seconds: interval*2 with a minimum of 60 seconds, giving checkers time to
// complete their first probe cycle.
func calculateStartupHealthTimeout(healthIntervalSeconds int) int {
	timeout := healthIntervalSeconds * 2
	if timeout < 60 {
		return 60
	}
	return timeout
}

// waitUntilHealthy blocks until service health is healthy or the startup
// window expires.
func waitUntilHealthy(ctx context.Context, cfg *config.Config, svcHealth *health.ServiceHealthChecker) error {
	timeoutSeconds := calculateStartupHealthTimeout(cfg.HealthIntervalSeconds)
	deadline := time.Now().Add(time.Duration(timeoutSeconds) * time.Second)
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		if svcHealth.IsHealthy() {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("startup aborted: dependencies not healthy within %d seconds", timeoutSeconds)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// newServerContext returns a cancellable context bound to SIGINT/SIGTERM.
func newServerContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
