// Package runtime assembles the hush daemon: telemetry, the message bus,
// the story store, the generation pipeline, the device trigger, and the
// HTTP surface. Components start in dependency order and stop in reverse.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hushabye/hush-core/internal/bus"
	"github.com/hushabye/hush-core/internal/config"
	"github.com/hushabye/hush-core/internal/natsserver"
	"github.com/hushabye/hush-core/internal/pipeline"
	"github.com/hushabye/hush-core/internal/storystore"
	"github.com/hushabye/hush-core/internal/trigger"
)

const shutdownTimeout = 10 * time.Second

type Runtime struct {
	cfg            config.Config
	logger         *slog.Logger
	httpServer     *http.Server
	natsServer     *natsserver.EmbeddedServer
	busClient      *bus.Client
	store          *storystore.Store
	stories        *pipeline.Service
	trigger        *trigger.Service
	telemetryClose func(context.Context) error
	ready          atomic.Bool
	wg             sync.WaitGroup
}

func New(cfg config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:    cfg,
		logger: logger,
	}
}

// Start brings every component up and then blocks until ctx is cancelled.
// Teardown runs on the way out regardless of how far startup got.
func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	defer func() {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancelShutdown()
		r.teardown(shutdownCtx)
	}()

	if err := r.startComponents(ctx); err != nil {
		return err
	}

	r.ready.Store(true)
	r.logger.Info("runtime started", slog.String("addr", r.httpServer.Addr))

	<-ctx.Done()
	r.ready.Store(false)
	r.logger.Info("runtime stopping")
	return nil
}

func (r *Runtime) startComponents(ctx context.Context) error {
	shutdownTelemetry, metricsHandler, err := setupTelemetry(r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	r.telemetryClose = shutdownTelemetry

	natsServer, err := natsserver.Start(r.cfg.Bus, r.logger)
	if err != nil {
		return fmt.Errorf("failed to start embedded bus: %w", err)
	}
	r.natsServer = natsServer

	busClient, err := bus.Connect(ctx, r.cfg.Bus, r.logger)
	if err != nil {
		return fmt.Errorf("failed to connect to bus: %w", err)
	}
	r.busClient = busClient

	store, err := storystore.Open(ctx, r.cfg.Store, r.logger)
	if err != nil {
		return fmt.Errorf("failed to open story store: %w", err)
	}
	r.store = store

	stories, err := pipeline.NewService(r.cfg, store, r.logger)
	if err != nil {
		return fmt.Errorf("failed to build story pipeline: %w", err)
	}
	r.stories = stories

	r.trigger = trigger.NewService(ctx, r.cfg.Trigger, busClient, stories, r.logger)
	if err := r.trigger.Start(); err != nil {
		return fmt.Errorf("failed to start trigger service: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", r.cfg.HTTP.Bind, r.cfg.HTTP.Port)
	r.httpServer = &http.Server{
		Addr:              addr,
		Handler:           r.buildMux(metricsHandler),
		ReadHeaderTimeout: 5 * time.Second,
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			r.logger.Error("http server failed", slogError(err))
		}
	}()

	return nil
}

func (r *Runtime) buildMux(metricsHandler http.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", r.handleHealth)
	mux.HandleFunc("/readyz", r.handleReady)
	if metricsHandler != nil {
		mux.Handle("/metrics", metricsHandler)
	}
	r.registerStoryRoutes(mux)
	return mux
}

// teardown stops whatever startComponents managed to bring up, newest first.
func (r *Runtime) teardown(ctx context.Context) {
	if r.httpServer != nil {
		if err := r.httpServer.Shutdown(ctx); err != nil {
			r.logger.Error("http shutdown error", slogError(err))
		}
	}
	r.wg.Wait()
	if r.trigger != nil {
		r.trigger.Close()
	}
	if r.busClient != nil {
		r.busClient.Close()
	}
	if r.natsServer != nil {
		r.natsServer.Shutdown()
	}
	if r.store != nil {
		if err := r.store.Close(); err != nil {
			r.logger.Error("store close error", slogError(err))
		}
	}
	if r.telemetryClose != nil {
		if err := r.telemetryClose(ctx); err != nil {
			r.logger.Error("telemetry shutdown error", slogError(err))
		}
	}
}

func (r *Runtime) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (r *Runtime) handleReady(w http.ResponseWriter, _ *http.Request) {
	if r.ready.Load() && r.busClient.Healthy() && r.trigger.Healthy() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready"))
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
