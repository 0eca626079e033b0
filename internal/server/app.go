// Package server wires the application together: configuration, logging,
// the file store, the session registry, the payment gate and the HTTP
// server, plus startup restore/reconnect and graceful shutdown.
package server

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

	"boltboard/internal/lightning"
	"boltboard/internal/logging"
	"boltboard/internal/server/authorship"
	"boltboard/internal/server/config"
	"boltboard/internal/server/nodes"
	"boltboard/internal/server/payments"
	"boltboard/internal/server/posts"
	"boltboard/internal/server/store"
	"boltboard/internal/server/web"

	"github.com/asaskevich/EventBus"
)

type App struct {
	config *config.Config
	logger logging.Logger

	posts *posts.Service
	nodes *nodes.Manager
	web   *web.Server
}

func NewApp(c *config.Config) (*App, error) {
	sl := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(sl)

	bus := EventBus.New()

	fileStore := store.NewFileStore(c.DBFile)
	postService := posts.NewService(fileStore, bus, logger)

	dial := func(host, certHex, macaroonHex string) (lightning.Client, error) {
		return lightning.Dial(host, certHex, macaroonHex)
	}
	nodeManager := nodes.NewManager(dial, bus, logger)

	gate, err := payments.NewGate(bus, nodeManager, postService, logger)
	if err != nil {
		return nil, fmt.Errorf("payment gate init error: %w", err)
	}

	verifier := authorship.NewService(nodeManager, postService, logger)

	hub, err := web.NewHub(bus, c.AllowedOrigin, logger)
	if err != nil {
		return nil, fmt.Errorf("event hub init error: %w", err)
	}

	webServer := web.New(nodeManager, postService, gate, verifier, hub, c.AllowedOrigin, logger)

	return &App{
		config: c,
		logger: logger,
		posts:  postService,
		nodes:  nodeManager,
		web:    webServer,
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "starting app", "addr", app.config.EndpointAddr)

	app.initSignalHandler(cancelFunc)

	// Rehydrate persisted state, then bring persisted node sessions back
	// up with their saved tokens. Individual node failures are non-fatal.
	if err := app.posts.Restore(ctx); err != nil {
		return err
	}
	app.nodes.ReconnectAll(ctx, app.posts.Nodes())

	srv := &http.Server{
		Addr:    app.config.EndpointAddr,
		Handler: app.web.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	app.logger.Info(ctx, "shutting down")

	shutdownCtx, release := context.WithTimeout(context.Background(), 5*time.Second)
	defer release()
	return srv.Shutdown(shutdownCtx)
}
