package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/logger"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"giveaway/internal/config"
	"giveaway/internal/handlers"
	"giveaway/internal/metrics"
	"giveaway/internal/services"
	"giveaway/internal/transport"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the giveaway HTTP service",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		_, closeLog, err := serveLogger(cfg.LogFile)
		if err != nil {
			return err
		}
		defer closeLog()
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg)
	},
}

// serveLogger sets up the default logger of the service. Info and Warning
// lines always go to stdout, errors to stderr, and every level is copied to
// logFile when it is set.
func serveLogger(logFile string) (*logger.Logger, func(), error) {
	var w io.Writer = io.Discard
	var f *os.File
	if logFile != "" {
		var err error
		f, err = os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		w = f
	}
	l := logger.Init("giveaway", true, false, w)
	return l, func() {
		l.Close()
		if f != nil {
			_ = f.Close()
		}
	}, nil
}

func serve(ctx context.Context, cfg config.Config) error {
	// 1. Start the shared transport
	broker := transport.NewBroker(cfg.SubscriptionBuffer)
	if err := broker.Start(ctx); err != nil {
		return err
	}
	defer broker.Stop()

	// 2. Initialize the Giveaway Service
	giveawayService := services.NewGiveawayService(broker, services.Config{
		NodeID:      cfg.NodeID,
		TopicPrefix: cfg.TopicPrefix,
		CommitPhase: cfg.CommitPhase,
		RevealPhase: cfg.RevealPhase,
		SessionTTL:  cfg.SessionTTL,
	}, metrics.NewDefaultGiveawayMetrics("giveaway"))
	defer giveawayService.Shutdown()

	// 3. Initialize the HTTP Handler
	httpHandler := handlers.NewHTTPHandler(giveawayService)

	// 4. Set up the Gin router
	r := gin.Default()

	// 5. Register public routes (before middleware)
	httpHandler.RegisterPublicRoutes(r)

	// 6. Group routes that require tenant identification and apply middleware
	tenantRoutes := r.Group("/")
	tenantRoutes.Use(httpHandler.TenantMiddleware())
	httpHandler.RegisterTenantRoutes(tenantRoutes)

	srv := &http.Server{Addr: cfg.Addr, Handler: r}
	g, gctx := errgroup.WithContext(ctx)

	// 7. Start the background janitor to clean up inactive giveaways
	g.Go(func() error {
		ticker := time.NewTicker(cfg.JanitorInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				removed := giveawayService.CleanUpInactiveSessions()
				logger.Infof("Performed cleanup of inactive giveaways (%d removed).", removed)
			}
		}
	})

	// 8. Run the server
	g.Go(func() error {
		logger.Infof("Server starting on %s as node %s", cfg.Addr, giveawayService.NodeID())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
