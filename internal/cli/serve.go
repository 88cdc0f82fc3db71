package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/chxlky/boardsync/api"
	"github.com/chxlky/boardsync/database"
	"github.com/chxlky/boardsync/integrations"
	"github.com/chxlky/boardsync/internal/board"
	"github.com/chxlky/boardsync/internal/calsync"
	"github.com/chxlky/boardsync/internal/config"
	"github.com/chxlky/boardsync/internal/reorder"
	"github.com/chxlky/boardsync/internal/scheduler"
	"github.com/chxlky/boardsync/internal/store"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func NewServeCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "serve",
		Short:        "Run the HTTP API",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts)
		},
	}
}

// App is the wired HTTP application.
type App struct {
	Router *gin.Engine
	Sync   *calsync.Engine
}

func NewApp(cfg config.Config, db *gorm.DB, logger *zap.Logger) (*App, error) {
	switch cfg.Server.Mode {
	case gin.DebugMode, gin.ReleaseMode, gin.TestMode:
		gin.SetMode(cfg.Server.Mode)
	default:
		return nil, fmt.Errorf("unsupported server.mode %q", cfg.Server.Mode)
	}

	adapters, err := integrations.NewRegistryFromConfig(cfg.Calendar, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise calendar adapters: %w", err)
	}

	s := store.New(db)
	syncer := calsync.NewEngine(s, adapters, calsync.Options{
		MaxRetries: &cfg.Sync.MaxRetries,
		BaseDelay:  cfg.Sync.BaseDelay,
	})
	handler := &api.Handler{
		Store:      s,
		Board:      board.NewService(s, syncer),
		Reorder:    reorder.NewEngine(s),
		Sync:       syncer,
		UserHeader: cfg.Auth.UserHeader,
	}

	router := gin.New()
	router.Use(ginzap.Ginzap(logger, time.RFC3339, true))
	router.Use(ginzap.RecoveryWithZap(logger, true))
	handler.Register(router.Group("/api"))

	return &App{Router: router, Sync: syncer}, nil
}

func runServe(opts *RootOptions) error {
	cfg := opts.Config

	db := database.Init(cfg.Database)
	sqlDB, _ := db.DB()

	app, err := NewApp(cfg, db, opts.Logger)
	if err != nil {
		return err
	}
	zap.L().Info("Calendar adapters ready", zap.String("driver", cfg.Calendar.Driver))

	var sched *scheduler.Scheduler
	if cfg.Sync.RefreshSchedule != "" {
		sched = scheduler.New(time.UTC)
		if _, err := sched.ScheduleRefresh(cfg.Sync.RefreshSchedule, app.Sync, cfg.Sync.RefreshBatch); err != nil {
			return err
		}
		sched.Start()
		zap.L().Info("Calendar refresh scheduled", zap.String("schedule", cfg.Sync.RefreshSchedule))
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: app.Router,
	}

	zap.L().Info("Starting server", zap.String("port", cfg.Server.Port))
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zap.L().Fatal("Server error", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	done := make(chan struct{})
	var once sync.Once

	cleanup := func(reason string) {
		zap.L().Info("Shutdown initiated", zap.String("reason", reason))

		if sched != nil {
			sched.Stop()
			zap.L().Info("Scheduler stopped.")
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		zap.L().Info("Shutting down HTTP server...")
		if err := srv.Shutdown(ctx); err != nil {
			zap.L().Error("Error shutting down server", zap.Error(err))
		} else {
			zap.L().Info("HTTP server shut down gracefully.")
		}

		if sqlDB != nil {
			if err := sqlDB.Close(); err != nil {
				zap.L().Error("Error closing database", zap.Error(err))
			} else {
				zap.L().Info("Database connection closed.")
			}
		}
		close(done)
	}

	go func() {
		sig := <-sigCh
		once.Do(func() {
			cleanup(sig.String())
		})

		// if a second signal is caught, exit immediately
		go func() {
			<-sigCh
			zap.L().Info("Second interrupt signal received. Exiting immediately.")
			os.Exit(1)
		}()
	}()

	<-done
	zap.L().Info("Exiting...")
	return nil
}
