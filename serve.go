package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"reportforms/internal/api"
	"reportforms/internal/compose"
	"reportforms/internal/fieldstore"
	"reportforms/internal/logging"
	"reportforms/internal/pdf"
	"reportforms/internal/redis"
	"reportforms/internal/service/artifact"
	"reportforms/internal/service/report"
	"reportforms/internal/session"
	"reportforms/internal/storage"
	"reportforms/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP service",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	basic := cfg.BasicConfig

	dbType := basic.Database
	logger.Info("opening database", zap.String("driver", dbType))
	db, err := storage.Open(dbType, cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	if err := storage.Migrate(db, dbType); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	var rdb *redis.Client
	if strings.EqualFold(basic.FieldStore, "redis") || cfg.Redis.Host != "" {
		rdb, err = redis.NewRedisClient(cfg)
		if err != nil {
			return fmt.Errorf("create redis client: %w", err)
		}
		defer rdb.Close()
	}

	backend := newFieldBackend(basic.FieldStore, db, dbType, rdb)
	cipher, err := fieldstore.NewCipherFromEnv()
	if err != nil {
		return err
	}
	if cipher == nil {
		logger.Warn("field encryption disabled", zap.String("env", fieldstore.FieldKeyEnv))
	}

	var bus *session.Invalidator
	if rdb != nil {
		bus = session.NewInvalidator(rdb, logger)
	}
	states := session.NewStateManager(bus, logger)

	adobe := pdf.NewAdobeClient(cfg.PDFServices, &http.Client{Timeout: 2 * time.Minute}, logger)
	dispatcher := worker.NewDispatcher(worker.Options{
		MinWorkers:  basic.MinWorkers,
		MaxWorkers:  basic.MaxWorkers,
		QueueSize:   basic.QueueSize,
		IdleTimeout: time.Duration(basic.WorkerIdleTimeout) * time.Minute,
	}, adobe, logger)
	defer dispatcher.Close()

	artifactDir := basic.ArtifactDir
	if artifactDir == "" {
		artifactDir = "./data/artifacts"
	}
	artifacts := artifact.NewService(db, artifactDir, time.Duration(basic.ArtifactTTL)*time.Minute, logger)
	sessions := session.NewService(db, time.Duration(basic.SessionTTL)*time.Hour)
	reports := report.NewService(report.Deps{
		Config:    cfg,
		Backend:   backend,
		Cipher:    cipher,
		Composer:  compose.New(compose.NewFileTemplates(cfg), cfg, logger),
		Artifacts: artifacts,
		States:    states,
		Converter: dispatcher,
		Logger:    logger,
	})

	if !verbose {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(logging.AccessLog(logger))
	api.NewHandler(reports, sessions, adobe, basic.MaxBodyBytes, logger).RegisterRoutes(router)

	addr := basic.ServerAddress
	if addr == "" {
		addr = ":8090"
	}
	srv := &http.Server{Addr: addr, Handler: router, ReadHeaderTimeout: 10 * time.Second}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server stopped: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		interval := time.Duration(basic.ArtifactCleanInterval) * time.Minute
		return reports.RunCleaner(gctx, sessions, interval)
	})
	g.Go(func() error {
		if err := states.Listen(gctx); err != nil {
			logger.Warn("state invalidation listener stopped", zap.Error(err))
		}
		return nil
	})
	return g.Wait()
}

func newFieldBackend(kind string, db *sql.DB, driver string, rdb *redis.Client) fieldstore.Backend {
	switch strings.ToLower(kind) {
	case "redis":
		return fieldstore.NewRedisBackend(rdb)
	case "memory":
		return fieldstore.NewMemoryBackend()
	default:
		return fieldstore.NewSQLBackend(db, driver)
	}
}
