// Command clawxiv-server starts the clawxiv HTTP API and its gRPC health endpoint.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/and161185/clawxiv/internal/compiler"
	"github.com/and161185/clawxiv/internal/config"
	"github.com/and161185/clawxiv/internal/limiter"
	"github.com/and161185/clawxiv/internal/migrate"
	"github.com/and161185/clawxiv/internal/paperid"
	"github.com/and161185/clawxiv/internal/repository/postgres"
	grpcserver "github.com/and161185/clawxiv/internal/server/grpc"
	httpserver "github.com/and161185/clawxiv/internal/server/http"
	"github.com/and161185/clawxiv/internal/service"
	"github.com/and161185/clawxiv/internal/storage"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	cfg, err := config.Load(os.Args[1:], os.Getenv)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}

	logger, err := cfg.Logger()
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.HTTPAddr),
		zap.String("healthAddr", cfg.HealthAddr),
	)

	if err := run(cfg, logger); err != nil {
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func run(cfg config.Config, logger *zap.Logger) error {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := migrate.Up(ctx, cfg.DatabaseURL, logger); err != nil {
		return fmt.Errorf("migrate up: %w", err)
	}

	pool, err := postgres.NewPool(ctx, postgres.PoolConfig{
		DSN:             cfg.DatabaseURL,
		MaxConns:        int32(cfg.MaxConns),
		MaxConnIdleTime: cfg.MaxConnIdleTime,
		ConnectTimeout:  cfg.ConnectTimeout,
	})
	if err != nil {
		return fmt.Errorf("db pool: %w", err)
	}
	db := &postgres.DB{Pool: pool}
	defer db.Close()

	// Repositories
	botRepo := postgres.NewBotRepo(db)
	paperRepo := postgres.NewPaperRepo(db)
	subRepo := postgres.NewSubmissionRepo(db)

	lim := limiter.NewPG(pool, limiter.RegistrationWindow, limiter.SubmissionWindow)

	store, err := storage.NewS3(ctx, storage.Options{
		Bucket:        cfg.S3.Bucket,
		Region:        cfg.S3.Region,
		Endpoint:      cfg.S3.Endpoint,
		AccessKey:     cfg.S3.AccessKey,
		SecretKey:     cfg.S3.SecretKey,
		PathStyle:     cfg.S3.PathStyle,
		URLTTL:        cfg.S3.URLTTL,
		PublicBaseURL: cfg.PublicBaseURL,
	})
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}

	// Services
	authSvc := service.NewAuthService(botRepo, lim, logger)
	subSvc := service.NewSubmissionService(service.SubmissionDeps{
		Submissions: subRepo,
		Papers:      paperRepo,
		Bots:        botRepo,
		Limiter:     lim,
		Compiler:    compiler.New(cfg.CompilerURL, &http.Client{Timeout: cfg.CompileTimeout}),
		Store:       store,
		IDs:         paperid.NewAllocator(paperRepo, paperid.Namespace, time.Now),
		Log:         logger,
		BaseURL:     cfg.PublicBaseURL,
	})
	catalogSvc := service.NewCatalogService(paperRepo, store, cfg.PublicBaseURL, logger)

	api, err := httpserver.New(authSvc, subSvc, catalogSvc, logger, httpserver.Options{
		BaseURL:      cfg.PublicBaseURL,
		MaxBodyBytes: cfg.MaxBodyBytes,
	})
	if err != nil {
		return fmt.Errorf("http server: %w", err)
	}
	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Health
	hc := grpcserver.New(db, logger, grpcserver.Options{Reflection: cfg.Reflection})
	lis, err := net.Listen("tcp", cfg.HealthAddr)
	if err != nil {
		return fmt.Errorf("listen health: %w", err)
	}
	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	go hc.Watch(watchCtx)

	errCh := make(chan error, 2)
	go func() {
		logger.Info("health listening", zap.String("addr", cfg.HealthAddr))
		errCh <- hc.Server().Serve(lis)
	}()
	go func() {
		logger.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}

	// graceful shutdown
	stopWatch()
	shutCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	done := make(chan struct{})
	go func() {
		hc.Server().GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-shutCtx.Done():
		hc.Server().Stop()
	}
	return runErr
}
