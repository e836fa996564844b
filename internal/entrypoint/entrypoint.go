// Package entrypoint wires configuration into a running server.
package entrypoint

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mrlokans/ebookstore/internal/audit"
	"github.com/mrlokans/ebookstore/internal/auth"
	"github.com/mrlokans/ebookstore/internal/blob"
	"github.com/mrlokans/ebookstore/internal/config"
	"github.com/mrlokans/ebookstore/internal/database"
	auditrepo "github.com/mrlokans/ebookstore/internal/database/audit"
	"github.com/mrlokans/ebookstore/internal/database/catalog"
	"github.com/mrlokans/ebookstore/internal/database/ledger"
	"github.com/mrlokans/ebookstore/internal/gateway"
	http_controllers "github.com/mrlokans/ebookstore/internal/http"
	"github.com/mrlokans/ebookstore/internal/lock"
	"github.com/mrlokans/ebookstore/internal/logging"
	"github.com/mrlokans/ebookstore/internal/purchase"
	"github.com/mrlokans/ebookstore/internal/reconcile"
	"github.com/mrlokans/ebookstore/internal/scheduler"
	"github.com/mrlokans/ebookstore/internal/tasks"
)

// ShutdownFunc is called during graceful shutdown to clean up resources.
type ShutdownFunc func(ctx context.Context)

// dispatcher is what the purchase flow and the sweep hand work to: the
// backlite client, or Inline when the queue is disabled.
type dispatcher interface {
	purchase.Settler
	scheduler.Dispatcher
}

func Serve(router *gin.Engine, cfg *config.Config, logger *zap.Logger, onShutdown ShutdownFunc) {
	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second
	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)

	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	// Graceful shutdown on SIGINT or SIGTERM
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server", zap.Duration("timeout", timeout))

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Drain requests before stopping background work.
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	if onShutdown != nil {
		onShutdown(ctx)
	}

	logger.Info("server exiting")
}

func Run(cfg *config.Config, version string) {
	logger := logging.Must(cfg.Log)
	defer func() { _ = logger.Sync() }()

	logger.Info("starting ebookstore", zap.String("version", version))
	if !cfg.Log.Dev {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(cfg, version, logger); err != nil {
		logger.Fatal("startup failed", zap.Error(err))
	}
}

func run(cfg *config.Config, version string, logger *zap.Logger) error {
	if cfg.Auth.JWTSecret == "" {
		return errors.New("AUTH_JWT_SECRET is required")
	}

	db, err := database.NewDatabase(cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("closing database", zap.Error(err))
		}
	}()

	catalogRepo := catalog.NewRepository(db.DB)
	ledgerRepo := ledger.NewRepository(db.DB)
	auditor := audit.NewService(auditrepo.NewRepository(db.DB), logger)
	defer auditor.Wait()

	healthChecks := map[string]http_controllers.HealthCheck{}

	blobs, err := NewBlobStore(cfg.Blob, logger)
	if err != nil {
		return err
	}
	if pinger, ok := blobs.(interface{ Ping(context.Context) error }); ok {
		healthChecks["blobs"] = pinger.Ping
	}

	locker, closeLocker, err := newLocker(cfg.Lock, cfg.Payment, logger)
	if err != nil {
		return err
	}
	defer closeLocker()
	if pinger, ok := locker.(interface{ Ping(context.Context) error }); ok {
		healthChecks["lock"] = pinger.Ping
	}

	gw, err := gateway.New(cfg.Payment, logger.Named("gateway"))
	if err != nil {
		return fmt.Errorf("initialize payment gateway: %w", err)
	}

	settlements := reconcile.NewService(ledgerRepo, auditor, logger, cfg.Reconcile.MaxAttempts)

	// Task queue, or inline execution when it is disabled
	var work dispatcher
	var taskClient *tasks.Client
	var taskCtxCancel context.CancelFunc
	if cfg.Tasks.Enabled {
		taskClient, err = tasks.NewClient(cfg.Database.Path, tasks.ConfigFrom(cfg.Tasks), logger)
		if err != nil {
			return fmt.Errorf("initialize task queue: %w", err)
		}
		defer func() {
			if err := taskClient.Close(); err != nil {
				logger.Error("closing task client", zap.Error(err))
			}
		}()

		taskClient.Register(
			tasks.NewSettleReconciliationQueue(settlements, logger),
			tasks.NewPruneStaleIntentsQueue(ledgerRepo, logger),
			tasks.NewCleanupAuditEventsQueue(auditor, logger),
		)

		var taskCtx context.Context
		taskCtx, taskCtxCancel = context.WithCancel(context.Background())
		go taskClient.Start(taskCtx)
		work = taskClient
	} else {
		logger.Info("task queue disabled, background work runs inline")
		work = tasks.NewInline(settlements, ledgerRepo, auditor, logger)
	}

	orchestrator := purchase.NewOrchestrator(purchase.Dependencies{
		Catalog: catalogRepo,
		Ledger:  ledgerRepo,
		Gateway: gw,
		Locker:  locker,
		Settler: work,
		Auditor: auditor,
		Logger:  logger.Named("purchase"),
	}, cfg.Payment, cfg.HTTP.BaseURL)

	sweep := scheduler.NewReconcileScheduler(settlements, work, cfg.Reconcile, cfg.Audit.RetentionDays, logger)
	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	defer sweepCancel()
	if err := sweep.Start(sweepCtx); err != nil {
		return fmt.Errorf("start reconcile sweep: %w", err)
	}

	tokens := auth.NewTokenService(cfg.Auth)
	limiter := auth.NewLoginLimiter(auth.DefaultLimitConfig())
	defer limiter.Stop()

	router := http_controllers.NewRouter(http_controllers.RouterConfig{
		Catalog:      catalogRepo,
		Blobs:        blobs,
		Database:     db,
		Auditor:      auditor,
		Accounts:     auth.NewService(catalogRepo, tokens, cfg.Auth),
		Tokens:       tokens,
		LoginLimiter: limiter,
		Purchases:    orchestrator,
		Gate:         purchase.NewGate(ledgerRepo),
		Links:        orchestrator.Links(),
		HealthChecks: healthChecks,
		Version:      version,
		Logger:       logger.Named("http"),
	})

	onShutdown := func(ctx context.Context) {
		sweep.Stop()
		if taskClient != nil && taskCtxCancel != nil {
			if !taskClient.Stop(ctx) {
				logger.Warn("task workers did not finish before the shutdown deadline")
			}
			taskCtxCancel()
		}
	}

	Serve(router, cfg, logger, onShutdown)
	return nil
}

// NewBlobStore builds the configured blob backend.
func NewBlobStore(cfg config.Blob, logger *zap.Logger) (blob.Store, error) {
	switch cfg.Backend {
	case config.BlobBackendLocal, "":
		dir := cfg.Dir
		if dir == "" {
			dir = config.DefaultBlobDir
		}
		store, err := blob.NewFileStore(dir)
		if err != nil {
			return nil, err
		}
		logger.Info("blob store initialized", zap.String("backend", "local"), zap.String("dir", dir))
		return store, nil
	case config.BlobBackendMinio:
		store, err := blob.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			return nil, fmt.Errorf("initialize minio blob store: %w", err)
		}
		logger.Info("blob store initialized",
			zap.String("backend", "minio"),
			zap.String("endpoint", cfg.MinioEndpoint),
			zap.String("bucket", cfg.MinioBucket))
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported blob backend %q", cfg.Backend)
	}
}

// newLocker returns the purchase locker and a func releasing its resources.
// An empty Redis address keeps locking in process.
func newLocker(cfg config.Lock, payment config.Payment, logger *zap.Logger) (lock.Locker, func(), error) {
	if cfg.RedisAddr == "" {
		logger.Info("purchase lock is in-process, run a single instance or set LOCK_REDIS_ADDR")
		return lock.NewLocalLocker(), func() {}, nil
	}

	ttl := cfg.TTL
	// A hold must outlive the whole gateway sequence.
	if ttl <= payment.GatewayTimeout {
		ttl = payment.GatewayTimeout + 30*time.Second
	}

	locker, err := lock.NewRedisLocker(cfg.RedisAddr, cfg.RedisPassword, ttl, logger.Named("lock"))
	if err != nil {
		return nil, nil, fmt.Errorf("initialize redis lock: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := locker.Ping(ctx); err != nil {
		_ = locker.Close()
		return nil, nil, fmt.Errorf("connect to redis at %s: %w", cfg.RedisAddr, err)
	}
	logger.Info("purchase lock uses redis", zap.String("addr", cfg.RedisAddr), zap.Duration("ttl", ttl))

	return locker, func() {
		if err := locker.Close(); err != nil {
			logger.Error("closing redis lock", zap.Error(err))
		}
	}, nil
}
