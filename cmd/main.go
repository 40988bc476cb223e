package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/golang-migrate/migrate/v4"
	pgmigrate "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/oksasatya/go-ddd-ecommerce/config"
	"github.com/oksasatya/go-ddd-ecommerce/internal/application"
	"github.com/oksasatya/go-ddd-ecommerce/internal/container"
	"github.com/oksasatya/go-ddd-ecommerce/internal/infrastructure/memory"
	pginfra "github.com/oksasatya/go-ddd-ecommerce/internal/infrastructure/postgres"
	"github.com/oksasatya/go-ddd-ecommerce/internal/infrastructure/search"
	"github.com/oksasatya/go-ddd-ecommerce/internal/infrastructure/storage"
	"github.com/oksasatya/go-ddd-ecommerce/internal/router"
	"github.com/oksasatya/go-ddd-ecommerce/pkg/helpers"
	"github.com/oksasatya/go-ddd-ecommerce/pkg/mailer"
	mailtpl "github.com/oksasatya/go-ddd-ecommerce/pkg/mailer/templates"
	"github.com/oksasatya/go-ddd-ecommerce/pkg/validation"
)

func main() {
	_ = godotenv.Load() // load .env if present

	cfg := config.Load()
	logger := helpers.NewLogger(cfg.AppName, cfg.Env)
	gin.SetMode(cfg.GinMode)
	validation.Init()

	ctx := context.Background()
	var closers []func()
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}()

	// Stores
	switch cfg.StoreDriver {
	case "memory":
		users := memory.NewUserRepository()
		container.SetStores(users, memory.NewProductRepository(users))
		logger.Warn("using in-memory store; data is lost on restart")
	default:
		pool, err := pginfra.NewPool(ctx, cfg.PostgresDSN(), cfg.DBMaxConns, cfg.DBMinConns, cfg.DBMaxConnLife)
		if err != nil {
			log.Fatalf("failed to connect to postgres: %v", err)
		}
		closers = append(closers, pool.Close)

		// Run migrations using database/sql with pgx stdlib
		if err := runMigrations(cfg.PostgresDSN(), cfg.MigrationsDir, logger); err != nil {
			log.Fatalf("migration failed: %v", err)
		}
		container.SetPGPool(pool)
		container.SetStores(pginfra.NewUserRepository(pool), pginfra.NewProductRepository(pool))
	}

	// Redis (rate limiting; the limiter fails open when redis is unreachable)
	if cfg.RedisAddr != "" {
		rdb := helpers.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := helpers.PingRedis(ctx, rdb); err != nil {
			helpers.LogError(logger, "redis unreachable; rate limiting fails open", err, logrus.Fields{"addr": cfg.RedisAddr})
		}
		closers = append(closers, func() { _ = rdb.Close() })
		container.SetRedis(rdb)
	}

	// Product images
	if images, closeFn, err := newImageStore(ctx, cfg); err != nil {
		log.Fatalf("failed to init object storage: %v", err)
	} else if images != nil {
		closers = append(closers, closeFn)
		container.SetImageStore(images)
	} else {
		logger.Warn("STORAGE_DRIVER not set; image uploads are disabled")
	}

	// Elasticsearch product index
	if cfg.ElasticsearchEnable {
		es, err := helpers.NewESClient(cfg.ESAddrs(), cfg.ElasticsearchUser, cfg.ElasticsearchPass)
		if err != nil {
			log.Fatalf("failed to init elasticsearch client: %v", err)
		}
		idx := search.NewProductIndex(es, cfg.ESProductsIndex, logger)
		if err := idx.EnsureIndex(ctx); err != nil {
			helpers.LogError(logger, "elasticsearch index not ready; search falls back to the store", err, logrus.Fields{"index": cfg.ESProductsIndex})
		}
		container.SetProductIndex(idx)
	}

	// Password reset delivery
	notifier, closeFn, err := newNotifier(cfg, logger)
	if err != nil {
		log.Fatalf("failed to init mail delivery: %v", err)
	}
	closers = append(closers, closeFn)
	container.SetNotifier(notifier)

	// JWT
	jwtManager := helpers.NewJWTManager(cfg.JWTAccessSecret, cfg.JWTRefreshSecret, cfg.AccessTTL, cfg.RefreshTTL)

	// Provide infra singletons to container for registry auto-wiring
	container.SetConfig(cfg)
	container.SetLogger(logger)
	container.SetJWT(jwtManager)

	// Gin engine and global middleware
	r := router.NewEngine(router.PipelineFromConfig(cfg))

	// Registry: auto-register modules using container
	reg := router.NewRegistry(r)
	router.InitModules(reg)
	reg.RegisterAll()

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		logger.Infof("server starting on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("listen: %s\n", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctxShutdown); err != nil {
		logger.Errorf("server forced to shutdown: %v", err)
		return
	}
	logger.Info("server exited properly")
}

func runMigrations(dsn string, migrationsDir string, logger *logrus.Logger) error {
	// Open sql DB via pgx stdlib
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	driver, err := pgmigrate.WithInstance(db, &pgmigrate.Config{})
	if err != nil {
		return err
	}
	m, err := migrate.NewWithDatabaseInstance(fmt.Sprintf("file://%s", migrationsDir), "postgres", driver)
	if err != nil {
		return err
	}
	logger.Info("running migrations...")
	err = m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		logger.Info("no migrations to run")
		return nil
	}
	return err
}

// newImageStore picks the object storage backend from STORAGE_DRIVER.
// It returns a nil store when uploads are disabled.
func newImageStore(ctx context.Context, cfg *config.Config) (application.ImageStore, func(), error) {
	var (
		backend storage.ObjectStorage
		closeFn = func() {}
	)
	switch cfg.StorageDriver {
	case "":
		return nil, closeFn, nil
	case "gcs":
		gcs, err := storage.NewGCSClient(ctx, cfg.GCSBucket, cfg.GCSCredentialsJSONPath)
		if err != nil {
			return nil, closeFn, err
		}
		backend = gcs
		closeFn = func() { _ = gcs.Close() }
	case "minio":
		mc, err := storage.NewMinioClient(storage.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
			PublicURL: cfg.MinioPublicURL,
		})
		if err != nil {
			return nil, closeFn, err
		}
		backend = mc
	default:
		return nil, closeFn, fmt.Errorf("unknown STORAGE_DRIVER %q", cfg.StorageDriver)
	}

	images := storage.NewImageStore(backend)
	if err := images.EnsureBucket(ctx); err != nil {
		closeFn()
		return nil, func() {}, err
	}
	return images, closeFn, nil
}

// newNotifier picks the password reset delivery from MAIL_SEND_ENABLED and MAIL_DELIVERY.
func newNotifier(cfg *config.Config, logger *logrus.Logger) (application.PasswordResetNotifier, func(), error) {
	noop := func() {}
	if !cfg.MailSendEnabled {
		return &mailer.LogNotifier{Logger: logger}, noop, nil
	}
	brand := mailtpl.BrandFromConfig(cfg)

	switch cfg.MailDelivery {
	case "direct":
		mg := mailer.NewMailgun(cfg.MailgunDomain, cfg.MailgunAPIKey, cfg.MailgunSender)
		mg.Brand = brand
		mg.TTL = cfg.PasswordResetTTL
		return mg, noop, nil
	case "queue", "":
		pub, err := helpers.NewRabbitPublisher(cfg.RabbitMQURL, cfg.RabbitMQEmailQueue)
		if err != nil {
			return nil, noop, err
		}
		return mailer.NewQueueNotifier(pub, brand, cfg.PasswordResetTTL), pub.Close, nil
	default:
		return nil, noop, fmt.Errorf("unknown MAIL_DELIVERY %q", cfg.MailDelivery)
	}
}
