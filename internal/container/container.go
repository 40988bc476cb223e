package container

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-ddd-ecommerce/config"
	"github.com/oksasatya/go-ddd-ecommerce/internal/application"
	repo "github.com/oksasatya/go-ddd-ecommerce/internal/domain/repository"
	"github.com/oksasatya/go-ddd-ecommerce/pkg/helpers"
)

// app-level container to share constructed components across packages
// Router can auto-wire modules from these singletons.
// Optional components are stored as interfaces and stay nil when not configured.

var (
	cfg         *config.Config
	logger      *logrus.Logger
	pgPool      *pgxpool.Pool
	redisClient *redis.Client

	jwtManager *helpers.JWTManager

	userRepo    repo.UserRepository
	productRepo repo.ProductRepository

	notifier     application.PasswordResetNotifier
	imageStore   application.ImageStore
	productIndex application.ProductIndexer
)

func SetConfig(c *config.Config) { cfg = c }
func GetConfig() *config.Config {
	if cfg == nil {
		cfg = config.Load()
	}
	return cfg
}
func SetLogger(l *logrus.Logger) { logger = l }
func GetLogger() *logrus.Logger {
	if logger == nil {
		logger = helpers.NewDiscardLogger()
	}
	return logger
}
func SetPGPool(p *pgxpool.Pool) { pgPool = p }
func GetPGPool() *pgxpool.Pool  { return pgPool }
func SetRedis(r *redis.Client)  { redisClient = r }
func GetRedis() *redis.Client   { return redisClient }

// RateLimitStore returns the redis client as a script runner, or nil when redis is not configured.
func RateLimitStore() redis.Scripter {
	if redisClient == nil {
		return nil
	}
	return redisClient
}

func SetJWT(m *helpers.JWTManager) { jwtManager = m }
func GetJWT() *helpers.JWTManager {
	if jwtManager != nil {
		return jwtManager
	}
	return helpers.DefaultJWT()
}

func SetStores(u repo.UserRepository, p repo.ProductRepository) {
	userRepo, productRepo = u, p
}
func GetUserRepo() repo.UserRepository       { return userRepo }
func GetProductRepo() repo.ProductRepository { return productRepo }

func SetNotifier(n application.PasswordResetNotifier) { notifier = n }
func GetNotifier() application.PasswordResetNotifier  { return notifier }
func SetImageStore(s application.ImageStore)          { imageStore = s }
func GetImageStore() application.ImageStore           { return imageStore }
func SetProductIndex(x application.ProductIndexer)    { productIndex = x }
func GetProductIndex() application.ProductIndexer     { return productIndex }

// Reset clears every singleton. Used by tests.
func Reset() {
	cfg, logger, pgPool, redisClient, jwtManager = nil, nil, nil, nil, nil
	userRepo, productRepo = nil, nil
	notifier, imageStore, productIndex = nil, nil, nil
}
