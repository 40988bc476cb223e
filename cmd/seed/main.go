package main

import (
	"context"
	"errors"
	"log"
	"net/url"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-ddd-ecommerce/config"
	"github.com/oksasatya/go-ddd-ecommerce/internal/application"
	"github.com/oksasatya/go-ddd-ecommerce/internal/domain/entity"
	repo "github.com/oksasatya/go-ddd-ecommerce/internal/domain/repository"
	pginfra "github.com/oksasatya/go-ddd-ecommerce/internal/infrastructure/postgres"
	"github.com/oksasatya/go-ddd-ecommerce/pkg/helpers"
)

const (
	adminEmail    = "admin@example.com"
	adminPassword = "password123"
)

func ptr[T any](v T) *T { return &v }

var sampleProducts = []application.ProductInput{
	{Name: ptr("Wireless Headphones"), Description: ptr("Over-ear headphones with active noise cancelling"), Price: ptr(199.99), Category: ptr("Audio"), Stock: ptr(25)},
	{Name: ptr("Mechanical Keyboard"), Description: ptr("Tenkeyless keyboard with hot-swappable switches"), Price: ptr(129.0), Category: ptr("Computers"), Stock: ptr(40)},
	{Name: ptr("Smartphone X"), Description: ptr("Six inch phone with a triple camera system"), Price: ptr(799.0), Category: ptr("Phones"), Stock: ptr(10)},
	{Name: ptr("Coffee Grinder"), Description: ptr("Burr grinder with forty grind settings"), Price: ptr(89.5), Category: ptr("Kitchen"), Stock: ptr(0)},
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := helpers.NewLogger(cfg.AppName+"-seed", cfg.Env)
	ctx := context.Background()

	pool, err := pginfra.NewPool(ctx, cfg.PostgresDSN(), cfg.DBMaxConns, cfg.DBMinConns, cfg.DBMaxConnLife)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	users := pginfra.NewUserRepository(pool)
	products := pginfra.NewProductRepository(pool)

	if err := seedAdmin(ctx, users, logger); err != nil {
		log.Fatalf("failed to seed admin: %v", err)
	}
	if err := seedProducts(ctx, application.NewProductService(products, nil, nil, logger), logger); err != nil {
		log.Fatalf("failed to seed products: %v", err)
	}
}

func seedAdmin(ctx context.Context, users repo.UserRepository, logger *logrus.Logger) error {
	if u, err := users.GetByEmail(ctx, adminEmail); err == nil {
		logger.WithField("user_id", u.ID).Info("admin already seeded")
		return nil
	} else if !errors.Is(err, repo.ErrNotFound) {
		return err
	}

	hash, err := helpers.HashPassword(adminPassword)
	if err != nil {
		return err
	}
	u := &entity.User{Name: "Store Admin", Email: adminEmail, Password: hash, Role: entity.RoleAdmin}
	if err := users.Create(ctx, u); err != nil {
		return err
	}
	logger.WithFields(logrus.Fields{"user_id": u.ID, "email": adminEmail, "password": adminPassword}).Info("seeded admin user")
	return nil
}

func seedProducts(ctx context.Context, svc *application.ProductService, logger *logrus.Logger) error {
	page, err := svc.List(ctx, url.Values{"limit": {"1"}})
	if err != nil {
		return err
	}
	if page.Total > 0 {
		logger.WithField("products", page.Total).Info("catalog not empty; skipping product seed")
		return nil
	}
	for _, in := range sampleProducts {
		p, err := svc.Create(ctx, in, nil)
		if err != nil {
			return err
		}
		logger.WithFields(logrus.Fields{"product_id": p.ID, "name": p.Name}).Info("seeded product")
	}
	return nil
}
