package router

import (
	"github.com/oksasatya/go-ddd-ecommerce/internal/application"
	"github.com/oksasatya/go-ddd-ecommerce/internal/container"
	handlers "github.com/oksasatya/go-ddd-ecommerce/internal/interface/http"
	"github.com/oksasatya/go-ddd-ecommerce/internal/router/modules"
	"github.com/oksasatya/go-ddd-ecommerce/pkg/helpers"
)

type AuthModuleDeps struct {
	Service *application.AuthService
	Handler *handlers.AuthHandler
}

type ProductModuleDeps struct {
	Service *application.ProductService
	Handler *handlers.ProductHandler
}

func buildAuthDeps() AuthModuleDeps {
	cfg := container.GetConfig()

	service := application.NewAuthService(
		container.GetUserRepo(),
		container.GetJWT(),
		container.GetNotifier(),
		container.GetLogger(),
		cfg.PasswordResetTTL,
	)

	handler := handlers.NewAuthHandler(
		service,
		helpers.NewCookie(cfg.CookieDomain, cfg.CookieSecure, cfg.CookieTTL),
		container.GetLogger(),
		cfg.ResetPasswordURL,
	)

	return AuthModuleDeps{Service: service, Handler: handler}
}

func buildProductDeps() ProductModuleDeps {
	service := application.NewProductService(
		container.GetProductRepo(),
		container.GetImageStore(),
		container.GetProductIndex(),
		container.GetLogger(),
	)
	return ProductModuleDeps{
		Service: service,
		Handler: handlers.NewProductHandler(service, container.GetLogger()),
	}
}

// InitModules initializes all application modules and registers them with the router registry
// This function should be called once during application startup, after the container is populated.
func InitModules(r *Registry) {
	authDeps := buildAuthDeps()
	productDeps := buildProductDeps()

	r.Use(APIMiddleware(PipelineFromConfig(container.GetConfig()), container.RateLimitStore())...)

	r.Add(modules.NewHealthModule())
	r.Add(modules.NewAuthModule(authDeps.Handler, authDeps.Service))
	r.Add(modules.NewProductModule(productDeps.Handler, authDeps.Service))
	if container.GetConfig().DebugMetricsEnabled {
		r.Add(modules.NewDebugModule())
	}
}
