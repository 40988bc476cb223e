package modules

import (
	"github.com/gin-gonic/gin"

	"github.com/oksasatya/go-ddd-ecommerce/internal/container"
	"github.com/oksasatya/go-ddd-ecommerce/internal/domain/entity"
	handlers "github.com/oksasatya/go-ddd-ecommerce/internal/interface/http"
	"github.com/oksasatya/go-ddd-ecommerce/internal/interface/middleware"
)

// ProductModule wires the catalog handlers.
// Public: list, search, get
// Authenticated: add review
// Admin: create, update, delete
type ProductModule struct {
	Handler *handlers.ProductHandler
	Auth    middleware.Authenticator
}

func NewProductModule(h *handlers.ProductHandler, auth middleware.Authenticator) *ProductModule {
	return &ProductModule{Handler: h, Auth: auth}
}

func (m *ProductModule) Register(rg *gin.RouterGroup) {
	protect := middleware.Protect(m.Auth, container.GetLogger())
	admin := middleware.RestrictTo(entity.RoleAdmin)

	g := rg.Group("/products")
	g.GET("", m.Handler.List)
	g.GET("/search", m.Handler.Search)
	g.GET("/:id", m.Handler.Get)

	g.POST("/:id/reviews", protect, m.Handler.AddReview)

	g.POST("", protect, admin, m.Handler.Create)
	g.PUT("/:id", protect, admin, m.Handler.Update)
	g.DELETE("/:id", protect, admin, m.Handler.Delete)
}
