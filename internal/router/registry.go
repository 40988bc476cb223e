package router

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/oksasatya/go-ddd-ecommerce/pkg/response"
)

// Registry collects the /api middleware and feature modules before they are mounted.
type Registry struct {
	Engine      *gin.Engine
	API         *gin.RouterGroup
	middlewares []gin.HandlerFunc
	modules     []Module
}

func NewRegistry(engine *gin.Engine) *Registry {
	api := engine.Group("/api")
	return &Registry{Engine: engine, API: api}
}

func (r *Registry) Use(mw ...gin.HandlerFunc) {
	r.middlewares = append(r.middlewares, mw...)
}

func (r *Registry) Add(mod Module) {
	r.modules = append(r.modules, mod)
}

// RegisterAll applies the middleware, mounts every module and installs the
// envelope-shaped 404 handler. Call once.
func (r *Registry) RegisterAll() {
	if len(r.middlewares) > 0 {
		r.API.Use(r.middlewares...)
	}
	for _, m := range r.modules {
		m.Register(r.API)
	}
	r.Engine.NoRoute(func(c *gin.Context) {
		response.Error[any](c, http.StatusNotFound, fmt.Sprintf("Can't find %s on this server!", c.Request.URL.Path), nil)
	})
}
