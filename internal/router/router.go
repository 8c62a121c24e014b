package router

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/jwalitptl/appointment-web/internal/handler"
	"github.com/jwalitptl/appointment-web/internal/handler/health"
	"github.com/jwalitptl/appointment-web/internal/handler/prometheus"
	"github.com/jwalitptl/appointment-web/internal/middleware"
	"github.com/jwalitptl/appointment-web/internal/model"
	"github.com/jwalitptl/appointment-web/internal/session"
	"github.com/jwalitptl/appointment-web/internal/view"
)

const msgPageNotFound = "Page not found"

type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

type RouterConfig struct {
	// Mode is the gin mode; empty keeps the current one.
	Mode         string
	ServiceName  string
	Sessions     session.Store
	Session      middleware.SessionConfig
	RateLimit    middleware.RateLimiterConfig
	MaxBodyBytes int64
	MetricsPath  string
}

type Router struct {
	engine  *gin.Engine
	config  RouterConfig
	health  *health.Handler
	metrics *prometheus.Handler
	pages   []Handler
}

func NewRouter(config RouterConfig, healthH *health.Handler, metricsH *prometheus.Handler, pages ...Handler) (*Router, error) {
	if config.Mode != "" {
		gin.SetMode(config.Mode)
	}
	if config.MetricsPath == "" {
		config.MetricsPath = "/metrics"
	}

	engine := gin.New()

	tmpl, err := view.Templates()
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}
	engine.SetHTMLTemplate(tmpl)

	r := &Router{
		engine:  engine,
		config:  config,
		health:  healthH,
		metrics: metricsH,
		pages:   pages,
	}

	// Add core middlewares
	engine.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.Logger(),
		middleware.ErrorHandler(),
		otelgin.Middleware(config.ServiceName),
		metricsH.Middleware(),
		middleware.SecurityHeaders(middleware.DefaultSecurityConfig()),
	)

	rateLimiter := middleware.NewRateLimiter(config.RateLimit)
	engine.Use(rateLimiter.RateLimit())

	if config.MaxBodyBytes > 0 {
		engine.Use(middleware.BodyLimit(config.MaxBodyBytes))
	}

	return r, nil
}

func (r *Router) Setup() {
	// Health checks and metrics carry no session.
	r.health.RegisterRoutes(&r.engine.RouterGroup)
	r.engine.GET(r.config.MetricsPath, r.metrics.Handler())
	r.engine.StaticFS("/static", view.Static())

	pages := r.engine.Group("")
	pages.Use(
		middleware.NoStore(),
		middleware.ForwardToken(),
		middleware.Session(r.config.Sessions, r.config.Session),
	)
	pages.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusSeeOther, handler.DashboardPath(model.RolePatient))
	})
	for _, h := range r.pages {
		h.RegisterRoutes(pages)
	}

	r.engine.NoRoute(func(c *gin.Context) {
		c.HTML(http.StatusNotFound, view.NotFound, view.MessagePage{
			Page:    view.Page{Title: "Not found", RequestID: c.GetString(middleware.ContextRequestID)},
			Message: msgPageNotFound,
		})
	})
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
