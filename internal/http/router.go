// Package httpapi wires the Gin transport to the relay services: the GitLab
// webhook endpoint, the registration pages, health and metrics.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with token scrubbing
//  4. Recovery: capture panics after logger
//  5. Metrics
//  6. CORS and security headers
//
// Route groups add their own layers: the webhook gets a body cap and the
// delivery key extractor; the pages get gzip and a CSP, and POST /register
// is rate limited per client IP.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	_ "github.com/tbourn/gitlab-telegram-bot/docs"
	"github.com/tbourn/gitlab-telegram-bot/internal/config"
	"github.com/tbourn/gitlab-telegram-bot/internal/http/handlers"
	"github.com/tbourn/gitlab-telegram-bot/internal/http/middleware"
)

// Deps are the collaborators the routes call into.
type Deps struct {
	Registrar   handlers.Registrar
	Dispatcher  handlers.Dispatcher
	DB          handlers.Pinger
	BotUsername string
}

// RegisterRoutes attaches middleware and endpoints to r.
func RegisterRoutes(r *gin.Engine, deps Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true
	r.SetHTMLTemplate(handlers.Templates())

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{}))
	r.Use(middleware.Recovery())
	r.Use(middleware.Metrics())

	r.Use(cors.New(corsConfig(cfg.CORS)))
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		EnablePolicy: true,
	}))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", handlers.Health(deps.DB))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	h := handlers.New(deps.Registrar, deps.Dispatcher, handlers.Options{
		PublicBaseURL: cfg.PublicBaseURL,
		BotUsername:   deps.BotUsername,
	})

	// Every method reaches the handler so non-POST gets the webhook's own
	// 400 body instead of the generic 405.
	hook := r.Group("/gitlab",
		limitBody(cfg.Webhook.MaxBodyBytes),
		middleware.DeliveryKey(middleware.DeliveryKeyOptions{}),
	)
	hook.Any("", h.Webhook)
	hook.Any("/", h.Webhook)

	pages := r.Group("",
		gzip.Gzip(gzip.DefaultCompression),
		middleware.SecurityHeaders(middleware.SecurityOptions{
			NoStore:               true,
			ContentSecurityPolicy: middleware.PageCSP,
		}),
	)
	rl := middleware.NewRateLimiter(cfg.Webhook.RegisterRPS, cfg.Webhook.RegisterBurst, middleware.KeyByIP())
	pages.GET("/", h.Index)
	pages.GET("/register", h.RegisterForm)
	pages.POST("/register", limitBody(64<<10), rl.Handler(), h.RegisterSubmit)
}

// corsConfig keeps the allow-all posture when no origins are configured.
// Credentials are never allowed.
func corsConfig(c config.CORSConfig) cors.Config {
	cc := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", middleware.HeaderGitlabToken},
		ExposeHeaders: []string{"X-Request-ID", "Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(c.AllowedOrigins) == 0 {
		cc.AllowAllOrigins = true
	} else {
		cc.AllowOrigins = c.AllowedOrigins
	}
	return cc
}

// limitBody caps the request body at maxBytes; reads past it fail.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
