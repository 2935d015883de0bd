package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/favgrab/api/handler"
	"github.com/use-agent/favgrab/api/middleware"
	"github.com/use-agent/favgrab/config"
	"github.com/use-agent/favgrab/web"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → RequestID → Logger
//	API:     Auth (if enabled) → RateLimit
//	Page:    RateLimit
//
// Health is outside auth so monitoring probes always work.
func NewRouter(cfg *config.Config, res handler.Resolver, startTime time.Time) (*gin.Engine, error) {
	gin.SetMode(cfg.Server.Mode)

	tmpl, err := web.Templates()
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(gin.Logger())
	r.SetHTMLTemplate(tmpl)

	limit := middleware.RateLimit(cfg.RateLimit)

	// Page and assets.
	r.GET("/", limit, handler.Page(res, handler.PageOptions{
		Mode:     cfg.UI.Mode,
		IconSize: cfg.UI.IconSize,
	}))
	r.StaticFS("/static", http.FS(web.StaticFS()))
	appIcon := handler.AppIcon(web.AppIcon())
	r.GET("/favicon.ico", appIcon)
	r.GET("/favicon.svg", appIcon)

	api := r.Group("/api")

	// Health — no auth required.
	api.GET("/health", handler.Health(res, startTime))

	// Protected group — auth + rate limit.
	protected := api.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(limit)

	protected.GET("/favicon", handler.Favicon(res))
	protected.GET("/favicon/download", handler.Download(handler.DownloadOptions{
		MaxBytes:     cfg.Download.MaxBytes,
		Timeout:      cfg.Download.Timeout,
		BlockPrivate: cfg.Fetch.BlockPrivate,
	}))

	return r, nil
}
