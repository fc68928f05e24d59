// Package kransite is the marketing site and content-management backend
// for an industrial crane-equipment company, built with Go and Echo.
//
// The public pages are static assets that fetch their content from a
// read-only JSON API; the admin area is a session-gated JSON CRUD API
// over the same sqlite store, plus an object-storage layer for images
// and video served under /storage/.
package kransite

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// App is the central application. It wires together the store, cache,
// storage, handlers and middleware.
type App struct {
	Config  SiteConfig
	Echo    *echo.Echo
	Store   *Store
	Storage *Storage
	Cache   *ContentCache
	Content *Content

	loginLimiter *LoginLimiter
	httpClient   *http.Client
	customRoutes []func(*App)
	staticDir    string
}

// New creates a new App with the given configuration.
func New(cfg SiteConfig, opts ...Option) *App {
	cfg.setDefaults()

	a := &App{
		Config:     cfg,
		Echo:       echo.New(),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		staticDir:  "public",
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Start initializes the store, storage, cache, middleware and routes,
// then starts the server. It blocks until the server stops.
func (a *App) Start() error {
	if err := a.init(); err != nil {
		return err
	}
	if err := a.Echo.Start(a.Config.Addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (a *App) init() error {
	if a.Config.SessionSecret == "" {
		return fmt.Errorf("kransite: SessionSecret is required")
	}

	store, err := NewStore(a.Config.DatabasePath)
	if err != nil {
		return fmt.Errorf("kransite: init store: %w", err)
	}
	a.Store = store

	storage, err := NewStorage(a.Config.StorageDir, a.Config.URL)
	if err != nil {
		return fmt.Errorf("kransite: init storage: %w", err)
	}
	a.Storage = storage

	a.Cache = NewContentCache(a.Store, a.Config.ContentCacheTTL)
	a.Content = NewContent(a.Cache)
	a.loginLimiter = NewLoginLimiter(5, time.Minute)

	if err := a.ensureAdminUser(); err != nil {
		return err
	}

	a.setupMiddleware()
	a.setupRoutes()

	for _, fn := range a.customRoutes {
		fn(a)
	}
	return nil
}

func (a *App) setupRoutes() {
	e := a.Echo

	// Static assets: the marketing frontend and the uploaded objects.
	e.Static("/public", a.staticDir)
	e.Static("/storage", a.Storage.Root())
	e.GET("/", a.handleIndex)
	e.GET("/favicon.svg", a.handleFavicon)
	e.GET("/robots.txt", a.handleRobots)
	e.GET("/sitemap.xml", a.handleSitemap)

	// Public content API.
	e.GET("/api/services", a.handleServices)
	e.GET("/api/catalog", a.handleCatalog)
	e.GET("/api/catalog/:id", a.handleCatalogItem)
	e.GET("/api/categories", a.handleCategories)
	e.GET("/api/contacts", a.handleContacts)
	e.GET("/api/content", a.handleContent)
	e.GET("/api/content/:key", a.handleContentByKey)
	e.GET("/api/videos", a.handleVideos)

	// Forwarding routes.
	e.GET("/api/telegram/health", a.handleTelegramHealth)
	e.POST("/api/telegram/send", a.handleTelegramSend)
	e.POST("/api/assistant", a.handleAssistant)

	// Admin pages: login is open, everything else redirects anonymous
	// visitors there before any admin data is served.
	e.GET("/admin/login/", a.handleAdminLoginPage)
	pages := e.Group("/admin", a.requireAdminPage)
	pages.GET("/", a.handleAdminPage)
	pages.GET("/:page/", a.handleAdminPage)

	// Admin API: session endpoints are open, the rest is gated.
	e.POST("/admin/api/login", a.handleAdminLogin)
	e.POST("/admin/api/logout", a.handleAdminLogout)
	e.GET("/admin/api/session", a.handleAdminSession)

	api := e.Group("/admin/api", a.requireAdmin)

	api.GET("/services", a.handleAdminListServices)
	api.POST("/services", a.handleAdminCreateService)
	api.PUT("/services/:id", a.handleAdminUpdateService)
	api.DELETE("/services/:id", a.handleAdminDeleteService)

	api.GET("/catalog", a.handleAdminListCatalog)
	api.POST("/catalog", a.handleAdminCreateCatalogItem)
	api.PUT("/catalog/:id", a.handleAdminUpdateCatalogItem)
	api.DELETE("/catalog/:id", a.handleAdminDeleteCatalogItem)

	api.GET("/categories", a.handleAdminListCategories)
	api.POST("/categories", a.handleAdminCreateCategory)
	api.PUT("/categories/:id", a.handleAdminUpdateCategory)
	api.DELETE("/categories/:id", a.handleAdminDeleteCategory)

	api.GET("/contacts", a.handleAdminListContacts)
	api.POST("/contacts", a.handleAdminCreateContact)
	api.PUT("/contacts/:id", a.handleAdminUpdateContact)
	api.DELETE("/contacts/:id", a.handleAdminDeleteContact)

	api.GET("/content", a.handleAdminListContent)
	api.POST("/content", a.handleAdminCreateContent)
	api.PUT("/content/:id", a.handleAdminUpdateContent)
	api.DELETE("/content/:id", a.handleAdminDeleteContent)

	api.GET("/videos", a.handleAdminListVideos)
	api.POST("/videos", a.handleAdminCreateVideo)
	api.PUT("/videos/:id", a.handleAdminUpdateVideo)
	api.DELETE("/videos/:id", a.handleAdminDeleteVideo)

	api.GET("/images", a.handleAdminListImages)
	api.POST("/images", a.handleAdminUploadImage)
	api.DELETE("/images/:id", a.handleAdminDeleteImage)

	api.POST("/uploads/:bucket", a.handleAdminStagedUpload)
}

// Close cleans up resources. Call this when the app is shutting down.
func (a *App) Close() error {
	if a.Store != nil {
		return a.Store.Close()
	}
	return nil
}
