package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"salepage/cms/middleware"
	"salepage/cms/routes"
	"salepage/cms/session"
	"salepage/cms/stats"
)

// resourceScreens are the seller collections with list and detail screens.
var resourceScreens = []string{"orders", "products", "stores", "categories", "combos", "vouchers"}

type RouterConfig struct {
	Logger       zerolog.Logger
	Table        *routes.Table
	Registry     *session.Registry
	Session      middleware.SessionConfig
	FEOrigin     string
	Login        *session.LoginFlow
	Stats        stats.Source
	StatsTimeout time.Duration
	Backend      ResourceBackend
	// Events may be nil when ClickHouse is not configured.
	Events       EventSink
	IngestAPIKey string
	Version      string
}

// NewRouter builds the back-office HTTP surface. The returned dashboard
// handlers own per-session loaders that the caller should prune alongside
// the registry.
func NewRouter(cfg RouterConfig) (*gin.Engine, *DashboardHandlers) {
	table := cfg.Table
	if table == nil {
		table = routes.DefaultTable()
	}

	pages := &PageHandlers{Version: cfg.Version}
	auth := NewAuthHandlers(cfg.Login, cfg.Registry, cfg.Session.Secure, cfg.Logger)
	dashboard := NewDashboardHandlers(cfg.Stats, cfg.StatsTimeout, cfg.Logger)
	auth.OnLogout = dashboard.Forget
	resources := NewResourceHandlers(cfg.Backend, cfg.Logger)
	track := NewTrackHandlers(cfg.Events, cfg.Logger)

	r := gin.New()
	r.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.Logger(cfg.Logger),
		middleware.CORSMiddleware(cfg.FEOrigin),
	)

	r.GET("/healthz", pages.Health)

	api := r.Group("/api")
	api.Use(middleware.APIKeyRequired(cfg.IngestAPIKey, cfg.Logger))
	{
		api.POST("/track", track.TrackEvent)
	}

	screens := r.Group("/")
	screens.Use(
		middleware.SessionLoader(cfg.Registry, cfg.Session, cfg.Logger),
		middleware.Guard(table),
	)
	{
		screens.GET("/", pages.Home)
		screens.GET("/about", pages.About)

		screens.GET(routes.LoginPath, auth.LoginPage)
		screens.POST(routes.LoginPath, auth.Login)
		screens.GET(routes.LogoutPath, auth.Logout)
		screens.POST(routes.LogoutPath, auth.Logout)

		screens.GET(routes.LandingPath, dashboard.Summary)
		screens.GET(routes.LandingPath+"/series", dashboard.Series)
		screens.GET(routes.LandingPath+"/chart", dashboard.Chart)

		for _, name := range resourceScreens {
			screens.GET("/"+name, resources.List(name))
			screens.POST("/"+name, resources.Create(name))
			screens.GET("/"+name+"/:id", resources.Get(name))
			screens.PUT("/"+name+"/:id", resources.Update(name))
			screens.DELETE("/"+name+"/:id", resources.Delete(name))
		}
	}

	r.NoRoute(middleware.NotFound)
	return r, dashboard
}
