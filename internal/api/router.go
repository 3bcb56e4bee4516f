package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nekogravitycat/reservation-backend/internal/auth"
	"github.com/nekogravitycat/reservation-backend/internal/booking"
	bookingHttp "github.com/nekogravitycat/reservation-backend/internal/booking/http"
	"github.com/nekogravitycat/reservation-backend/internal/metrics"
	"github.com/nekogravitycat/reservation-backend/internal/resource"
	resHttp "github.com/nekogravitycat/reservation-backend/internal/resource/http"
	"github.com/nekogravitycat/reservation-backend/internal/user"
	userHttp "github.com/nekogravitycat/reservation-backend/internal/user/http"
)

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Config holds the services and settings the router is assembled from.
type Config struct {
	IsProduction bool
	ProdOrigins  string
	Logger       *slog.Logger

	UserService     user.Service
	ResourceService resource.Service
	BookingService  booking.Service

	JWTManager *auth.JWTManager
	Sessions   auth.SessionStore

	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	// Health checks run by /healthz, keyed by dependency name.
	Health map[string]HealthCheck
}

// NewRouter initializes the HTTP router engine.
// It is responsible for assembling middleware (CORS, Logger, Auth) and registering routes for various modules.
func NewRouter(cfg Config) *gin.Engine {
	if cfg.IsProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Sessions == nil {
		cfg.Sessions = auth.NopSessionStore{}
	}

	r := gin.New()

	// Global Middleware:
	// - Recovery: Captures panics to prevent server crashes and returns a 500 error.
	// - RequestLogger: One structured line per request.
	r.Use(Recovery(cfg.Logger), RequestLogger(cfg.Logger))
	if cfg.Metrics != nil {
		r.Use(Instrument(cfg.Metrics))
	}

	// Configure CORS (Cross-Origin Resource Sharing).
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = allowedOrigins(cfg)
	corsConfig.AllowMethods = []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", requestIDHeader}
	corsConfig.ExposeHeaders = []string{requestIDHeader}
	r.Use(cors.New(corsConfig))

	r.GET("/healthz", healthz(cfg.Health))
	if cfg.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	// authMiddleware: Validates the bearer JWT and its session.
	authMiddleware := auth.AuthRequired(cfg.JWTManager, cfg.Sessions)

	// Initialize HTTP Handlers for each module (injecting Service dependencies).
	userHandler := userHttp.NewHandler(cfg.UserService, cfg.JWTManager, cfg.Sessions)
	resHandler := resHttp.NewHandler(cfg.ResourceService)
	bookingHandler := bookingHttp.NewHandler(cfg.BookingService)

	// Register API routes under /v1
	v1 := r.Group("/v1")
	{
		userHttp.RegisterRoutes(v1, userHandler, authMiddleware)
		resources := resHttp.RegisterRoutes(v1, resHandler, authMiddleware)
		bookingHttp.RegisterResourceRoutes(resources, bookingHandler)
		bookingHttp.RegisterRoutes(v1, bookingHandler, authMiddleware)
	}

	return r
}

func allowedOrigins(cfg Config) []string {
	if !cfg.IsProduction {
		return []string{"http://localhost:3000", "http://localhost:8081"}
	}
	var origins []string
	for _, o := range strings.Split(cfg.ProdOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		// cors panics on an empty allow list.
		return []string{"https://invalid.localhost"}
	}
	return origins
}

func healthz(checks map[string]HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		result := gin.H{}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				result[name] = err.Error()
				continue
			}
			result[name] = "ok"
		}

		c.JSON(status, gin.H{"status": http.StatusText(status), "checks": result})
	}
}
