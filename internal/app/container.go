package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/nekogravitycat/reservation-backend/internal/api"
	"github.com/nekogravitycat/reservation-backend/internal/auth"
	"github.com/nekogravitycat/reservation-backend/internal/booking"
	"github.com/nekogravitycat/reservation-backend/internal/config"
	"github.com/nekogravitycat/reservation-backend/internal/event"
	"github.com/nekogravitycat/reservation-backend/internal/interval"
	"github.com/nekogravitycat/reservation-backend/internal/metrics"
	"github.com/nekogravitycat/reservation-backend/internal/resource"
	"github.com/nekogravitycat/reservation-backend/internal/user"
)

// Deps holds the external connections the container is built on.
// A nil DBPool selects the in-memory storage driver; nil Redis disables
// server-side sessions; a nil Events publisher drops booking events.
type Deps struct {
	DBPool *pgxpool.Pool
	Redis  *redis.Client
	Events event.Publisher
	Logger *slog.Logger
}

// Container holds the initialized components that are needed externally.
type Container struct {
	Router     *gin.Engine
	JWTManager *auth.JWTManager
	Registry   *prometheus.Registry

	Users     user.Service
	Resources resource.Service
	Bookings  booking.Service
}

// NewContainer initializes all modules and returns the container.
func NewContainer(cfg *config.Config, deps Deps) (*Container, error) {
	if cfg.StorageDriver == config.DriverPostgres && deps.DBPool == nil {
		return nil, errors.New("postgres storage driver requires a database pool")
	}
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	events := deps.Events
	if events == nil {
		events = event.NopPublisher{}
	}

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	// Init Components
	passwordHasher := auth.NewBcryptPasswordHasher(cfg.BcryptCost)
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTAccessTokenTTL)

	var sessions auth.SessionStore = auth.NopSessionStore{}
	if deps.Redis != nil {
		sessions = auth.NewRedisSessionStore(deps.Redis)
	}

	// Repositories
	var (
		userRepo user.Repository
		resRepo  resource.Repository
	)
	switch cfg.StorageDriver {
	case config.DriverPostgres:
		userRepo = user.NewPgxRepository(deps.DBPool)
		resRepo = resource.NewPgxRepository(deps.DBPool)
	case config.DriverMemory:
		userRepo = user.NewMemoryRepository()
		resRepo = resource.NewMemoryRepository()
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}

	// User Module
	userService := user.NewService(userRepo, passwordHasher, cfg.IsAdminEmail, log)

	// Resource Module
	resService := resource.NewService(resRepo)

	// Booking Module
	var bookingRepo booking.Repository
	if cfg.StorageDriver == config.DriverPostgres {
		bookingRepo = booking.NewPgxRepository(deps.DBPool, cfg.LockTimeout)
	} else {
		bookingRepo = booking.NewMemoryRepository(cfg.LockTimeout, resService)
	}
	ledger := booking.NewLedger(bookingRepo, booking.LedgerConfig{
		MaxRetries:   cfg.AdmitMaxRetries,
		RetryBackoff: cfg.AdmitRetryBackoff,
	}, m, events, log)
	policy := interval.DefaultPolicy()
	policy.PastGrace = cfg.BookingPastGrace
	bookingService := booking.NewService(ledger, resService, policy, log)

	// Health checks
	health := map[string]api.HealthCheck{}
	if deps.DBPool != nil {
		health["postgres"] = deps.DBPool.Ping
	}
	if deps.Redis != nil {
		health["redis"] = func(ctx context.Context) error { return deps.Redis.Ping(ctx).Err() }
	}

	// Router
	router := api.NewRouter(api.Config{
		IsProduction:    cfg.IsProduction,
		ProdOrigins:     cfg.ProdOrigins,
		Logger:          log,
		UserService:     userService,
		ResourceService: resService,
		BookingService:  bookingService,
		JWTManager:      jwtManager,
		Sessions:        sessions,
		Metrics:         m,
		Gatherer:        registry,
		Health:          health,
	})

	return &Container{
		Router:     router,
		JWTManager: jwtManager,
		Registry:   registry,
		Users:      userService,
		Resources:  resService,
		Bookings:   bookingService,
	}, nil
}
