package app

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nekogravitycat/court-reservation/internal/api"
	"github.com/nekogravitycat/court-reservation/internal/auth"
	"github.com/nekogravitycat/court-reservation/internal/payment"
	"github.com/nekogravitycat/court-reservation/internal/pkg/clock"
	"github.com/nekogravitycat/court-reservation/internal/reservation"
	"github.com/nekogravitycat/court-reservation/internal/resource"
)

// Config holds the dependencies and settings required to start the application.
type Config struct {
	IsProduction  bool
	ProdOrigins   string
	DBPool        *pgxpool.Pool
	JWTSecret     string
	JWTTTL        time.Duration
	Logger        *slog.Logger
	Notifier      payment.Notifier
	Clock         clock.Clock
	InitialStatus reservation.Status
}

// Container holds the initialized components that are needed externally.
type Container struct {
	Router             *gin.Engine
	JWTManager         *auth.JWTManager
	ReservationService reservation.Service
}

// NewContainer initializes all modules and returns the container.
func NewContainer(cfg Config) *Container {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Notifier == nil {
		cfg.Notifier = payment.NewLogNotifier(cfg.Logger)
	}

	// Init Components
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTTTL)

	// Resource Module
	resRepo := resource.NewPgxRepository(cfg.DBPool)
	resService := resource.NewService(resRepo)

	// Reservation Module
	reservationRepo := reservation.NewPgxRepository(cfg.DBPool)
	reservationService := reservation.NewService(reservationRepo, resService, cfg.Notifier, reservation.ServiceConfig{
		Clock:         cfg.Clock,
		Logger:        cfg.Logger.With("component", "reservation"),
		InitialStatus: cfg.InitialStatus,
	})

	// Router
	router := api.NewRouter(api.Config{
		IsProduction:       cfg.IsProduction,
		ProdOrigins:        cfg.ProdOrigins,
		Logger:             cfg.Logger,
		ResService:         resService,
		ReservationService: reservationService,
		JWTManager:         jwtManager,
	})

	return &Container{
		Router:             router,
		JWTManager:         jwtManager,
		ReservationService: reservationService,
	}
}
