package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/nekogravitycat/court-reservation/internal/auth"
	"github.com/nekogravitycat/court-reservation/internal/reservation"
	resvHttp "github.com/nekogravitycat/court-reservation/internal/reservation/http"
	"github.com/nekogravitycat/court-reservation/internal/resource"
	resHttp "github.com/nekogravitycat/court-reservation/internal/resource/http"
)

// Config carries what the router needs to assemble middleware and handlers.
type Config struct {
	IsProduction       bool
	ProdOrigins        string
	Logger             *slog.Logger
	ResService         resource.Service
	ReservationService reservation.Service
	JWTManager         *auth.JWTManager
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

	r := gin.New()

	// Global Middleware:
	// - RequestID + AccessLog: one structured log line per request.
	// - Recovery: Captures panics to prevent server crashes and returns a 500 error.
	r.Use(RequestID(), AccessLog(cfg.Logger), gin.Recovery())

	// Configure CORS (Cross-Origin Resource Sharing).
	// Without any allowed origin, cross-origin requests are simply not answered.
	if origins := allowedOrigins(cfg); len(origins) > 0 {
		corsConfig := cors.DefaultConfig()
		corsConfig.AllowOrigins = origins
		corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
		corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", RequestIDHeader}
		corsConfig.ExposeHeaders = []string{RequestIDHeader}
		r.Use(cors.New(corsConfig))
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// authMiddleware: Validates if the request contains a valid JWT.
	authMiddleware := auth.AuthRequired(cfg.JWTManager)

	// Initialize HTTP Handlers for each module (injecting Service dependencies).
	resHandler := resHttp.NewHandler(cfg.ResService)
	reservationHandler := resvHttp.NewHandler(cfg.ReservationService)

	// Register API routes under /v1
	v1 := r.Group("/v1")
	{
		resHttp.RegisterRoutes(v1, resHandler, authMiddleware)
		resvHttp.RegisterRoutes(v1, reservationHandler, authMiddleware)
	}

	return r
}

func allowedOrigins(cfg Config) []string {
	if !cfg.IsProduction {
		return []string{
			"http://localhost:3000",
			"http://localhost:8081", // Swagger
		}
	}
	var origins []string
	for _, o := range strings.Split(cfg.ProdOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}
