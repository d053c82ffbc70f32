// server/internal/api/routes/routes.go
package routes

import (
	"context"
	"time"

	"container-inspection-api-server/config"
	"container-inspection-api-server/internal/api/handlers"
	"container-inspection-api-server/internal/api/middleware"
	"container-inspection-api-server/internal/auth"
	"container-inspection-api-server/internal/events"
	"container-inspection-api-server/internal/imaging"
	"container-inspection-api-server/internal/models"
	"container-inspection-api-server/internal/repository"
	"container-inspection-api-server/internal/socket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Dependencies are the components the router hands to its handlers.
// Storage may be nil, in which case uploads answer 503.
type Dependencies struct {
	Config   config.Config
	Log      zerolog.Logger
	Segments repository.TripSegmentRepository
	Users    repository.UserRepository
	Tokens   *auth.TokenIssuer
	Storage  handlers.PhotoStorage
	Events   events.Publisher
	Hub      *socket.Hub
	Ping     func(ctx context.Context) error
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}

// SetupRouter wires handlers and middleware into a gin engine.
func SetupRouter(d Dependencies) *gin.Engine {
	if d.Config.Server.Env == "prod" || d.Config.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.RequestLogger(d.Log), middleware.Recoverer(d.Log))
	if len(d.Config.Server.CORSOrigins) > 0 {
		router.Use(cors.New(corsConfig(d.Config.Server.CORSOrigins)))
	}

	if d.Events == nil {
		d.Events = events.NopPublisher{}
	}
	var notifier handlers.Notifier
	if d.Hub != nil {
		notifier = d.Hub
	}

	authHandler := &handlers.AuthHandler{Users: d.Users, Tokens: d.Tokens, Log: d.Log}
	if d.Config.Auth.PinMaxAttempts > 0 {
		authHandler.PinLimiter = handlers.NewPinLimiter(d.Config.Auth.PinMaxAttempts, d.Config.Auth.Window())
	}
	tripHandler := &handlers.TripSegmentHandler{Segments: d.Segments, Events: d.Events, Hub: notifier, Log: d.Log}
	uploadHandler := &handlers.UploadHandler{
		Segments: d.Segments,
		Storage:  d.Storage,
		Events:   d.Events,
		Hub:      notifier,
		Log:      d.Log,
		Options: imaging.Options{
			MaxWidth:  d.Config.Upload.MaxWidth,
			Quality:   d.Config.Upload.JPEGQuality,
			MaxPixels: d.Config.Upload.MaxPixels,
		},
		Concurrency: d.Config.Upload.Concurrency,
		MaxFileSize: d.Config.Upload.MaxFileSize,
	}
	userHandler := &handlers.UserHandler{Users: d.Users, Log: d.Log}
	healthHandler := &handlers.HealthHandler{Ping: d.Ping}

	router.GET("/healthz", healthHandler.Health)

	api := router.Group("/api")
	{
		// === Public ===
		authRoutes := api.Group("/auth")
		{
			authRoutes.POST("/login", authHandler.Login)
			authRoutes.POST("/login-pin", authHandler.LoginPIN)
		}

		// The handshake carries its token in the query string.
		if d.Hub != nil {
			wsHandler := &handlers.WebSocketHandler{Hub: d.Hub, Tokens: d.Tokens, Log: d.Log}
			api.GET("/ws", wsHandler.ServeWs)
		}

		// === Protected ===
		protected := api.Group("/")
		protected.Use(middleware.Authenticate(d.Tokens))
		{
			protected.GET("/auth/me", authHandler.Me)
			protected.POST("/auth/setup-pin", authHandler.SetupPIN)

			read := middleware.RequirePermission(models.PermTripsRead)
			write := middleware.RequirePermission(models.PermTripsWrite)

			trips := protected.Group("/trip-segments")
			{
				trips.POST("", write, tripHandler.CreateTripSegment)
				trips.GET("", read, tripHandler.ListTripSegments)
				trips.GET("/:id", read, tripHandler.GetTripSegment)
				trips.PUT("/:id", write, tripHandler.UpdateTripSegment)
				trips.PUT("/:id/step", write, tripHandler.SetStep)
				trips.GET("/:id/damage-status", read, tripHandler.GetDamageStatus)
				trips.PUT("/:id/driver-details", write, tripHandler.SubmitDriverDetails)
			}

			protected.POST("/update-damage-status", write, tripHandler.UpdateDamageStatus)
			protected.POST("/upload/:photo", write, uploadHandler.Upload)

			users := protected.Group("/users")
			users.Use(middleware.Authorize(models.RoleAdmin))
			{
				users.GET("", userHandler.ListUsers)
				users.POST("", userHandler.CreateUser)
			}
		}
	}

	return router
}
