// server/cmd/api/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"container-inspection-api-server/config"
	"container-inspection-api-server/internal/api/routes"
	"container-inspection-api-server/internal/auth"
	"container-inspection-api-server/internal/database"
	"container-inspection-api-server/internal/events"
	"container-inspection-api-server/internal/repository"
	"container-inspection-api-server/internal/repository/memory"
	"container-inspection-api-server/internal/repository/mongodb"
	"container-inspection-api-server/internal/s3"
	"container-inspection-api-server/internal/socket"
	"container-inspection-api-server/pkg/logger"
)

// memoryURI keeps everything in process memory; for demos and local runs.
const memoryURI = "memory://"

func main() {
	// 1. Load configuration
	cfg, err := config.LoadConfig("./config")
	if err != nil {
		dl := logger.New("dev")
		dl.Fatal().Err(err).Msg("could not load config")
	}
	l := logger.New(cfg.Server.Env)
	if cfg.JWT.Secret == "" {
		l.Fatal().Msg("JWT_SECRET is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// 2. Storage for trip segments and users
	var (
		segments repository.TripSegmentRepository
		users    repository.UserRepository
		ping     func(context.Context) error
	)
	if cfg.Mongo.URI == memoryURI {
		l.Warn().Msg("using in-memory repositories, data is lost on restart")
		segments, users = memory.NewTripSegmentRepo(), memory.NewUserRepo()
	} else {
		client, db, err := database.Connect(ctx, cfg.Mongo)
		if err != nil {
			l.Fatal().Err(err).Msg("mongo connect failed")
		}
		defer func() {
			_ = client.Disconnect(context.Background())
		}()
		if err := database.EnsureIndexes(ctx, db); err != nil {
			l.Fatal().Err(err).Msg("failed to ensure indexes")
		}
		segments, users = mongodb.NewTripSegmentRepo(db), mongodb.NewUserRepo(db)
		ping = func(ctx context.Context) error { return client.Ping(ctx, nil) }
	}

	// 3. First admin account
	if err := database.SeedAdmin(ctx, users, cfg.Admin.Username, cfg.Admin.Password, l); err != nil {
		l.Fatal().Err(err).Msg("failed to seed admin")
	}

	// 4. Photo storage, optional
	deps := routes.Dependencies{
		Config:   cfg,
		Log:      l,
		Segments: segments,
		Users:    users,
		Tokens:   auth.NewTokenIssuer(cfg.JWT.Secret, cfg.JWT.TTL()),
		Hub:      socket.NewHub(l),
		Ping:     ping,
	}
	if cfg.S3.Bucket != "" {
		uploader, err := s3.NewUploader(ctx, cfg.S3)
		if err != nil {
			l.Fatal().Err(err).Msg("failed to create S3 uploader")
		}
		deps.Storage = uploader
	} else {
		l.Warn().Msg("S3_BUCKET is empty, photo uploads are disabled")
	}

	// 5. Domain events
	var publisher events.Publisher = events.NopPublisher{}
	if cfg.AMQP.URL != "" {
		p, err := events.NewAMQPPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange, l)
		if err != nil {
			l.Fatal().Err(err).Msg("failed to connect to AMQP broker")
		}
		publisher = p
		l.Info().Str("exchange", cfg.AMQP.Exchange).Msg("publishing events to AMQP")
	}
	defer publisher.Close()
	deps.Events = publisher

	// 6. HTTP server
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           routes.SetupRouter(deps),
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		l.Info().Str("addr", srv.Addr).Msg("api listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Fatal().Err(err).Msg("server error")
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		l.Error().Err(err).Msg("shutdown failed")
	}
	l.Info().Msg("shutdown complete")
}
