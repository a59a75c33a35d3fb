package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/qwb00/ChatApp/internal/admin"
	"github.com/qwb00/ChatApp/internal/config"
	"github.com/qwb00/ChatApp/internal/directory"
	"github.com/qwb00/ChatApp/internal/gateway"
	"github.com/qwb00/ChatApp/internal/registry"
	pkglog "github.com/qwb00/ChatApp/pkg/log"
	"github.com/qwb00/ChatApp/pkg/pubsub"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to load config")
	}

	// Initialize structured logger
	pkglog.Init(pkglog.Config{
		Level:       cfg.Log.Level,
		Pretty:      cfg.Log.Pretty,
		ServiceName: "chat-directory",
	})
	logger := pkglog.L()

	// Room event feed
	events, err := pubsub.NewPublisher(cfg.Events)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.Events.Driver).Msg("failed to create event publisher")
	}
	defer events.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Room announcements
	var announcer registry.Announcer = registry.NopAnnouncer{}
	var redisAnnouncer *registry.RedisAnnouncer
	if cfg.Redis.Enabled {
		redisAnnouncer, err = registry.NewRedisAnnouncer(cfg.Redis, cfg.Directory.AdvertiseHost)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		announcer = redisAnnouncer
		logger.Info().Str("address", cfg.Redis.Address).Msg("redis announcer connected")
	}
	if err := announcer.StartHeartbeat(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to start announcement heartbeat")
	}
	defer announcer.Close()

	healthServer := admin.NewHealthServer()

	dir := directory.NewServer(directory.Config{
		Host:     cfg.Directory.Host,
		Port:     cfg.Directory.Port,
		BasePort: cfg.Directory.BasePort,
		RoomHost: cfg.Directory.Host,
	}, events, announcer, healthServer)
	if err := dir.Listen(); err != nil {
		logger.Fatal().Err(err).Msg("failed to start directory")
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return dir.Serve()
	})
	g.Go(func() error {
		<-gCtx.Done()
		return dir.Close()
	})

	if cfg.Admin.Enabled {
		grpcAddr := fmt.Sprintf("%s:%d", cfg.Admin.Host, cfg.Admin.GRPCPort)
		grpcServer, err := admin.StartGRPCServer(grpcAddr, healthServer, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to start grpc server")
		}

		// Setup Gin router
		r := gin.New()
		r.Use(gin.Recovery())
		r.Use(pkglog.GinMiddleware(logger))

		adminHandler := admin.NewHandler(dir)
		if redisAnnouncer != nil {
			adminHandler.WithAnnouncements(redisAnnouncer)
		}
		adminHandler.RegisterRoutes(r)
		if cfg.Gateway.Enabled {
			gateway.NewWSHandler(dir, cfg.Directory.AdvertiseHost, cfg.Gateway).RegisterRoutes(r)
		}

		server := &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.Admin.Host, cfg.Admin.HTTPPort),
			Handler:           r,
			ReadHeaderTimeout: 15 * time.Second,
			IdleTimeout:       60 * time.Second,
		}

		g.Go(func() error {
			logger.Info().Str("addr", server.Addr).Bool("gateway", cfg.Gateway.Enabled).Msg("admin http server listening")
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gCtx.Done()
			healthServer.Shutdown()
			grpcServer.GracefulStop()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
	}

	logger.Info().
		Str("addr", dir.Addr().String()).
		Int("base_port", cfg.Directory.BasePort).
		Str("events", cfg.Events.Driver).
		Msg("chat directory starting")

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("chat directory stopped with error")
		return
	}
	logger.Info().Msg("chat directory stopped")
}
