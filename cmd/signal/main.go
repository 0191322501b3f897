package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	osignal "os/signal"
	"syscall"
	"time"

	"peercall/internal/core/ports"
	"peercall/internal/core/services"
	httphandlers "peercall/internal/handlers/http"
	"peercall/internal/infrastructure/middleware"
	"peercall/internal/infrastructure/monitoring"
	"peercall/internal/infrastructure/repositories"
	"peercall/internal/infrastructure/signal"
	"peercall/pkg/config"
	"peercall/pkg/logger"
	"peercall/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	configPaths := []string{
		"configs/config.yaml",
		"./configs/config.yaml",
		"config.yaml",
	}

	var cfg *config.Config
	var err error
	for _, path := range configPaths {
		cfg, err = config.Load(path)
		if err == nil {
			break
		}
	}
	if err != nil {
		log.Fatalf("could not load configuration: %v", err)
	}

	zlog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zlog.Sync()
	sugar := zlog.Sugar()

	tracerProvider, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: "peercall",
		JaegerURL:   cfg.Tracing.JaegerURL,
		Environment: cfg.Tracing.Environment,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		sugar.Fatalw("failed to initialize tracing", "error", err)
	}

	factory, err := repositories.NewRepositoryFactory(cfg, sugar)
	if err != nil {
		sugar.Fatalw("failed to initialize repositories", "error", err)
	}
	defer factory.Close()

	registry := factory.CreateConnectionRegistry()
	directory := factory.CreateRoomDirectory()
	shares := factory.CreateScreenShareStore()
	chat := factory.CreateChatLog()

	var collector *monitoring.PrometheusCollector
	if cfg.Monitoring.PrometheusEnabled {
		collector = monitoring.NewPrometheusCollector()
	}

	var authService services.AuthService
	if cfg.Auth.Enabled {
		authService = services.NewAuthService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	}

	// The websocket server is also the relay's peer sender, so it is built
	// first and the coordinator is bound afterwards.
	wsServer := signal.NewWebSocketServer(nil, authService, collector, signal.Config{
		PingInterval:      cfg.Signal.PingInterval,
		PongTimeout:       cfg.Signal.PongTimeout,
		WriteTimeout:      cfg.Signal.WriteTimeout,
		MessagesPerSecond: wsMessagesPerSecond(cfg),
		Burst:             cfg.RateLimiting.WebSocket.Burst,
	}, sugar)

	relay := services.NewSignalingRelay(directory, wsServer, relayMetrics(collector), sugar)
	coordinator := services.NewSessionCoordinator(registry, directory, shares, chat, relay, sugar)
	wsServer.SetCoordinator(coordinator)

	healthChecker := monitoring.NewHealthChecker()
	healthChecker.AddCheck("redis", factory.HealthCheck, 2*time.Second)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.NewHTTPRateLimitMiddleware(cfg))
	if cfg.Tracing.Enabled {
		router.Use(middleware.TracingMiddleware())
	}

	router.GET("/health", func(c *gin.Context) {
		status := healthChecker.CheckAll(c.Request.Context())
		code := http.StatusOK
		if status.Status != "healthy" {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, status)
	})

	roomHandler := httphandlers.NewRoomHandler(registry, directory, shares, chat, coordinator, cfg)
	if cfg.Auth.Enabled {
		httphandlers.NewAuthHandler(authService).SetupRoutes(router)
		roomHandler.SetupRoutes(router, middleware.AuthMiddleware(authService))
	} else {
		roomHandler.SetupRoutes(router)
	}

	// Sample store sizes into gauges; counters are updated inline.
	samplerCtx, stopSampler := context.WithCancel(context.Background())
	defer stopSampler()
	if collector != nil {
		go runGaugeSampler(samplerCtx, collector, registry, directory, shares)
	}

	if cfg.Monitoring.PrometheusEnabled {
		go func() {
			addr := fmt.Sprintf(":%d", cfg.Monitoring.PrometheusPort)
			sugar.Infow("starting metrics server", "address", addr)
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
				sugar.Errorw("metrics server failed", "error", err)
			}
		}()
	}

	signalMux := http.NewServeMux()
	signalMux.HandleFunc("/ws", wsServer.HandleWebSocket)
	signalServer := &http.Server{
		Addr:    cfg.Signal.Address,
		Handler: signalMux,
	}

	apiServer := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		sugar.Infow("starting signaling server", "address", cfg.Signal.Address)
		if err := signalServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalw("signaling server failed", "error", err)
		}
	}()

	go func() {
		sugar.Infow("starting API server", "address", cfg.Server.Address)
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalw("API server failed", "error", err)
		}
	}()

	ctx, stop := osignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	sugar.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Signal.ShutdownTimeout)
	defer cancel()
	if err := signalServer.Shutdown(shutdownCtx); err != nil {
		sugar.Warnw("signaling server shutdown error", "error", err)
	}
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		sugar.Warnw("API server shutdown error", "error", err)
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		sugar.Warnw("tracer shutdown error", "error", err)
	}
}

func wsMessagesPerSecond(cfg *config.Config) float64 {
	if !cfg.RateLimiting.Enabled {
		return 0
	}
	return cfg.RateLimiting.WebSocket.MessagesPerSecond
}

// relayMetrics keeps the nil collector from becoming a non-nil interface.
func relayMetrics(collector *monitoring.PrometheusCollector) ports.RelayMetrics {
	if collector == nil {
		return nil
	}
	return collector
}

func runGaugeSampler(ctx context.Context, collector *monitoring.PrometheusCollector, registry ports.ConnectionRegistry, directory ports.RoomDirectory, shares ports.ScreenShareStore) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := registry.Count(ctx); err == nil {
				collector.SetConnections(n)
			}
			if rooms, err := directory.Rooms(ctx); err == nil {
				collector.SetRooms(len(rooms))
			}
			if n, err := shares.ActiveCount(ctx); err == nil {
				collector.SetActiveShares(n)
			}
		}
	}
}
