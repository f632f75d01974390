// File: opdportal/main.go
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"opdportal/config"
	"opdportal/handlers"
	"opdportal/middleware"
	"opdportal/models"
	"opdportal/routes"
	"opdportal/services/api"
	"opdportal/services/booking"
	"opdportal/services/crowd"
	"opdportal/services/notification"
	"opdportal/services/realtime"
	"opdportal/services/session"
	"opdportal/services/storage"
	"opdportal/utils"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

func main() {
	config.LoadConfig()
	logger := utils.GetLogger()
	defer logger.Sync()

	if config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	cfg := config.AppConfig

	// persisted client state.
	var (
		tokens       storage.TokenStore
		redisClients []*redis.Client
	)
	switch cfg.TokenStore {
	case "redis":
		client, err := utils.GetSessionCacheClient()
		if err != nil {
			logger.Sugar().Fatalf("main: failed to initialize session cache: %v", err)
		}
		redisClients = append(redisClients, client)
		tokens = storage.NewRedisTokenStore(client, cfg.SessionProfile, time.Duration(cfg.SessionTTLHours)*time.Hour)
	case "memory":
		tokens = storage.NewMemoryTokenStore()
	default:
		tokens = storage.NewFileTokenStore(cfg.TokenFile, cfg.TokenPassphrase)
	}

	// backend transports.
	backend := api.NewClient(cfg.BackendURL, time.Duration(cfg.HTTPTimeoutSeconds)*time.Second, logger.Named("api"))

	var sessionStore *session.Store
	channel := realtime.New(cfg.SocketURL, logger.Named("realtime"),
		realtime.WithTokenSource(func() string { return sessionStore.Token() }))

	// client-state stores.
	sessionStore = session.NewStore(backend, tokens, channel, cfg.LoginPath, logger.Named("session"))
	backend.SetTokenSource(sessionStore.Token)

	crowdStore := crowd.NewStore(logger.Named("crowd"))
	notificationStore := notification.NewStore(backend, cfg.MarkReadPerSecond, logger.Named("notification"))
	wizard := booking.NewWizard(backend, crowdStore, booking.Options{
		RegistrationFee: cfg.RegistrationFee,
		DefaultSlots:    cfg.DefaultSlots,
	}, logger.Named("booking"))

	hub := handlers.NewLiveHub(32)
	crowdStore.OnChange(hub.PublishCrowd)
	crowdStore.OnReset(hub.PublishCrowdReset)
	notificationStore.OnChange(hub.PublishNotifications)
	wizard.OnChange(hub.PublishWizard)

	notificationStore.Attach(channel, realtime.EventNotification)
	crowdStore.Attach(channel, realtime.EventCrowdUpdate, realtime.EventCrowdUpdateCamel)

	sessionStore.OnSignIn(func(user models.SessionUser) {
		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTPTimeoutSeconds)*time.Second)
		defer cancel()
		if err := notificationStore.Refresh(ctx); err != nil {
			logger.Warn("main: initial notification fetch failed", zap.String("userId", user.ID.String()), zap.Error(err))
		}
	})
	// Logout resets run in this order after the channel has left the room.
	sessionStore.OnReset(notificationStore.Reset)
	sessionStore.OnReset(wizard.Reset)
	sessionStore.OnReset(crowdStore.Reset)

	rootCtx, stop := context.WithCancel(context.Background())
	defer stop()

	channel.Start(rootCtx)
	go func() {
		snap := sessionStore.Bootstrap(rootCtx)
		logger.Info("main: session bootstrapped", zap.String("status", string(snap.Status)))
	}()

	utils.StartHealthMonitor(rootCtx, utils.HealthProbe{
		Backend:  backend.Ping,
		Realtime: channel.Connected,
		Redis:    redisClients,
	}, time.Minute)

	// Create the Gin router.
	router := gin.New()
	router.Use(utils.ErrorHandler(logger))
	router.Use(middleware.RequestLogger(logger.Named("http")))
	router.Use(middleware.RateLimitMiddleware(cfg.MaxRequestsPerMin))

	landing := middleware.Landing{
		Login:    cfg.LoginPath,
		Patient:  cfg.PatientLanding,
		Hospital: cfg.HospitalLanding,
	}
	handlerBundle := &handlers.HandlerBundle{
		Session:       sessionStore,
		Landing:       landing,
		AuthHandler:   handlers.NewSessionHandler(sessionStore, landing),
		Directory:     handlers.NewDirectoryHandler(backend),
		Booking:       handlers.NewBookingHandler(wizard),
		Appointments:  handlers.NewAppointmentsHandler(backend),
		Notifications: handlers.NewNotificationHandler(notificationStore),
		Crowd:         handlers.NewCrowdHandler(crowdStore),
		Live:          hub,
	}

	// Register routes with the assembled handler bundle.
	routes.RegisterRoutes(router, handlerBundle, cfg.AllowedOrigins)

	// Start the HTTP server.
	port := cfg.AppPort
	if port == "" {
		port = "8090"
	}
	srv := &http.Server{
		Addr:    "127.0.0.1:" + port,
		Handler: router,
	}

	logger.Sugar().Infof("Starting OPD portal on %s...", srv.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Sugar().Fatalf("main: server failed to start: %v", err)
		}
	}()

	// Wait for an OS signal to gracefully shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Sugar().Info("main: portal is shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Sugar().Errorf("main: server forced to shutdown: %v", err)
	}
	stop()
	if err := channel.Close(); err != nil {
		logger.Warn("main: realtime channel close failed", zap.Error(err))
	}
	for _, client := range redisClients {
		_ = client.Close()
	}

	logger.Sugar().Info("main: portal stopped gracefully")
}
