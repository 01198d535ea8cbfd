package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/clinicware/clinic-ai-platform/internal/config"
	"github.com/clinicware/clinic-ai-platform/internal/conversation"
	"github.com/clinicware/clinic-ai-platform/internal/http/handlers"
	"github.com/clinicware/clinic-ai-platform/internal/http/router"
	"github.com/clinicware/clinic-ai-platform/internal/notify"
	"github.com/clinicware/clinic-ai-platform/internal/observability/metrics"
	"github.com/clinicware/clinic-ai-platform/internal/reminder"
	"github.com/clinicware/clinic-ai-platform/internal/session"
	"github.com/clinicware/clinic-ai-platform/internal/storage"
	"github.com/clinicware/clinic-ai-platform/pkg/logging"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting conversation engine",
		"env", cfg.Env,
		"port", cfg.Port,
		"tenant_id", cfg.TenantID,
	)

	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)
	if err := db.PingContext(context.Background()); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}
	store := storage.New(db)

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		opts := &redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
		if cfg.RedisTLS {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		redisClient = redis.NewClient(opts)
		defer func() { _ = redisClient.Close() }()
	}

	registry := prometheus.NewRegistry()
	engineMetrics := metrics.NewEngineMetrics(registry)

	// Generative fallback chain: first model that answers wins.
	var llmClients []conversation.LLMClient
	for _, modelID := range cfg.GeminiModels {
		client, err := conversation.NewGeminiLLMClient(context.Background(), cfg.GeminiAPIKey, modelID)
		if err != nil {
			logger.Warn("skipping generative model", "model", modelID, "error", err)
			continue
		}
		llmClients = append(llmClients, client)
	}
	if len(llmClients) == 0 {
		logger.Error("no generative model could be initialized, set GEMINI_API_KEY")
		os.Exit(1)
	}
	chain := conversation.NewChainLLMClient(llmClients, logger.Logger)

	// Notification fan-out.
	rules, err := notify.LoadRules(cfg.NotificationRulesPath)
	if err != nil {
		logger.Error("failed to load notification rules", "error", err, "path", cfg.NotificationRulesPath)
		os.Exit(1)
	}
	hub := notify.NewHub(logger)

	// Session manager (platform connection lifecycle + outbound sends).
	manager := session.NewManager(session.ManagerConfig{
		Connector:     session.NewBridgeConnector(cfg.BridgeURL, logger),
		Store:         store,
		Pairing:       session.NewPairingCache(redisClient, logger),
		Metrics:       engineMetrics,
		Logger:        logger,
		CredentialDir: cfg.CredentialDir,
		SpoolDir:      cfg.MediaSpoolDir,
		DefaultRegion: cfg.DefaultRegion,
		Delays: session.ReconnectDelays{
			Conflict:    cfg.ConflictCooldown,
			StreamError: cfg.StreamErrorDelay,
			AuthFailure: cfg.AuthFailureDelay,
			Other:       cfg.GenericCloseDelay,
		},
	})

	dispatcher := notify.NewDispatcher(rules, []notify.Sender{
		notify.NewInAppSender(store),
		notify.NewPlatformSender(manager),
		notify.NewAudioCueSender(redisClient, hub),
	}, logger.Logger).WithMetrics(engineMetrics)

	// Reply pipeline.
	extractor := conversation.NewExtractor(store, logger.Logger, time.Local)
	service := conversation.NewService(conversation.ServiceConfig{
		Store:        store,
		LLM:          chain,
		Extractor:    extractor,
		Sender:       manager,
		Notifier:     dispatcher,
		Metrics:      engineMetrics,
		Logger:       logger,
		HistoryDepth: cfg.HistoryDepth,
		MaxTokens:    int32(cfg.CompletionTokens),
		Temperature:  float32(cfg.Temperature),
	})
	defer service.Close()

	manager.SetHandler(func(tenantID string, batch []session.InboundMessage) {
		inbound := make([]conversation.Inbound, 0, len(batch))
		for _, msg := range batch {
			inbound = append(inbound, conversation.Inbound{
				ChatID:      msg.ChatID,
				Phone:       msg.Phone,
				DisplayName: msg.DisplayName,
				Text:        msg.Text,
				MediaRef:    msg.MediaPath,
				MediaMIME:   msg.MediaMIME,
				ProviderID:  msg.ProviderID,
				FromSelf:    msg.FromSelf,
				Timestamp:   msg.Timestamp,
			})
		}
		service.HandleInbound(context.Background(), tenantID, inbound)
	})

	if err := manager.Start(context.Background(), cfg.TenantID); err != nil {
		// The session retries from the admin API; the engine still serves.
		logger.Error("initial session start failed", "tenant_id", cfg.TenantID, "error", err)
	}

	sweeper := reminder.NewSweeper(reminder.Config{
		Store:    store,
		Sender:   manager,
		Notifier: dispatcher,
		Metrics:  engineMetrics,
		Logger:   logger,
		Tenants:  []string{cfg.TenantID},
		Interval: cfg.ReminderInterval,
		LeadMin:  cfg.ReminderLeadMin,
		LeadMax:  cfg.ReminderLeadMax,
		Location: time.Local,
	})
	sweeper.Start()
	defer sweeper.Stop()

	r := router.New(&router.Config{
		Logger:             logger,
		Session:            handlers.NewSessionHandler(manager, cfg.TenantID, logger),
		Notifications:      handlers.NewNotificationsHandler(store, cfg.TenantID, logger),
		Conversations:      handlers.NewConversationsHandler(store, cfg.TenantID, logger),
		Outbound:           handlers.NewOutboundHandler(manager, cfg.TenantID, logger),
		Stream:             handlers.NewStreamHandler(hub, cfg.TenantID, logger),
		AdminAuthSecret:    cfg.AdminJWTSecret,
		DefaultTenant:      cfg.TenantID,
		MetricsHandler:     promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	manager.Shutdown()

	logger.Info("engine stopped")
}
