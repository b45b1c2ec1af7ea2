package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ghostrecon/internal/app/gate"
	"ghostrecon/internal/app/presence"
	"ghostrecon/internal/app/protocol"
	"ghostrecon/internal/app/registry"
	"ghostrecon/internal/app/router"
	"ghostrecon/internal/app/server"
	"ghostrecon/internal/app/server/handlers"
	"ghostrecon/internal/app/server/ws"
	"ghostrecon/internal/app/worker"
	"ghostrecon/internal/config"
	"ghostrecon/internal/core/contracts"
	"ghostrecon/internal/core/services"
	"ghostrecon/internal/platform/logger"
	"ghostrecon/internal/platform/metrics"
	"ghostrecon/internal/platform/telemetry"
	"ghostrecon/internal/plugins/postgres"
	redisPlugin "ghostrecon/internal/plugins/redis"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "", "optional config file (yaml, json or toml)")
	flag.Parse()

	// Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Config
	cfg, err := config.Load(config.ConfigPath(*configPath))
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	// Logger
	log := logger.NewLogger(cfg, os.Stdout)
	if err := cfg.Validate(); err != nil {
		log.Error("config validation failed", "err", err)
		os.Exit(1)
	}
	log.Info("starting application", "version", cfg.Service.Version)

	otelShutdown, err := telemetry.InitTelemetry(ctx, cfg)
	if err != nil {
		log.Error("failed to initialize telemetry", "err", err)
	}
	defer func() {
		if otelShutdown == nil {
			return
		}
		log.Info("flushing telemetry...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			log.Error("telemetry shutdown failed", "err", err)
		}
	}()

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(promReg)

	// Infra
	pdb, err := postgres.Open(ctx, cfg.Postgres)
	if err != nil {
		log.Error("postgres connection failed", "err", err)
		return
	}
	defer pdb.Close()
	promReg.MustRegister(collectors.NewDBStatsCollector(pdb, "ghostrecon"))
	log.Info("postgres connected", "migrated", cfg.Postgres.Migrate)
	rdb, err := redisPlugin.Open(ctx, cfg.Redis, cfg.Service.Name)
	if err != nil {
		log.Error("redis connection failed", "err", err)
		return
	}
	defer rdb.Close()
	log.Info("redis connected")

	// Adapters
	userRepo := postgres.NewUserRepository(pdb)
	contactRepo := postgres.NewContactRepository(pdb)
	convRepo := postgres.NewConversationRepository(pdb)
	msgRepo := postgres.NewMessageRepository(pdb)
	callRepo := postgres.NewCallRepository(pdb)
	keyRepo := postgres.NewGroupKeyRepository(pdb)
	txManager := postgres.NewTxManager(pdb)
	presenceMirror := redisPlugin.NewPresenceStore(rdb)

	// Realtime core
	presenceWorker := worker.NewPresenceWorker(log, presence.NewStore(userRepo, presenceMirror), m, worker.PresenceConfig{
		Shards:       cfg.Presence.Shards,
		ShardBuffer:  cfg.Presence.ShardBuffer,
		WriteTimeout: cfg.Presence.WriteTimeout,
	})
	expiryWorker := worker.NewExpiryWorker(log, msgRepo, m, cfg.Worker.ExpiryInterval)
	hub := registry.NewRegistry(log, presenceWorker, m)
	delivery := router.NewRouter(log, hub, convRepo, m)
	tokenSvc := services.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	sessionGate := gate.NewGate(log, tokenSvc, m)
	sessions := protocol.NewHandler(log, hub, delivery, m)

	// Core Services
	userSvc := services.NewUserService(log, services.UserStores{
		Users:         userRepo,
		Contacts:      contactRepo,
		Conversations: convRepo,
		Messages:      msgRepo,
		Calls:         callRepo,
	}, tokenSvc, txManager, cfg.Auth.BcryptCost)
	contactSvc := services.NewContactService(log, userRepo, contactRepo, presenceMirror)
	convSvc := services.NewConversationService(log, userRepo, convRepo, msgRepo, presenceMirror, txManager)
	msgSvc := services.NewMessageService(log, userRepo, convRepo, msgRepo, delivery, txManager)
	callSvc := services.NewCallService(log, userRepo, callRepo, delivery)
	groupSvc := services.NewGroupKeyService(log, convRepo, keyRepo, delivery, txManager)

	// Server
	srv := server.NewServer(log, cfg, server.Handlers{
		Auth:          handlers.NewAuthHandler(userSvc),
		Security:      handlers.NewSecurityHandler(userSvc),
		Contacts:      handlers.NewContactHandler(contactSvc),
		Conversations: handlers.NewConversationHandler(convSvc),
		Messages:      handlers.NewMessageHandler(msgSvc),
		Calls:         handlers.NewCallHandler(callSvc),
		Groups:        handlers.NewGroupHandler(groupSvc),
		WebRTC:        handlers.NewWebRTCHandler(cfg.WebRTC.ICEServers, cfg.WebRTC.CandidatePoolSize),
		WS: handlers.NewWSHandler(context.WithoutCancel(ctx), sessionGate, hub, sessions, ws.Options{
			ReadLimit:    cfg.WebSocket.ReadLimit,
			WriteTimeout: cfg.WebSocket.WriteTimeout,
			IdleTimeout:  cfg.WebSocket.IdleTimeout,
			SendBuffer:   cfg.WebSocket.SendBuffer,
		}, cfg.HTTP.AllowedOrigins),
	}, tokenSvc, promReg)

	// Workers outlive the sessions: every teardown queues an offline
	// transition that must still be written.
	workerCtx, stopWorkers := context.WithCancel(context.WithoutCancel(ctx))
	defer stopWorkers()
	workers, wctx := errgroup.WithContext(workerCtx)
	for _, w := range []contracts.BackgroundWorker{presenceWorker, expiryWorker} {
		workers.Go(func() error {
			w.Run(wctx)
			return nil
		})
	}

	serveErr := srv.Start(ctx)
	if serveErr != nil {
		log.Error("server stopped with error", "err", serveErr)
	}

	drainTimeout := cfg.HTTP.ShutdownTimeout
	if drainTimeout <= 0 {
		drainTimeout = 10 * time.Second
	}
	drainCtx, cancelDrain := context.WithTimeout(context.Background(), drainTimeout)
	if err := sessions.Shutdown(drainCtx); err != nil {
		log.Warn("sessions did not drain before timeout", "err", err)
	}
	cancelDrain()
	stopWorkers()
	_ = workers.Wait()

	if serveErr != nil {
		return
	}
	log.Info("application stopped")
}
