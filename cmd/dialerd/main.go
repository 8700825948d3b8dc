package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dialer-platform/internal/audio"
	"dialer-platform/internal/audit"
	"dialer-platform/internal/auth"
	"dialer-platform/internal/call"
	"dialer-platform/internal/conference"
	"dialer-platform/internal/config"
	"dialer-platform/internal/contacts"
	"dialer-platform/internal/dialer"
	"dialer-platform/internal/httpapi"
	"dialer-platform/internal/media"
	"dialer-platform/internal/monitor"
	"dialer-platform/internal/notify"
	"dialer-platform/internal/queue"
	"dialer-platform/internal/reporting"
	"dialer-platform/internal/telephony"
	"dialer-platform/migrations"
	"dialer-platform/pkg/logger"
	"dialer-platform/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := migrations.Up(rootCtx, db); err != nil {
		log.Error("migrations failed", "err", err)
		os.Exit(1)
	}

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	provider, err := telephony.NewTwilioDialer(cfg.Provider)
	if err != nil {
		log.Error("provider init failed", "err", err)
		os.Exit(1)
	}

	notifier := notify.SlogSink{Log: log}

	// Device capture is injected per deployment; the default build runs the
	// audio leg entirely over the provider stream.
	capture := audio.NewCapture(audio.Config{
		SampleRate:   cfg.Audio.SampleRate,
		FrameSamples: cfg.Audio.FrameSamples,
		RMSThreshold: cfg.Audio.RMSThreshold,
	}, &audio.SilentSource{}, audio.StaticProbe{Granted: true}, log)

	// relay <-> manager are mutually aware; the proxy breaks construction order
	proxy := &managerProxy{}
	relay := media.NewRelay(media.Config{
		Transport:      &media.WSTransport{URL: cfg.Provider.MediaWSURL},
		Capture:        capture,
		Events:         proxy,
		Gauge:          proxy,
		ReconnectDelay: cfg.Dialer.ReconnectDelay,
		Log:            log,
	})
	defer relay.Close()

	callManager := call.NewManager(provider, relay, capture, notifier,
		cfg.Provider, int(cfg.Dialer.NoAnswerTimeout/time.Second), log)
	proxy.set(callManager)

	statusMonitor := monitor.New(provider, callManager, capture, notifier,
		cfg.Dialer.StatusPollInterval, log)
	callManager.SetPoller(statusMonitor)
	defer statusMonitor.Close()

	conferences := conference.NewCoordinator(relay, capture, log)

	queueService := queue.NewService(
		queue.NewPostgresRepo(db),
		queue.RedisPublisher{RDB: rdb, Log: log},
		log,
	)
	contactStore := contacts.NewPostgresStore(db)

	reportService := reporting.NewService(reporting.NewPostgresRepo(db))
	auditService := audit.NewService(audit.NewPostgresRepo(db))

	autoDialer := dialer.NewController(queueService, contactStore, callManager,
		dialer.RedisLimiter{RDB: rdb, Limit: cfg.Dialer.MaxConcurrent, TTL: 10 * time.Minute},
		cfg.Dialer.NoAnswerTimeout, log)
	autoDialer.SetAttemptSink(reportService)
	statusMonitor.SetTransitionHook(autoDialer.OnTransition)

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	h := httpapi.Handlers{
		Auth:       authManager,
		Calls:      callManager,
		Queue:      queueService,
		Dialer:     autoDialer,
		Conference: conferences,
		Reports:    reportService,
		Audit:      auditService,
	}
	registerRoutes(r, h, authManager, statusMonitor, db)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("dialerd listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}

	// teardown order: live calls first, then media, then device
	autoDialer.StopDialer()
	callManager.HangupAll(shutdownCtx)
	relay.Close()
	capture.Stop()

	_ = logger.ShutdownFlush(shutdownCtx, 2*time.Second)
}
