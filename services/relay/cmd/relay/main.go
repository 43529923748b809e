package main

import (
	"log"
	"log/slog"
	"net/http"
	"time"

	"qride/internal/ratelimit"
	"qride/internal/util"
	"qride/pkg/events"
	"qride/services/relay/internal/app"
	"qride/services/relay/internal/config"
	"qride/services/relay/internal/security"
	"qride/services/relay/internal/server"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)

	var publisher *events.Publisher
	if cfg.AMQPURL != "" {
		publisher, err = events.NewPublisher(cfg.AMQPURL)
		if err != nil {
			log.Fatalf("failed to connect event publisher: %v", err)
		}
		defer publisher.Close()
	}

	appCore, err := app.New(app.Config{
		DatabaseURL:   cfg.DatabaseURL,
		QueueBackend:  cfg.QueueBackend,
		QueueFilePath: cfg.QueueFilePath,
		QueueStream:   cfg.QueueStream,
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		EgressPolicy:  app.EgressPolicy(cfg.EgressPolicy),
		Events:        publisher,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	var sendLimiter server.RateLimiter
	if cfg.SendRateLimitPerMinute > 0 {
		limiter, err := ratelimit.NewRedisFixedWindowLimiter(
			cfg.RedisAddr, cfg.RedisPassword, "qride:relay:send",
			cfg.SendRateLimitPerMinute, time.Minute,
		)
		if err != nil {
			log.Fatalf("failed to init rate limiter: %v", err)
		}
		sendLimiter = limiter
	}

	trustedProxies, err := util.NewTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		log.Fatalf("failed to parse trusted proxies: %v", err)
	}

	httpServer := server.New(server.Config{
		App:            appCore,
		RelaySecret:    cfg.RelaySecret,
		SendLimiter:    sendLimiter,
		Alerter:        security.NewAuditAlerter(cfg.RedisAddr, cfg.RedisPassword, ""),
		TrustedProxies: trustedProxies,
	})

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("relay server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}
