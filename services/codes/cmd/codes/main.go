package main

import (
	"log"
	"log/slog"
	"net/http"
	"time"

	"qride/internal/util"
	"qride/pkg/sms"
	"qride/services/codes/internal/app"
	"qride/services/codes/internal/config"
	"qride/services/codes/internal/server"
	"qride/services/codes/internal/token"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	tokenTTL, err := config.ParseTokenTTL(cfg.AdminTokenTTL)
	if err != nil {
		log.Fatalf("failed to parse token TTL: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)

	tokens, err := token.NewManager(cfg.AdminTokenSecret, tokenTTL)
	if err != nil {
		log.Fatalf("failed to init token manager: %v", err)
	}

	var verify sms.VerifyGateway
	switch cfg.VerifyGateway {
	case "alibaba":
		verify, err = sms.NewAlibabaVerifyGateway(sms.AlibabaVerifyConfig{
			AccessKeyID:     cfg.AliAccessKeyID,
			AccessKeySecret: cfg.AliAccessKeySecret,
			SignName:        cfg.AliSignName,
			TemplateCode:    cfg.AliTemplateCode,
		})
		if err != nil {
			log.Fatalf("failed to init verify gateway: %v", err)
		}
	case "memory":
		verify = sms.NewMemoryVerifyGateway()
	}

	appCore, err := app.New(app.Config{
		DatabaseURL:       cfg.DatabaseURL,
		RedisAddr:         cfg.RedisAddr,
		RedisPassword:     cfg.RedisPassword,
		AdminPasswordHash: cfg.AdminPasswordHash,
		Tokens:            tokens,
		Verify:            verify,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	httpServer := server.New(server.Config{
		App: appCore,
	})

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("codes server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}
