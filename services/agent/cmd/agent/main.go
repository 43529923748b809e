package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"qride/internal/util"
	"qride/pkg/events"
	"qride/pkg/relayclient"
	"qride/pkg/sms"
	"qride/services/agent/internal/config"
	"qride/services/agent/internal/dashboard"
	"qride/services/agent/internal/statuslog"
	"qride/services/agent/internal/worker"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	pollInterval, err := config.ParsePollInterval(cfg.PollInterval)
	if err != nil {
		log.Fatalf("failed to parse poll interval: %v", err)
	}

	util.InitLogger(cfg.LogLevel)

	var sender sms.Sender
	switch cfg.Sender {
	case "noop":
		sender = sms.NoopSender{}
	default:
		sender = sms.NewCommandSender(cfg.SenderCommand)
	}

	statusLog, err := statuslog.New(cfg.StatusLogPath)
	if err != nil {
		log.Fatalf("failed to open status log: %v", err)
	}

	var publisher *events.Publisher
	if cfg.AMQPURL != "" {
		publisher, err = events.NewPublisher(cfg.AMQPURL)
		if err != nil {
			log.Fatalf("failed to connect event publisher: %v", err)
		}
		defer publisher.Close()
	}

	w := worker.New(worker.Config{
		Relay:     relayclient.NewClient(cfg.RelayURL, cfg.RelaySecret),
		Sender:    sender,
		StatusLog: statusLog,
		Events:    publisher,
		Interval:  pollInterval,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return w.Run(ctx)
	})

	// The dashboard is opt-in; it binds on the device itself for a local
	// view of the status log.
	if cfg.DashboardAddr != "" {
		dash := &http.Server{
			Addr:         cfg.DashboardAddr,
			Handler:      dashboard.New(statusLog).Router(),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		}
		g.Go(func() error {
			slog.Info("dashboard listening", "addr", cfg.DashboardAddr)
			if err := dash.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return dash.Shutdown(shutdownCtx)
		})
	}

	slog.Info("agent polling relay", "relay_url", cfg.RelayURL, "sender", cfg.Sender)
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("agent stopped: %v", err)
	}
	slog.Info("agent stopped")
}
