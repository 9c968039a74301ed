package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kitchencloud/checkout-go/internal/config"
	"github.com/kitchencloud/checkout-go/internal/db"
	"github.com/kitchencloud/checkout-go/internal/events"
	"github.com/kitchencloud/checkout-go/internal/gateway"
	"github.com/kitchencloud/checkout-go/internal/httpapi"
	"github.com/kitchencloud/checkout-go/internal/payment"
)

func main() {
	cfg := config.Load()
	logger := log.New(os.Stdout, "", log.LstdFlags|log.Lmicroseconds)

	if cfg.GatewayKeySecret == "" {
		logger.Fatal("GATEWAY_KEY_SECRET not set")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- DB ---
	pool, err := db.NewPool(ctx, cfg.DatabaseDSN)
	if err != nil {
		logger.Fatalf("db connect: %v", err)
	}
	defer pool.Close()

	if cfg.RunMigrations {
		if err := db.RunMigrations(cfg.DatabaseDSN, logger); err != nil {
			logger.Fatalf("db migrate: %v", err)
		}
	}

	repo := payment.NewPostgresRepository(pool)

	// --- AMQP (optional) ---
	var publisher payment.EventPublisher
	if cfg.RabbitURL != "" {
		conn := events.MustDial(cfg.RabbitURL)
		defer conn.Close()

		pub, err := events.NewPublisher(conn)
		if err != nil {
			logger.Fatalf("start publisher: %v", err)
		}
		defer pub.Close()
		publisher = pub
	}

	// --- service + HTTP ---
	processor := gateway.NewClient(cfg.GatewayBaseURL, cfg.GatewayKeyID, cfg.GatewayKeySecret, &http.Client{
		Timeout: cfg.UpstreamTimeout,
	})
	svc := payment.NewService(repo, processor, cfg.GatewayKeyID, cfg.GatewayKeySecret, publisher, logger)

	metrics := httpapi.NewMetrics(prometheus.DefaultRegisterer)
	h := httpapi.NewPaymentHandler(svc, metrics)
	r := httpapi.NewRouter(h, metrics)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		logger.Printf("http listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// --- graceful shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Printf("shutdown signal: %s", sig)
	case err := <-errCh:
		logger.Printf("fatal error: %v", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = httpServer.Shutdown(shutdownCtx)
	cancel()

	logger.Printf("shutdown complete")
}
