package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"example.com/liftlink/internal/api"
	"example.com/liftlink/internal/channel"
	"example.com/liftlink/internal/channel/kafkatransport"
	"example.com/liftlink/internal/config"
	"example.com/liftlink/internal/session"
	"example.com/liftlink/internal/store/postgres"
	httptransport "example.com/liftlink/internal/transport/http"
)

func main() {
	cfg := config.LoadPrimary()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	transport := kafkatransport.New(ctx, kafkatransport.Config{
		Brokers:           cfg.KafkaBrokers,
		InboundTopic:      cfg.PrimaryTopic,
		OutboundTopic:     cfg.CompanionTopic,
		GroupID:           cfg.GroupID,
		HeartbeatInterval: cfg.HeartbeatInterval,
	})

	ch := channel.New(transport, channel.WithRequestTimeout(cfg.RequestTimeout))
	primary := session.NewPrimary(postgres.NewRepository(pool), ch, cfg.UserID)

	if err := ch.Activate(ctx); err != nil {
		log.Fatalf("channel activation failed: %v", err)
	}
	defer ch.Close()

	if err := primary.RefreshAll(ctx); err != nil {
		log.Printf("initial refresh incomplete: %v", err)
	}

	handler := api.NewHandler(primary)
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.Handle("/metrics", promhttp.Handler())

	server := httptransport.NewLoopbackServer(cfg.HTTPAddress, httptransport.AccessLog(log.Default(), mux))

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("primary node listening on %s", cfg.HTTPAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-shutdownCh
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
}
