package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"example.com/liftlink/internal/channel"
	"example.com/liftlink/internal/channel/kafkatransport"
	"example.com/liftlink/internal/config"
	"example.com/liftlink/internal/session"
	httptransport "example.com/liftlink/internal/transport/http"
)

func main() {
	cfg := config.LoadCompanion()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	transport := kafkatransport.New(ctx, kafkatransport.Config{
		Brokers:           cfg.KafkaBrokers,
		InboundTopic:      cfg.CompanionTopic,
		OutboundTopic:     cfg.PrimaryTopic,
		GroupID:           cfg.GroupID,
		HeartbeatInterval: cfg.HeartbeatInterval,
	})

	ch := channel.New(transport, channel.WithRequestTimeout(cfg.RequestTimeout))
	companion := session.NewCompanion(ch)

	if err := ch.Activate(ctx); err != nil {
		log.Fatalf("channel activation failed: %v", err)
	}
	defer ch.Close()

	companion.RefreshAll(ctx)

	// The wrist UI process reads the mirror through this loopback surface.
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/exercises", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, companion.Exercises())
	})
	mux.HandleFunc("/v1/sets/today", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, companion.TodaySets())
	})
	mux.HandleFunc("/v1/last-weights", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, companion.LastWeights())
	})
	mux.HandleFunc("/v1/sets", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "unsupported method", http.StatusMethodNotAllowed)
			return
		}
		var req struct {
			ExerciseID string   `json:"exercise_id"`
			Weight     float64  `json:"weight"`
			Reps       int      `json:"reps"`
			RPE        *float64 `json:"rpe,omitempty"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "unable to parse body", http.StatusBadRequest)
			return
		}
		saved, result, err := companion.LogSet(r.Context(), req.ExerciseID, req.Weight, req.Reps, req.RPE)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		writeJSON(w, map[string]any{"set": saved, "pr_result": result})
	})
	mux.HandleFunc("/v1/status", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, companion.Status())
	})
	mux.Handle("/metrics", promhttp.Handler())

	server := httptransport.NewLoopbackServer(cfg.HTTPAddress, httptransport.AccessLog(log.Default(), mux))

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("companion node listening on %s", cfg.HTTPAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-shutdownCh
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
}

func writeJSON(w http.ResponseWriter, body any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}
