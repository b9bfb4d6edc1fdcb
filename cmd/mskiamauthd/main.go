// mskiamauthd is a small daemon that loads an AWS_MSK_IAM SigV4 signing
// configuration, keeps its credentials refreshed, and exposes Prometheus
// metrics and a health check — the "enclosing client instance" spec.md
// §3/§9 refers to, modeled directly on the teacher's cmd/synthetics/main.go.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brightloop/mskiamauth"
	"github.com/brightloop/mskiamauth/internal/config"
	"github.com/brightloop/mskiamauth/internal/logging"
	"github.com/brightloop/mskiamauth/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logging.SetLevel(cfg.Logging.Level)

	log.Printf("Starting mskiamauthd (region=%s, enable_sts=%v)", cfg.AWS.Region, cfg.AWS.EnableSTS)

	metricsCollector := metrics.NewCollector()

	client, err := mskiamauth.New(cfg, metricsCollector)
	if err != nil {
		log.Fatalf("Failed to initialize client: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client.Start(ctx)
	defer client.Close()

	go func() {
		for authErr := range client.Errors() {
			log.Printf("authentication error: %s", authErr.Text)
		}
	}()

	mux := http.NewServeMux()
	mux.Handle(cfg.Metrics.Path, promhttp.Handler())
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprintf(w, "mskiamauthd\n\nEndpoints:\n  %s - Prometheus metrics\n  /health - Health check\n", cfg.Metrics.Path)
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting HTTP server on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start HTTP server: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Received shutdown signal, shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	log.Println("Shutdown complete")
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK\n")
}
