package main

import (
	"TwinGuard/internal/bridge"
	"TwinGuard/internal/config"
	"TwinGuard/internal/metrics"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to the configuration file.")
	metricsAddr := flag.String("metrics-addr", ":9101", "Listen address for the /metrics endpoint.")
	flag.Parse()

	log.Println("Starting tg-bridge...")

	// 1. Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.Println("Configuration loaded successfully.")

	// 2. Connect to the bus and start forwarding. The bridge scores every
	// data message through the HTTP service and blocks on any failure.
	b, err := bridge.NewBridge(cfg.Bridge, metrics.New())
	if err != nil {
		log.Fatalf("Failed to create bridge: %v", err)
	}
	if err := b.Start(); err != nil {
		log.Fatalf("Failed to subscribe: %v", err)
	}
	log.Printf("Forwarding %s.%s.in.> through %s", cfg.Bridge.IngressRoot, cfg.Bridge.GatewayID, cfg.Bridge.APIURL)

	// 3. Expose bridge metrics
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		log.Printf("Metrics listening on %s", *metricsAddr)
		if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
			log.Printf("Metrics server failed: %v", err)
		}
	}()

	// 4. Wait for a shutdown signal for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutdown signal received, stopping bridge...")
	b.Close()
	log.Println("Shutdown complete.")
}
