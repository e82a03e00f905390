package main

import (
	"TwinGuard/internal/api"
	"TwinGuard/internal/classifier"
	"TwinGuard/internal/config"
	"TwinGuard/internal/feature"
	"TwinGuard/internal/flowstats"
	"TwinGuard/internal/fusion"
	"TwinGuard/internal/metrics"
	"TwinGuard/internal/pipeline"
	"TwinGuard/internal/query"
	"TwinGuard/internal/sink"
	"TwinGuard/internal/vitals"
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to the configuration file.")
	flag.Parse()

	log.Println("Starting tg-api...")

	// 1. Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.Println("Configuration loaded successfully.")

	// 2. Load the classifier artifact. A missing or broken artifact is not
	// fatal: the service comes up degraded and reports 503 until redeployed
	// with a valid model.
	var engine *pipeline.Engine
	var featureNames []string
	m := metrics.New()

	clf, err := classifier.Load(cfg.Classifier.ModelPath)
	if err != nil {
		log.Printf("WARNING: failed to load model from %s: %v", cfg.Classifier.ModelPath, err)
		log.Println("Serving in degraded mode, scoring requests will be rejected.")
	} else {
		featureNames = clf.FeatureNames()
		log.Printf("Model loaded with %d features.", len(featureNames))

		// 3. Assemble the scoring pipeline
		idleTimeout, err := cfg.Pipeline.IdleTimeoutDuration()
		if err != nil {
			log.Fatalf("Invalid pipeline config: %v", err)
		}
		tracker := flowstats.NewTracker(idleTimeout)
		synth := feature.NewSynthesizer(tracker, featureNames, feature.Options{
			DstAddr:          cfg.API.ServiceAddr,
			DstPort:          cfg.API.ServicePort,
			ApproxEventBytes: cfg.Pipeline.ApproxEventBytes,
			LocalClamp:       cfg.Pipeline.LocalClamp,
		})
		rules := vitals.NewRuleEngine(cfg.Vitals)
		fuser := fusion.NewFuser(cfg.Pipeline.VitalsConfidence)
		engine = pipeline.NewEngine(synth, clf, rules, fuser, m)
	}

	// 4. Wire the verdict sinks onto the broadcaster. Each sink drains its
	// own subscription so a slow writer never stalls scoring.
	var wg sync.WaitGroup
	var closers []func()
	if engine != nil {
		if cfg.NATS.Enabled {
			pub, err := sink.NewNATSPublisher(cfg.NATS.URL, cfg.NATS.VerdictRoot)
			if err != nil {
				log.Fatalf("Failed to connect to NATS: %v", err)
			}
			ch := engine.Broadcaster().Subscribe("nats", 256)
			sink.Consume(&wg, "nats", ch, pub)
			closers = append(closers, func() { engine.Broadcaster().Unsubscribe(ch) })
			log.Printf("Publishing verdicts to NATS at %s under %s.*", cfg.NATS.URL, cfg.NATS.VerdictRoot)
		}
		if cfg.Sinks.Text.Enabled {
			tw, err := sink.NewTextWriter(cfg.Sinks.Text.RootPath)
			if err != nil {
				log.Fatalf("Failed to open text sink: %v", err)
			}
			ch := engine.Broadcaster().Subscribe("text", 256)
			sink.Consume(&wg, "text", ch, tw)
			closers = append(closers, func() { engine.Broadcaster().Unsubscribe(ch) })
			log.Printf("Writing verdicts to %s", cfg.Sinks.Text.RootPath)
		}
		if cfg.Sinks.ClickHouse.Enabled {
			cw, err := sink.NewClickHouseWriter(cfg.Sinks.ClickHouse)
			if err != nil {
				log.Fatalf("Failed to connect to ClickHouse: %v", err)
			}
			ch := engine.Broadcaster().Subscribe("clickhouse", 256)
			sink.Consume(&wg, "clickhouse", ch, cw)
			closers = append(closers, func() { engine.Broadcaster().Unsubscribe(ch) })
			log.Println("Writing verdicts to ClickHouse.")
		}
	}

	// 5. Start the HTTP server
	server := api.NewServer(engine, featureNames)
	if cfg.Sinks.ClickHouse.Enabled {
		querier, err := query.NewClickHouseQuerier(cfg.Sinks.ClickHouse)
		if err != nil {
			log.Fatalf("Failed to connect querier to ClickHouse: %v", err)
		}
		defer querier.Close()
		server.WithQuerier(querier)
		log.Println("Verdict history endpoints enabled.")
	}
	httpServer := &http.Server{
		Addr:    cfg.API.ListenAddr,
		Handler: server.Router(),
	}
	go func() {
		log.Printf("HTTP server listening on %s", cfg.API.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	// 6. Wait for a shutdown signal for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutdown signal received, stopping server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	// Unsubscribing closes each sink channel; Consume drains and closes the
	// writer on its way out.
	for _, unsubscribe := range closers {
		unsubscribe()
	}
	wg.Wait()
	log.Println("Shutdown complete.")
}
