package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"logshare/config"
	"logshare/gateway/core"
	gwhttp "logshare/gateway/http"
	"logshare/internal/messaging/producer"
	"logshare/internal/orgs"
	"logshare/ledger/client"
	"logshare/ledger/client/chainmaker"
)

func main() {
	configDir := flag.String("config", "./config", "configuration directory")
	flag.Parse()

	logger := log.New(os.Stdout, "[LOG-GW] ", log.LstdFlags|log.Lshortfile)
	logger.Println("Starting Security Log Gateway...")

	// 1. Load configuration directory
	cfg, err := config.LoadConfig(*configDir)
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.Gateway == nil {
		cfg.Gateway = &config.GatewayConfig{}
		cfg.Gateway.SetDefaults()
	}
	if cfg.Ledger == nil {
		cfg.Ledger = &config.LedgerConfig{}
	}

	// 2. Organization resolver
	resolver := orgs.NewResolver(cfg.Orgs)
	logger.Printf("Serving organizations: %v", resolver.IDs())

	// 3. Ledger client factory
	var chainCfg *chainmaker.Config
	if cfg.Ledger.Backend == string(client.ChainMaker) {
		path := cfg.Ledger.ChainMakerConfigPath
		if !filepath.IsAbs(path) {
			path = filepath.Join(*configDir, path)
		}
		chainCfg, err = chainmaker.LoadConfig(path)
		if err != nil {
			logger.Fatalf("Failed to load ChainMaker client configuration: %v", err)
		}
	}
	requestTimeout := config.ParseDurationOr(cfg.Ledger.RequestTimeout, 30*time.Second)
	factory, err := client.NewFactory(client.Backend(cfg.Ledger.Backend), requestTimeout, chainCfg, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize ledger client factory: %v", err)
	}
	defer factory.Close()

	// 4. [Conditional startup] Kafka mutation mirror
	var mirror producer.Producer
	if cfg.Gateway.KafkaMirror.Enabled {
		logger.Println("Initializing Kafka mirror producer...")
		kafkaProducer, err := producer.NewKafkaProducer(cfg.Gateway.KafkaMirror, logger)
		if err != nil {
			logger.Fatalf("Failed to initialize Kafka mirror producer: %v", err)
		}
		defer kafkaProducer.Close()
		mirror = kafkaProducer
	} else {
		logger.Println("Kafka mirror disabled, mutation events will not be published.")
	}

	// 5. Core service and HTTP surface
	service := core.NewService(factory, mirror, logger)
	handler := gwhttp.NewHandler(service, resolver, logger, cfg.Gateway.MaxBodyBytes)
	router := gwhttp.NewRouter(handler, cfg.Gateway.Monitoring.HealthCheckPath)

	httpServer := &http.Server{
		Addr:           cfg.Gateway.HttpListenAddr,
		Handler:        router,
		ReadTimeout:    config.ParseDurationOr(cfg.Gateway.HttpServer.ReadTimeout, 15*time.Second),
		WriteTimeout:   config.ParseDurationOr(cfg.Gateway.HttpServer.WriteTimeout, 60*time.Second),
		IdleTimeout:    config.ParseDurationOr(cfg.Gateway.HttpServer.IdleTimeout, 60*time.Second),
		MaxHeaderBytes: maxHeaderBytes(cfg.Gateway.HttpServer.MaxHeaderBytes),
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Printf("HTTP server listening on %s", cfg.Gateway.HttpListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("HTTP server startup failed: %v", err)
		}
		logger.Println("HTTP server stopped listening.")
	}()

	// 6. Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Printf("Received shutdown signal: %s, starting graceful shutdown of gateway...", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Printf("HTTP server shutdown failed: %v", err)
	} else {
		logger.Println("HTTP server shutdown.")
	}

	wg.Wait()
	logger.Println("Gateway shutdown complete.")
}

func maxHeaderBytes(configured int) int {
	if configured > 0 {
		return configured
	}
	return 1 << 20 // 1 MB
}
