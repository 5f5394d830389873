package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fileflow/fileflow/internal/api"
	"github.com/fileflow/fileflow/internal/chain"
	"github.com/fileflow/fileflow/internal/config"
	"github.com/fileflow/fileflow/internal/watcher"
	"github.com/fileflow/fileflow/processor"
	"github.com/fileflow/fileflow/processor/builtin"
)

func main() {
	// Add command-line flags
	configFile := flag.String("config", "", "Path to the YAML configuration file")
	root := flag.String("root", "", "Directory to watch (overrides config)")
	pluginsDir := flag.String("plugins", "", "Directory containing processor .so files")
	processExisting := flag.Bool("process-existing", false, "Process files already present under the root before watching")
	workers := flag.Int("workers", 0, "Worker pool size for existing-file processing (overrides config)")
	apiPort := flag.Int("api-port", 0, "Port for the management API (0 disables it)")
	metricsAddr := flag.String("metrics", "", "Address for the Prometheus metrics endpoint (overrides config)")
	flag.Parse()

	cfg := config.Default()
	if *configFile != "" {
		loaded, err := config.Load(*configFile)
		if err != nil {
			log.Fatalf("Error loading config: %v", err)
		}
		cfg = loaded
	}
	if *root != "" {
		cfg.Root = *root
	}
	if *workers > 0 {
		cfg.Workers = *workers
	}
	if *processExisting {
		cfg.ProcessExisting = true
	}
	if *apiPort > 0 {
		cfg.APIPort = *apiPort
	}
	if *metricsAddr != "" {
		cfg.MetricsAddr = *metricsAddr
	}
	if *pluginsDir != "" {
		cfg.PluginDirs = append(cfg.PluginDirs, *pluginsDir)
	}

	if _, err := os.Stat(cfg.Root); err != nil {
		log.Fatalf("Watch root %s is not accessible: %v", cfg.Root, err)
	}

	// Build the registry from builtin factories plus any plugin directories.
	registry := processor.NewRegistry(builtin.Sources()...)
	for _, dir := range cfg.PluginDirs {
		registry.AddPluginDir(dir)
	}
	registry.Discover()

	for _, p := range registry.Processors() {
		overrides := cfg.ParamsFor(processor.Namespace(p))
		if err := processor.ConfigureProcessor(p, overrides); err != nil {
			log.Printf("Error configuring %s: %v", p.Name(), err)
		}
	}

	stats := registry.Stats()
	if stats.TotalProcessors == 0 {
		log.Println("No processors loaded! Files will be detected but not processed.")
	}
	for _, info := range stats.Processors {
		log.Printf("  - %s v%s: %v", info.Name, info.Version, info.SupportedExtensions)
	}

	executor := chain.New(registry, cfg.WatcherConfig().ProcessTimeout, cfg.MaxConcurrent)
	dispatcher := watcher.New(cfg.WatcherConfig(), registry, executor)

	// Start Prometheus metrics endpoint
	if cfg.MetricsAddr != "" {
		go func() {
			log.Printf("Starting metrics server on %s", cfg.MetricsAddr)
			http.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(cfg.MetricsAddr, nil); err != nil {
				log.Printf("Error starting metrics server: %v", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := dispatcher.Start(ctx, cfg.ProcessExisting); err != nil {
		log.Fatalf("Error starting watcher: %v", err)
	}

	var apiServer *api.Server
	if cfg.APIPort > 0 {
		apiServer = api.NewServer(cfg.APIPort, registry, executor, dispatcher)
		if err := apiServer.Start(ctx); err != nil {
			log.Printf("Warning: failed to start API server: %v", err)
		}
	}

	// Handle OS signals for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh
	log.Println("Received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if apiServer != nil {
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("Error shutting down API server: %v", err)
		}
	}
	if err := dispatcher.Stop(); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	log.Println("Shutdown complete")
}
