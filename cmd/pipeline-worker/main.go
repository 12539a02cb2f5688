package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/in4it/imagepipe/pkg/config"
	"github.com/in4it/imagepipe/pkg/metrics"
	"github.com/in4it/imagepipe/pkg/pipeline"
	"github.com/juju/loggo"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var logger = loggo.GetLogger("pipeline-worker")

func main() {
	var (
		configPath  string
		envFile     string
		metricsAddr string
		transport   string
		storageType string
		storagePath string
	)
	flag.StringVar(&configPath, "config", "", "path to the pipeline config (yaml)")
	flag.StringVar(&envFile, "env-file", ".env", "dotenv file with overrides")
	flag.StringVar(&metricsAddr, "metrics-addr", "", "listen address for /metrics (overrides config)")
	flag.StringVar(&transport, "transport", "", "queue transport: sqs or memory (overrides config)")
	flag.StringVar(&storageType, "storage-type", "", "storage type: dynamodb or local (overrides config)")
	flag.StringVar(&storagePath, "storage-path", "", "storage path for local storage")

	flag.Parse()

	cfg, err := config.Load(configPath, envFile)
	if err != nil {
		panic(err)
	}
	if metricsAddr != "" {
		cfg.MetricsAddr = metricsAddr
	}
	if transport != "" {
		cfg.Transport = transport
	}
	if storageType != "" {
		cfg.Storage.Type = storageType
	}
	if storagePath != "" {
		cfg.Storage.Path = storagePath
	}
	if err := cfg.Validate(); err != nil {
		panic(err)
	}

	loggo.ConfigureLoggers(cfg.LogConfig)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	p, err := pipeline.Build(ctx, cfg, m)
	if err != nil {
		logger.Errorf("Couldn't build pipeline: %s", err)
		os.Exit(1)
	}

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		server := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
		go func() {
			logger.Infof("Serving metrics on %s", cfg.MetricsAddr)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Errorf("Metrics server stopped: %s", err)
			}
		}()
		defer server.Close()
	}

	logger.Infof("Starting consumers (transport: %s, storage: %s)", cfg.Transport, cfg.Storage.Type)
	p.Run(ctx)
	logger.Infof("Shutdown complete")
}
