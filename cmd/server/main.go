package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"

	"kidneyserve/artifact"
	"kidneyserve/config"
	khttp "kidneyserve/http"
	"kidneyserve/logging"
	"kidneyserve/ml"
	"kidneyserve/monitoring"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	// Look for config in root even if run from cmd/server
	if _, err := os.Stat(*configPath); os.IsNotExist(err) && !filepath.IsAbs(*configPath) {
		if alt := filepath.Join("..", "..", *configPath); fileExists(alt) {
			*configPath = alt
		}
	}

	// 1. Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	policy, err := ml.ParseUnknownCategoryPolicy(cfg.Pipeline.UnknownCategoryPolicy)
	if err != nil {
		logger.Fatal("invalid pipeline config", zap.Error(err))
	}

	// 2. Load artifacts; the service never starts without a complete bundle
	artifactsPath := cfg.Artifacts.Path
	if !filepath.IsAbs(artifactsPath) && filepath.Dir(*configPath) != "." {
		artifactsPath = filepath.Join(filepath.Dir(*configPath), artifactsPath)
	}
	src, err := artifact.Open(cfg.Artifacts.Source, artifactsPath)
	if err != nil {
		logger.Fatal("failed to open artifacts", zap.String("path", artifactsPath), zap.Error(err))
	}
	bundle, err := artifact.Load(src)
	src.Close()
	if err != nil {
		logger.Fatal("failed to load artifacts", zap.String("source", src.Describe()), zap.Error(err))
	}
	logger.Info("artifacts loaded",
		zap.String("source", src.Describe()),
		zap.Int("features", bundle.Schema.Len()),
		zap.Strings("classes", bundle.Target.Classes),
		zap.String("unknown_category_policy", string(policy)),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Artifacts.Watch {
		if ds, ok := src.(*artifact.DirSource); ok {
			if err := artifact.Watch(ctx, ds.Dir(), logger); err != nil {
				logger.Warn("artifact watcher disabled", zap.Error(err))
			}
		}
	}

	metrics := monitoring.NewMetricsCollector()
	fallbacks, err := monitoring.NewFallbackLog(cfg.Monitoring.FallbackLogSize, metrics)
	if err != nil {
		logger.Fatal("invalid monitoring config", zap.Error(err))
	}
	predictor := ml.NewPredictor(bundle, ml.PipelineOptions{
		Policy:       policy,
		ImputeAbsent: cfg.Pipeline.ImputeAbsent,
		Observer:     fallbacks,
	})

	// 3. Start HTTP server
	server := khttp.NewServer(khttp.ServerConfig{
		Port:           cfg.Http.Port,
		Timeout:        cfg.Http.Timeout,
		MaxBodyBytes:   cfg.Http.MaxBodyBytes,
		AllowedOrigins: cfg.Http.AllowedOrigins,
	}, &khttp.Service{
		Predictor: predictor,
		Bundle:    bundle,
		Metrics:   metrics,
		Fallbacks: fallbacks,
		Logger:    logger,
	})
	go func() {
		if err := server.Start(); err != nil {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	// 4. Handle graceful shutdown
	<-ctx.Done()
	logger.Info("shutting down", zap.String("addr", server.Addr()))

	if err := server.Stop(context.Background()); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	logger.Info("exiting")
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
