package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"growspace/config"
	"growspace/core"
	"growspace/indexer"
	"growspace/observability/logging"
	"growspace/observability/metrics"
	telemetry "growspace/observability/otel"
	"growspace/rpc"
	"growspace/storage"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "./growspace.toml", "path to node configuration")
	flag.Parse()

	if err := run(cfgPath); err != nil {
		fmt.Fprintf(os.Stderr, "growspaced: %v\n", err)
		os.Exit(1)
	}
}

func run(cfgPath string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	env := cfg.Environment
	if override := strings.TrimSpace(os.Getenv("GROWSPACE_ENV")); override != "" {
		env = override
	}
	logger, logCloser := logging.SetupWithOptions(logging.Options{
		Service: "growspaced",
		Env:     env,
		Level:   logging.ParseLevel(cfg.LogLevel),
		File:    cfg.LogFile,
	})
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: telemetry.DefaultServiceName,
		Environment: env,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     telemetry.ParseHeaders(cfg.Telemetry.Headers),
		Metrics:     cfg.Telemetry.Metrics,
		Traces:      cfg.Telemetry.Traces,
		SampleRatio: cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", slog.Any("error", err))
		}
	}()

	params, err := cfg.GrowspaceParams()
	if err != nil {
		return err
	}
	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "state"))
	if err != nil {
		return err
	}
	defer db.Close()

	m := metrics.Growspace()
	node, err := core.NewNode(db, core.Options{Params: &params, Logger: logger, Metrics: m})
	if err != nil {
		return err
	}
	defer node.Close()

	genesis, err := genesisFromConfig(cfg.Genesis)
	if err != nil {
		return err
	}
	if applied, err := node.ApplyGenesis(ctx, genesis); err != nil {
		return fmt.Errorf("apply genesis: %w", err)
	} else if applied {
		logger.Info("initialised state from genesis", slog.String("root", node.StateRoot().Hex()))
	} else {
		logger.Info("resumed state",
			slog.Uint64("height", node.Height()),
			slog.String("root", node.StateRoot().Hex()))
	}

	indexDone := make(chan error, 1)
	if dsn := strings.TrimSpace(cfg.IndexerDSN); dsn != "" {
		indexDB, err := indexer.Open(dsn)
		if err != nil {
			return err
		}
		if sqlDB, err := indexDB.DB(); err == nil {
			defer sqlDB.Close()
		}
		ix := indexer.New(indexDB, logger, m)
		go func() { indexDone <- ix.Run(ctx, node.Events()) }()
	} else {
		indexDone <- nil
	}

	server, err := rpc.NewServer(node, rpc.Config{
		ListenAddress: cfg.ListenAddress,
		Auth: rpc.AuthConfig{
			Enabled:    cfg.Auth.Enabled,
			HMACSecret: cfg.Auth.Secret(),
			Issuer:     cfg.Auth.Issuer,
			Audience:   cfg.Auth.Audience,
			ClockSkew:  time.Duration(cfg.Auth.ClockSkewSeconds) * time.Second,
		},
		RateLimit: rpc.RateLimit{
			RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
			Burst:             cfg.RateLimit.Burst,
		},
	}, logger)
	if err != nil {
		return err
	}
	serveErr := server.ListenAndServe(ctx)
	stop()
	if err := <-indexDone; err != nil {
		logger.Warn("indexer stopped", slog.Any("error", err))
	}
	if serveErr != nil && !errors.Is(serveErr, context.Canceled) {
		return serveErr
	}
	logger.Info("shutdown complete", slog.Uint64("height", node.Height()))
	return nil
}

func genesisFromConfig(cfg config.GenesisConfig) (core.Genesis, error) {
	var genesis core.Genesis
	allocations, err := cfg.Allocations()
	if err != nil {
		return genesis, err
	}
	for _, alloc := range allocations {
		genesis.Allocations = append(genesis.Allocations, core.GenesisAllocation{Identity: alloc.Identity, Amount: alloc.Amount})
	}
	admin, funding, ok, err := cfg.Treasury()
	if err != nil {
		return genesis, err
	}
	if ok {
		genesis.Admin = admin
		genesis.TreasuryFunding = funding
	}
	return genesis, nil
}
