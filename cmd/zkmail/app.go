package main

import (
	"context"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/synqronlabs/zkmail"
	"github.com/synqronlabs/zkmail/config"
	"github.com/synqronlabs/zkmail/dns"
	"github.com/synqronlabs/zkmail/metrics"
	"github.com/synqronlabs/zkmail/store"
	"github.com/synqronlabs/zkmail/zkvm"
	"github.com/synqronlabs/zkmail/zkvm/groth16"
)

type loader func() (*config.Config, error)

// app holds everything built from a configuration.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	manager *zkmail.Manager
	metrics *metrics.Metrics
	closers []func(context.Context) error
}

func newApp(ctx context.Context, cfg *config.Config, reg prometheus.Registerer) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration:\n%w", err)
	}
	logger, err := cfg.NewLogger()
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger}

	executor, err := a.newExecutor(ctx)
	if err != nil {
		a.close(ctx)
		return nil, err
	}
	st, err := newStore(ctx, cfg.Store)
	if err != nil {
		a.close(ctx)
		return nil, err
	}
	if reg != nil {
		a.metrics = metrics.New(reg)
	}

	a.manager, err = zkmail.New(cfg.Domain).
		Resolver(newResolver(cfg.DNS)).
		Executor(executor).
		Prover(groth16.New(groth16.Config{KeyDir: cfg.Prover.KeyDir, Logger: logger.Named("groth16")})).
		Store(st).
		Metrics(a.metrics).
		Logger(logger).
		Build()
	if err != nil {
		a.close(ctx)
		return nil, err
	}
	return a, nil
}

func (a *app) newExecutor(ctx context.Context) (zkvm.Executor, error) {
	if a.cfg.Guest.Executor != config.ExecutorWasm {
		return zkmail.NativeGuest(), nil
	}
	image, err := os.ReadFile(a.cfg.Guest.Image)
	if err != nil {
		return nil, fmt.Errorf("reading guest image: %w", err)
	}
	w, err := zkvm.NewWasmExecutor(ctx, image, zkvm.WasmConfig{
		MemoryLimitPages: a.cfg.Guest.MemoryLimitPages,
		Logger:           a.logger.Named("wasm"),
	})
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, w.Close)
	return w, nil
}

func (a *app) close(ctx context.Context) {
	for _, c := range a.closers {
		if err := c(ctx); err != nil {
			a.logger.Warn("close", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}

func newResolver(cfg config.DNSConfig) dns.Resolver {
	if cfg.Std {
		return dns.NewStdResolver()
	}
	return dns.NewResolver(dns.ResolverConfig{
		Nameservers: cfg.Nameservers,
		DNSSEC:      cfg.DNSSEC,
		Timeout:     cfg.Timeout,
		Retries:     cfg.Retries,
	})
}

func newStore(ctx context.Context, cfg config.StoreConfig) (store.Store, error) {
	switch cfg.Kind {
	case config.StoreS3:
		return store.NewS3Store(ctx, store.S3Config{
			Bucket:   cfg.Bucket,
			Prefix:   cfg.Prefix,
			Region:   cfg.Region,
			Endpoint: cfg.Endpoint,
			Key:      cfg.Key,
			Secret:   cfg.Secret,
		})
	default:
		return store.NewFileStore(cfg.Dir)
	}
}
