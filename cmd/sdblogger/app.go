package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/TamperPanda/SDBLogger/cache"
	"github.com/TamperPanda/SDBLogger/config"
	"github.com/TamperPanda/SDBLogger/ledger"
	"github.com/TamperPanda/SDBLogger/metrics"
	"github.com/TamperPanda/SDBLogger/snapshot"
	"github.com/TamperPanda/SDBLogger/store"
)

// app holds the stores and shared components of one command invocation.
type app struct {
	cfg       *config.Config
	kv        store.KV
	documents store.KV
	metrics   *metrics.Metrics
	cache     *cache.Cache
	ledger    *ledger.Ledger
	snapshots *snapshot.Store

	metricsServer *http.Server
}

func openApp(ctx context.Context, cfg *config.Config) (*app, error) {
	if err := cfg.ValidateStores(); err != nil {
		return nil, err
	}
	kv, err := store.Open(ctx, cfg.StoreDSN)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	documents, err := store.Open(ctx, cfg.DocumentStoreDSN)
	if err != nil {
		store.Close(kv)
		return nil, fmt.Errorf("open document store: %w", err)
	}

	a := &app{
		cfg:       cfg,
		kv:        kv,
		documents: documents,
		metrics:   metrics.New(),
		cache:     cache.New(kv, cfg.CacheTTL),
		ledger:    ledger.New(kv, documents),
		snapshots: snapshot.NewStore(kv),
	}
	a.startMetricsServer()
	return a, nil
}

func (a *app) startMetricsServer() {
	if a.cfg.MetricsAddr == "" {
		return
	}
	a.metricsServer = &http.Server{
		Addr:    a.cfg.MetricsAddr,
		Handler: promhttp.HandlerFor(a.metrics.Registry, promhttp.HandlerOpts{}),
	}
	go func() {
		if err := a.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", slog.Any("error", err))
		}
	}()
	slog.Info("metrics server enabled", slog.String("addr", a.cfg.MetricsAddr))
}

func (a *app) Close() {
	if a.metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
		cancel()
	}
	if err := store.Close(a.documents); err != nil {
		slog.Error("close document store", slog.Any("error", err))
	}
	if err := store.Close(a.kv); err != nil {
		slog.Error("close store", slog.Any("error", err))
	}
}
