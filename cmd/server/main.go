package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/gommon/log"

	"superstore/internal/api"
	"superstore/internal/config"
	"superstore/internal/engine"
	"superstore/internal/logging"
	"superstore/internal/metrics"
	"superstore/internal/watch"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New("superstore", cfg.Log)

	m := metrics.New()
	cache := engine.NewCache(cfg.Loader(), logger)
	cache.OnLoad = m.ObserveLoad

	// 1. Serve immediately; /api answers 503 until the first load lands.
	h := api.NewHandler(nil, cfg.DashboardOptions(), m)
	e := api.NewServer(h, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reload := func() {
		ds, err := cache.Get(cfg.DataPath)
		if err != nil {
			m.LoadFailures.Inc()
			logger.Errorf("BACKGROUND: load of %s failed: %v", cfg.DataPath, err)
			return
		}
		h.SetData(ds)
	}

	// 2. Load in the background, then keep the dataset in step with the file.
	go func() {
		logger.Info("BACKGROUND: Starting load...")
		t0 := time.Now()
		reload()
		logger.Infof("BACKGROUND: Load finished in %v.", time.Since(t0))

		if !cfg.Watch {
			return
		}
		w := watch.NewFile(cfg.DataPath, 500*time.Millisecond, logger, reload)
		if err := w.Run(ctx); err != nil {
			logger.Warnf("BACKGROUND: watcher stopped: %v", err)
		}
	}()

	go func() {
		logger.Infof("Server ready on %s (data loading in background...)", cfg.Addr)
		if err := e.Start(cfg.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal(err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("shutdown: %v", err)
	}
}
