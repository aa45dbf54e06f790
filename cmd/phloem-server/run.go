package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/BrandonDHaskell/Phloem/server/internal/config"
	dbpkg "github.com/BrandonDHaskell/Phloem/server/internal/db"
	"github.com/BrandonDHaskell/Phloem/server/internal/grpcapi"
	"github.com/BrandonDHaskell/Phloem/server/internal/httpapi"
	"github.com/BrandonDHaskell/Phloem/server/internal/metrics"
	"github.com/BrandonDHaskell/Phloem/server/internal/phloem/device"
	"github.com/BrandonDHaskell/Phloem/server/internal/phloem/notify"
	"github.com/BrandonDHaskell/Phloem/server/internal/phloem/service"
	"github.com/BrandonDHaskell/Phloem/server/internal/phloem/store"
	"github.com/BrandonDHaskell/Phloem/server/internal/phloem/store/memory"
	"github.com/BrandonDHaskell/Phloem/server/internal/phloem/store/sqlite"
	"github.com/BrandonDHaskell/Phloem/server/internal/phloem/types"
)

var errShutdownRequested = errors.New("shutdown requested")

type stores struct {
	events   store.EventStore
	commands store.CommandStore
	close    func()
}

func openStores(ctx context.Context, cfg config.StorageConfig) (*stores, error) {
	if cfg.Driver != "sqlite" {
		return &stores{
			events:   memory.NewEventStore(),
			commands: memory.NewCommandStore(),
			close:    func() {},
		}, nil
	}

	conn, err := dbpkg.Open(ctx, dbpkg.Config{Path: cfg.Path})
	if err != nil {
		return nil, err
	}
	writer := dbpkg.NewWorker(conn)
	return &stores{
		events:   sqlite.NewEventStore(conn, writer),
		commands: sqlite.NewCommandStore(conn, writer),
		close: func() {
			writer.Close()
			_ = conn.Close()
		},
	}, nil
}

func monitorConfig(cfg *config.Config) service.Config {
	return service.Config{
		Window: types.NightWindow{
			StartHour: *cfg.Thresholds.NightStart,
			EndHour:   *cfg.Thresholds.NightEnd,
		},
		FlowThreshold: cfg.Thresholds.FlowLimit,
		SpeedFactor:   cfg.Simulation.Speed,
		StartHour:     cfg.Simulation.StartHour,
		EventCooldown: cfg.Thresholds.EventCooldown,
		AlertCooldown: cfg.Thresholds.AlertCooldown,
	}
}

func runServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	st, err := openStores(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer st.close()

	mode, err := device.ParseMode(cfg.System.Mode)
	if err != nil {
		return err
	}
	dev := device.Open(device.Config{
		Mode:     mode,
		Port:     cfg.System.Port,
		BaudRate: cfg.System.BaudRate,
	}, logger.With("component", "device"))
	defer dev.Close()

	alerter := notify.NewTelegram(notify.Config{
		BotToken:          cfg.Telegram.BotToken,
		Subscribers:       cfg.Telegram.Subscribers,
		APIBase:           cfg.Telegram.APIBase,
		Timeout:           cfg.Telegram.Timeout,
		MessagesPerSecond: cfg.Telegram.MessagesPerSecond,
	}, nil, logger.With("component", "telegram"))

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	hub := httpapi.NewHub(logger.With("component", "ws"), 0)
	sinks := []service.StatusSink{hub}

	var health *grpcapi.Server
	if cfg.GRPC.Addr != "" {
		health = grpcapi.NewServer(cfg.GRPC.Addr, logger.With("component", "grpc"))
		sinks = append(sinks, health)
	}

	monitor, err := service.NewMonitor(monitorConfig(cfg), service.Dependencies{
		Logger:   logger.With("component", "monitor"),
		Device:   dev,
		Events:   st.events,
		Commands: st.commands,
		Alerter:  alerter,
		Sinks:    sinks,
		Metrics:  m,
	})
	if err != nil {
		return err
	}
	controller := service.NewController(monitor, cfg.System.TickInterval, logger.With("component", "controller"))

	shutdownReq := make(chan struct{})
	var shutdownOnce sync.Once

	srv := httpapi.NewServer(httpapi.Dependencies{
		Logger:     logger.With("component", "http"),
		Addr:       cfg.HTTP.Addr,
		Controller: controller,
		Events:     st.events,
		Commands:   st.commands,
		Hub:        hub,
		Metrics:    metrics.Handler(reg),
		Shutdown:   func() { shutdownOnce.Do(func() { close(shutdownReq) }) },
	})

	var g run.Group
	{
		ctx, cancel := context.WithCancel(ctx)
		g.Add(func() error {
			return controller.Run(ctx)
		}, func(error) {
			cancel()
		})
	}
	{
		ctx, cancel := context.WithCancel(ctx)
		g.Add(func() error {
			return hub.Run(ctx)
		}, func(error) {
			cancel()
		})
	}
	g.Add(func() error {
		logger.Info("http listening", "addr", cfg.HTTP.Addr)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}, func(error) {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(sctx)
	})
	if health != nil {
		g.Add(health.Start, func(error) {
			health.Stop()
		})
	}
	if cfg.Storage.Retention > 0 {
		pruner := service.NewEventPruner(st.events, service.PrunerConfig{
			Retention: cfg.Storage.Retention,
		}, logger.With("component", "pruner"))
		ctx, cancel := context.WithCancel(ctx)
		g.Add(func() error {
			pruner.Start(ctx)
			<-ctx.Done()
			return nil
		}, func(error) {
			cancel()
			pruner.Stop()
		})
	}
	{
		stop := make(chan struct{})
		g.Add(func() error {
			select {
			case <-shutdownReq:
				return errShutdownRequested
			case <-stop:
				return nil
			}
		}, func(error) {
			close(stop)
		})
	}
	g.Add(run.SignalHandler(ctx, os.Interrupt, syscall.SIGTERM))

	logger.Info("phloem starting",
		"device", string(dev.Mode()),
		"storage", cfg.Storage.Driver,
		"speed", cfg.Simulation.Speed,
	)

	err = g.Run()

	var sig run.SignalError
	switch {
	case errors.As(err, &sig), errors.Is(err, errShutdownRequested), errors.Is(err, context.Canceled):
		logger.Info("phloem stopped", "reason", err)
		return nil
	default:
		return err
	}
}
