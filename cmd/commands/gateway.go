package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/dohr-michael/netwatch/internal/config"
	"github.com/dohr-michael/netwatch/internal/events"
	"github.com/dohr-michael/netwatch/internal/gateway"
	"github.com/dohr-michael/netwatch/internal/heartbeat"
	"github.com/dohr-michael/netwatch/internal/prediction"
	"github.com/dohr-michael/netwatch/internal/scheduler"
	"github.com/dohr-michael/netwatch/internal/storage"
)

// NewGatewayCommand returns the gateway subcommand.
func NewGatewayCommand() *cli.Command {
	return &cli.Command{
		Name:    "gateway",
		Aliases: []string{"serve"},
		Usage:   "Start the netwatch gateway server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Host to listen on",
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "Port to listen on",
			},
			&cli.BoolFlag{
				Name:  "no-predictions",
				Usage: "Disable the scheduled network predictions",
			},
		},
		Action: runGateway,
	}
}

func runGateway(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	setupLogging(cmd, cfg.Events.LogLevel, os.Stderr)

	// CLI flags override config
	if cmd.IsSet("host") {
		cfg.Gateway.Host = cmd.String("host")
	}
	if cmd.IsSet("port") {
		cfg.Gateway.Port = cmd.Int("port")
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	st := newStack(cfg)
	defer st.close()

	// Diagnostics
	eventLog := storage.NewEventLogger(cfg.Storage.EventLogDir, st.bus)
	defer eventLog.Close()

	ledger, err := storage.OpenUsageLedger(cfg.Storage.UsageDB)
	if err != nil {
		slog.Warn("usage ledger disabled", "path", cfg.Storage.UsageDB, "error", err)
	} else {
		ledger.Attach(st.bus)
		defer ledger.Close()
	}

	// Metrics feed
	st.simulator.Sample()
	go st.simulator.Run(ctx)

	// Predictions
	sched := scheduler.New(scheduler.Config{Logger: slog.Default().With("component", "scheduler")})
	schedulePredictions := func(p config.PredictionConfig) error {
		if !p.IsEnabled() || cmd.Bool("no-predictions") {
			return nil
		}
		return sched.Add(prediction.JobName, p.Schedule, st.predictor.Run)
	}
	if err := schedulePredictions(cfg.Prediction); err != nil {
		return fmt.Errorf("schedule predictions: %w", err)
	}
	sched.Start()
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		sched.Stop(stopCtx)
	}()

	// Gateway server
	server := gateway.NewServer(st.bus, st.services(), cfg.Gateway.Host, cfg.Gateway.Port)
	if err := server.Listen(); err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	hb := &heartbeat.Writer{
		Path:  config.HeartbeatPath(),
		Addr:  server.Addr(),
		Model: st.registry.DefaultName(),
		State: func() heartbeat.State {
			snap := st.controller.Snapshot()
			return heartbeat.State{Turns: len(snap.Turns), Pending: snap.Pending, Clients: server.Clients()}
		},
	}
	hbCtx, stopHB := context.WithCancel(ctx)
	hbDone := make(chan struct{})
	go func() {
		hb.Run(hbCtx)
		close(hbDone)
	}()
	defer func() {
		stopHB()
		<-hbDone
	}()

	// Hot reload on SIGHUP
	reloader := config.NewReloader(cmd.String("config"), config.DotenvPath(), cfg)
	reloader.OnReload(func(c config.Change) {
		if c.ModelsChanged {
			st.registry.Reset(c.New.Models)
		}
		if c.PredictionChanged {
			_ = sched.Remove(prediction.JobName)
			if err := schedulePredictions(c.New.Prediction); err != nil {
				slog.Error("reschedule predictions", "error", err)
			}
		}
		for _, section := range c.RestartRequired {
			slog.Warn("config section changed, restart to apply", "section", section)
		}
		st.bus.Publish(events.NewTypedEvent(events.SourceGateway, events.ConfigReloadedPayload{
			Path:            cmd.String("config"),
			ModelsChanged:   c.ModelsChanged,
			RestartRequired: c.RestartRequired,
		}))
	})
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	trigger := make(chan struct{}, 1)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
				select {
				case trigger <- struct{}{}:
				default: // a reload is already queued
				}
			}
		}
	}()
	go reloader.Watch(ctx, trigger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
