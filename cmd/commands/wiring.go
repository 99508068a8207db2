package commands

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"strings"
	"sync"

	"github.com/urfave/cli/v3"

	nwcallbacks "github.com/dohr-michael/netwatch/internal/callbacks"
	"github.com/dohr-michael/netwatch/internal/config"
	"github.com/dohr-michael/netwatch/internal/enhance"
	"github.com/dohr-michael/netwatch/internal/events"
	"github.com/dohr-michael/netwatch/internal/gateway/ws"
	"github.com/dohr-michael/netwatch/internal/models"
	"github.com/dohr-michael/netwatch/internal/netmetrics"
	"github.com/dohr-michael/netwatch/internal/prediction"
	"github.com/dohr-michael/netwatch/internal/secrets"
	"github.com/dohr-michael/netwatch/internal/transcript"
)

// setupLogging installs the default slog handler. --debug wins over the
// configured level.
func setupLogging(cmd *cli.Command, level string, w io.Writer) {
	lvl := slog.LevelInfo
	if level != "" {
		if err := lvl.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
			lvl = slog.LevelInfo
		}
	}
	if cmd.Bool("debug") {
		lvl = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})))
}

// loadConfig reads the --config file. A missing file yields the defaults.
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	path := cmd.String("config")
	cfg, err := config.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Debug("config not found, using defaults", "path", path)
		return config.Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return cfg, nil
}

// stack is the in-process assistant: transcript, metrics feed and the
// prediction job sharing one bus and one model registry.
type stack struct {
	cfg        *config.Config
	bus        *events.Bus
	registry   *models.Registry
	selector   *enhance.Selector
	controller *transcript.Controller
	simulator  *netmetrics.Simulator
	predictor  *prediction.Predictor
}

var installCallbacks sync.Once

func newStack(cfg *config.Config) *stack {
	installCallbacks.Do(func() {
		nwcallbacks.Install(nwcallbacks.NewLoggingHandler(slog.Default().With("component", "model")))
	})

	bus := events.NewBus(cfg.Events.BufferSize)
	registry := models.NewRegistry(cfg.Models,
		models.WithDecrypter(secrets.NewResolver(secrets.KeyPath())))
	selector := enhance.NewSelector(bus)

	controller := transcript.NewController(transcript.Config{
		Models:       registry,
		Bus:          bus,
		Decorator:    selector,
		SystemPrompt: cfg.Assistant.SystemPrompt,
		ErrorMessage: cfg.Assistant.ErrorMessage,
		Provider:     cfg.Assistant.Model,
		Logger:       slog.Default().With("component", "transcript"),
	})
	simulator := netmetrics.NewSimulator(netmetrics.Config{
		Interval: cfg.Metrics.Interval.Duration(),
		History:  cfg.Metrics.History,
		Bus:      bus,
	})
	predictor := prediction.New(prediction.Config{
		Models:       registry,
		Metrics:      simulator,
		Transcript:   controller,
		Bus:          bus,
		SystemPrompt: cfg.Prediction.SystemPrompt,
		Provider:     cfg.Prediction.Model,
		Logger:       slog.Default().With("component", "prediction"),
	})

	return &stack{
		cfg:        cfg,
		bus:        bus,
		registry:   registry,
		selector:   selector,
		controller: controller,
		simulator:  simulator,
		predictor:  predictor,
	}
}

func (s *stack) services() ws.Services {
	return ws.Services{
		Transcript: s.controller,
		Metrics:    s.simulator,
		Selector:   s.selector,
	}
}

func (s *stack) close() {
	s.controller.Close()
	s.bus.Close()
}

// gatewayURL derives the WS endpoint from the config unless --gateway is set.
func gatewayURL(cmd *cli.Command) string {
	if cmd.IsSet("gateway") {
		return cmd.String("gateway")
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		cfg = config.Default()
	}
	return fmt.Sprintf("ws://%s:%d/api/ws", cfg.Gateway.Host, cfg.Gateway.Port)
}

// gatewayFlag is shared by the client commands.
func gatewayFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "gateway",
		Usage: "Gateway WebSocket URL (default from config)",
	}
}
