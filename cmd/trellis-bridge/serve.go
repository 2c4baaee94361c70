package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/FishWoWater/trellis-blender/internal/assets"
	"github.com/FishWoWater/trellis-blender/internal/command"
	"github.com/FishWoWater/trellis-blender/internal/config"
	"github.com/FishWoWater/trellis-blender/internal/discovery"
	"github.com/FishWoWater/trellis-blender/internal/handlers"
	"github.com/FishWoWater/trellis-blender/internal/logging"
	"github.com/FishWoWater/trellis-blender/internal/marketplace"
	"github.com/FishWoWater/trellis-blender/internal/metrics"
	"github.com/FishWoWater/trellis-blender/internal/protocol"
	"github.com/FishWoWater/trellis-blender/internal/scene"
	"github.com/FishWoWater/trellis-blender/internal/scheduler"
	"github.com/FishWoWater/trellis-blender/internal/server"
	"github.com/FishWoWater/trellis-blender/internal/ui"
	"github.com/FishWoWater/trellis-blender/internal/version"
)

// Serve command flags
var (
	serveHost        string
	servePort        int
	serveFraming     string
	serveMarketplace bool
	serveMetricsAddr string
	serveAdvertise   bool
	serveWatch       bool
	serveQuiet       bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the command bridge",
	Long: `Run the bridge until interrupted.

The server binds host:port, accepts a single controller connection and polls
it from the host loop every interval. Flags override the config file.

With --watch, edits to the config file's "features" section take effect
without a restart: enabling the marketplace makes its commands available to
the connected controller on its next request.`,
	Example: `  # Start with defaults (localhost:9876)
  trellis-bridge serve

  # Enable marketplace commands and expose Prometheus metrics
  trellis-bridge serve --marketplace --metrics-addr localhost:9100

  # Length-free streaming framing for pipelined clients
  trellis-bridge serve --framing stream`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Listen host (default from config: localhost)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Listen port (default from config: 9876)")
	serveCmd.Flags().StringVar(&serveFraming, "framing", "", "Message framing: whole, stream or newline")
	serveCmd.Flags().BoolVar(&serveMarketplace, "marketplace", false, "Enable marketplace commands")
	serveCmd.Flags().StringVar(&serveMetricsAddr, "metrics-addr", "", "Serve /metrics and /healthz on this address")
	serveCmd.Flags().BoolVar(&serveAdvertise, "advertise", false, "Advertise the bridge over mDNS")
	serveCmd.Flags().BoolVar(&serveWatch, "watch", true, "Reload feature flags when the config file changes")
	serveCmd.Flags().BoolVarP(&serveQuiet, "quiet", "q", false, "Do not print the startup banner")

	rootCmd.AddCommand(serveCmd)
}

// loadConfig resolves the config path and applies the flags the user set.
// The returned overrides func re-applies those flags to a reloaded config.
func loadConfig(cmd *cobra.Command) (*config.Config, string, func(*config.Config), error) {
	path, err := resolveConfigPath()
	if err != nil {
		return nil, "", nil, err
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", nil, err
	}

	overrides := flagOverrides(cmd)
	overrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, "", nil, err
	}
	return cfg, path, overrides, nil
}

// flagOverrides captures the serve flags that were set on the command line.
func flagOverrides(cmd *cobra.Command) func(*config.Config) {
	flags := cmd.Flags()
	var (
		host, framing, metricsAddr, level = serveHost, serveFraming, serveMetricsAddr, logLevel
		port                              = servePort
		market, advertise                 = serveMarketplace, serveAdvertise
		setHost, setPort, setFraming      = flags.Changed("host"), flags.Changed("port"), flags.Changed("framing")
		setMarket, setMetrics, setAdv     = flags.Changed("marketplace"), flags.Changed("metrics-addr"), flags.Changed("advertise")
	)
	return func(cfg *config.Config) {
		if setHost {
			cfg.Server.Host = host
		}
		if setPort {
			cfg.Server.Port = port
		}
		if setFraming {
			cfg.Server.Framing = framing
		}
		if setMarket {
			cfg.Features.Marketplace = market
		}
		if setMetrics {
			cfg.Metrics.Addr = metricsAddr
		}
		if setAdv {
			cfg.Discovery.Advertise = advertise
		}
		if level != "" {
			cfg.LogLevel = level
		}
	}
}

// bridge is the assembled serve-side object graph.
type bridge struct {
	cfg        *config.Config
	overrides  func(*config.Config)
	loop       *scheduler.Loop
	scene      *scene.Scene
	dispatcher *command.Dispatcher
	server     *server.Server
	metrics    *metrics.Metrics

	// cancelWork cancels the context in-flight commands run with.
	cancelWork context.CancelFunc
}

func newBridge(cfg *config.Config) (*bridge, error) {
	framing, err := protocol.ParseMode(cfg.Server.Framing)
	if err != nil {
		return nil, err
	}

	cacheDir := cfg.Assets.CacheDir
	if cacheDir == "" {
		cacheDir = assets.DefaultCacheDir()
	}
	fetcher := assets.NewFetcher(cacheDir)

	sc := scene.New("Scene")
	m := metrics.New()

	catalog := handlers.Catalog(handlers.Deps{
		Scene:       sc,
		Downloader:  fetcher,
		Marketplace: marketplace.NewClient(cfg.Marketplace.APIURL, fetcher),
	})
	d, err := command.NewDispatcher(catalog, cfg.FeatureSet(),
		command.WithViewContext(sc),
		command.WithObserver(m),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build command table: %w", err)
	}

	workCtx, cancelWork := context.WithCancel(context.Background())
	loop := scheduler.NewLoop()
	srv := server.New(server.Config{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		Interval:        cfg.Server.Interval,
		PollSlice:       cfg.Server.PollSlice,
		Framing:         framing,
		MaxMessageBytes: cfg.Server.MaxMessageBytes,
		WriteTimeout:    cfg.Server.WriteTimeout,
	}, loop, d, server.WithObserver(m), server.WithBaseContext(workCtx))

	return &bridge{
		cfg:        cfg,
		loop:       loop,
		scene:      sc,
		dispatcher: d,
		server:     srv,
		metrics:    m,
		cancelWork: cancelWork,
	}, nil
}

// onLoop runs fn on the host loop and waits for its error.
func (b *bridge) onLoop(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)
	b.loop.Post(func() { done <- fn() })
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// reconfigure is the config watcher callback. Command-line flags still win
// over the file. The table swap happens on the host loop, between requests.
func (b *bridge) reconfigure(cfg *config.Config) {
	if b.overrides != nil {
		b.overrides(cfg)
	}
	features := cfg.FeatureSet()
	b.loop.Post(func() {
		if err := b.dispatcher.Reconfigure(features); err != nil {
			logging.Warn("Failed to apply config change", zap.Error(err))
			return
		}
		logging.Info("Feature flags reloaded",
			zap.Bool("marketplace", features.Enabled(command.FeatureMarketplace)),
		)
	})
}

func (b *bridge) health() map[string]any {
	return map[string]any{
		"version":     version.Version,
		"state":       b.server.State().String(),
		"addr":        b.server.Config().Addr(),
		"marketplace": b.dispatcher.Table().Features().Enabled(command.FeatureMarketplace),
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, path, overrides, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := logging.Initialize(cfg.LogLevel); err != nil {
		return err
	}
	defer logging.Sync()

	b, err := newBridge(cfg)
	if err != nil {
		return err
	}
	b.overrides = overrides
	defer b.cancelWork()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The loop outlives ctx so Stop can still run on it after a signal.
	loopCtx, cancelLoop := context.WithCancel(context.Background())
	loopDone := make(chan error, 1)
	go func() { loopDone <- b.loop.Run(loopCtx) }()
	defer func() {
		cancelLoop()
		<-loopDone
	}()

	if err := b.onLoop(ctx, b.server.Start); err != nil {
		var bindErr *server.BindError
		if errors.As(err, &bindErr) {
			ui.NewPrinter(cmd.ErrOrStderr()).PrintError("Cannot start bridge", err, []string{
				"Another bridge (or another program) may already be using " + bindErr.Addr,
				"Pick another port with --port",
			})
		}
		return err
	}

	if !serveQuiet {
		ui.NewPrinter(cmd.OutOrStdout()).PrintHeader("Command Server", "trellis-bridge serve", map[string]string{
			"Listen":      b.server.Addr().String(),
			"Framing":     cfg.Server.Framing,
			"Interval":    cfg.Server.Interval.String(),
			"Marketplace": strconv.FormatBool(cfg.Features.Marketplace),
			"Config":      path,
		})
	}

	if cfg.Metrics.Addr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Addr, b.metrics.Handler(b.health)); err != nil {
				logging.Error("Metrics endpoint stopped", zap.Error(err))
			}
		}()
	}

	if cfg.Discovery.Advertise {
		adv, err := b.advertise()
		if err != nil {
			logging.Warn("mDNS advertisement disabled", zap.Error(err))
		} else {
			defer adv.Shutdown()
		}
	}

	if serveWatch {
		w, err := config.NewWatcher(path, 0, b.reconfigure)
		if err != nil {
			logging.Warn("Config reload disabled", zap.String("path", path), zap.Error(err))
		} else {
			defer w.Close()
		}
	}

	<-ctx.Done()
	logging.Info("Shutting down")
	// Abort downloads in flight so Stop is not queued behind them.
	b.cancelWork()

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return b.onLoop(stopCtx, b.server.Stop)
}

func (b *bridge) advertise() (*discovery.Advertiser, error) {
	instance, err := os.Hostname()
	if err != nil || instance == "" {
		instance = "trellis-bridge"
	}
	port := b.cfg.Server.Port
	if addr, ok := b.server.Addr().(*net.TCPAddr); ok {
		port = addr.Port
	}
	return discovery.Advertise(instance, port, map[string]string{
		"version":     version.Version,
		"framing":     b.cfg.Server.Framing,
		"marketplace": strconv.FormatBool(b.cfg.Features.Marketplace),
	})
}
