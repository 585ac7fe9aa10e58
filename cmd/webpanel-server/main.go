package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/lumiohq/webpanel-go/internal/infra/buildinfo"
	"github.com/lumiohq/webpanel-go/internal/infra/confloader"
	"github.com/lumiohq/webpanel-go/internal/infra/shutdown"
	"github.com/lumiohq/webpanel-go/internal/server/announce"
	"github.com/lumiohq/webpanel-go/internal/server/config"
	"github.com/lumiohq/webpanel-go/internal/server/httpd"
	"github.com/lumiohq/webpanel-go/internal/server/reconcile"
	"github.com/lumiohq/webpanel-go/internal/server/staticserve"
	"github.com/lumiohq/webpanel-go/internal/server/tlsmaterial"
	"github.com/lumiohq/webpanel-go/internal/telemetry/logger"
	"github.com/lumiohq/webpanel-go/internal/telemetry/metric"
)

func main() {
	app := &cli.App{
		Name:    "webpanel-server",
		Usage:   "runtime-reconfigurable web panel server",
		Version: buildinfo.Get().Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to configuration file",
				EnvVars: []string{"WEBPANEL_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "metrics-addr",
				Usage: "telemetry listen address",
				Value: "127.0.0.1:9090",
			},
		},
		Action: runServer,
		Commands: []*cli.Command{
			{
				Name:  "version",
				Usage: "print detailed build information",
				Action: func(c *cli.Context) error {
					fmt.Println("webpanel-server", buildinfo.String())
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func runServer(c *cli.Context) error {
	configFile := c.String("config")

	cfg, err := loadConfig(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := initLogger(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	log.Info("starting webpanel-server",
		"version", buildinfo.Get().Version,
		"commit", buildinfo.Get().Commit,
		"config", configFile,
	)

	metrics := metric.NewRegistry()
	docs := staticserve.New()
	identity := tlsmaterial.NewIdentity()
	announcer := announce.NewLogAnnouncer(log)

	handlerFor := func(inst config.Instance) http.Handler {
		return httpd.Chain(docs,
			httpd.ServerHeader(announce.ServiceName),
			httpd.RequestID(),
			httpd.Recover(log),
			httpd.RateLimit(100, 200),
			httpd.Metrics(metrics, inst),
			httpd.AccessLog(log),
		)
	}

	httpListener := httpd.New(config.InstanceHTTP, handlerFor(config.InstanceHTTP),
		httpd.WithLogger(log))
	httpsListener := httpd.New(config.InstanceHTTPS, handlerFor(config.InstanceHTTPS),
		httpd.WithLogger(log), httpd.WithIdentity(identity))

	httpRec := reconcile.New(httpListener, docs,
		reconcile.WithLogger(log),
		reconcile.WithMetrics(metrics),
		reconcile.WithAnnouncer(announcer),
	)
	httpsRec := reconcile.New(httpsListener, docs,
		reconcile.WithLogger(log),
		reconcile.WithMetrics(metrics),
		reconcile.WithIdentity(identity),
	)

	ctx := context.Background()

	applyAll := func(cfg *config.ServerConfig) {
		for _, pair := range []struct {
			rec  *reconcile.Reconciler
			snap config.Snapshot
		}{
			{httpRec, cfg.Panel.SnapshotFor(config.InstanceHTTP)},
			{httpsRec, cfg.Panel.SnapshotFor(config.InstanceHTTPS)},
		} {
			if err := pair.rec.Apply(ctx, pair.snap); err != nil {
				if errors.Is(err, reconcile.ErrBusy) {
					log.Warn("apply skipped, previous apply still in flight",
						"instance", string(pair.snap.Instance))
					continue
				}
				log.Error("apply failed",
					"instance", string(pair.snap.Instance),
					"error", err,
				)
			}
		}
	}

	applyAll(cfg)

	reloadConfig := func() {
		fresh, err := loadConfig(configFile)
		if err != nil {
			log.Error("config reload failed, keeping previous", "error", err)
			return
		}
		logger.SetLevel(fresh.Log.Level)
		applyAll(fresh)
	}

	// Configuration file watcher
	var confWatcher *confloader.Watcher
	if configFile != "" {
		confWatcher, err = confloader.NewWatcher(confloader.WithWatcherLogger(log))
		if err != nil {
			return fmt.Errorf("create config watcher: %w", err)
		}
		if err := confWatcher.Watch(configFile); err != nil {
			return fmt.Errorf("watch config: %w", err)
		}
		confWatcher.OnChange(func(string) { reloadConfig() })
		confWatcher.StartAsync()
	}

	// Certificate rotation watcher
	var certWatcher *tlsmaterial.Watcher
	if cfg.Panel.CrtPath != "" && cfg.Panel.KeyPath != "" {
		certWatcher = tlsmaterial.NewWatcher(cfg.Panel.CrtPath, cfg.Panel.KeyPath,
			reloadConfig, tlsmaterial.WithLogger(log))
		certWatcher.StartAsync()
	}

	// SIGHUP re-applies the configuration
	reloader := shutdown.NewReloadHandler()
	reloader.OnReload(reloadConfig)
	reloader.Start()

	// Telemetry endpoint
	telemetrySrv := newTelemetryServer(c.String("metrics-addr"), metrics)
	go func() {
		log.Info("telemetry listening", "addr", telemetrySrv.Addr)
		if err := telemetrySrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("telemetry server error", "error", err)
		}
	}()

	// Graceful shutdown, hooks in reverse order of startup
	shutdownHandler := shutdown.NewHandler(30 * time.Second)
	shutdownHandler.OnShutdown(func(ctx context.Context) error {
		log.Info("shutting down listeners")
		errHTTPS := httpsRec.Shutdown(ctx)
		errHTTP := httpRec.Shutdown(ctx)
		return errors.Join(errHTTP, errHTTPS)
	})
	shutdownHandler.OnShutdown(func(ctx context.Context) error {
		reloader.Stop()
		if certWatcher != nil {
			certWatcher.Stop()
		}
		if confWatcher != nil {
			return confWatcher.Stop()
		}
		return nil
	})
	shutdownHandler.OnShutdown(func(ctx context.Context) error {
		return telemetrySrv.Shutdown(ctx)
	})

	log.Info("server started")
	if err := shutdownHandler.Wait(); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}

	log.Info("server stopped gracefully")
	return nil
}

// loadConfig loads configuration from file and environment on top of
// the defaults.
func loadConfig(configFile string) (*config.ServerConfig, error) {
	cfg := config.Default()

	opts := []confloader.Option{}
	if configFile != "" {
		opts = append(opts, confloader.WithConfigFile(configFile))
	}

	loader := confloader.NewLoader(opts...)
	if err := loader.Load(cfg); err != nil {
		return nil, err
	}

	if err := config.Verify(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// initLogger builds the process logger from the log section and
// installs it as the package default.
func initLogger(cfg *config.ServerConfig) (logger.Logger, error) {
	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stderr,
	})
	if err != nil {
		return nil, err
	}
	logger.SetDefault(log)
	return log, nil
}

// newTelemetryServer serves metrics, health, and build info on a
// side-channel address.
func newTelemetryServer(addr string, metrics *metric.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})
	mux.HandleFunc("/version", func(w http.ResponseWriter, r *http.Request) {
		info := buildinfo.Get()
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"version":%q,"commit":%q,"build_time":%q}`,
			info.Version, info.Commit, info.BuildTime)
	})

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}
