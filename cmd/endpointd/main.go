package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/marmos91/endpointd/internal/logger"
	"github.com/marmos91/endpointd/pkg/config"
	"github.com/marmos91/endpointd/pkg/host"
	"github.com/marmos91/endpointd/pkg/pidfile"
	"github.com/marmos91/endpointd/pkg/server"
)

const usage = `endpointd - lightweight HTTP/1.1 endpoint server

Usage:
  endpointd [-config path] [-log-level level]   run the server
  endpointd init [-config path] [-force]        write a default config file

`

func main() {
	if len(os.Args) > 1 && os.Args[1] == "init" {
		runInit(os.Args[2:])
		return
	}

	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	configPath := flag.String("config", "", "Path to config file (default: $XDG_CONFIG_HOME/endpointd/config.yaml)")
	logLevel := flag.String("log-level", "", "Override the configured log level (DEBUG, INFO, WARN, ERROR)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *logLevel != "" {
		cfg.Logging.Level = strings.ToUpper(*logLevel)
	}

	if err := logger.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output); err != nil {
		log.Fatalf("Failed to configure logging: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logger.Error("endpointd stopped with error: %v", err)
		os.Exit(1)
	}
	logger.Info("endpointd stopped gracefully")
}

func runInit(args []string) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	configPath := fs.String("config", "", "Where to write the config file (default: $XDG_CONFIG_HOME/endpointd/config.yaml)")
	force := fs.Bool("force", false, "Overwrite an existing config file")
	_ = fs.Parse(args)

	path := *configPath
	var err error
	if path == "" {
		path, err = config.InitConfig(*force)
	} else {
		err = config.InitConfigToPath(path, *force)
	}
	if err != nil {
		log.Fatalf("Failed to initialize config: %v", err)
	}

	fmt.Printf("Configuration written to %s\n", path)
}

// run wires the configured components onto a host and blocks until ctx is
// cancelled. The PID file is written before the listener binds and removed
// after it is closed.
func run(ctx context.Context, cfg *config.Config) error {
	h := host.New()

	if cfg.PidFile != "" {
		if err := h.Register(pidfile.New(cfg.PidFile).Lifecycle()); err != nil {
			return err
		}
	}

	endpoints := &endpointServer{cfg: cfg}
	if err := h.Register(endpoints.Lifecycle()); err != nil {
		return err
	}

	return h.Run(ctx)
}

// endpointServer binds the endpoint server when the host starts it.
type endpointServer struct {
	cfg *config.Config
	srv *server.Server
}

func (e *endpointServer) Lifecycle() host.Lifecycle {
	return host.Lifecycle{
		Name: "endpoints",
		Init: e.start,
		Teardown: func(context.Context) error {
			return e.srv.Close()
		},
	}
}

func (e *endpointServer) start(context.Context) error {
	m := config.InitializeMetrics(e.cfg)

	srv, err := server.New(e.cfg.Server, server.WithMetrics(m.ServerMetrics))
	if err != nil {
		return err
	}

	if err := config.RegisterEndpoints(srv, e.cfg.Endpoints, m.Gatherer); err != nil {
		_ = srv.Close()
		return err
	}

	logger.Info("Server configuration:")
	logger.Info("  Listening on: %s", srv.Addr())
	logger.Info("  Max body size: %d bytes", e.cfg.Server.MaxBodySize)
	logger.Info("  Read/write timeout: %v / %v", e.cfg.Server.ReadTimeout, e.cfg.Server.WriteTimeout)
	logger.Info("  Worker pool size: %d", e.cfg.Server.WorkerPoolSize)
	if e.cfg.Server.RateLimit.RequestsPerSecond > 0 {
		logger.Info("  Accept rate limit: %d/s (burst %d)", e.cfg.Server.RateLimit.RequestsPerSecond, e.cfg.Server.RateLimit.Burst)
	}
	logger.Info("  Metrics: %v", e.cfg.Metrics.Enabled)

	e.srv = srv
	return nil
}
