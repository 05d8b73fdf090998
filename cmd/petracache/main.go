// Command petracache runs the memcached-protocol cache server: it loads
// configuration, opens the storage engine, and serves connections until
// an interrupt or terminate signal requests an orderly drain — the CLI
// surface the teacher's examples/main.go never needed since it only
// exercised the client side.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/umit/petracache/internal/config"
	"github.com/umit/petracache/internal/health"
	"github.com/umit/petracache/internal/metrics"
	"github.com/umit/petracache/internal/server"
	"github.com/umit/petracache/internal/storage"
	"github.com/umit/petracache/pkg/logger"
)

// version is set at build time via -ldflags "-X main.version=...";
// it defaults to "dev" for local builds.
var version = "dev"

// drainGrace, added to the configured idle timeout, bounds how long the
// health endpoint is given to shut down after the main server has
// already drained.
const drainGrace = 5 * time.Second

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("petracache", flag.ContinueOnError)
	showVersion := fs.Bool("version", false, "print the version and exit")
	logLevel := fs.String("log-level", "info", "log level: debug, info, warn, error")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "usage: petracache [flags] [config-file]\n\nflags:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *showVersion {
		fmt.Println("petracache", version)
		return 0
	}

	logger.Configure(*logLevel)
	defer logger.Sync()

	configPath := ""
	if fs.NArg() > 0 {
		configPath = fs.Arg(0)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "petracache:", err)
		return 1
	}

	m := metrics.New()

	store, err := storage.Open(cfg.Storage, cfg.Server.MaxConnections)
	if err != nil {
		fmt.Fprintln(os.Stderr, "petracache: opening storage:", err)
		return 1
	}
	defer store.Close()

	sup, err := server.New(cfg, store, m, server.WithVersion(version))
	if err != nil {
		fmt.Fprintln(os.Stderr, "petracache: starting listener:", err)
		return 1
	}

	var healthSrv *health.Server
	healthErr := make(chan error, 1)
	if cfg.Metrics.Enabled {
		healthSrv = health.New(cfg.Metrics.ListenAddr, m)
		go func() { healthErr <- healthSrv.Serve() }()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() { serveErr <- sup.Serve(ctx) }()

	select {
	case err := <-serveErr:
		if err != nil {
			logger.Errorf("server exited with error: %v", err)
			return 1
		}
	case err := <-healthErr:
		if err != nil {
			logger.Errorf("health endpoint exited with error: %v", err)
		}
		stop()
		<-serveErr
	}

	if healthSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.IdleTimeout+drainGrace)
		defer cancel()
		_ = healthSrv.Shutdown(shutdownCtx)
	}

	logger.Info("petracache shut down cleanly")
	return 0
}
