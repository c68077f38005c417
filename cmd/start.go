package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/luma/sprt/apps/poll"
	"github.com/luma/sprt/apps/tictactoe"
	"github.com/luma/sprt/internal/env"
	"github.com/luma/sprt/internal/meta"
	"github.com/luma/sprt/internal/metrics"
	"github.com/luma/sprt/session"
	"github.com/luma/sprt/storage"
	"github.com/luma/sprt/transport"
)

var (
	// The host to listen on
	host string

	// The port to listen for http requests on
	httpPort string

	// The port to listen for SPRT clients and N4M queries on
	port int

	// blocking or async
	driver string

	// Connections the blocking driver serves at once
	workers int
)

func init() {
	flags := StartCmd.PersistentFlags()

	flags.IntVarP(&port, "port", "p", 7363, "The port to listen for SPRT connections and N4M queries on")
	flags.StringVar(&httpPort, "http-port", "7362", "The port to listen to HTTP requests on")
	flags.StringVarP(&host, "host", "a", "0.0.0.0", "The host to listen on")
	flags.StringVarP(&driver, "mode", "m", transport.DriverBlocking, "How connections are served, blocking or async")
	flags.IntVarP(&workers, "workers", "w", 0, "Connections served at once by the blocking driver, defaults to the number of CPUs")
}

var StartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start up the SPRT server",
	Long: `Start up the SPRT server

Serves SPRT applications over TCP, answers N4M queries over UDP on the same
port and serves /ping, /stats and /metrics over HTTP.

Usage
	sprt start --mode async

`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		ctx, signalStop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer signalStop()

		conf, err := env.LoadConfig(ctx)
		if err != nil {
			return err
		}

		log, err := env.MakeLogger(conf.LogLevel)
		if err != nil {
			return err
		}
		defer log.Sync()

		fileLimit, err := setFileLimit()
		if err != nil {
			return err
		}

		log.Info("Starting sprt", meta.GetInfo().Fields()...)
		log.Info("Set file limit", zap.Uint64("fileLimit", fileLimit))

		store := storage.NewInmemoryStore()
		defer store.Close()

		if conf.StatsFile != "" {
			if err := restoreStats(store, conf.StatsFile); err != nil {
				return err
			}

			go persistStats(store, conf.StatsFile, log.Named("stats"))
		}

		registry := session.NewRegistry()
		if err := multierr.Combine(poll.Register(registry), tictactoe.Register(registry)); err != nil {
			return err
		}

		m := metrics.New()
		options := transport.Options{
			Host:           host,
			Port:           port,
			Workers:        workers,
			IdleTimeout:    conf.IdleTimeout,
			MaxMessageSize: conf.MaxMessageSize,
			Registry:       registry,
			Store:          store,
			Metrics:        m,
			Log:            log.Named("transport"),
		}

		server, err := transport.NewServer(driver, options)
		if err != nil {
			return err
		}

		if err := server.Start(ctx); err != nil {
			return fmt.Errorf("failed to start %s server: %w", driver, err)
		}

		udp := transport.NewUDP(options)
		if err := udp.Start(ctx); err != nil {
			return multierr.Append(fmt.Errorf("failed to start n4m server: %w", err), server.Close())
		}

		s := &http.Server{
			Addr:    net.JoinHostPort(host, httpPort),
			Handler: setupRouter(conf.DebugHTTP, log, store, m),
		}

		// Initializing the server in a goroutine so that
		// it won't block the graceful shutdown handling below
		go func() {
			if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("Http server errored", zap.Error(err))
			}
		}()

		log.Info("Listening",
			zap.Any("config", conf),
			zap.String("driver", driver),
			zap.String("host", host),
			zap.Int("port", port),
			zap.String("httpPort", httpPort),
			zap.Strings("apps", registry.Names()))

		// Listen for the interrupt signal, or the server giving up on accepting
		select {
		case <-ctx.Done():
		case err = <-server.Err():
			log.Error("SPRT server stopped accepting connections", zap.Error(err))
			err = fmt.Errorf("%s server failed: %w", driver, err)
		}

		// Restore default behavior on the interrupt signal and notify user of shutdown.
		signalStop()
		log.Info("Shutting down gracefully, press Ctrl+C again to force")

		// The context is used to inform the server it has 5 seconds to finish
		// the request it is currently handling
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.SetKeepAlivesEnabled(false)

		if err := s.Shutdown(shutdownCtx); err != nil {
			log.Error("Http server forced to shutdown", zap.Error(err))
		}

		if err := multierr.Combine(server.Close(), udp.Close()); err != nil {
			log.Error("Servers did not shut down cleanly", zap.Error(err))
		}

		if conf.StatsFile != "" {
			if err := backupStats(store, conf.StatsFile); err != nil {
				log.Error("Failed to back up stats", zap.String("file", conf.StatsFile), zap.Error(err))
			}
		}

		log.Info("Exiting")
		return err
	},
}

func restoreStats(store storage.Store, path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}

	if err != nil {
		return err
	}

	if err := store.Restore(data); err != nil {
		return fmt.Errorf("failed to restore stats from %s: %w", path, err)
	}

	return nil
}

// backupStats replaces the file at path in one step, so a crash never leaves
// half a backup behind
func backupStats(store storage.Store, path string) error {
	data, err := store.Backup()
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*")
	if err != nil {
		return err
	}

	if _, err := tmp.Write(data); err != nil {
		return multierr.Combine(err, tmp.Close(), os.Remove(tmp.Name()))
	}

	if err := tmp.Close(); err != nil {
		return multierr.Append(err, os.Remove(tmp.Name()))
	}

	return os.Rename(tmp.Name(), path)
}

// persistStats backs the store up every time a run is recorded, until the
// store is closed
func persistStats(store storage.Store, path string, log *zap.Logger) {
	for update := range store.ListenToUpdates() {
		log.Debug("Application ran", zap.String("app", update.App), zap.Int("count", update.Count))

		if err := backupStats(store, path); err != nil {
			log.Warn("Failed to back up stats", zap.String("file", path), zap.Error(err))
		}
	}
}

func setFileLimit() (uint64, error) {
	var rLimit syscall.Rlimit

	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		return 0, err
	}

	rLimit.Cur = rLimit.Max
	if err := syscall.Setrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		return 0, err
	}

	return rLimit.Cur, nil
}
