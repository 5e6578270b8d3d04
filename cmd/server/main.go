package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/zap"

	"github.com/Tyrowin/relaychat/internal/logging"
	"github.com/Tyrowin/relaychat/internal/metrics"
	"github.com/Tyrowin/relaychat/internal/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "relaychat: %+v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "load .env")
	}

	cfg, err := server.NewConfigFromEnv()
	if err != nil {
		return err
	}

	log, flush, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer flush()

	if _, err := maxprocs.Set(maxprocs.Logger(log.Sugar().Infof)); err != nil {
		log.Warn("setting GOMAXPROCS failed", zap.Error(err))
	}

	metrics.Register(prometheus.DefaultRegisterer)

	srv := server.New(cfg, log)
	httpServer := server.CreateServer(cfg.Port, srv.SetupRoutes())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.StartServer(httpServer, log)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return errors.Wrap(err, "http server")
		}
		return nil
	case <-ctx.Done():
		log.Info("shutdown signal received")
	}

	// Stop accepting requests first, then drain live WebSockets, which the
	// HTTP server does not track once hijacked.
	httpErr := server.ShutdownServer(httpServer, cfg.ShutdownTimeout, log)
	hubErr := srv.Hub().Shutdown(cfg.ShutdownTimeout)
	return errors.CombineErrors(httpErr, hubErr)
}
