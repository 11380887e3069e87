// Command server runs the Don Chupilas delivery API until SIGINT or SIGTERM,
// then drains in-flight requests and open event streams before exiting.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/app"
	"github.com/aldairjoss2001/DonChupilas-TragosDelBarrio/server"
)

const shutdownTimeout = 30 * time.Second

func main() {
	application, err := app.New()
	if err != nil {
		slog.New(slog.NewTextHandler(os.Stderr, nil)).Error("failed to initialize app", "error", err)
		os.Exit(1)
	}

	err = run(application)
	application.Close()
	if err != nil {
		application.Logger.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run(application *app.App) error {
	srv, err := server.New(application.Config, application.Logger, application.Handlers)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Run()
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Close(shutdownCtx)
}
