// Command webscan serves the scan API, or scans a single URL with -url.
// Usage: go run ./cmd/webscan [-addr :3030] [-url https://example.com]
package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/raysh454/webscan/internal/app"
	"github.com/raysh454/webscan/internal/cli"
	"github.com/raysh454/webscan/internal/logging"
	"github.com/raysh454/webscan/internal/server"
	"github.com/raysh454/webscan/internal/utils"
)

func main() {
	args, err := cli.ParseArgs(os.Args[1:])
	if err != nil {
		log.Fatalf("Invalid arguments: %v", err)
	}

	cfg := app.DefaultConfig()
	if err := app.LoadEnv(cfg); err != nil {
		log.Fatalf("Invalid environment: %v", err)
	}

	logger := logging.NewStdoutLogger("webscan")
	application, err := app.NewApplication(cfg, args, logger)
	if err != nil {
		log.Fatalf("Startup failed: %v", err)
	}
	if err := application.Start(); err != nil {
		log.Fatalf("Startup failed: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if args.Target != "" {
		err = scanOnce(ctx, application, args.Target)
	} else {
		err = serve(ctx, application)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	if serr := application.Shutdown(shutdownCtx); serr != nil {
		logger.Error("shutdown", logging.Field{Key: "error", Value: serr})
	}
	if err != nil {
		log.Fatal(err)
	}
}

func scanOnce(ctx context.Context, a *app.Application, target string) error {
	url, err := utils.ValidateScanURL(target)
	if err != nil {
		return err
	}
	result, err := a.Orch.ScanURL(ctx, url)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func serve(ctx context.Context, a *app.Application) error {
	srv := server.NewServer(server.Config{
		ListenAddr:     a.Config.ListenAddr,
		AllowedOrigins: a.Config.AllowedOrigins,
		Logger:         a.Logger,
	}, a.Orch, a.Cache)
	httpServer := srv.HTTPServer()

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info("listening", logging.Field{Key: "addr", Value: httpServer.Addr})
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
