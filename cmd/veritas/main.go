package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/raysh454/veritas/internal/analysis"
	"github.com/raysh454/veritas/internal/app"
	"github.com/raysh454/veritas/internal/cli"
	"github.com/raysh454/veritas/internal/logging"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(argv []string) int {
	args, err := cli.ParseArgs(argv)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	cfg, err := app.Load(args.ConfigPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to load config:", err)
		return 1
	}
	if args.ListenAddr != "" {
		cfg.Server.ListenAddr = args.ListenAddr
	}
	if args.LogLevel != "" {
		cfg.Log.Level = args.LogLevel
	}

	logger, err := logging.NewZapLogger(cfg.Log)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to create logger:", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()

	application, err := app.NewApplication(cfg, logger, nil)
	if err != nil {
		logger.Error("failed to build application", logging.Field{Key: "error", Value: err})
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch args.Command {
	case cli.CommandAnalyze:
		return analyzeFile(ctx, application, args, logger)
	default:
		return serve(ctx, application, logger)
	}
}

func serve(ctx context.Context, application *app.Application, logger logging.Logger) int {
	if err := application.Start(); err != nil {
		logger.Error("failed to start application", logging.Field{Key: "error", Value: err})
		return 1
	}

	srv := application.Server.HTTPServer()
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", logging.Field{Key: "addr", Value: srv.Addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	code := 0
	select {
	case <-ctx.Done():
		logger.Info("shutting down gracefully")
	case err := <-errCh:
		if err != nil {
			logger.Error("server failed", logging.Field{Key: "error", Value: err})
			code = 1
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", logging.Field{Key: "error", Value: err})
	}
	if err := application.Shutdown(shutdownCtx); err != nil {
		logger.Error("application shutdown", logging.Field{Key: "error", Value: err})
	}

	logger.Info("server exited")
	return code
}

func analyzeFile(ctx context.Context, application *app.Application, args *cli.CLIArgs, logger logging.Logger) int {
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = application.Shutdown(shutdownCtx)
	}()

	rep, err := application.AnalyzeFile(ctx, args.File)
	if err != nil {
		var aerr *analysis.AnalysisError
		if errors.As(err, &aerr) {
			fmt.Fprintf(os.Stderr, "%s (%s)\n", err, aerr.Detail())
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		return 1
	}

	enc := json.NewEncoder(os.Stdout)
	if !args.Compact {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(rep); err != nil {
		logger.Error("writing report", logging.Field{Key: "error", Value: err})
		return 1
	}
	return 0
}
