package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/dgallion1/formforge/internal/api"
	"github.com/dgallion1/formforge/internal/builder"
	"github.com/dgallion1/formforge/internal/config"
	"github.com/dgallion1/formforge/internal/run"
)

// exitInterrupted tells an external scheduler to invoke us again: the run
// stopped on its time budget with cursors persisted, not on an error.
const exitInterrupted = 75

func main() {
	var (
		configPath string
		once       bool
	)
	pflag.StringVar(&configPath, "config", "", "path to JSONC config file")
	pflag.BoolVar(&once, "once", false, "perform one bounded run and exit")
	pflag.Parse()

	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	runner := run.NewRunner(cfg, log)

	if once {
		outcome, err := runner.RunOnce()
		if err != nil {
			log.Error("run failed", "error", err)
			os.Exit(1)
		}
		if outcome == builder.OutcomeInterrupted {
			log.Info("run interrupted, invoke again to resume")
			os.Exit(exitInterrupted)
		}
		return
	}

	if cfg.APIKey == "" {
		log.Error("invalid configuration", "error", fmt.Errorf("FORMFORGE_API_KEY is required"))
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runner.Start(ctx)

	srv := api.NewServer(runner, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		runner.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	log.Info("starting formforge", "port", cfg.Port)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
