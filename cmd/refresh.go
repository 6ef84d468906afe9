package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/snapfresh/snapfresh/internal/api"
	"github.com/snapfresh/snapfresh/internal/app"
	"github.com/snapfresh/snapfresh/internal/clock/system"
	"github.com/snapfresh/snapfresh/internal/probe"
	"github.com/snapfresh/snapfresh/internal/refresh"
)

// forceExit is a variable so tests can intercept the escape hatch.
var forceExit = func() {
	os.Exit(exitFatal)
}

// newRefreshCmd creates the 'refresh' subcommand.
func newRefreshCmd() *cobra.Command {
	var (
		domainName string
		modeFlag   string
	)

	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Runs the refresh-and-verify pipeline for one domain",
		Long: `Rewrites each catalog entry's timestamp parameter, verifies the
rewritten URL is reachable, and atomically persists the updated
catalog. Mode 'once' performs a single pass; 'continuous' repeats on
the domain's refresh interval until interrupted.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRefreshCommand(cmd, domainName, modeFlag)
		},
	}

	cmd.Flags().StringVar(&domainName, "domain", "", "domain name to refresh (required)")
	cmd.Flags().StringVar(&modeFlag, "mode", string(refresh.ModeOnce), "once or continuous")
	_ = cmd.MarkFlagRequired("domain")

	return cmd
}

func runRefreshCommand(cmd *cobra.Command, domainName, modeFlag string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	logger := appInstance.Logger

	mode, err := refresh.ParseMode(modeFlag)
	if err != nil {
		return err
	}
	domainCfg, err := appInstance.Registry.Get(domainName)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Escape hatch: if the pipeline has not drained within the grace
	// period after the signal, the process must not hang forever. The
	// watchdog stands down once the command returns.
	watchdogDone := make(chan struct{})
	defer close(watchdogDone)
	go func() {
		select {
		case <-ctx.Done():
		case <-watchdogDone:
			return
		}
		grace := appInstance.Config.Shutdown.Grace()
		timer := time.NewTimer(grace)
		defer timer.Stop()
		select {
		case <-timer.C:
			logger.Error("shutdown grace period exceeded, forcing exit",
				zap.Duration("grace", grace))
			forceExit()
		case <-watchdogDone:
		}
	}()

	scheduler := buildScheduler(appInstance, domainCfg, logger)

	if mode == refresh.ModeContinuous {
		stopAPI := startStatusServer(ctx, appInstance, logger)
		defer stopAPI()
	}

	logger.Info("starting refresh",
		zap.String("domain", domainCfg.Name),
		zap.String("mode", string(mode)))

	if err := scheduler.Run(ctx, domainCfg, mode); err != nil {
		if errors.Is(err, refresh.ErrPartialFailure) {
			logger.Warn("refresh completed with per-entry failures", zap.Error(err))
		}
		return err
	}
	logger.Info("refresh finished cleanly")
	return nil
}

func buildScheduler(a *app.App, domainCfg refresh.DomainConfig, logger *zap.Logger) *refresh.Scheduler {
	cfg := a.Config
	prober := probe.New(probe.Config{
		UserAgent:           cfg.Probe.UserAgent,
		DefaultRPS:          cfg.Probe.DefaultRPS,
		DefaultBurst:        cfg.Probe.DefaultBurst,
		MaxIdleConnsPerHost: cfg.Probe.MaxIdleConnsPerHost,
		RateLimitMinDelay:   cfg.Retry.RateLimitMinDelay(),
	}, logger)

	clock := system.New()
	sleeper := system.NewSleeper()

	runner := refresh.NewRunner(
		prober,
		retryPolicyFor(a, domainCfg),
		clock,
		sleeper,
		logger,
	)
	return refresh.NewScheduler(
		runner,
		a.Store,
		a.Publisher,
		a.Stats,
		clock,
		sleeper,
		a.Config.Publisher.Topic,
		logger,
	)
}

func retryPolicyFor(a *app.App, domainCfg refresh.DomainConfig) refresh.RetryPolicy {
	return refresh.NewBackoffPolicy(refresh.BackoffConfig{
		MaxAttempts:    domainCfg.MaxAttempts,
		BaseDelay:      a.Config.Retry.BaseDelay(),
		MaxDelay:       a.Config.Retry.MaxDelay(),
		Multiplier:     a.Config.Retry.Multiplier,
		RateLimitFloor: a.Config.Retry.RateLimitMinDelay(),
	})
}

// startStatusServer serves the read-only status API for the duration
// of a continuous run. The returned func blocks until shutdown.
func startStatusServer(ctx context.Context, a *app.App, logger *zap.Logger) func() {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:           api.NewServer(a.Registry, a.Stats, logger).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("status server listening", zap.Int("port", a.Config.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("status server failed", zap.Error(err))
		}
	}()
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("status server shutdown failed", zap.Error(err))
		}
	}
}
