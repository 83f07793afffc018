package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/finjan-labs/ms-go-fortunes/config"
)

var (
	workerMode bool
)

var expireCmd = &cobra.Command{
	Use:   "expire",
	Short: "Run expiration-related commands",
}

var expireStalledCmd = &cobra.Command{
	Use:   "stalled",
	Short: "Fail fortunes stuck in processing past the stall deadline",
	Run: func(_ *cobra.Command, _ []string) {
		runCommand(
			"expire_stalled",
			func(cfg *config.Config) time.Duration { return cfg.Jobs.ExpireStalledInterval },
			func(s *appServices, ctx context.Context) error {
				return s.fortune.RunExpireStalledBatch(ctx)
			},
		)
	},
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Reconcile stale pending payments against the provider",
	Run: func(_ *cobra.Command, _ []string) {
		runCommand(
			"reconcile_payments",
			func(cfg *config.Config) time.Duration { return cfg.Jobs.ReconcilePaymentsInterval },
			func(s *appServices, ctx context.Context) error {
				return s.payment.RunReconcilePaymentsBatch(ctx)
			},
		)
	},
}

func init() {
	rootCmd.AddCommand(expireCmd)
	rootCmd.AddCommand(reconcileCmd)
	expireCmd.AddCommand(expireStalledCmd)

	rootCmd.PersistentFlags().BoolVar(&workerMode, "worker", false, "Run continuously using configured interval")
}

func runCommand(
	name string,
	intervalResolver func(cfg *config.Config) time.Duration,
	fn func(s *appServices, ctx context.Context) error,
) {
	cfg, services, cleanup := mustCreateServices()
	defer cleanup()

	if workerMode {
		runWorker(name, intervalResolver(cfg), services, fn)
		return
	}

	ctx := context.Background()
	runJob(name, func() error { return fn(services, ctx) })
}

func runWorker(
	name string,
	interval time.Duration,
	services *appServices,
	fn func(s *appServices, ctx context.Context) error,
) {
	if interval <= 0 {
		logrus.WithField("job", name).Fatal("invalid worker interval")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runJob(name, func() error { return fn(services, ctx) })

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	for {
		select {
		case <-quit:
			logrus.WithField("job", name).Info("Worker shutdown requested")
			return
		case <-ticker.C:
			runJob(name, func() error { return fn(services, ctx) })
		}
	}
}

func runJob(name string, fn func() error) {
	start := time.Now()
	err := fn()
	latency := time.Since(start)
	if err != nil {
		logrus.WithError(err).WithField("job", name).WithField("latency", latency.String()).Error("job_failed")
		return
	}
	logrus.WithField("job", name).WithField("latency", latency.String()).Info("job_completed")
}
