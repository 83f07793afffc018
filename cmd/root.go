package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/finjan-labs/ms-go-fortunes/config"
)

var rootCmd = &cobra.Command{
	Use:   "fortunes",
	Short: "Coffee fortune microservice",
	Long:  "A coffee-cup fortune microservice: image submission, payment-gated readings, status polling and email delivery.",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func configureLogging(cfg *config.Config) error {
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}

	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetOutput(os.Stdout)

	return nil
}
