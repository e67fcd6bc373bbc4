package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

const appName = "payment_validator"

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "validator",
		Short:         "Payment validation and fraud-risk decisioning",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().String("env-file", "config.env", "optional env file loaded before the process environment")
	rootCmd.PersistentFlags().String("seed", "", "JSON file seeding the in-memory accounts, sanctions, holidays and rules")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(evaluateCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setupLogger(w io.Writer, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: level,
	}

	handler := slog.NewJSONHandler(w, opts)
	return slog.New(handler).With(slog.String("app", appName))
}
