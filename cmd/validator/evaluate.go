package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"payment_validator/internal/api"
	"payment_validator/internal/config"

	"github.com/spf13/cobra"
)

func evaluateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate one payment request offline and print the result",
		Long: `Evaluate a payment request read from a JSON file against the in-memory
collaborators and print the validation result as JSON.

Examples:
  validator evaluate --file payment.json --seed seed.json`,
		RunE: runEvaluate,
	}

	cmd.Flags().StringP("file", "f", "", "payment request JSON file")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	envFile, _ := cmd.Flags().GetString("env-file")
	seedPath, _ := cmd.Flags().GetString("seed")
	file, _ := cmd.Flags().GetString("file")

	cfg, err := config.Load(envFile)
	if err != nil {
		return err
	}
	logger := setupLogger(os.Stderr, cfg.SlogLevel())

	data, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("read payment file: %w", err)
	}
	var body api.ValidatePaymentRequest
	if err := json.Unmarshal(data, &body); err != nil {
		return fmt.Errorf("parse payment file %s: %w", file, err)
	}

	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, seedPath, logger)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := a.close(shutdownCtx); err != nil {
			logger.Error("Component shutdown failed", slog.String("error", err.Error()))
		}
	}()

	result, err := a.processor.Evaluate(ctx, body.ToDomain())
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
