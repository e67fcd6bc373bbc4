// Package fraud scores a payment from independent risk signals. The overall
// level is the maximum of the signal levels, so one strong signal is enough
// to block a payment no matter how benign the others are.
package fraud

import (
	"context"
	"fmt"
	"log/slog"

	"payment_validator/internal/counters"
	"payment_validator/internal/domain"

	"golang.org/x/sync/errgroup"
)

type Input struct {
	Request *domain.PaymentRequest
	Context domain.TransactionContext
	// Reservation is the candidate's own counter entry, left out of history.
	Reservation *counters.Reservation
}

type SignalResult struct {
	Name       string
	Level      domain.RiskLevel
	Score      float64
	Indicators []string
	// Sufficient is false when the signal lacked the data to judge.
	Sufficient bool
}

type Signal interface {
	Name() string
	Evaluate(ctx context.Context, in Input) (SignalResult, error)
}

type FraudDetector struct {
	signals []Signal
	logger  *slog.Logger
}

func NewFraudDetector(logger *slog.Logger, signals ...Signal) *FraudDetector {
	if logger == nil {
		logger = slog.Default()
	}
	return &FraudDetector{
		signals: signals,
		logger:  logger,
	}
}

// Assess evaluates every signal concurrently. Any signal error fails the
// whole assessment; a partial score is never returned.
func (d *FraudDetector) Assess(ctx context.Context, in Input) (domain.FraudAssessment, error) {
	results := make([]SignalResult, len(d.signals))

	g, gctx := errgroup.WithContext(ctx)
	for i, sig := range d.signals {
		g.Go(func() error {
			res, err := sig.Evaluate(gctx, in)
			if err != nil {
				return fmt.Errorf("%s signal: %w", sig.Name(), err)
			}
			res.Name = sig.Name()
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return domain.FraudAssessment{}, err
	}

	assessment := Combine(results)

	d.logger.DebugContext(ctx, "Fraud assessment",
		slog.String("request_id", in.Request.ID),
		slog.String("level", string(assessment.Level)),
		slog.Float64("score", assessment.Score),
		slog.Any("indicators", assessment.Indicators))

	return assessment, nil
}

// Combine merges signal results: level and score are the maxima, indicators
// are concatenated in signal order, confidence is the share of signals that
// had enough data.
func Combine(results []SignalResult) domain.FraudAssessment {
	out := domain.FraudAssessment{Level: domain.RiskLow}
	if len(results) == 0 {
		return out
	}

	sufficient := 0
	for _, r := range results {
		out.Level = out.Level.Max(r.Level)
		out.Score = max(out.Score, r.Score)
		out.Indicators = append(out.Indicators, r.Indicators...)
		if r.Sufficient {
			sufficient++
		}
	}
	out.Confidence = float64(sufficient) / float64(len(results))
	return out
}
