package processor

import (
	"context"
	"slices"
	"time"

	"payment_validator/internal/counters"
	"payment_validator/internal/domain"
	"payment_validator/internal/policy"
)

// Evaluation is the state shared by the stages of one evaluation. Stages run
// sequentially, so it needs no locking.
type Evaluation struct {
	Request     *domain.PaymentRequest
	Context     domain.TransactionContext
	Policy      *policy.Snapshot
	Now         time.Time
	Category    domain.CustomerCategory
	Reservation *counters.Reservation

	commits   []func(ctx context.Context, now time.Time) error
	final     []func(ctx context.Context, now time.Time) error
	rollbacks []func()
}

func NewEvaluation(req *domain.PaymentRequest, snap *policy.Snapshot, now time.Time) *Evaluation {
	ev := &Evaluation{
		Request:  req,
		Policy:   snap,
		Now:      now,
		Category: domain.CategoryStandard,
	}
	if req != nil {
		ev.Context = domain.NewTransactionContext(req, now)
	}
	return ev
}

func (e *Evaluation) RequestID() string {
	if e.Request == nil {
		return ""
	}
	return e.Request.ID
}

// Defer registers side effects that only take hold if the payment is
// accepted. Either function may be nil.
func (e *Evaluation) Defer(commit func(ctx context.Context, now time.Time) error, rollback func()) {
	if commit != nil {
		e.commits = append(e.commits, commit)
	}
	if rollback != nil {
		e.rollbacks = append(e.rollbacks, rollback)
	}
}

// DeferFinal registers a side effect that cannot be undone once committed.
// Final commits run after every commit registered with Defer, so a failure
// there still leaves them to roll back.
func (e *Evaluation) DeferFinal(commit func(ctx context.Context, now time.Time) error, rollback func()) {
	if commit != nil {
		e.final = append(e.final, commit)
	}
	if rollback != nil {
		e.rollbacks = append(e.rollbacks, rollback)
	}
}

func (e *Evaluation) commit(ctx context.Context, now time.Time) error {
	for _, fn := range slices.Concat(e.commits, e.final) {
		if err := fn(ctx, now); err != nil {
			e.rollback()
			return err
		}
	}
	e.reset()
	return nil
}

func (e *Evaluation) rollback() {
	for i := len(e.rollbacks) - 1; i >= 0; i-- {
		e.rollbacks[i]()
	}
	e.reset()
}

func (e *Evaluation) reset() {
	e.commits, e.final, e.rollbacks = nil, nil, nil
}

type StageResult struct {
	Errors          []domain.ValidationError
	Warnings        []domain.ValidationWarning
	AppliedRules    []string
	FraudScore      *float64
	RiskLevel       domain.RiskLevel
	ComplianceScore *int
}

// Stage is one step of the validation chain. Business rejections go in the
// result; a returned error means the stage could not decide.
type Stage interface {
	Name() string
	Validate(ctx context.Context, ev *Evaluation) (StageResult, error)
}
