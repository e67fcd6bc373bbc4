// Package rules compiles and runs the institution-specific CEL conditions.
// Conditions see two variables: Payment and Customer.
package rules

import (
	"fmt"
	"sync"
	"time"

	"payment_validator/internal/domain"

	"github.com/google/cel-go/cel"
)

// costLimit stops runaway expressions.
const costLimit = 100_000

type Compiler struct {
	env      *cel.Env
	programs map[string]cel.Program // expression -> compiled program
	mu       sync.RWMutex
}

func NewCompiler() (*Compiler, error) {
	env, err := cel.NewEnv(
		cel.Variable("Payment", cel.DynType),
		cel.Variable("Customer", cel.DynType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Compiler{
		env:      env,
		programs: make(map[string]cel.Program),
	}, nil
}

// Compile returns the cached program for expression, compiling it on first use.
func (c *Compiler) Compile(expression string) (cel.Program, error) {
	c.mu.RLock()
	prog, ok := c.programs[expression]
	c.mu.RUnlock()
	if ok {
		return prog, nil
	}

	ast, issues := c.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile error: %w", issues.Err())
	}

	prog, err := c.env.Program(ast, cel.CostLimit(costLimit))
	if err != nil {
		return nil, fmt.Errorf("program creation error: %w", err)
	}

	c.mu.Lock()
	c.programs[expression] = prog
	c.mu.Unlock()

	return prog, nil
}

// Match evaluates expression against facts. A non-boolean result counts as
// no match.
func (c *Compiler) Match(expression string, facts map[string]any) (bool, error) {
	prog, err := c.Compile(expression)
	if err != nil {
		return false, err
	}

	out, _, err := prog.Eval(facts)
	if err != nil {
		return false, fmt.Errorf("evaluation error: %w", err)
	}

	matched, _ := out.Value().(bool)
	return matched, nil
}

var shared = sync.OnceValues(NewCompiler)

// Check reports whether expression compiles in the standard environment.
func Check(expression string) error {
	c, err := shared()
	if err != nil {
		return err
	}
	_, err = c.Compile(expression)
	return err
}

// Facts builds the variables a condition is evaluated against. Clock fields
// use loc.
func Facts(
	req *domain.PaymentRequest,
	category domain.CustomerCategory,
	now time.Time,
	loc *time.Location,
) map[string]any {
	if loc == nil {
		loc = time.UTC
	}
	at := req.ExecutionTime(now).In(loc)
	amount, _ := req.Amount.Float64()

	metadata := make(map[string]any, len(req.Metadata))
	for k, v := range req.Metadata {
		metadata[k] = v
	}

	return map[string]any{
		"Payment": map[string]any{
			"id":          req.ID,
			"mode":        string(req.Mode),
			"amount":      amount,
			"currency":    req.Currency,
			"source":      req.SourceAccount,
			"destination": req.DestinationAccount,
			"purpose":     req.Purpose,
			"user_id":     req.UserID,
			"scheduled":   req.ScheduledAt != nil,
			"hour":        int64(at.Hour()),
			"weekday":     at.Weekday().String(),
			"metadata":    metadata,
		},
		"Customer": map[string]any{
			"account":  req.SourceAccount,
			"category": string(category),
		},
	}
}
