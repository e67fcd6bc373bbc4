package processor

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"payment_validator/internal/domain"
	"payment_validator/internal/repository"
	"payment_validator/internal/rules"
)

// BusinessRule is one check of the business stage. New rules plug in here
// without touching other stages.
type BusinessRule interface {
	ID() string
	Evaluate(ctx context.Context, ev *Evaluation) (RuleResult, error)
}

type RuleResult struct {
	Triggered bool
	Action    domain.RuleAction
	Code      domain.ErrorCode
	Message   string
}

type RuleEngine struct {
	builtins []BusinessRule
	ruleRepo repository.RuleRepository
	compiler *rules.Compiler
	logger   *slog.Logger
}

// NewRuleEngine runs the built-in rules followed by the institution's CEL
// rules from the policy snapshot and ruleRepo. ruleRepo may be nil.
func NewRuleEngine(ruleRepo repository.RuleRepository, logger *slog.Logger) (*RuleEngine, error) {
	if logger == nil {
		logger = slog.Default()
	}

	compiler, err := rules.NewCompiler()
	if err != nil {
		return nil, err
	}

	return &RuleEngine{
		builtins: []BusinessRule{CategoryCapRule{}, PurposeRequiredRule{}},
		ruleRepo: ruleRepo,
		compiler: compiler,
		logger:   logger,
	}, nil
}

func (e *RuleEngine) Evaluate(ctx context.Context, ev *Evaluation) (StageResult, error) {
	institution, err := e.institutionRules(ctx, ev)
	if err != nil {
		return StageResult{}, err
	}

	all := make([]BusinessRule, 0, len(e.builtins)+len(institution))
	all = append(all, e.builtins...)
	for _, r := range institution {
		all = append(all, celRule{rule: r, compiler: e.compiler})
	}

	var result StageResult
	for _, rule := range all {
		res, err := rule.Evaluate(ctx, ev)
		if err != nil {
			if !advisory(rule) {
				return StageResult{}, fmt.Errorf("evaluate rule %s: %w", rule.ID(), err)
			}
			e.logger.WarnContext(ctx, "Skipping advisory rule that failed to evaluate",
				slog.String("rule_id", rule.ID()),
				slog.String("request_id", ev.RequestID()),
				slog.String("error", err.Error()))
			continue
		}
		result.AppliedRules = append(result.AppliedRules, rule.ID())
		if !res.Triggered {
			continue
		}

		e.logger.InfoContext(ctx, "Rule triggered",
			slog.String("rule_id", rule.ID()),
			slog.String("action", string(res.Action)),
			slog.String("request_id", ev.RequestID()))

		if res.Action == domain.ActionWarn {
			result.Warnings = append(result.Warnings, domain.ValidationWarning{Code: res.Code, Message: res.Message})
		} else {
			result.Errors = append(result.Errors, domain.ValidationError{Code: res.Code, Message: res.Message})
		}
	}
	return result, nil
}

// institutionRules merges the snapshot's rules with the repository's active
// rules. A repository rule replaces a snapshot rule with the same ID.
func (e *RuleEngine) institutionRules(ctx context.Context, ev *Evaluation) ([]domain.Rule, error) {
	byID := make(map[string]domain.Rule)
	if ev.Policy != nil {
		for _, r := range ev.Policy.Rules {
			if r.IsActive {
				byID[r.ID] = r
			}
		}
	}

	if e.ruleRepo != nil {
		stored, err := e.ruleRepo.GetActiveRules(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get active rules: %w", err)
		}
		for _, r := range stored {
			byID[r.ID] = *r
		}
	}

	out := make([]domain.Rule, 0, len(byID))
	for _, r := range byID {
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b domain.Rule) int {
		if c := cmp.Compare(b.Priority, a.Priority); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

// advisory reports whether a rule can only warn. Such rules are skipped when
// they fail; any other failure stops the evaluation.
func advisory(rule BusinessRule) bool {
	cr, ok := rule.(celRule)
	return ok && cr.rule.Action == domain.ActionWarn
}

type celRule struct {
	rule     domain.Rule
	compiler *rules.Compiler
}

func (r celRule) ID() string { return r.rule.ID }

func (r celRule) Evaluate(ctx context.Context, ev *Evaluation) (RuleResult, error) {
	facts := rules.Facts(ev.Request, ev.Category, ev.Now, ev.Policy.Schedule.Location)
	matched, err := r.compiler.Match(r.rule.Condition, facts)
	if err != nil || !matched {
		return RuleResult{}, err
	}

	res := RuleResult{Triggered: true, Action: r.rule.Action, Code: r.rule.Code, Message: r.rule.Message}
	if res.Code == "" {
		res.Code = domain.CodeBusinessRule
		if res.Action == domain.ActionWarn {
			res.Code = domain.CodeBusinessRuleNotice
		}
	}
	if res.Message == "" {
		res.Message = cmp.Or(r.rule.Name, r.rule.ID)
	}
	return res, nil
}

// CategoryCapRule applies the per-transaction caps some customer categories
// carry on top of the mode limits.
type CategoryCapRule struct{}

func (CategoryCapRule) ID() string { return "business.category_cap" }

func (CategoryCapRule) Evaluate(ctx context.Context, ev *Evaluation) (RuleResult, error) {
	req := ev.Request
	for _, c := range ev.Policy.Business.CategoryCaps {
		if c.Category != ev.Category || !slices.Contains(c.Modes, req.Mode) {
			continue
		}
		if req.Amount.GreaterThan(c.Max) {
			return RuleResult{
				Triggered: true,
				Action:    domain.ActionBlock,
				Code:      domain.CodeCategoryLimit,
				Message:   fmt.Sprintf("%s customers may send at most %s per %s payment", c.Category, c.Max.StringFixed(2), req.Mode),
			}, nil
		}
	}
	return RuleResult{}, nil
}

// PurposeRequiredRule demands a stated purpose for large payments.
type PurposeRequiredRule struct{}

func (PurposeRequiredRule) ID() string { return "business.purpose_required" }

func (PurposeRequiredRule) Evaluate(ctx context.Context, ev *Evaluation) (RuleResult, error) {
	threshold := ev.Policy.Business.PurposeThreshold
	req := ev.Request
	if !threshold.IsPositive() || !req.Amount.GreaterThan(threshold) || strings.TrimSpace(req.Purpose) != "" {
		return RuleResult{}, nil
	}
	return RuleResult{
		Triggered: true,
		Action:    domain.ActionBlock,
		Code:      domain.CodePurposeRequired,
		Message:   fmt.Sprintf("a purpose is required for payments above %s", threshold.StringFixed(2)),
	}, nil
}
