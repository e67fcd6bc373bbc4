package domain

type RuleAction string

const (
	ActionBlock RuleAction = "block"
	ActionWarn  RuleAction = "warn"
)

// Rule is an institution-specific business rule. Condition is a CEL
// expression over the Payment and Customer variables.
type Rule struct {
	ID          string     `json:"id" yaml:"id"`
	Name        string     `json:"name" yaml:"name"`
	Description string     `json:"description" yaml:"description"`
	Condition   string     `json:"condition" yaml:"condition"`
	Action      RuleAction `json:"action" yaml:"action"`
	Code        ErrorCode  `json:"code,omitempty" yaml:"code"`
	Message     string     `json:"message" yaml:"message"`
	Priority    int        `json:"priority" yaml:"priority"`
	IsActive    bool       `json:"is_active" yaml:"is_active"`
	Version     int        `json:"version" yaml:"-"`
}
