package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type AuditOutcome string

const (
	OutcomeAccepted    AuditOutcome = "accepted"
	OutcomeRejected    AuditOutcome = "rejected"
	OutcomeSystemError AuditOutcome = "system_error"
)

// AuditRecord is appended once per evaluation.
type AuditRecord struct {
	ID           string          `json:"id"`
	RequestID    string          `json:"request_id"`
	Source       string          `json:"source_account"`
	Destination  string          `json:"destination_account"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
	Mode         PaymentMode     `json:"mode"`
	Outcome      AuditOutcome    `json:"outcome"`
	ErrorCodes   []ErrorCode     `json:"error_codes,omitempty"`
	WarningCodes []ErrorCode     `json:"warning_codes,omitempty"`
	AppliedRules []string        `json:"applied_rules,omitempty"`
	FraudScore   *float64        `json:"fraud_score,omitempty"`
	FailedStage  string          `json:"failed_stage,omitempty"`
	SystemError  string          `json:"system_error,omitempty"`
	Timestamp    time.Time       `json:"timestamp"`
	Signature    string          `json:"signature,omitempty"`
}
