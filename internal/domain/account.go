package domain

import "github.com/shopspring/decimal"

type AccountStatus string

const (
	AccountNotFound AccountStatus = "not_found"
	AccountActive   AccountStatus = "active"
	AccountInactive AccountStatus = "inactive"
	AccountFrozen   AccountStatus = "frozen"
	AccountClosed   AccountStatus = "closed"
)

type CustomerCategory string

const (
	CategoryBasic     CustomerCategory = "basic"
	CategoryStandard  CustomerCategory = "standard"
	CategoryPremium   CustomerCategory = "premium"
	CategoryCorporate CustomerCategory = "corporate"
)

type Reputation string

const (
	ReputationClean   Reputation = "clean"
	ReputationFlagged Reputation = "flagged"
)

// Account is the view of an account held by the reference account service.
type Account struct {
	ID             string           `json:"id" yaml:"id"`
	Status         AccountStatus    `json:"status" yaml:"status"`
	Balance        decimal.Decimal  `json:"balance" yaml:"balance"`
	MinimumBalance decimal.Decimal  `json:"minimum_balance" yaml:"minimum_balance"`
	Category       CustomerCategory `json:"category" yaml:"category"`
}

type ComplianceOutcome struct {
	Compliant           bool     `json:"compliant"`
	Score               int      `json:"score"`
	ViolatedRegulations []string `json:"violated_regulations,omitempty"`
}
