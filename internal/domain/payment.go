package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentMode string

const (
	ModeUPI  PaymentMode = "UPI"
	ModeIMPS PaymentMode = "IMPS"
	ModeNEFT PaymentMode = "NEFT"
	ModeRTGS PaymentMode = "RTGS"
)

// SupportedCurrency is the only currency the core accepts.
const SupportedCurrency = "INR"

// PaymentModes lists every mode in evaluation-table order.
var PaymentModes = []PaymentMode{ModeUPI, ModeIMPS, ModeNEFT, ModeRTGS}

func (m PaymentMode) Valid() bool {
	switch m {
	case ModeUPI, ModeIMPS, ModeNEFT, ModeRTGS:
		return true
	}
	return false
}

// Continuous reports whether the mode settles around the clock.
func (m PaymentMode) Continuous() bool {
	return m == ModeUPI || m == ModeIMPS
}

type PaymentRequest struct {
	ID                 string            `json:"id"`
	SourceAccount      string            `json:"source_account"`
	DestinationAccount string            `json:"destination_account"`
	Amount             decimal.Decimal   `json:"amount"`
	Currency           string            `json:"currency"`
	Mode               PaymentMode       `json:"mode"`
	Purpose            string            `json:"purpose,omitempty"`
	UserID             string            `json:"user_id"`
	CreatedAt          time.Time         `json:"created_at"`
	ScheduledAt        *time.Time        `json:"scheduled_at,omitempty"`
	Metadata           map[string]string `json:"metadata,omitempty"`
}

func NewPaymentRequest(mode PaymentMode, from, to string, amount decimal.Decimal) *PaymentRequest {
	return &PaymentRequest{
		ID:                 uuid.NewString(),
		SourceAccount:      from,
		DestinationAccount: to,
		Amount:             amount,
		Currency:           SupportedCurrency,
		Mode:               mode,
		CreatedAt:          time.Now(),
		Metadata:           make(map[string]string),
	}
}

func (r *PaymentRequest) WithPurpose(purpose string) *PaymentRequest {
	r.Purpose = purpose
	return r
}

func (r *PaymentRequest) WithUser(userID string) *PaymentRequest {
	r.UserID = userID
	return r
}

func (r *PaymentRequest) WithSchedule(at time.Time) *PaymentRequest {
	r.ScheduledAt = &at
	return r
}

func (r *PaymentRequest) WithMetadata(key, value string) *PaymentRequest {
	if r.Metadata == nil {
		r.Metadata = make(map[string]string)
	}
	r.Metadata[key] = value
	return r
}

// ExecutionTime is the scheduled time if set, otherwise now.
func (r *PaymentRequest) ExecutionTime(now time.Time) time.Time {
	if r.ScheduledAt != nil {
		return *r.ScheduledAt
	}
	return now
}
