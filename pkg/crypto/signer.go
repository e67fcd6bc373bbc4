package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"payment_validator/internal/domain"
)

var ErrInvalidSignature = errors.New("invalid signature")

// Signer seals audit records with HMAC-SHA256 so tampering is detectable
// downstream. Key distribution is the caller's concern.
type Signer struct {
	secretKey []byte
	logger    *slog.Logger
}

func NewSigner(secretKey string, logger *slog.Logger) *Signer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Signer{
		secretKey: []byte(secretKey),
		logger:    logger,
	}
}

func (s *Signer) Sign(data []byte) string {
	mac := hmac.New(sha256.New, s.secretKey)
	mac.Write(data)
	return hex.EncodeToString(mac.Sum(nil))
}

func (s *Signer) Verify(data []byte, signature string) error {
	expected := s.Sign(data)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		s.logger.Warn("Signature verification failed", slog.Int("payload_bytes", len(data)))
		return ErrInvalidSignature
	}
	return nil
}

// SignRecord sets record.Signature over its canonical form.
func (s *Signer) SignRecord(record *domain.AuditRecord) {
	record.Signature = s.Sign(canonical(record))
}

func (s *Signer) VerifyRecord(record *domain.AuditRecord) error {
	if err := s.Verify(canonical(record), record.Signature); err != nil {
		return fmt.Errorf("audit record %s: %w", record.ID, err)
	}
	return nil
}

func canonical(r *domain.AuditRecord) []byte {
	codes := func(c []domain.ErrorCode) string {
		parts := make([]string, len(c))
		for i, code := range c {
			parts[i] = string(code)
		}
		return strings.Join(parts, ",")
	}

	score := ""
	if r.FraudScore != nil {
		score = fmt.Sprintf("%.4f", *r.FraudScore)
	}

	fields := []string{
		r.ID,
		r.RequestID,
		r.Source,
		r.Destination,
		r.Amount.StringFixed(2),
		r.Currency,
		string(r.Mode),
		string(r.Outcome),
		codes(r.ErrorCodes),
		codes(r.WarningCodes),
		strings.Join(r.AppliedRules, ","),
		score,
		r.FailedStage,
		r.SystemError,
		r.Timestamp.UTC().Format(time.RFC3339Nano),
	}
	return []byte(strings.Join(fields, "|"))
}
