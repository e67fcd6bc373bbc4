package rules

import (
	"testing"
	"time"

	"payment_validator/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompiler_Match(t *testing.T) {
	c, err := NewCompiler()
	require.NoError(t, err)

	at := time.Date(2026, 6, 3, 23, 15, 0, 0, time.UTC)
	req := domain.NewPaymentRequest(domain.ModeRTGS, "123456781", "987654312", decimal.NewFromInt(750_000)).
		WithPurpose("invoice 42").
		WithMetadata(domain.MetaDeviceID, "dev-1")
	facts := Facts(req, domain.CategoryCorporate, at, time.UTC)

	cases := map[string]bool{
		`Payment.mode == "RTGS" && Payment.hour >= 22`:         true,
		`Payment.amount > 1000000.0`:                           false,
		`Customer.category == "corporate"`:                     true,
		`Payment.metadata.device_id == "dev-1"`:                true,
		`Payment.weekday == "Wednesday" && !Payment.scheduled`: true,
		`"not a bool"`:                                         false,
	}

	for expr, want := range cases {
		t.Run(expr, func(t *testing.T) {
			got, err := c.Match(expr, facts)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestCompiler_Compile_CachesPrograms(t *testing.T) {
	c, err := NewCompiler()
	require.NoError(t, err)

	_, err = c.Compile(`Payment.amount > 10.0`)
	require.NoError(t, err)
	_, err = c.Compile(`Payment.amount > 10.0`)
	require.NoError(t, err)

	assert.Len(t, c.programs, 1)
}

func TestCheck_RejectsBadExpressions(t *testing.T) {
	assert.NoError(t, Check(`Payment.amount >= 1.0`))
	assert.Error(t, Check(`Payment.amount >=`))
	assert.Error(t, Check(`Unknown.field == 1`))
}

func TestCompiler_Match_MissingFieldIsError(t *testing.T) {
	c, err := NewCompiler()
	require.NoError(t, err)

	req := domain.NewPaymentRequest(domain.ModeUPI, "123456781", "987654312", decimal.NewFromInt(10))
	_, err = c.Match(`Payment.no_such_field == 1`, Facts(req, domain.CategoryBasic, time.Now(), nil))
	assert.Error(t, err)
}
