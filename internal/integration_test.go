package internal_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"payment_validator/internal/api"
	"payment_validator/internal/audit"
	"payment_validator/internal/counters"
	"payment_validator/internal/domain"
	"payment_validator/internal/fraud"
	"payment_validator/internal/policy"
	"payment_validator/internal/processor"
	"payment_validator/internal/repository/memory"
	"payment_validator/pkg/crypto"
	"payment_validator/pkg/metrics"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	payer = "123456781"
	payee = "987654312"
)

type testEnv struct {
	collab  *memory.Collaborators
	store   *counters.Store
	sink    *audit.MemorySink
	async   *audit.AsyncSink
	signer  *crypto.Signer
	metrics *metrics.MetricsCollector
	router  http.Handler
}

func setup(t *testing.T) *testEnv {
	t.Helper()

	collab := memory.NewCollaborators(decimal.NewFromInt(1_000_000))
	ctx := context.Background()
	require.NoError(t, collab.Accounts.Save(ctx, &domain.Account{
		ID: payer, Status: domain.AccountActive, Balance: decimal.NewFromInt(5_000_000),
	}))
	require.NoError(t, collab.Accounts.Save(ctx, &domain.Account{
		ID: payee, Status: domain.AccountActive, Balance: decimal.Zero,
	}))

	store := counters.NewStore(counters.DefaultConfig())
	profiles := fraud.NewMemoryProfileStore()
	fraudCfg := fraud.DefaultConfig()
	fraudCfg.Velocity.MediumCount = 50
	fraudCfg.Velocity.HighCount = 100
	detector := fraud.NewFraudDetector(nil, fraud.DefaultSignals(store, profiles, collab.Reputation, fraudCfg)...)

	engine, err := processor.NewRuleEngine(collab.Rules, nil)
	require.NoError(t, err)

	sink := audit.NewMemorySink()
	signer := crypto.NewSigner("test-secret", nil)
	collector := metrics.NewMetricsCollector(nil)
	async := audit.NewAsyncSink(sink, audit.AsyncOptions{Workers: 2, QueueSize: 64, Signer: signer}, nil)
	t.Cleanup(func() { _ = async.Shutdown(context.Background()) })

	stages := processor.DefaultStages(processor.Dependencies{
		Accounts:   collab.Accounts,
		Compliance: collab.Compliance,
		Calendar:   collab.Calendar,
		Counters:   store,
		Detector:   detector,
		Profiles:   profiles,
		Rules:      engine,
		StatusTTL:  5 * time.Second,
	})
	proc := processor.NewValidationProcessor(policy.NewStaticStore(policy.Default()), stages, processor.Options{
		Recorder: collector,
		Audit:    async,
	}, nil)

	return &testEnv{
		collab:  collab,
		store:   store,
		sink:    sink,
		async:   async,
		signer:  signer,
		metrics: collector,
		router:  api.NewRouter(api.NewAPIHandler(proc, 5*time.Second, nil)),
	}
}

func callValidate(t *testing.T, env *testEnv, req api.ValidatePaymentRequest) (*domain.ValidationResult, int) {
	t.Helper()
	b, err := json.Marshal(req)
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodPost, "/api/v1/payments/validate", bytes.NewReader(b))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		return nil, w.Code
	}
	var result domain.ValidationResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	return &result, w.Code
}

func upi(amount int64) api.ValidatePaymentRequest {
	return api.ValidatePaymentRequest{
		Mode:               domain.ModeUPI,
		SourceAccount:      payer,
		DestinationAccount: payee,
		Amount:             decimal.NewFromInt(amount),
		Purpose:            "groceries",
		UserID:             "user-1",
	}
}

func scrape(t *testing.T, env *testEnv) string {
	t.Helper()
	w := httptest.NewRecorder()
	env.metrics.GetHandler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	return w.Body.String()
}

func TestIntegration_AcceptedPaymentIsAuditedAndSigned(t *testing.T) {
	env := setup(t)

	result, code := callValidate(t, env, upi(2_500))
	require.Equal(t, http.StatusOK, code)
	assert.True(t, result.Valid)
	assert.Empty(t, result.Errors)

	require.NoError(t, env.async.Shutdown(context.Background()))
	records := env.sink.Records()
	require.Len(t, records, 1)
	assert.Equal(t, domain.OutcomeAccepted, records[0].Outcome)
	assert.Equal(t, result.RequestID, records[0].RequestID)
	assert.NoError(t, env.signer.VerifyRecord(&records[0]))

	tampered := records[0]
	tampered.Amount = decimal.NewFromInt(1)
	assert.ErrorIs(t, env.signer.VerifyRecord(&tampered), crypto.ErrInvalidSignature)
}

func TestIntegration_ConcurrentRequestsRespectDailyLimit(t *testing.T) {
	env := setup(t)

	const requests = 10
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
		limited  int
	)
	for range requests {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, code := callValidate(t, env, upi(20_000))
			if !assert.Equal(t, http.StatusOK, code) {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			switch {
			case result.Valid:
				accepted++
			case result.HasError(domain.CodeDailyLimitExceeded):
				limited++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, accepted)
	assert.Equal(t, 5, limited)

	totals := env.store.Totals(payer, domain.ModeUPI, time.Now())
	assert.True(t, totals.Daily.Equal(decimal.NewFromInt(100_000)), "daily=%s", totals.Daily)

	body := scrape(t, env)
	assert.Contains(t, body, `payment_evaluations_total{outcome="accepted"} 5`)
	assert.Contains(t, body, `payment_rejections_total{code="DAILY_LIMIT_EXCEEDED"} 5`)
}

func TestIntegration_RejectionsCarryCodes(t *testing.T) {
	env := setup(t)
	env.collab.Reputation.Flag(payee)
	env.collab.Compliance.Sanction("555123456")
	require.NoError(t, env.collab.Accounts.Save(context.Background(), &domain.Account{
		ID: "555123456", Status: domain.AccountActive,
	}))

	cases := []struct {
		name string
		req  api.ValidatePaymentRequest
		want domain.ErrorCode
	}{
		{"invalid account", func() api.ValidatePaymentRequest {
			r := upi(100)
			r.SourceAccount = "111111111"
			return r
		}(), domain.CodeInvalidAccount},
		{"unknown payer", func() api.ValidatePaymentRequest {
			r := upi(100)
			r.SourceAccount = "192837465"
			return r
		}(), domain.CodeAccountNotFound},
		{"sanctioned payee", func() api.ValidatePaymentRequest {
			r := upi(100)
			r.DestinationAccount = "555123456"
			return r
		}(), domain.CodeComplianceViolation},
		{"flagged payee", upi(100), domain.CodeFraudRiskHigh},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result, code := callValidate(t, env, tc.req)
			require.Equal(t, http.StatusOK, code)
			assert.False(t, result.Valid)
			assert.True(t, result.HasError(tc.want), fmt.Sprintf("errors: %+v", result.Errors))
		})
	}
}

func TestIntegration_MalformedRequest(t *testing.T) {
	env := setup(t)

	r := httptest.NewRequest(http.MethodPost, "/api/v1/payments/validate", bytes.NewBufferString(`{"mode": "UPI", "amount": }`))
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, env.sink.Records())
}
