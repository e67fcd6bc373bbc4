package audit

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"payment_validator/internal/domain"
	"payment_validator/pkg/crypto"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingSink struct{}

func (failingSink) Append(context.Context, domain.AuditRecord) error {
	return errors.New("store unavailable")
}

func record(id string) domain.AuditRecord {
	return domain.AuditRecord{
		ID:        id,
		RequestID: "req-" + id,
		Amount:    decimal.NewFromInt(100),
		Currency:  domain.SupportedCurrency,
		Mode:      domain.ModeUPI,
		Outcome:   domain.OutcomeAccepted,
		Timestamp: time.Now(),
	}
}

func TestAsyncSink_Shutdown_DeliversQueuedRecords(t *testing.T) {
	mem := NewMemorySink()
	s := NewAsyncSink(mem, AsyncOptions{Workers: 3, QueueSize: 100}, nil)

	for i := range 50 {
		require.NoError(t, s.Append(context.Background(), record(string(rune('A'+i)))))
	}
	require.NoError(t, s.Shutdown(context.Background()))

	assert.Len(t, mem.Records(), 50)
	assert.ErrorIs(t, s.Append(context.Background(), record("late")), ErrSinkClosed)
	assert.NoError(t, s.Shutdown(context.Background()), "second shutdown is a no-op")
}

func TestAsyncSink_Append_SignsRecords(t *testing.T) {
	mem := NewMemorySink()
	signer := crypto.NewSigner("audit-key", nil)
	s := NewAsyncSink(mem, AsyncOptions{Workers: 1, Signer: signer}, nil)

	require.NoError(t, s.Append(context.Background(), record("x")))
	require.NoError(t, s.Shutdown(context.Background()))

	got := mem.Records()
	require.Len(t, got, 1)
	assert.NotEmpty(t, got[0].Signature)
	assert.NoError(t, signer.VerifyRecord(&got[0]))
}

func TestAsyncSink_DeliveryFailure_CallsHook(t *testing.T) {
	var failures atomic.Int32
	s := NewAsyncSink(failingSink{}, AsyncOptions{
		Workers:   1,
		OnFailure: func(domain.AuditRecord, error) { failures.Add(1) },
	}, nil)

	require.NoError(t, s.Append(context.Background(), record("a")))
	require.NoError(t, s.Append(context.Background(), record("b")))
	require.NoError(t, s.Shutdown(context.Background()))

	assert.Equal(t, int32(2), failures.Load())
}

func TestAsyncSink_Append_HonoursContextWhenFull(t *testing.T) {
	block := make(chan struct{})
	blocking := sinkFunc(func(ctx context.Context, _ domain.AuditRecord) error {
		<-block
		return nil
	})
	s := NewAsyncSink(blocking, AsyncOptions{Workers: 1, QueueSize: 1}, nil)
	defer func() {
		close(block)
		_ = s.Shutdown(context.Background())
	}()

	require.NoError(t, s.Append(context.Background(), record("a")))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	var err error
	for i := 0; i < 3 && err == nil; i++ {
		err = s.Append(ctx, record("b"))
	}
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

type sinkFunc func(ctx context.Context, record domain.AuditRecord) error

func (f sinkFunc) Append(ctx context.Context, record domain.AuditRecord) error {
	return f(ctx, record)
}

func TestKafkaSink_Append(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var got domain.AuditRecord
		if err := json.Unmarshal(val, &got); err != nil {
			return err
		}
		if got.ID != "k1" {
			return errors.New("unexpected record id " + got.ID)
		}
		return nil
	})
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	sink := NewKafkaSinkWithProducer(producer, "payments.audit", nil)

	assert.NoError(t, sink.Append(context.Background(), record("k1")))
	assert.ErrorIs(t, sink.Append(context.Background(), record("k2")), sarama.ErrOutOfBrokers)
	assert.NoError(t, sink.Close())
}

func TestNoOpSink_Append(t *testing.T) {
	assert.NoError(t, NewNoOpSink(nil).Append(context.Background(), record("n")))
}
