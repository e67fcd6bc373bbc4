package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"payment_validator/internal/domain"
	"payment_validator/pkg/crypto"
)

type AsyncOptions struct {
	Workers   int
	QueueSize int
	// Signer, when set, seals each record before it is queued.
	Signer *crypto.Signer
	// OnFailure is called for every record the downstream sink rejected.
	OnFailure func(record domain.AuditRecord, err error)
	// DeliveryTimeout bounds one downstream Append.
	DeliveryTimeout time.Duration
}

// AsyncSink decouples evaluations from audit delivery with a bounded queue
// drained by a fixed worker pool.
type AsyncSink struct {
	next         Sink
	opts         AsyncOptions
	queue        chan domain.AuditRecord
	shutdownChan chan struct{}
	shutdownOnce sync.Once
	wg           sync.WaitGroup
	logger       *slog.Logger
}

func NewAsyncSink(next Sink, opts AsyncOptions, logger *slog.Logger) *AsyncSink {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Workers <= 0 {
		opts.Workers = 2
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1000
	}
	if opts.DeliveryTimeout <= 0 {
		opts.DeliveryTimeout = 5 * time.Second
	}

	s := &AsyncSink{
		next:         next,
		opts:         opts,
		queue:        make(chan domain.AuditRecord, opts.QueueSize),
		shutdownChan: make(chan struct{}),
		logger:       logger,
	}

	s.startWorkers()

	return s
}

// Append queues the record. It blocks while the queue is full until ctx is
// done or the sink shuts down.
func (s *AsyncSink) Append(ctx context.Context, record domain.AuditRecord) error {
	select {
	case <-s.shutdownChan:
		return ErrSinkClosed
	default:
	}

	if s.opts.Signer != nil {
		s.opts.Signer.SignRecord(&record)
	}

	select {
	case s.queue <- record:
		return nil
	case <-s.shutdownChan:
		return ErrSinkClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *AsyncSink) startWorkers() {
	for i := 0; i < s.opts.Workers; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}
}

func (s *AsyncSink) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case record := <-s.queue:
			s.deliver(record, id)
		case <-s.shutdownChan:
			for {
				select {
				case record := <-s.queue:
					s.deliver(record, id)
				default:
					return
				}
			}
		}
	}
}

func (s *AsyncSink) deliver(record domain.AuditRecord, workerID int) {
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.DeliveryTimeout)
	defer cancel()

	startTime := time.Now()
	if err := s.next.Append(ctx, record); err != nil {
		s.logger.Error("Failed to deliver audit record",
			slog.String("audit_id", record.ID),
			slog.String("request_id", record.RequestID),
			slog.String("error", err.Error()),
			slog.Int("worker_id", workerID),
			slog.Duration("duration", time.Since(startTime)))
		if s.opts.OnFailure != nil {
			s.opts.OnFailure(record, err)
		}
	}
}

// Shutdown stops accepting records and waits for queued ones to be delivered.
func (s *AsyncSink) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() { close(s.shutdownChan) })

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Audit sink shutdown complete")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
