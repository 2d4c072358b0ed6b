// Package pushstatus writes push-job-status records to a store's
// real-time topic as a fire-and-forget side channel (spec.md §4.6). The
// pushJobStatusStore is itself created asynchronously on bootstrap, so the
// producer cannot be built eagerly; this package lazily connects it,
// mirroring the teacher's StorageClient.getConnection
// (coordinator/internal/client/storage_client.go): create-on-first-use,
// cached for the process lifetime, guarded by a mutex.
package pushstatus

import (
	"context"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/veniceio/venice-controller/internal/verrors"
)

const (
	maxConnectAttempts = 5
	connectRetryDelay  = time.Second
)

// StatusWriter is the interface internal/lifecycle depends on, satisfied by
// both *Writer (real sarama-backed) and *FakeWriter (tests).
type StatusWriter interface {
	WriteStatus(ctx context.Context, key, value []byte)
}

var (
	_ StatusWriter = (*Writer)(nil)
	_ StatusWriter = (*FakeWriter)(nil)
)

// Writer lazily connects a sarama.AsyncProducer to the push-job-status
// real-time topic and writes status records to it.
type Writer struct {
	mu       sync.Mutex
	producer sarama.AsyncProducer
	brokers  []string
	topic    string
	logger   *zap.Logger
}

// NewWriter does not connect; the producer is created on the first
// WriteStatus call (or eagerly via Connect), since the target topic may not exist yet
// at process start.
func NewWriter(brokers []string, topic string, logger *zap.Logger) *Writer {
	return &Writer{brokers: brokers, topic: topic, logger: logger}
}

// Connect attempts to build the underlying producer up to maxConnectAttempts
// times, 1s apart, per spec.md §4.6. Safe to call more than once; a prior
// success is a no-op.
func (w *Writer) Connect(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.producer != nil {
		return nil
	}

	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = false
	cfg.Producer.Return.Errors = false
	cfg.Producer.RequiredAcks = sarama.WaitForLocal

	var lastErr error
	for attempt := 1; attempt <= maxConnectAttempts; attempt++ {
		producer, err := sarama.NewAsyncProducer(w.brokers, cfg)
		if err == nil {
			w.producer = producer
			go w.drainAsyncChannels()
			return nil
		}
		lastErr = err
		w.logger.Warn("push-status producer connect attempt failed",
			zap.Int("attempt", attempt), zap.Error(err))

		select {
		case <-ctx.Done():
			return verrors.Wrap(verrors.KindTopicManagerUnavailable, "Connect", ctx.Err())
		case <-time.After(connectRetryDelay):
		}
	}
	return verrors.Wrap(verrors.KindTopicManagerUnavailable, "Connect", lastErr)
}

// drainAsyncChannels discards the producer's success/error channels so
// goroutines writing to them never block; we've disabled Return.Successes
// and Return.Errors above, but sarama still requires the channels to be
// drained defensively if a future config change re-enables them.
func (w *Writer) drainAsyncChannels() {
	w.mu.Lock()
	producer := w.producer
	w.mu.Unlock()
	if producer == nil {
		return
	}
	for {
		select {
		case _, ok := <-producer.Successes():
			if !ok {
				return
			}
		case err, ok := <-producer.Errors():
			if !ok {
				return
			}
			w.logger.Warn("push-status write failed", zap.Error(err))
		}
	}
}

// WriteStatus fire-and-forgets a (key, value) push-status record, lazily
// connecting if necessary. A write failure is logged and swallowed per
// spec.md §7: the side channel must never affect the primary operation.
func (w *Writer) WriteStatus(ctx context.Context, key, value []byte) {
	if err := w.Connect(ctx); err != nil {
		w.logger.Warn("push-status write dropped: producer unavailable", zap.Error(err))
		return
	}

	w.mu.Lock()
	producer := w.producer
	w.mu.Unlock()
	if producer == nil {
		return
	}

	producer.Input() <- &sarama.ProducerMessage{
		Topic: w.topic,
		Key:   sarama.ByteEncoder(key),
		Value: sarama.ByteEncoder(value),
	}
}

// Close releases the underlying producer, if one was ever connected.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.producer == nil {
		return nil
	}
	return w.producer.Close()
}
