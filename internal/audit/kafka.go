package audit

import (
	"context"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/josh-kwaku/betting-ledger/internal/domain"
	"github.com/josh-kwaku/betting-ledger/internal/logging"
	"github.com/josh-kwaku/betting-ledger/internal/metrics"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaSink publishes JSON audit records keyed by target id, so every record
// for one bet or entry lands on the same partition.
type KafkaSink struct {
	w       messageWriter
	metrics *metrics.Metrics
}

// NewWriter builds an async writer. Delivery errors surface through the
// completion callback, never through Log.
func NewWriter(brokers []string, topic string, m *metrics.Metrics) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		Async:                  true,
		Completion: func(msgs []kafka.Message, err error) {
			if err == nil {
				return
			}
			m.AuditFailures.Add(float64(len(msgs)))
			slog.Error("audit publish failed", "error", err, "messages", len(msgs))
		},
	}
}

func NewKafkaSink(w messageWriter, m *metrics.Metrics) *KafkaSink {
	return &KafkaSink{w: w, metrics: m}
}

func (s *KafkaSink) Log(ctx context.Context, a domain.Audit) {
	log := logging.FromContext(ctx)

	payload, err := encode(a)
	if err != nil {
		s.metrics.AuditFailures.Inc()
		log.Error("audit encode failed", "error", err, "action", a.Action)
		return
	}

	msg := kafka.Message{Key: []byte(a.TargetID.String()), Value: payload}
	if err := s.w.WriteMessages(context.WithoutCancel(ctx), msg); err != nil {
		s.metrics.AuditFailures.Inc()
		log.Error("audit publish failed", "error", err, "action", a.Action, "target_id", a.TargetID)
	}
}
