package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/agromano/identity-gate/internal/config"
	"github.com/agromano/identity-gate/internal/db/models"
	"github.com/agromano/identity-gate/internal/logger"
)

const (
	defaultQueueSize      = 256
	defaultAlertThreshold = 3
	alertTimeout          = 10 * time.Second
)

// ErrDBNil is returned when the sink has no database.
var ErrDBNil = errors.New("audit database connection is nil")

// Entry describes one mutation. Before and After are marshalled to JSON.
type Entry struct {
	Entity         string
	EntityID       string
	Action         string
	Before         any
	After          any
	ActorAccountID *uint64
	OriginIP       string
	RequestID      string
}

// Recorder accepts audit entries without failing the caller.
type Recorder interface {
	Record(ctx context.Context, e Entry)
}

// Sink is the gorm backed Recorder.
type Sink struct {
	db        *gorm.DB
	threshold int
	alerters  []Alerter
	now       func() time.Time
	log       zerolog.Logger

	queue chan models.AuditRecord
	done  chan struct{}

	closeMu sync.RWMutex
	closed  bool

	mu       sync.Mutex
	failures int
	degraded bool
}

// NewSink starts the background writer.
func NewSink(db *gorm.DB, cfg config.Audit, alerters ...Alerter) *Sink {
	if cfg.QueueSize < 0 {
		cfg.QueueSize = defaultQueueSize
	}

	if cfg.AlertThreshold <= 0 {
		cfg.AlertThreshold = defaultAlertThreshold
	}

	s := &Sink{
		db:        db,
		threshold: cfg.AlertThreshold,
		alerters:  alerters,
		now:       time.Now,
		log:       logger.Component("audit"),
		queue:     make(chan models.AuditRecord, cfg.QueueSize),
		done:      make(chan struct{}),
	}

	go s.run()

	return s
}

// Record enqueues e. With a full queue, or after Close, the record is written
// synchronously instead of being dropped.
func (s *Sink) Record(ctx context.Context, e Entry) {
	rec := models.AuditRecord{
		Entity:         e.Entity,
		EntityID:       e.EntityID,
		Action:         e.Action,
		Before:         s.snapshot(e.Before),
		After:          s.snapshot(e.After),
		ActorAccountID: e.ActorAccountID,
		OriginIP:       e.OriginIP,
		RequestID:      e.RequestID,
		OccurredAt:     s.now().UTC(),
	}

	s.closeMu.RLock()
	defer s.closeMu.RUnlock()

	if !s.closed {
		select {
		case s.queue <- rec:
			return
		default:
		}
	}

	// the mutation already happened, its record must outlive the request
	s.write(context.WithoutCancel(ctx), rec)
}

// Close stops accepting queued records and waits until the queue is drained.
func (s *Sink) Close(ctx context.Context) error {
	s.closeMu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.closeMu.Unlock()

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("audit queue not drained: %w", ctx.Err())
	}
}

// Degraded reports whether consecutive failures reached the alert threshold.
func (s *Sink) Degraded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.degraded
}

// List returns the records of one entity, newest first. limit <= 0 returns all.
func (s *Sink) List(ctx context.Context, entity, entityID string, limit int) ([]models.AuditRecord, error) {
	if s.db == nil {
		return nil, ErrDBNil
	}

	var records []models.AuditRecord

	q := s.db.WithContext(ctx).
		Where("entity = ? AND entity_id = ?", entity, entityID).
		Order("occurred_at DESC").Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	if err := q.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list audit records: %w", err)
	}

	return records, nil
}

func (s *Sink) run() {
	defer close(s.done)

	for rec := range s.queue {
		s.write(context.Background(), rec)
	}
}

func (s *Sink) write(ctx context.Context, rec models.AuditRecord) {
	err := ErrDBNil
	if s.db != nil {
		err = s.db.WithContext(ctx).Create(&rec).Error
	}

	if err != nil {
		writeFailures.Inc()
		s.log.Error().Err(err).
			Str("entity", rec.Entity).
			Str("entity_id", rec.EntityID).
			Str("action", rec.Action).
			Msg("failed to write audit record")
	}

	s.observe(ctx, err)
}

// observe tracks consecutive failures and alerts once per degradation.
func (s *Sink) observe(ctx context.Context, err error) {
	s.mu.Lock()

	if err == nil {
		recovered := s.degraded
		s.failures = 0
		s.degraded = false
		s.mu.Unlock()

		if recovered {
			sinkDegraded.Set(0)
			s.log.Info().Msg("audit sink recovered")
		}

		return
	}

	s.failures++
	alert := s.failures == s.threshold
	if alert {
		s.degraded = true
	}

	failures := s.failures
	s.mu.Unlock()

	if !alert {
		return
	}

	sinkDegraded.Set(1)

	ctx, cancel := context.WithTimeout(ctx, alertTimeout)
	defer cancel()

	text := fmt.Sprintf("%d consecutive audit records could not be written, last error: %v", failures, err)

	for _, a := range s.alerters {
		if aerr := a.Alert(ctx, "audit sink degraded", text); aerr != nil {
			s.log.Error().Err(aerr).Msg("failed to send audit alert")
		}
	}
}

func (s *Sink) snapshot(v any) string {
	if v == nil {
		return ""
	}

	b, err := json.Marshal(v)
	if err != nil {
		s.log.Warn().Err(err).Msg("audit snapshot is not serialisable")
		return fmt.Sprintf("%q", fmt.Sprint(v))
	}

	return string(b)
}
