package memory

import (
	"context"
	"fmt"
	"time"

	"solarchain-ledger/internal/core/domain"

	"github.com/google/uuid"
)

// AuditRepo implements ports.AuditRepository.
type AuditRepo struct{ s *Store }

// NewAuditRepo creates an AuditRepo.
func NewAuditRepo(s *Store) *AuditRepo { return &AuditRepo{s: s} }

func (r *AuditRepo) Create(ctx context.Context, entry *domain.AuditLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.audits = append(r.s.audits, *entry)
	return nil
}

// Entries returns a copy of the recorded audit entries.
func (r *AuditRepo) Entries() []domain.AuditLog {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return append([]domain.AuditLog(nil), r.s.audits...)
}

// EventDeliveryRepo implements ports.EventDeliveryRepository.
type EventDeliveryRepo struct{ s *Store }

// NewEventDeliveryRepo creates an EventDeliveryRepo.
func NewEventDeliveryRepo(s *Store) *EventDeliveryRepo { return &EventDeliveryRepo{s: s} }

func (r *EventDeliveryRepo) Create(ctx context.Context, log *domain.EventDeliveryLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.deliveries[log.ID] = *log
	return nil
}

func (r *EventDeliveryRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.DeliveryStatus, httpStatus *int, attempt int, lastErr *string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.deliveries[id]
	if !ok {
		return fmt.Errorf("delivery log not found: %s", id)
	}
	d.Status = status
	d.HTTPStatus = httpStatus
	d.Attempt = attempt
	d.LastError = lastErr
	d.UpdatedAt = time.Now().UTC()
	r.s.deliveries[id] = d
	return nil
}

// Get returns a delivery log by id.
func (r *EventDeliveryRepo) Get(id uuid.UUID) (domain.EventDeliveryLog, bool) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	d, ok := r.s.deliveries[id]
	return d, ok
}
