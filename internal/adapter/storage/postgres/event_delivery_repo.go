package postgres

import (
	"context"
	"fmt"
	"time"

	"solarchain-ledger/internal/core/domain"

	"github.com/google/uuid"
)

// EventDeliveryRepo implements ports.EventDeliveryRepository.
type EventDeliveryRepo struct {
	pool Pool
}

// NewEventDeliveryRepo creates a PostgreSQL-backed EventDeliveryRepository.
func NewEventDeliveryRepo(pool Pool) *EventDeliveryRepo {
	return &EventDeliveryRepo{pool: pool}
}

func (r *EventDeliveryRepo) Create(ctx context.Context, log *domain.EventDeliveryLog) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO event_delivery_logs
		(id, event_id, event_type, target_url, payload, http_status, attempt, status, last_error, created_at, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		log.ID, log.EventID, string(log.EventType), log.TargetURL,
		log.Payload, log.HTTPStatus, log.Attempt, string(log.Status),
		log.LastError, log.CreatedAt, log.UpdatedAt,
	)
	return err
}

func (r *EventDeliveryRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.DeliveryStatus, httpStatus *int, attempt int, lastErr *string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE event_delivery_logs
		 SET status=$1, http_status=$2, attempt=$3, last_error=$4, updated_at=$5
		 WHERE id=$6`,
		string(status), httpStatus, attempt, lastErr, time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("event delivery log not found: %s", id)
	}
	return nil
}
