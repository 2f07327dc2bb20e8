package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"solarchain-ledger/internal/core/domain"
	"solarchain-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// defaultEventRetryIntervals are the waits between delivery attempts.
var defaultEventRetryIntervals = []time.Duration{
	15 * time.Second,
	60 * time.Second,
	2 * time.Minute,
	5 * time.Minute,
	10 * time.Minute,
}

// Headers set on every outbound event request.
const (
	HeaderEventSignature = "X-Signature"
	HeaderEventTimestamp = "X-Timestamp"
	HeaderEventType      = "X-Event-Type"
)

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// EventNotifierConfig configures webhook delivery of ledger events.
type EventNotifierConfig struct {
	URL            string
	Secret         string
	Timeout        time.Duration
	RetryIntervals []time.Duration
}

// webhookNotifier implements ports.EventNotifier by POSTing signed JSON.
type webhookNotifier struct {
	cfg        EventNotifierConfig
	deliveries ports.EventDeliveryRepository // nil = not recorded
	sigSvc     ports.SignatureService
	httpClient HTTPClient
	log        zerolog.Logger

	stop     context.Context // cancelled by Close
	cancel   context.CancelFunc
	inFlight sync.WaitGroup
}

// NewEventNotifier creates a webhook notifier. It returns nil when no URL is
// configured, which the ledger services treat as "notifications disabled".
func NewEventNotifier(
	cfg EventNotifierConfig,
	deliveries ports.EventDeliveryRepository,
	sigSvc ports.SignatureService,
	httpClient HTTPClient,
	log zerolog.Logger,
) ports.EventNotifier {
	if cfg.URL == "" {
		return nil
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RetryIntervals == nil {
		cfg.RetryIntervals = defaultEventRetryIntervals
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	stop, cancel := context.WithCancel(context.Background())
	return &webhookNotifier{
		cfg:        cfg,
		deliveries: deliveries,
		sigSvc:     sigSvc,
		httpClient: httpClient,
		log:        log,
		stop:       stop,
		cancel:     cancel,
	}
}

// Publish records a pending delivery and sends the event asynchronously.
func (n *webhookNotifier) Publish(ctx context.Context, event *domain.LedgerEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	now := time.Now().UTC()
	delivery := &domain.EventDeliveryLog{
		ID:        uuid.New(),
		EventID:   event.ID,
		EventType: event.Type,
		TargetURL: n.cfg.URL,
		Payload:   string(body),
		Status:    domain.DeliveryStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if n.deliveries != nil {
		if err := n.deliveries.Create(ctx, delivery); err != nil {
			n.log.Warn().Err(err).Str("event_id", event.ID.String()).Msg("event: failed to record delivery")
		}
	}

	n.inFlight.Add(1)
	go func() {
		defer n.inFlight.Done()
		n.deliverWithRetries(n.stop, delivery, body)
	}()
	return nil
}

// Close stops waiting retries. Abandoned deliveries stay PENDING in the
// delivery log.
func (n *webhookNotifier) Close(ctx context.Context) error {
	n.cancel()

	done := make(chan struct{})
	go func() {
		n.inFlight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for event deliveries: %w", ctx.Err())
	}
}

// deliverWithRetries attempts delivery once plus once per retry interval,
// giving up early when ctx is cancelled.
func (n *webhookNotifier) deliverWithRetries(ctx context.Context, delivery *domain.EventDeliveryLog, body []byte) {
	eventID := delivery.EventID.String()
	logCtx := context.WithoutCancel(ctx)
	var (
		lastStatus *int
		lastErr    string
	)

	for attempt := 0; attempt <= len(n.cfg.RetryIntervals); attempt++ {
		if attempt > 0 && !sleepCtx(ctx, n.cfg.RetryIntervals[attempt-1]) {
			n.log.Warn().Str("event_id", eventID).Int("attempts", attempt).Msg("event: delivery abandoned on shutdown")
			return
		}

		status, err := n.send(ctx, delivery.EventType, body)
		if status != 0 {
			lastStatus = &status
		}
		if err == nil {
			n.log.Info().Str("event_id", eventID).Int("attempt", attempt+1).Int("status", status).Msg("event: delivered successfully")
			n.record(logCtx, delivery.ID, domain.DeliveryStatusDelivered, lastStatus, attempt+1, nil)
			return
		}

		lastErr = err.Error()
		n.log.Warn().Err(err).Str("event_id", eventID).Int("attempt", attempt+1).Msg("event: delivery failed")
		n.record(logCtx, delivery.ID, domain.DeliveryStatusPending, lastStatus, attempt+1, &lastErr)
	}

	n.log.Error().Str("event_id", eventID).Msg("event: all retry attempts exhausted")
	n.record(logCtx, delivery.ID, domain.DeliveryStatusFailed, lastStatus, len(n.cfg.RetryIntervals)+1, &lastErr)
}

// sleepCtx waits for d and reports false if ctx ends first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// send performs one signed POST and returns the HTTP status it got.
func (n *webhookNotifier) send(ctx context.Context, eventType domain.EventType, body []byte) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, n.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	ts := time.Now().Unix()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderEventType, string(eventType))
	req.Header.Set(HeaderEventTimestamp, strconv.FormatInt(ts, 10))
	req.Header.Set(HeaderEventSignature, n.sigSvc.Sign(n.cfg.Secret, EventSigningString(ts, body)))

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("non-2xx response: %d", resp.StatusCode)
	}
	return resp.StatusCode, nil
}

func (n *webhookNotifier) record(ctx context.Context, id uuid.UUID, status domain.DeliveryStatus, httpStatus *int, attempt int, lastErr *string) {
	if n.deliveries == nil {
		return
	}
	if err := n.deliveries.UpdateStatus(ctx, id, status, httpStatus, attempt, lastErr); err != nil {
		n.log.Warn().Err(err).Str("delivery_id", id.String()).Msg("event: failed to update delivery log")
	}
}
