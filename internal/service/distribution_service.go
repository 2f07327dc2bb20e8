package service

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"time"

	"solarchain-ledger/internal/core/domain"
	"solarchain-ledger/internal/core/ports"
	"solarchain-ledger/pkg/apperror"
	"solarchain-ledger/pkg/fixedpoint"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	defaultHistoryPageSize = 100
	maxHistoryPageSize     = 500

	historyCacheTTL time.Duration = 0 // full pages never change
)

// DistributionServiceImpl implements ports.DistributionService.
type DistributionServiceImpl struct {
	core          *ledgerCore
	distributions ports.DistributionRepository
	payments      ports.PaymentAsset
	transactor    ports.DBTransactor
	cache         ports.ReadCache     // nil = disabled
	notifier      ports.EventNotifier // nil = disabled
	pageSize      int
	log           zerolog.Logger
}

// NewDistributionService creates a new DistributionServiceImpl. pageSize is
// the page length History uses when walking the log.
func NewDistributionService(deps LedgerDeps, cache ports.ReadCache, notifier ports.EventNotifier, pageSize int, log zerolog.Logger) *DistributionServiceImpl {
	if pageSize <= 0 {
		pageSize = defaultHistoryPageSize
	}
	return &DistributionServiceImpl{
		core:          newLedgerCore(deps),
		distributions: deps.Distributions,
		payments:      deps.Payments,
		transactor:    deps.Transactor,
		cache:         cache,
		notifier:      notifier,
		pageSize:      pageSize,
		log:           log,
	}
}

// Record deposits amount from the caller into the asset's dividend pool,
// appends a log entry and advances the per-share accumulator.
func (s *DistributionServiceImpl) Record(ctx context.Context, req ports.DistributionRequest) (*domain.DistributionEntry, error) {
	if req.Amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}
	if err := s.core.requireRole(ctx, req.Caller, req.AssetID, domain.CapabilityOwner, domain.CapabilityDistributor); err != nil {
		return nil, err
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	ledger, err := s.core.lockActiveLedger(ctx, dbTx, req.AssetID)
	if err != nil {
		return nil, err
	}

	acc, err := fixedpoint.Accumulate(ledger.AccPerShare, req.Amount, ledger.TotalSupply)
	if err != nil {
		return nil, arithmeticError("advance accumulator", err)
	}
	cumulative, err := fixedpoint.Add(ledger.CumulativeDistributed, req.Amount)
	if err != nil {
		return nil, arithmeticError("cumulative total", err)
	}

	now := s.core.now()
	entry := &domain.DistributionEntry{
		ID:               uuid.New(),
		AssetID:          req.AssetID,
		Sequence:         ledger.LastSequence + 1,
		Amount:           req.Amount,
		CumulativeBefore: ledger.CumulativeDistributed,
		CumulativeAfter:  cumulative,
		AccPerShareAfter: fixedpoint.Format(acc),
		RecordedBy:       req.Caller,
		RecordedAt:       now,
	}

	if _, err := s.payments.Transfer(ctx, dbTx, ports.PaymentTransferRequest{
		FromID:    req.Caller,
		ToID:      domain.DividendPoolAccount(req.AssetID),
		Amount:    req.Amount,
		Kind:      domain.PaymentKindDistributionDeposit,
		Reference: fmt.Sprintf("distribution:%s:%d", req.AssetID, entry.Sequence),
	}); err != nil {
		return nil, paymentError(err)
	}

	ledger.AccPerShare = acc
	ledger.CumulativeDistributed = cumulative
	ledger.LastSequence = entry.Sequence
	ledger.UpdatedAt = now
	if err := s.core.ledgers.Update(ctx, dbTx, ledger); err != nil {
		return nil, storageError("update ledger", err)
	}
	if err := s.distributions.Append(ctx, dbTx, entry); err != nil {
		return nil, storageError("append distribution", err)
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("asset_id", req.AssetID.String()).
		Int64("sequence", entry.Sequence).
		Int64("amount", entry.Amount).
		Int64("cumulative", entry.CumulativeAfter).
		Msg("distribution recorded")

	publish(ctx, s.notifier, s.log, &domain.LedgerEvent{
		ID:         uuid.New(),
		Type:       domain.EventDistributionRecorded,
		AssetID:    req.AssetID,
		HolderID:   req.Caller,
		Amount:     entry.Amount,
		Sequence:   entry.Sequence,
		OccurredAt: now,
	})

	return entry, nil
}

// History walks the distribution log in sequence order. Each range over the
// returned sequence starts again from the first entry. Iteration stops after
// yielding the first error.
func (s *DistributionServiceImpl) History(ctx context.Context, assetID uuid.UUID) iter.Seq2[domain.DistributionEntry, error] {
	return func(yield func(domain.DistributionEntry, error) bool) {
		var after int64
		for {
			page, err := s.distributions.ListAfter(ctx, assetID, after, s.pageSize)
			if err != nil {
				yield(domain.DistributionEntry{}, storageError("list distributions", err))
				return
			}
			for _, e := range page {
				if !yield(e, nil) {
					return
				}
				after = e.Sequence
			}
			if len(page) < s.pageSize {
				return
			}
		}
	}
}

// HistoryPage returns up to limit entries after afterSequence. Full pages are
// immutable and are cached when a read cache is configured.
func (s *DistributionServiceImpl) HistoryPage(ctx context.Context, assetID uuid.UUID, afterSequence int64, limit int) ([]domain.DistributionEntry, error) {
	if afterSequence < 0 {
		return nil, apperror.Validation("after_sequence must not be negative")
	}
	if limit <= 0 {
		limit = s.pageSize
	}
	limit = min(limit, maxHistoryPageSize)

	if _, err := s.core.readLedger(ctx, assetID); err != nil {
		return nil, err
	}

	key := fmt.Sprintf("history:%s:%d:%d", assetID, afterSequence, limit)
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, key)
		if err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("history cache read failed, falling through to DB")
		}
		if cached != nil {
			var page []domain.DistributionEntry
			if err := json.Unmarshal(cached, &page); err == nil {
				return page, nil
			}
		}
	}

	page, err := s.distributions.ListAfter(ctx, assetID, afterSequence, limit)
	if err != nil {
		return nil, storageError("list distributions", err)
	}

	if s.cache != nil && len(page) == limit {
		if data, err := json.Marshal(page); err == nil {
			if err := s.cache.Set(ctx, key, data, historyCacheTTL); err != nil {
				s.log.Warn().Err(err).Str("key", key).Msg("failed to cache history page")
			}
		}
	}
	return page, nil
}

// publish hands a committed event to the notifier. Failures are logged only.
func publish(ctx context.Context, notifier ports.EventNotifier, log zerolog.Logger, event *domain.LedgerEvent) {
	if notifier == nil {
		return
	}
	if err := notifier.Publish(ctx, event); err != nil {
		log.Warn().Err(err).Str("event_type", string(event.Type)).Msg("failed to publish ledger event")
	}
}
