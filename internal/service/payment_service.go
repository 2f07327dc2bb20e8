package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"solarchain-ledger/internal/core/domain"
	"solarchain-ledger/internal/core/ports"
	"solarchain-ledger/pkg/apperror"
	"solarchain-ledger/pkg/fixedpoint"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// PaymentServiceImpl implements ports.PaymentService, the internal ledger of
// the payout denomination used for distributions, claims and sale purchases.
type PaymentServiceImpl struct {
	accounts   ports.PaymentAccountRepository
	transfers  ports.PaymentTransferRepository
	access     ports.AccessControl
	transactor ports.DBTransactor
	clock      ports.Clock
	log        zerolog.Logger
}

// NewPaymentService creates a new PaymentServiceImpl.
func NewPaymentService(
	accounts ports.PaymentAccountRepository,
	transfers ports.PaymentTransferRepository,
	access ports.AccessControl,
	transactor ports.DBTransactor,
	clock ports.Clock,
	log zerolog.Logger,
) *PaymentServiceImpl {
	if clock == nil {
		clock = SystemClock{}
	}
	return &PaymentServiceImpl{
		accounts:   accounts,
		transfers:  transfers,
		access:     access,
		transactor: transactor,
		clock:      clock,
		log:        log,
	}
}

// Transfer moves units between two accounts inside tx. Accounts are locked
// in id order so concurrent opposite transfers cannot deadlock.
func (s *PaymentServiceImpl) Transfer(ctx context.Context, tx pgx.Tx, req ports.PaymentTransferRequest) (*domain.PaymentTransfer, error) {
	if req.Amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}
	if req.FromID == "" || req.ToID == "" {
		return nil, apperror.Validation("payment source and destination are required")
	}
	if req.FromID == req.ToID {
		return nil, apperror.Validation("payment source and destination must differ")
	}

	first, second := req.FromID, req.ToID
	if strings.Compare(first, second) > 0 {
		first, second = second, first
	}
	now := s.clock.Now().UTC()
	locked := make(map[string]*domain.PaymentAccount, 2)
	for _, id := range []string{first, second} {
		acct, err := s.accounts.LockOrCreate(ctx, tx, id, now)
		if err != nil {
			return nil, storageError("lock payment account", err)
		}
		locked[id] = acct
	}

	src, dst := locked[req.FromID], locked[req.ToID]
	if src.Balance < req.Amount {
		return nil, apperror.ErrPaymentFailed(fmt.Errorf("account %s cannot cover %d", req.FromID, req.Amount))
	}

	newSrc, err := fixedpoint.Sub(src.Balance, req.Amount)
	if err != nil {
		return nil, arithmeticError("debit payment account", err)
	}
	newDst, err := fixedpoint.Add(dst.Balance, req.Amount)
	if err != nil {
		return nil, arithmeticError("credit payment account", err)
	}
	src.Balance, src.UpdatedAt = newSrc, now
	dst.Balance, dst.UpdatedAt = newDst, now

	if err := s.accounts.Upsert(ctx, tx, src); err != nil {
		return nil, storageError("save payment account", err)
	}
	if err := s.accounts.Upsert(ctx, tx, dst); err != nil {
		return nil, storageError("save payment account", err)
	}

	return s.journal(ctx, tx, req, now)
}

// Topup mints units into a holder's account. ADMIN only.
func (s *PaymentServiceImpl) Topup(ctx context.Context, req ports.TopupRequest) (*domain.PaymentTransfer, error) {
	if req.Amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}
	if req.HolderID == "" {
		return nil, apperror.Validation("holder_id is required")
	}
	if err := requireRole(ctx, s.access, req.Caller, uuid.Nil, domain.CapabilityAdmin); err != nil {
		return nil, err
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	now := s.clock.Now().UTC()
	acct, err := s.accounts.LockOrCreate(ctx, dbTx, req.HolderID, now)
	if err != nil {
		return nil, storageError("lock payment account", err)
	}
	balance, err := fixedpoint.Add(acct.Balance, req.Amount)
	if err != nil {
		return nil, arithmeticError("topup", err)
	}
	acct.Balance, acct.UpdatedAt = balance, now
	if err := s.accounts.Upsert(ctx, dbTx, acct); err != nil {
		return nil, storageError("save payment account", err)
	}

	transfer, err := s.journal(ctx, dbTx, ports.PaymentTransferRequest{
		ToID:      req.HolderID,
		Amount:    req.Amount,
		Kind:      domain.PaymentKindTopup,
		Reference: "topup:" + req.Caller,
	}, now)
	if err != nil {
		return nil, err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("holder_id", req.HolderID).
		Str("caller", req.Caller).
		Int64("amount", req.Amount).
		Msg("payment account topped up")

	return transfer, nil
}

func (s *PaymentServiceImpl) journal(ctx context.Context, tx pgx.Tx, req ports.PaymentTransferRequest, now time.Time) (*domain.PaymentTransfer, error) {
	transfer := &domain.PaymentTransfer{
		ID:        uuid.New(),
		Reference: req.Reference,
		FromID:    req.FromID,
		ToID:      req.ToID,
		Amount:    req.Amount,
		Kind:      req.Kind,
		CreatedAt: now,
	}
	if err := s.transfers.Create(ctx, tx, transfer); err != nil {
		return nil, storageError("record payment transfer", err)
	}
	return transfer, nil
}

// Balance returns the payout-unit balance of a holder; unknown holders hold zero.
func (s *PaymentServiceImpl) Balance(ctx context.Context, holderID string) (int64, error) {
	acct, err := s.accounts.Get(ctx, holderID)
	if err != nil {
		return 0, storageError("get payment account", err)
	}
	if acct == nil {
		return 0, nil
	}
	return acct.Balance, nil
}

// Statement returns a page of the holder's payment movements, newest first.
func (s *PaymentServiceImpl) Statement(ctx context.Context, params ports.PaymentTransferListParams) ([]domain.PaymentTransfer, int64, error) {
	if params.Kind != nil && !params.Kind.Valid() {
		return nil, 0, apperror.Validation("unknown payment kind")
	}
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize < 1 || params.PageSize > 100 {
		params.PageSize = 20
	}

	transfers, total, err := s.transfers.List(ctx, params)
	if err != nil {
		return nil, 0, storageError("list payment transfers", err)
	}
	return transfers, total, nil
}
