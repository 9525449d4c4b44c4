package wallets

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/nikkhoofard/BusFleetManagementSystem/internal/shared/apperror"
	"github.com/nikkhoofard/BusFleetManagementSystem/internal/shared/dbtx"
	"github.com/nikkhoofard/BusFleetManagementSystem/pkg/logger"
	"github.com/nikkhoofard/BusFleetManagementSystem/pkg/metrics"
)

type Service interface {
	// ApplyDelta is the only way a balance changes: it creates the wallet if
	// needed, adds amount and appends one ledger row, atomically. When called
	// inside a running transaction it joins it.
	ApplyDelta(ctx context.Context, userID uuid.UUID, amount int64, txType TransactionType, bookingID *uuid.UUID) (*Wallet, error)

	// LockWallet returns the caller's wallet row locked for the rest of the
	// surrounding transaction, creating it with zero balance if absent.
	LockWallet(ctx context.Context, userID uuid.UUID) (*Wallet, error)

	GetBalance(ctx context.Context, userID uuid.UUID) (*Wallet, error)
	Deposit(ctx context.Context, userID uuid.UUID, amount int64) (*Wallet, error)
	ListTransactions(ctx context.Context, userID uuid.UUID, limit int) ([]Transaction, error)
	Reconcile(ctx context.Context, userID uuid.UUID) (*Reconciliation, error)
}

type Options struct {
	DefaultListLimit int
	MaxListLimit     int
	Now              func() time.Time
}

type service struct {
	repo Repository
	tx   dbtx.Transactor
	log  *logger.Logger
	opts Options
}

func NewService(repo Repository, tx dbtx.Transactor, log *logger.Logger, opts Options) Service {
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	if opts.DefaultListLimit <= 0 {
		opts.DefaultListLimit = 50
	}
	if opts.MaxListLimit <= 0 {
		opts.MaxListLimit = 100
	}
	return &service{
		repo: repo,
		tx:   tx,
		log:  log,
		opts: opts,
	}
}

func (s *service) ApplyDelta(ctx context.Context, userID uuid.UUID, amount int64, txType TransactionType, bookingID *uuid.UUID) (*Wallet, error) {
	if !txType.IsValid() {
		return nil, apperror.Validation("unknown transaction type %q", txType)
	}
	if amount == 0 {
		return nil, apperror.Validation("amount must not be zero")
	}

	var wallet *Wallet
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		now := s.opts.Now()

		current, err := s.lockOrCreate(ctx, userID, now)
		if err != nil {
			return err
		}
		if amount > 0 && current.Balance > math.MaxInt64-amount {
			return apperror.Validation("amount %d would overflow balance %d", amount, current.Balance)
		}
		if current.Balance+amount < 0 {
			return fmt.Errorf("%w: balance %d, delta %d", apperror.ErrInsufficientBalance, current.Balance, amount)
		}

		wallet, err = s.repo.AddToBalance(ctx, userID, amount, now)
		if err != nil {
			return err
		}

		return s.repo.CreateTransaction(ctx, &Transaction{
			ID:        uuid.New(),
			UserID:    userID,
			Amount:    amount,
			Type:      txType,
			BookingID: bookingID,
			CreatedAt: now,
		})
	})
	if err != nil {
		return nil, err
	}
	return wallet, nil
}

func (s *service) LockWallet(ctx context.Context, userID uuid.UUID) (*Wallet, error) {
	var wallet *Wallet
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		wallet, err = s.lockOrCreate(ctx, userID, s.opts.Now())
		return err
	})
	return wallet, err
}

func (s *service) lockOrCreate(ctx context.Context, userID uuid.UUID, now time.Time) (*Wallet, error) {
	if err := s.repo.EnsureWallet(ctx, userID, now); err != nil {
		return nil, err
	}
	return s.repo.LockWallet(ctx, userID)
}

func (s *service) GetBalance(ctx context.Context, userID uuid.UUID) (*Wallet, error) {
	if err := s.repo.EnsureWallet(ctx, userID, s.opts.Now()); err != nil {
		return nil, err
	}
	return s.repo.GetWallet(ctx, userID)
}

func (s *service) Deposit(ctx context.Context, userID uuid.UUID, amount int64) (wallet *Wallet, err error) {
	defer func(start time.Time) { metrics.Observe(metrics.OpDeposit, start, err) }(time.Now())

	if amount <= 0 {
		return nil, apperror.Validation("deposit amount must be positive")
	}

	wallet, err = s.ApplyDelta(ctx, userID, amount, TransactionTypeDeposit, nil)
	if err != nil {
		return nil, err
	}

	s.log.LogDeposit(ctx, userID.String(), amount, wallet.Balance)
	return wallet, nil
}

func (s *service) ListTransactions(ctx context.Context, userID uuid.UUID, limit int) ([]Transaction, error) {
	switch {
	case limit <= 0:
		limit = s.opts.DefaultListLimit
	case limit > s.opts.MaxListLimit:
		limit = s.opts.MaxListLimit
	}
	return s.repo.ListTransactions(ctx, userID, limit)
}

// Reconcile reads balance and ledger sum in one transaction so both see the
// same snapshot.
func (s *service) Reconcile(ctx context.Context, userID uuid.UUID) (*Reconciliation, error) {
	rec := &Reconciliation{UserID: userID}
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		wallet, err := s.lockOrCreate(ctx, userID, s.opts.Now())
		if err != nil {
			return err
		}
		rec.Balance = wallet.Balance

		rec.TransactionSum, rec.TransactionRows, err = s.repo.SumTransactions(ctx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}
