package wallets

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nikkhoofard/BusFleetManagementSystem/internal/shared/apperror"
	"github.com/nikkhoofard/BusFleetManagementSystem/internal/shared/dbtx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository interface {
	// EnsureWallet creates a zero-balance wallet unless one exists
	EnsureWallet(ctx context.Context, userID uuid.UUID, now time.Time) error
	GetWallet(ctx context.Context, userID uuid.UUID) (*Wallet, error)
	LockWallet(ctx context.Context, userID uuid.UUID) (*Wallet, error)
	AddToBalance(ctx context.Context, userID uuid.UUID, delta int64, now time.Time) (*Wallet, error)

	CreateTransaction(ctx context.Context, tx *Transaction) error
	ListTransactions(ctx context.Context, userID uuid.UUID, limit int) ([]Transaction, error)
	SumTransactions(ctx context.Context, userID uuid.UUID) (sum int64, rows int64, err error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) EnsureWallet(ctx context.Context, userID uuid.UUID, now time.Time) error {
	err := dbtx.Conn(ctx, r.db).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&Wallet{UserID: userID, UpdatedAt: now}).Error
	if err != nil {
		return fmt.Errorf("failed to create wallet: %w", err)
	}
	return nil
}

func (r *repository) GetWallet(ctx context.Context, userID uuid.UUID) (*Wallet, error) {
	var wallet Wallet
	if err := dbtx.Conn(ctx, r.db).First(&wallet, "user_id = ?", userID).Error; err != nil {
		return nil, walletErr(err)
	}
	return &wallet, nil
}

func (r *repository) LockWallet(ctx context.Context, userID uuid.UUID) (*Wallet, error) {
	var wallet Wallet
	err := dbtx.Conn(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&wallet, "user_id = ?", userID).Error
	if err != nil {
		return nil, walletErr(err)
	}
	return &wallet, nil
}

func (r *repository) AddToBalance(ctx context.Context, userID uuid.UUID, delta int64, now time.Time) (*Wallet, error) {
	conn := dbtx.Conn(ctx, r.db)

	result := conn.Model(&Wallet{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"balance":    gorm.Expr("balance + ?", delta),
			"updated_at": now,
		})
	if result.Error != nil {
		return nil, fmt.Errorf("failed to update wallet balance: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: wallet", apperror.ErrNotFound)
	}

	return r.GetWallet(ctx, userID)
}

func (r *repository) CreateTransaction(ctx context.Context, tx *Transaction) error {
	if err := dbtx.Conn(ctx, r.db).Create(tx).Error; err != nil {
		return fmt.Errorf("failed to record wallet transaction: %w", err)
	}
	return nil
}

func (r *repository) ListTransactions(ctx context.Context, userID uuid.UUID, limit int) ([]Transaction, error) {
	var txs []Transaction
	err := dbtx.Conn(ctx, r.db).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&txs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list wallet transactions: %w", err)
	}
	return txs, nil
}

func (r *repository) SumTransactions(ctx context.Context, userID uuid.UUID) (int64, int64, error) {
	var agg struct {
		Total    int64
		RowCount int64
	}
	err := dbtx.Conn(ctx, r.db).
		Model(&Transaction{}).
		Select("COALESCE(SUM(amount), 0) AS total, COUNT(*) AS row_count").
		Where("user_id = ?", userID).
		Scan(&agg).Error
	if err != nil {
		return 0, 0, fmt.Errorf("failed to sum wallet transactions: %w", err)
	}
	return agg.Total, agg.RowCount, nil
}

func walletErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: wallet", apperror.ErrNotFound)
	}
	return fmt.Errorf("failed to get wallet: %w", err)
}
