package wallets

import (
	"time"

	"github.com/google/uuid"
)

// Wallet holds a user's balance in minor currency units. The balance only
// changes together with an appended Transaction.
type Wallet struct {
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey" json:"user_id"`
	Balance   int64     `gorm:"not null;default:0;check:chk_wallets_balance_non_negative,balance >= 0" json:"balance"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

// Transaction is an immutable ledger row
type Transaction struct {
	ID        uuid.UUID       `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID    uuid.UUID       `gorm:"type:uuid;not null;index" json:"user_id"`
	Amount    int64           `gorm:"not null" json:"amount"`
	Type      TransactionType `gorm:"column:transaction_type;type:varchar(20);not null;check:transaction_type IN ('deposit', 'withdraw', 'refund', 'payment')" json:"transaction_type"`
	BookingID *uuid.UUID      `gorm:"type:uuid;index" json:"booking_id,omitempty"`
	CreatedAt time.Time       `gorm:"not null" json:"created_at"`
}

// TableName sets the table name for Wallet
func (Wallet) TableName() string {
	return "wallets"
}

// TableName sets the table name for Transaction
func (Transaction) TableName() string {
	return "wallet_transactions"
}

type TransactionType string

const (
	TransactionTypeDeposit  TransactionType = "deposit"
	TransactionTypeWithdraw TransactionType = "withdraw"
	TransactionTypeRefund   TransactionType = "refund"
	TransactionTypePayment  TransactionType = "payment"
)

// IsValid checks if the transaction type is valid
func (t TransactionType) IsValid() bool {
	switch t {
	case TransactionTypeDeposit, TransactionTypeWithdraw, TransactionTypeRefund, TransactionTypePayment:
		return true
	}
	return false
}

// Request DTOs

type DepositRequest struct {
	Amount int64 `json:"amount" binding:"required,gt=0"`
}

// Reconciliation compares the stored balance with the sum of the ledger
type Reconciliation struct {
	UserID          uuid.UUID `json:"user_id"`
	Balance         int64     `json:"balance"`
	TransactionSum  int64     `json:"transaction_sum"`
	TransactionRows int64     `json:"transaction_rows"`
}

func (r Reconciliation) Balanced() bool {
	return r.Balance == r.TransactionSum
}
