package wallets_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/nikkhoofard/BusFleetManagementSystem/internal/shared/apperror"
	"github.com/nikkhoofard/BusFleetManagementSystem/internal/shared/testutil"
	"github.com/nikkhoofard/BusFleetManagementSystem/internal/wallets"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var repoNow = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func TestRepository_EnsureWalletIgnoresExisting(t *testing.T) {
	db, mock := testutil.NewMockDB(t)
	repo := wallets.NewRepository(db)

	mock.ExpectExec(testutil.SQL(`INSERT INTO "wallets"`, `ON CONFLICT DO NOTHING`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.EnsureWallet(context.Background(), uuid.New(), repoNow))
}

func TestRepository_LockWallet(t *testing.T) {
	db, mock := testutil.NewMockDB(t)
	repo := wallets.NewRepository(db)
	userID := uuid.New()

	mock.ExpectQuery(testutil.SQL(`SELECT * FROM "wallets" WHERE user_id = $1`, `FOR UPDATE`)).
		WithArgs(userID, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "balance", "updated_at"}).
			AddRow(userID.String(), int64(90000), repoNow))

	w, err := repo.LockWallet(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, int64(90000), w.Balance)
}

func TestRepository_AddToBalanceUsesRelativeUpdate(t *testing.T) {
	db, mock := testutil.NewMockDB(t)
	repo := wallets.NewRepository(db)
	userID := uuid.New()

	mock.ExpectExec(testutil.SQL(`UPDATE "wallets" SET "balance"=balance + $1,"updated_at"=$2 WHERE user_id = $3`)).
		WithArgs(int64(-45000), repoNow, userID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(testutil.SQL(`SELECT * FROM "wallets" WHERE user_id = $1`)).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "balance", "updated_at"}).
			AddRow(userID.String(), int64(5000), repoNow))

	w, err := repo.AddToBalance(context.Background(), userID, -45000, repoNow)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), w.Balance)
}

func TestRepository_AddToBalanceMissingWallet(t *testing.T) {
	db, mock := testutil.NewMockDB(t)
	repo := wallets.NewRepository(db)

	mock.ExpectExec(testutil.SQL(`UPDATE "wallets"`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := repo.AddToBalance(context.Background(), uuid.New(), 100, repoNow)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestRepository_ListAndSumTransactions(t *testing.T) {
	db, mock := testutil.NewMockDB(t)
	repo := wallets.NewRepository(db)
	userID := uuid.New()

	mock.ExpectQuery(testutil.SQL(`SELECT * FROM "wallet_transactions" WHERE user_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2`)).
		WithArgs(userID, 5).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "amount", "transaction_type", "created_at"}).
			AddRow(uuid.NewString(), userID.String(), int64(-45000), "payment", repoNow).
			AddRow(uuid.NewString(), userID.String(), int64(50000), "deposit", repoNow.Add(-time.Hour)))
	mock.ExpectQuery(testutil.SQL(`SELECT COALESCE(SUM(amount), 0) AS total, COUNT(*) AS row_count FROM "wallet_transactions" WHERE user_id = $1`)).
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"total", "row_count"}).AddRow(int64(5000), int64(2)))

	txs, err := repo.ListTransactions(context.Background(), userID, 5)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, wallets.TransactionTypePayment, txs[0].Type)

	sum, rows, err := repo.SumTransactions(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), sum)
	assert.Equal(t, int64(2), rows)
}
