package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"truckmarket/internal/types"
)

func TestAccountRepository_DeleteAccount_WithSeller(t *testing.T) {
	tx := newMockTx()
	repo := NewAccountRepository(&mockBeginner{tx: tx})

	tx.db.On("QueryRow", mock.Anything, sqlContains("FROM sellers WHERE user_id = $1 FOR UPDATE"), []any{"usr_1"}).
		Return(rowOf("sel_1"))
	tx.db.On("Exec", mock.Anything, sqlContains("DELETE FROM trucks WHERE seller_id = $2"), mock.MatchedBy(func(args []any) bool {
		id, _ := args[1].(*string)
		return len(args) == 2 && id != nil && *id == "sel_1"
	})).Return(pgconn.NewCommandTag("DELETE 2"), nil).Once()
	tx.db.On("Exec", mock.Anything, sqlContains("DELETE FROM sessions"), []any{"usr_1"}).
		Return(pgconn.NewCommandTag("DELETE 1"), nil).Once()
	tx.db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("DELETE 0"), nil)

	require.NoError(t, repo.DeleteAccount(context.Background(), "usr_1", "jo@example.com"))

	assert.True(t, tx.committed)
	tx.db.AssertNumberOfCalls(t, "Exec", len(accountDeletion)+2)
}

func TestAccountRepository_DeleteAccount_BuyerOnly(t *testing.T) {
	tx := newMockTx()
	repo := NewAccountRepository(&mockBeginner{tx: tx})

	tx.db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanErr: pgx.ErrNoRows})
	tx.db.On("Exec", mock.Anything, sqlContains("UPDATE financing_requests SET buyer_id = NULL"), []any{"jo@example.com"}).
		Return(pgconn.NewCommandTag("UPDATE 1"), nil).Once()
	tx.db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("DELETE 0"), nil)

	require.NoError(t, repo.DeleteAccount(context.Background(), "usr_1", "jo@example.com"))
	assert.True(t, tx.committed)
}

func TestAccountRepository_DeleteAccount_StepFailureRollsBack(t *testing.T) {
	tx := newMockTx()
	repo := NewAccountRepository(&mockBeginner{tx: tx})

	tx.db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanErr: pgx.ErrNoRows})
	tx.db.On("Exec", mock.Anything, sqlContains("DELETE FROM conversations"), mock.Anything).
		Return(pgconn.CommandTag{}, errors.New("lock timeout")).Once()
	tx.db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("DELETE 0"), nil)

	err := repo.DeleteAccount(context.Background(), "usr_1", "jo@example.com")
	requireAppCode(t, err, types.ErrCodeInternalDB)
	assert.Contains(t, err.Error(), "conversations")
	assert.False(t, tx.committed)
	assert.True(t, tx.rolledBack)
}
