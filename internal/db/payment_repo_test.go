package db

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"truckmarket/internal/types"
)

func boostPayment() *types.Payment {
	return &types.Payment{
		ID:          "pay_1",
		PaymentType: types.PaymentBoost,
		Amount:      19,
		StripeRef:   "cs_test_1",
		SellerID:    "sel_1",
		ListingID:   "lst_1",
		Metadata:    map[string]any{"days": 7},
		CreatedAt:   testNow,
	}
}

func TestFulfillmentStore_ApplyBoost_FirstDelivery(t *testing.T) {
	tx := newMockTx()
	store := NewFulfillmentStore(&mockBeginner{tx: tx}, new(mockDBTX))
	until := testNow.Add(7 * 24 * time.Hour)

	tx.db.On("Exec", mock.Anything, sqlContains("UPDATE trucks SET is_featured = true"), []any{"lst_1", until, testNow}).
		Return(pgconn.NewCommandTag("UPDATE 1"), nil)
	tx.db.On("Exec", mock.Anything, sqlContains("ON CONFLICT (stripe_session_id) DO NOTHING"), mock.MatchedBy(func(args []any) bool {
		meta, _ := args[7].([]byte)
		return args[3] == "cs_test_1" && args[1] == "boost" && string(meta) == `{"days":7}`
	})).Return(pgconn.NewCommandTag("INSERT 0 1"), nil)

	applied, err := store.ApplyBoost(context.Background(), boostPayment(), "lst_1", until)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.True(t, tx.committed)
	tx.db.AssertExpectations(t)
}

func TestFulfillmentStore_ApplyBoost_ReplayRollsBack(t *testing.T) {
	tx := newMockTx()
	store := NewFulfillmentStore(&mockBeginner{tx: tx}, new(mockDBTX))

	tx.db.On("Exec", mock.Anything, sqlContains("UPDATE trucks"), mock.Anything).
		Return(pgconn.NewCommandTag("UPDATE 1"), nil)
	tx.db.On("Exec", mock.Anything, sqlContains("INSERT INTO payments"), mock.Anything).
		Return(pgconn.NewCommandTag("INSERT 0 0"), nil)

	applied, err := store.ApplyBoost(context.Background(), boostPayment(), "lst_1", testNow.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, applied)
	assert.False(t, tx.committed)
	assert.True(t, tx.rolledBack)
}

func TestFulfillmentStore_ApplyBoost_MissingListing(t *testing.T) {
	tx := newMockTx()
	store := NewFulfillmentStore(&mockBeginner{tx: tx}, new(mockDBTX))

	tx.db.On("Exec", mock.Anything, sqlContains("UPDATE trucks"), mock.Anything).
		Return(pgconn.NewCommandTag("UPDATE 0"), nil)

	applied, err := store.ApplyBoost(context.Background(), boostPayment(), "lst_gone", testNow)
	requireAppCode(t, err, types.ErrCodeNotFoundListing)
	assert.False(t, applied)
	tx.db.AssertNotCalled(t, "Exec", mock.Anything, sqlContains("INSERT INTO payments"), mock.Anything)
}

func TestFulfillmentStore_ApplySellerPlan(t *testing.T) {
	tx := newMockTx()
	store := NewFulfillmentStore(&mockBeginner{tx: tx}, new(mockDBTX))
	expires := testNow.AddDate(0, 1, 0)

	tx.db.On("Exec", mock.Anything, sqlContains("INSERT INTO seller_plans"), mock.MatchedBy(func(args []any) bool {
		sub, ok := args[3].(*string)
		return args[0] == "sel_1" && args[1] == "pro_plus" && ok && sub != nil && *sub == "sub_123"
	})).Return(pgconn.NewCommandTag("INSERT 0 1"), nil)
	tx.db.On("Exec", mock.Anything, sqlContains("INSERT INTO payments"), mock.Anything).
		Return(pgconn.NewCommandTag("INSERT 0 1"), nil)

	applied, err := store.ApplySellerPlan(context.Background(),
		&types.Payment{ID: "pay_2", PaymentType: types.PaymentSellerPlan, Amount: 49, StripeRef: "cs_test_2", SellerID: "sel_1"},
		&types.SellerPlan{SellerID: "sel_1", PlanType: types.TierProPlus, PlanExpires: &expires, StripeSubscriptionID: "sub_123", UpdatedAt: testNow},
	)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.True(t, tx.committed)
}

func TestFulfillmentStore_GetPlanBySubscription_NotFound(t *testing.T) {
	db := new(mockDBTX)
	store := NewFulfillmentStore(&mockBeginner{tx: newMockTx()}, db)

	db.On("QueryRow", mock.Anything, sqlContains("stripe_subscription_id = $1"), []any{"sub_missing"}).
		Return(&mockRow{scanErr: pgx.ErrNoRows})

	_, err := store.GetPlanBySubscription(context.Background(), "sub_missing")
	requireAppCode(t, err, types.ErrCodeNotFoundSeller)
}
