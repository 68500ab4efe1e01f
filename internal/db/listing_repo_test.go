package db

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"truckmarket/internal/types"
)

var testNow = time.Date(2026, 4, 10, 15, 30, 0, 0, time.UTC)

// listingRow returns a row in listingColumns order.
func listingRow(id, sellerID string, status types.ListingStatus, created time.Time) []any {
	return []any{
		id, sellerID, 2019, "Freightliner", "Cascadia", 64500.0, nil,
		"used", nil, "Dallas", "TX", []string{"front.jpg", "cab.jpg"}, string(status),
		false, nil, created, created,
	}
}

func TestListingRepository_GetByID_Success(t *testing.T) {
	db := new(mockDBTX)
	repo := NewListingRepository(db)

	db.On("QueryRow", mock.Anything, sqlContains("FROM trucks t WHERE t.id = $1"), []any{"lst_1"}).
		Return(rowOf(listingRow("lst_1", "sel_1", types.ListingAvailable, testNow)...))

	l, err := repo.GetByID(context.Background(), "lst_1")
	require.NoError(t, err)
	assert.Equal(t, "sel_1", l.SellerID)
	assert.Equal(t, "2019 Freightliner Cascadia", l.Title())
	assert.Equal(t, types.ListingAvailable, l.Status)
	assert.Nil(t, l.Mileage)
	assert.Empty(t, l.Description)
	assert.Equal(t, "Dallas", l.City)
	assert.Equal(t, []string{"front.jpg", "cab.jpg"}, l.Photos)
}

func TestListingRepository_GetByID_NotFound(t *testing.T) {
	db := new(mockDBTX)
	repo := NewListingRepository(db)

	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanErr: pgx.ErrNoRows})

	_, err := repo.GetByID(context.Background(), "lst_missing")
	requireAppCode(t, err, types.ErrCodeNotFoundListing)
}

func TestListingRepository_GetByID_DBError(t *testing.T) {
	db := new(mockDBTX)
	repo := NewListingRepository(db)

	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanErr: errors.New("connection reset")})

	_, err := repo.GetByID(context.Background(), "lst_1")
	requireAppCode(t, err, types.ErrCodeInternalDB)
}

func TestBuildListingQuery_NoFilter(t *testing.T) {
	query, args := buildListingQuery(types.ListingFilter{})
	assert.NotContains(t, query, "WHERE")
	assert.NotContains(t, query, "JOIN sellers")
	assert.True(t, strings.HasSuffix(query, "ORDER BY t.created_at DESC"))
	assert.Empty(t, args)
}

func TestBuildListingQuery_AllFilters(t *testing.T) {
	minPrice, maxPrice := 20000.0, 90000.0
	query, args := buildListingQuery(types.ListingFilter{
		SellerType: types.SellerDealer,
		Status:     types.ListingAvailable,
		Make:       "Peterbilt",
		State:      "tx",
		MinPrice:   &minPrice,
		MaxPrice:   &maxPrice,
		Query:      " 389_ ",
	})

	assert.Contains(t, query, "JOIN sellers s ON s.id = t.seller_id")
	assert.Contains(t, query, "s.seller_type = $1")
	assert.Contains(t, query, "t.status = $2")
	assert.Contains(t, query, "LOWER(t.make) = LOWER($3)")
	assert.Contains(t, query, "UPPER(t.state) = UPPER($4)")
	assert.Contains(t, query, "t.price >= $5")
	assert.Contains(t, query, "t.price <= $6")
	assert.Contains(t, query, "(t.make ILIKE $7 OR t.model ILIKE $7)")
	assert.Equal(t, []any{"dealer", "available", "Peterbilt", "tx", 20000.0, 90000.0, `%389\_%`}, args)
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `50\% off\_now \\ ok`, escapeLike(`50% off_now \ ok`))
}

func TestListingRepository_List_ScansRows(t *testing.T) {
	db := new(mockDBTX)
	repo := NewListingRepository(db)

	rows := newMockRows(
		listingRow("lst_2", "sel_1", types.ListingAvailable, testNow),
		listingRow("lst_1", "sel_2", types.ListingAvailable, testNow.Add(-time.Hour)),
	)
	db.On("Query", mock.Anything, sqlContains("t.status = $1"), []any{"available"}).Return(rows, nil)

	out, err := repo.List(context.Background(), types.ListingFilter{Status: types.ListingAvailable})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "lst_2", out[0].ID)
	assert.Equal(t, "lst_1", out[1].ID)
	assert.True(t, rows.closed)
}

func TestListingRepository_List_RowsError(t *testing.T) {
	db := new(mockDBTX)
	repo := NewListingRepository(db)

	rows := newMockRows()
	rows.errVal = errors.New("stream broken")
	db.On("Query", mock.Anything, mock.AnythingOfType("string"), mock.Anything).Return(rows, nil)

	_, err := repo.List(context.Background(), types.ListingFilter{})
	requireAppCode(t, err, types.ErrCodeInternalDB)
}

func TestListingRepository_LatestAvailableBySellers_EmptySkipsQuery(t *testing.T) {
	db := new(mockDBTX)
	repo := NewListingRepository(db)

	out, err := repo.LatestAvailableBySellers(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, out)
	db.AssertNotCalled(t, "Query", mock.Anything, mock.Anything, mock.Anything)
}

func TestListingRepository_OldestSellersLatest_NilExclude(t *testing.T) {
	db := new(mockDBTX)
	repo := NewListingRepository(db)

	db.On("Query", mock.Anything, sqlContains("ORDER BY s.created_at ASC"), []any{[]string{}, 10}).
		Return(newMockRows(listingRow("lst_9", "sel_old", types.ListingAvailable, testNow)), nil)

	out, err := repo.OldestSellersLatest(context.Background(), nil, 10)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "sel_old", out[0].SellerID)
}

func TestListingRepository_CountAvailableListings(t *testing.T) {
	db := new(mockDBTX)
	repo := NewListingRepository(db)

	db.On("QueryRow", mock.Anything, sqlContains("status = 'available'"), []any{"sel_1", ""}).
		Return(rowOf(3))

	n, err := repo.CountAvailableListings(context.Background(), "sel_1")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestListingRepository_Update_OnlyPatchedColumns(t *testing.T) {
	db := new(mockDBTX)
	repo := NewListingRepository(db)

	price := 51000.0
	status := types.ListingSold
	var captured string
	db.On("QueryRow", mock.Anything, mock.MatchedBy(func(sql string) bool {
		captured = sql
		return strings.HasPrefix(strings.TrimSpace(sql), "UPDATE trucks")
	}), []any{"lst_1", testNow, 51000.0, "sold"}).
		Return(rowOf(listingRow("lst_1", "sel_1", types.ListingSold, testNow)...))

	l, err := repo.Update(context.Background(), "lst_1", types.ListingPatch{Price: &price, Status: &status}, testNow)
	require.NoError(t, err)
	assert.Equal(t, types.ListingSold, l.Status)
	assert.Contains(t, captured, "updated_at = $2, price = $3, status = $4")
	assert.NotContains(t, captured, "make =")
}

func TestListingRepository_SetFeatured_NotFound(t *testing.T) {
	db := new(mockDBTX)
	repo := NewListingRepository(db)

	db.On("Exec", mock.Anything, sqlContains("is_featured = $2"), mock.Anything).
		Return(pgconn.NewCommandTag("UPDATE 0"), nil)

	err := repo.SetFeatured(context.Background(), "lst_missing", true, nil, testNow)
	requireAppCode(t, err, types.ErrCodeNotFoundListing)
}

func TestListingRepository_SetFeatured_ClearDropsExpiry(t *testing.T) {
	db := new(mockDBTX)
	repo := NewListingRepository(db)

	until := testNow.Add(24 * time.Hour)
	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.MatchedBy(func(args []any) bool {
		u, _ := args[2].(*time.Time)
		return args[1] == false && u == nil
	})).Return(pgconn.NewCommandTag("UPDATE 1"), nil)

	require.NoError(t, repo.SetFeatured(context.Background(), "lst_1", false, &until, testNow))
	db.AssertExpectations(t)
}

func TestListingRepository_Delete(t *testing.T) {
	db := new(mockDBTX)
	repo := NewListingRepository(db)

	db.On("Exec", mock.Anything, sqlContains("DELETE FROM trucks"), []any{"lst_1"}).
		Return(pgconn.NewCommandTag("DELETE 1"), nil).Once()
	db.On("Exec", mock.Anything, sqlContains("DELETE FROM trucks"), []any{"lst_2"}).
		Return(pgconn.NewCommandTag("DELETE 0"), nil).Once()

	require.NoError(t, repo.Delete(context.Background(), "lst_1"))
	requireAppCode(t, repo.Delete(context.Background(), "lst_2"), types.ErrCodeNotFoundListing)
}
