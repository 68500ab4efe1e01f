package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"truckmarket/internal/types"
)

// ListingRepository provides data access for the trucks table.
type ListingRepository struct {
	db DBTX
}

// NewListingRepository creates a new ListingRepository backed by the given
// database connection (pool or transaction).
func NewListingRepository(db DBTX) *ListingRepository {
	return &ListingRepository{db: db}
}

// listingColumns must match the scan order in scanListing.
const listingColumns = `t.id, t.seller_id, t.year, t.make, t.model, t.price, t.mileage,
	t.condition, t.description, t.city, t.state, t.photos, t.status,
	t.is_featured, t.featured_until, t.created_at, t.updated_at`

func scanListing(row pgx.Row) (*types.Listing, error) {
	var l types.Listing
	var (
		condition   *string
		description *string
		city        *string
		state       *string
	)
	err := row.Scan(
		&l.ID,
		&l.SellerID,
		&l.Year,
		&l.Make,
		&l.Model,
		&l.Price,
		&l.Mileage,
		&condition,
		&description,
		&city,
		&state,
		&l.Photos,
		&l.Status,
		&l.IsFeatured,
		&l.FeaturedUntil,
		&l.CreatedAt,
		&l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	l.Condition = deref(condition)
	l.Description = deref(description)
	l.City = deref(city)
	l.State = deref(state)
	if l.Photos == nil {
		l.Photos = []string{}
	}
	return &l, nil
}

func collectListings(rows pgx.Rows) ([]types.Listing, error) {
	defer rows.Close()
	var out []types.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

// GetByID retrieves a listing regardless of status.
func (r *ListingRepository) GetByID(ctx context.Context, id string) (*types.Listing, error) {
	return getListing(ctx, r.db, id)
}

func getListing(ctx context.Context, q DBTX, id string) (*types.Listing, error) {
	row := q.QueryRow(ctx, `SELECT `+listingColumns+` FROM trucks t WHERE t.id = $1`, id)
	l, err := scanListing(row)
	if err != nil {
		return nil, dbError(err, types.ErrCodeNotFoundListing, "get listing")
	}
	return l, nil
}

// List returns listings matching filter, newest first. An empty
// filter.Status returns every status.
func (r *ListingRepository) List(ctx context.Context, filter types.ListingFilter) ([]types.Listing, error) {
	query, args := buildListingQuery(filter)
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, dbError(err, "", "list listings")
	}
	out, err := collectListings(rows)
	if err != nil {
		return nil, dbError(err, "", "scan listings")
	}
	return out, nil
}

func buildListingQuery(f types.ListingFilter) (string, []any) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}

	from := `FROM trucks t`
	if f.SellerType != "" {
		from += ` JOIN sellers s ON s.id = t.seller_id`
		add("s.seller_type = $%d", string(f.SellerType))
	}
	if f.Status != "" {
		add("t.status = $%d", string(f.Status))
	}
	if f.Make != "" {
		add("LOWER(t.make) = LOWER($%d)", f.Make)
	}
	if f.State != "" {
		add("UPPER(t.state) = UPPER($%d)", f.State)
	}
	if f.MinPrice != nil {
		add("t.price >= $%d", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		add("t.price <= $%d", *f.MaxPrice)
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		args = append(args, "%"+escapeLike(q)+"%")
		n := len(args)
		where = append(where, fmt.Sprintf("(t.make ILIKE $%d OR t.model ILIKE $%d)", n, n))
	}

	query := `SELECT ` + listingColumns + ` ` + from
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY t.created_at DESC`
	return query, args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// ListBySeller returns all of a seller's listings, newest first.
func (r *ListingRepository) ListBySeller(ctx context.Context, sellerID string) ([]types.Listing, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+listingColumns+` FROM trucks t WHERE t.seller_id = $1 ORDER BY t.created_at DESC`,
		sellerID,
	)
	if err != nil {
		return nil, dbError(err, "", "list seller listings")
	}
	out, err := collectListings(rows)
	if err != nil {
		return nil, dbError(err, "", "scan seller listings")
	}
	return out, nil
}

// ListFeatured returns every listing with the featured flag set, including
// expired windows. Callers decide what is featured now.
func (r *ListingRepository) ListFeatured(ctx context.Context) ([]types.Listing, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+listingColumns+` FROM trucks t
		 WHERE t.is_featured = true
		 ORDER BY t.featured_until DESC NULLS FIRST, t.created_at DESC`,
	)
	if err != nil {
		return nil, dbError(err, "", "list featured listings")
	}
	out, err := collectListings(rows)
	if err != nil {
		return nil, dbError(err, "", "scan featured listings")
	}
	return out, nil
}

// LatestAvailableBySellers returns the newest available listing of each of
// the given sellers. Sellers with no stock are absent from the result.
func (r *ListingRepository) LatestAvailableBySellers(ctx context.Context, sellerIDs []string) ([]types.Listing, error) {
	if len(sellerIDs) == 0 {
		return nil, nil
	}
	rows, err := r.db.Query(ctx,
		`SELECT DISTINCT ON (t.seller_id) `+listingColumns+`
		 FROM trucks t
		 WHERE t.seller_id = ANY($1) AND t.status = 'available'
		 ORDER BY t.seller_id, t.created_at DESC`,
		sellerIDs,
	)
	if err != nil {
		return nil, dbError(err, "", "list latest listings by seller")
	}
	out, err := collectListings(rows)
	if err != nil {
		return nil, dbError(err, "", "scan latest listings by seller")
	}
	return out, nil
}

// OldestSellersLatest returns one newest available listing per seller for the
// longest-registered sellers that have stock, skipping excluded sellers.
func (r *ListingRepository) OldestSellersLatest(ctx context.Context, exclude []string, limit int) ([]types.Listing, error) {
	if exclude == nil {
		exclude = []string{}
	}
	rows, err := r.db.Query(ctx,
		`SELECT `+listingColumns+`
		 FROM trucks t
		 JOIN sellers s ON s.id = t.seller_id
		 WHERE t.id IN (
			SELECT DISTINCT ON (seller_id) id FROM trucks
			WHERE status = 'available' AND NOT (seller_id = ANY($1))
			ORDER BY seller_id, created_at DESC
		 )
		 ORDER BY s.created_at ASC
		 LIMIT $2`,
		exclude,
		limit,
	)
	if err != nil {
		return nil, dbError(err, "", "list oldest sellers' listings")
	}
	out, err := collectListings(rows)
	if err != nil {
		return nil, dbError(err, "", "scan oldest sellers' listings")
	}
	return out, nil
}

// CountAvailableListings counts a seller's listings with status available.
func (r *ListingRepository) CountAvailableListings(ctx context.Context, sellerID string) (int, error) {
	return countAvailable(ctx, r.db, sellerID, "")
}

// countAvailable counts available listings of sellerID, ignoring exceptID.
func countAvailable(ctx context.Context, q DBTX, sellerID, exceptID string) (int, error) {
	var n int
	err := q.QueryRow(ctx,
		`SELECT COUNT(*) FROM trucks
		 WHERE seller_id = $1 AND status = 'available' AND id <> $2`,
		sellerID,
		exceptID,
	).Scan(&n)
	if err != nil {
		return 0, dbError(err, "", "count available listings")
	}
	return n, nil
}

// Update applies patch without an admission check. Callers use it only when
// the listing does not become available.
func (r *ListingRepository) Update(ctx context.Context, id string, patch types.ListingPatch, now time.Time) (*types.Listing, error) {
	return updateListing(ctx, r.db, id, patch, now)
}

func updateListing(ctx context.Context, q DBTX, id string, patch types.ListingPatch, now time.Time) (*types.Listing, error) {
	sets := []string{"updated_at = $2"}
	args := []any{id, now}
	set := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if patch.Year != nil {
		set("year", *patch.Year)
	}
	if patch.Make != nil {
		set("make", *patch.Make)
	}
	if patch.Model != nil {
		set("model", *patch.Model)
	}
	if patch.Price != nil {
		set("price", *patch.Price)
	}
	if patch.Mileage != nil {
		set("mileage", *patch.Mileage)
	}
	if patch.Condition != nil {
		set("condition", nilIfEmpty(*patch.Condition))
	}
	if patch.Description != nil {
		set("description", nilIfEmpty(*patch.Description))
	}
	if patch.City != nil {
		set("city", nilIfEmpty(*patch.City))
	}
	if patch.State != nil {
		set("state", nilIfEmpty(*patch.State))
	}
	if patch.Photos != nil {
		set("photos", patch.Photos)
	}
	if patch.Status != nil {
		set("status", string(*patch.Status))
	}

	row := q.QueryRow(ctx,
		`UPDATE trucks t SET `+strings.Join(sets, ", ")+`
		 WHERE t.id = $1
		 RETURNING `+listingColumns,
		args...,
	)
	l, err := scanListing(row)
	if err != nil {
		return nil, dbError(err, types.ErrCodeNotFoundListing, "update listing")
	}
	return l, nil
}

func insertListing(ctx context.Context, q DBTX, l *types.Listing) error {
	photos := l.Photos
	if photos == nil {
		photos = []string{}
	}
	_, err := q.Exec(ctx,
		`INSERT INTO trucks (id, seller_id, year, make, model, price, mileage, condition,
			description, city, state, photos, status, is_featured, featured_until, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, false, NULL, $14, $14)`,
		l.ID,
		l.SellerID,
		l.Year,
		l.Make,
		l.Model,
		l.Price,
		l.Mileage,
		nilIfEmpty(l.Condition),
		nilIfEmpty(l.Description),
		nilIfEmpty(l.City),
		nilIfEmpty(l.State),
		photos,
		string(l.Status),
		l.CreatedAt,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create listing", err)
	}
	return nil
}

// SetFeatured sets or clears the promotion of a listing. A nil until means
// the promotion never expires.
func (r *ListingRepository) SetFeatured(ctx context.Context, id string, featured bool, until *time.Time, now time.Time) error {
	if !featured {
		until = nil
	}
	tag, err := r.db.Exec(ctx,
		`UPDATE trucks SET is_featured = $2, featured_until = $3, updated_at = $4 WHERE id = $1`,
		id,
		featured,
		until,
		now,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update listing promotion", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundListing, "listing not found", nil)
	}
	return nil
}

// Delete removes a listing. Saved references cascade.
func (r *ListingRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM trucks WHERE id = $1`, id)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to delete listing", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundListing, "listing not found", nil)
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
