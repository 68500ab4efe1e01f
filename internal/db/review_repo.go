package db

import (
	"context"

	"truckmarket/internal/types"
)

// ReviewRepository provides data access for the reviews table.
type ReviewRepository struct {
	db DBTX
}

// NewReviewRepository creates a new ReviewRepository backed by the given
// database connection (pool or transaction).
func NewReviewRepository(db DBTX) *ReviewRepository {
	return &ReviewRepository{db: db}
}

// ListBySeller returns a seller's reviews, newest first, with the
// reviewer's display name.
func (r *ReviewRepository) ListBySeller(ctx context.Context, sellerID string) ([]types.Review, error) {
	rows, err := r.db.Query(ctx,
		`SELECT rv.id, rv.seller_id, rv.reviewer_id, COALESCE(u.full_name, ''), rv.rating, rv.comment, rv.created_at
		 FROM reviews rv
		 LEFT JOIN users u ON u.id = rv.reviewer_id
		 WHERE rv.seller_id = $1
		 ORDER BY rv.created_at DESC`,
		sellerID,
	)
	if err != nil {
		return nil, dbError(err, "", "list reviews")
	}
	defer rows.Close()

	out := []types.Review{}
	for rows.Next() {
		var (
			rv      types.Review
			comment *string
		)
		if err := rows.Scan(&rv.ID, &rv.SellerID, &rv.ReviewerID, &rv.ReviewerName, &rv.Rating, &comment, &rv.CreatedAt); err != nil {
			return nil, dbError(err, "", "scan review")
		}
		rv.Comment = deref(comment)
		out = append(out, rv)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError(err, "", "iterate reviews")
	}
	return out, nil
}

// Create stores a review.
func (r *ReviewRepository) Create(ctx context.Context, rv *types.Review) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO reviews (id, seller_id, reviewer_id, rating, comment, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		rv.ID,
		rv.SellerID,
		rv.ReviewerID,
		rv.Rating,
		nilIfEmpty(rv.Comment),
		rv.CreatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return types.NewAppError(types.ErrCodeNotFoundSeller, "seller not found", nil)
		}
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create review", err)
	}
	return nil
}

// TopReviewed returns the sellers with the most reviews, most first. Ties
// go to the seller registered earlier.
func (r *ReviewRepository) TopReviewed(ctx context.Context, limit int) ([]types.SellerReviewCount, error) {
	rows, err := r.db.Query(ctx,
		`SELECT rv.seller_id, COUNT(*) AS n
		 FROM reviews rv
		 JOIN sellers s ON s.id = rv.seller_id
		 GROUP BY rv.seller_id, s.created_at
		 ORDER BY n DESC, s.created_at ASC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, dbError(err, "", "rank reviewed sellers")
	}
	defer rows.Close()

	var out []types.SellerReviewCount
	for rows.Next() {
		var c types.SellerReviewCount
		if err := rows.Scan(&c.SellerID, &c.Count); err != nil {
			return nil, dbError(err, "", "scan reviewed seller")
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError(err, "", "iterate reviewed sellers")
	}
	return out, nil
}
