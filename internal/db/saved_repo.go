package db

import (
	"context"
	"time"

	"truckmarket/internal/types"
)

// SavedRepository provides data access for the saved_trucks table.
type SavedRepository struct {
	db DBTX
}

// NewSavedRepository creates a new SavedRepository backed by the given
// database connection (pool or transaction).
func NewSavedRepository(db DBTX) *SavedRepository {
	return &SavedRepository{db: db}
}

// List returns the ids of the listings userID saved, newest first.
func (r *SavedRepository) List(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT truck_id FROM saved_trucks WHERE user_id = $1 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, dbError(err, "", "list saved listings")
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, dbError(err, "", "scan saved listing")
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError(err, "", "iterate saved listings")
	}
	return ids, nil
}

// Save bookmarks a listing. Saving the same listing twice succeeds.
func (r *SavedRepository) Save(ctx context.Context, userID, listingID string, now time.Time) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO saved_trucks (user_id, truck_id, created_at) VALUES ($1, $2, $3)`,
		userID,
		listingID,
		now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil
		}
		if isForeignKeyViolation(err) {
			return types.NewAppError(types.ErrCodeNotFoundListing, "listing not found", nil)
		}
		return types.NewAppError(types.ErrCodeInternalDB, "failed to save listing", err)
	}
	return nil
}

// Remove deletes a bookmark. Removing a missing bookmark is a no-op.
func (r *SavedRepository) Remove(ctx context.Context, userID, listingID string) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM saved_trucks WHERE user_id = $1 AND truck_id = $2`,
		userID,
		listingID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to remove saved listing", err)
	}
	return nil
}
