package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"truckmarket/internal/types"
)

// AdRepository provides data access for the ads table.
type AdRepository struct {
	db DBTX
}

// NewAdRepository creates a new AdRepository backed by the given database
// connection (pool or transaction).
func NewAdRepository(db DBTX) *AdRepository {
	return &AdRepository{db: db}
}

const adColumns = `a.id, a.title, a.image_url, a.link_url, a.placement, a.start_date, a.end_date, a.is_active, a.created_at`

func scanAd(row pgx.Row) (*types.Ad, error) {
	var a types.Ad
	var link *string
	err := row.Scan(&a.ID, &a.Title, &a.ImageURL, &link, &a.Placement, &a.StartDate, &a.EndDate, &a.IsActive, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	a.LinkURL = deref(link)
	return &a, nil
}

// ListRunning returns approved ads whose date window contains day. An empty
// placement matches every placement.
func (r *AdRepository) ListRunning(ctx context.Context, placement string, day time.Time) ([]types.Ad, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+adColumns+` FROM ads a
		 WHERE a.is_active = true
		   AND a.start_date <= $1::date AND a.end_date >= $1::date
		   AND ($2 = '' OR a.placement = $2)
		 ORDER BY a.created_at DESC`,
		day.UTC().Format(time.DateOnly),
		placement,
	)
	if err != nil {
		return nil, dbError(err, "", "list ads")
	}
	defer rows.Close()

	out := []types.Ad{}
	for rows.Next() {
		a, err := scanAd(rows)
		if err != nil {
			return nil, dbError(err, "", "scan ad")
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError(err, "", "iterate ads")
	}
	return out, nil
}

// SetActive approves or suspends an ad.
func (r *AdRepository) SetActive(ctx context.Context, id string, active bool) error {
	tag, err := r.db.Exec(ctx, `UPDATE ads SET is_active = $2 WHERE id = $1`, id, active)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update ad", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundAd, "ad not found", nil)
	}
	return nil
}

// ListAll returns every ad, newest first, whatever its state.
func (r *AdRepository) ListAll(ctx context.Context) ([]types.Ad, error) {
	rows, err := r.db.Query(ctx, `SELECT `+adColumns+` FROM ads a ORDER BY a.created_at DESC`)
	if err != nil {
		return nil, dbError(err, "", "list ads")
	}
	defer rows.Close()

	out := []types.Ad{}
	for rows.Next() {
		a, err := scanAd(rows)
		if err != nil {
			return nil, dbError(err, "", "scan ad")
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError(err, "", "iterate ads")
	}
	return out, nil
}

// Create stores an ad entered by an admin.
func (r *AdRepository) Create(ctx context.Context, a *types.Ad) error {
	return insertAd(ctx, r.db, a)
}

// Update replaces an ad's content, schedule and state.
func (r *AdRepository) Update(ctx context.Context, a *types.Ad) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE ads SET title = $2, image_url = $3, link_url = $4, placement = $5,
			start_date = $6, end_date = $7, is_active = $8
		 WHERE id = $1`,
		a.ID,
		a.Title,
		a.ImageURL,
		nilIfEmpty(a.LinkURL),
		a.Placement,
		a.StartDate,
		a.EndDate,
		a.IsActive,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update ad", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundAd, "ad not found", nil)
	}
	return nil
}

// Delete removes an ad. Payments that bought it keep their row with ad_id
// cleared.
func (r *AdRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM ads WHERE id = $1`, id)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to delete ad", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundAd, "ad not found", nil)
	}
	return nil
}

func insertAd(ctx context.Context, q DBTX, a *types.Ad) error {
	_, err := q.Exec(ctx,
		`INSERT INTO ads (id, title, image_url, link_url, placement, start_date, end_date, is_active, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.ID,
		a.Title,
		a.ImageURL,
		nilIfEmpty(a.LinkURL),
		a.Placement,
		a.StartDate,
		a.EndDate,
		a.IsActive,
		a.CreatedAt,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create ad", err)
	}
	return nil
}
