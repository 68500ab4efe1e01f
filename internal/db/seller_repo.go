package db

import (
	"context"

	"github.com/jackc/pgx/v5"

	"truckmarket/internal/types"
)

// SellerRepository provides data access for the sellers table.
type SellerRepository struct {
	db DBTX
}

// NewSellerRepository creates a new SellerRepository backed by the given
// database connection (pool or transaction).
func NewSellerRepository(db DBTX) *SellerRepository {
	return &SellerRepository{db: db}
}

const sellerColumns = `s.id, s.user_id, s.email, s.name, s.phone, s.company,
	s.profile_picture_url, s.seller_type, s.city, s.state, s.hide_email, s.hide_phone, s.created_at`

// scanSeller scans a row in sellerColumns order. Most profile columns are
// nullable because legacy sellers were imported with partial data.
func scanSeller(row pgx.Row) (*types.Seller, error) {
	var s types.Seller
	var (
		userID     *string
		email      *string
		phone      *string
		company    *string
		picture    *string
		sellerType *string
		city       *string
		state      *string
	)
	err := row.Scan(
		&s.ID,
		&userID,
		&email,
		&s.Name,
		&phone,
		&company,
		&picture,
		&sellerType,
		&city,
		&state,
		&s.HideEmail,
		&s.HidePhone,
		&s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.UserID = deref(userID)
	s.Email = deref(email)
	s.Phone = deref(phone)
	s.Company = deref(company)
	s.ProfilePictureURL = deref(picture)
	s.SellerType = types.SellerType(deref(sellerType))
	s.City = deref(city)
	s.State = deref(state)
	return &s, nil
}

// GetByID retrieves a seller by id.
func (r *SellerRepository) GetByID(ctx context.Context, id string) (*types.Seller, error) {
	row := r.db.QueryRow(ctx, `SELECT `+sellerColumns+` FROM sellers s WHERE s.id = $1`, id)
	s, err := scanSeller(row)
	if err != nil {
		return nil, dbError(err, types.ErrCodeNotFoundSeller, "get seller")
	}
	return s, nil
}

// GetByUserID retrieves the seller profile linked to a user account.
func (r *SellerRepository) GetByUserID(ctx context.Context, userID string) (*types.Seller, error) {
	row := r.db.QueryRow(ctx, `SELECT `+sellerColumns+` FROM sellers s WHERE s.user_id = $1`, userID)
	s, err := scanSeller(row)
	if err != nil {
		return nil, dbError(err, types.ErrCodeNotFoundSeller, "get seller by user")
	}
	return s, nil
}

// GetUnlinkedByEmail finds a legacy seller with no account whose email
// matches case-insensitively.
func (r *SellerRepository) GetUnlinkedByEmail(ctx context.Context, email string) (*types.Seller, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+sellerColumns+` FROM sellers s
		 WHERE s.user_id IS NULL AND LOWER(s.email) = LOWER($1)
		 ORDER BY s.created_at ASC
		 LIMIT 1`,
		email,
	)
	s, err := scanSeller(row)
	if err != nil {
		return nil, dbError(err, types.ErrCodeNotFoundSeller, "get unlinked seller")
	}
	return s, nil
}

// GetByIDs loads the given sellers keyed by id. Unknown ids are skipped.
func (r *SellerRepository) GetByIDs(ctx context.Context, ids []string) (map[string]types.Seller, error) {
	out := make(map[string]types.Seller, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.db.Query(ctx, `SELECT `+sellerColumns+` FROM sellers s WHERE s.id = ANY($1)`, ids)
	if err != nil {
		return nil, dbError(err, "", "list sellers")
	}
	defer rows.Close()
	for rows.Next() {
		s, err := scanSeller(rows)
		if err != nil {
			return nil, dbError(err, "", "scan seller")
		}
		out[s.ID] = *s
	}
	if err := rows.Err(); err != nil {
		return nil, dbError(err, "", "iterate sellers")
	}
	return out, nil
}

// Create inserts a new seller profile.
func (r *SellerRepository) Create(ctx context.Context, s *types.Seller) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO sellers (id, user_id, email, name, phone, company, profile_picture_url,
			seller_type, city, state, hide_email, hide_phone, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		s.ID,
		nilIfEmpty(s.UserID),
		nilIfEmpty(s.Email),
		s.Name,
		nilIfEmpty(s.Phone),
		nilIfEmpty(s.Company),
		nilIfEmpty(s.ProfilePictureURL),
		nilIfEmpty(string(s.SellerType)),
		nilIfEmpty(s.City),
		nilIfEmpty(s.State),
		s.HideEmail,
		s.HidePhone,
		s.CreatedAt,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create seller", err)
	}
	return nil
}

// Update saves the editable profile fields and links the seller to
// s.UserID when set.
func (r *SellerRepository) Update(ctx context.Context, s *types.Seller) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE sellers SET
			user_id = COALESCE($2, user_id),
			email = $3, name = $4, phone = $5, company = $6, profile_picture_url = $7,
			seller_type = $8, city = $9, state = $10, hide_email = $11, hide_phone = $12
		 WHERE id = $1`,
		s.ID,
		nilIfEmpty(s.UserID),
		nilIfEmpty(s.Email),
		s.Name,
		nilIfEmpty(s.Phone),
		nilIfEmpty(s.Company),
		nilIfEmpty(s.ProfilePictureURL),
		nilIfEmpty(string(s.SellerType)),
		nilIfEmpty(s.City),
		nilIfEmpty(s.State),
		s.HideEmail,
		s.HidePhone,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update seller", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundSeller, "seller not found", nil)
	}
	return nil
}
