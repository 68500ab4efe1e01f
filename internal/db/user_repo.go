package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"truckmarket/internal/types"
)

// UserRepository provides data access for the users and admins tables.
type UserRepository struct {
	db DBTX
}

// NewUserRepository creates a new UserRepository backed by the given
// database connection (pool or transaction).
func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

// userColumns defines the standard set of columns selected for user queries.
const userColumns = `u.id, u.email, u.full_name, u.password_hash, u.message_email_pref,
	u.email_verified_at, u.last_login_at, u.created_at`

// scanUser scans a single user row in userColumns order.
func scanUser(row pgx.Row) (*types.User, error) {
	var u types.User
	var (
		fullName     *string
		passwordHash *string
		pref         *string
	)
	err := row.Scan(
		&u.ID,
		&u.Email,
		&fullName,
		&passwordHash,
		&pref,
		&u.EmailVerifiedAt,
		&u.LastLoginAt,
		&u.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	u.FullName = deref(fullName)
	u.PasswordHash = deref(passwordHash)
	u.MessageEmailPref = types.EmailPref(deref(pref))
	if u.MessageEmailPref == "" {
		u.MessageEmailPref = types.EmailPrefEach
	}
	return &u, nil
}

// GetByID retrieves a user by id.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*types.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users u WHERE u.id = $1`, id)
	u, err := scanUser(row)
	if err != nil {
		return nil, dbError(err, types.ErrCodeNotFoundUser, "get user")
	}
	return u, nil
}

// GetByEmail retrieves a user by email, case-insensitively. A missing user
// is reported as auth_user_not_found so login can map it to invalid
// credentials.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*types.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users u WHERE LOWER(u.email) = LOWER($1)`, email)
	u, err := scanUser(row)
	if err != nil {
		return nil, dbError(err, types.ErrCodeAuthUserNotFound, "get user by email")
	}
	return u, nil
}

// Create inserts a new user. A duplicate email is conflict_email_exists.
func (r *UserRepository) Create(ctx context.Context, u *types.User) error {
	pref := u.MessageEmailPref
	if pref == "" {
		pref = types.EmailPrefEach
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO users (id, email, full_name, password_hash, message_email_pref, created_at)
		 VALUES ($1, LOWER($2), $3, $4, $5, $6)`,
		u.ID,
		u.Email,
		nilIfEmpty(u.FullName),
		u.PasswordHash,
		string(pref),
		u.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return types.NewAppError(types.ErrCodeConflictEmail, "an account with this email already exists", nil)
		}
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create user", err)
	}
	return nil
}

// UpdateLastLogin stamps a successful login.
func (r *UserRepository) UpdateLastLogin(ctx context.Context, userID string, at time.Time) error {
	_, err := r.db.Exec(ctx, `UPDATE users SET last_login_at = $2 WHERE id = $1`, userID, at)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update last login", err)
	}
	return nil
}

// UpdateEmailPref changes how the user hears about new messages.
func (r *UserRepository) UpdateEmailPref(ctx context.Context, userID string, pref types.EmailPref) error {
	tag, err := r.db.Exec(ctx, `UPDATE users SET message_email_pref = $2 WHERE id = $1`, userID, string(pref))
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update email preference", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundUser, "user not found", nil)
	}
	return nil
}

// GetAdminByEmail retrieves a back-office account by email.
func (r *UserRepository) GetAdminByEmail(ctx context.Context, email string) (*types.Admin, error) {
	var (
		a    types.Admin
		name *string
	)
	err := r.db.QueryRow(ctx,
		`SELECT id, email, name, password_hash, created_at FROM admins WHERE LOWER(email) = LOWER($1)`,
		email,
	).Scan(&a.ID, &a.Email, &name, &a.PasswordHash, &a.CreatedAt)
	if err != nil {
		return nil, dbError(err, types.ErrCodeAuthUserNotFound, "get admin by email")
	}
	a.Name = deref(name)
	return &a, nil
}

// GetAdminByID retrieves a back-office account by id.
func (r *UserRepository) GetAdminByID(ctx context.Context, id string) (*types.Admin, error) {
	var (
		a    types.Admin
		name *string
	)
	err := r.db.QueryRow(ctx,
		`SELECT id, email, name, password_hash, created_at FROM admins WHERE id = $1`,
		id,
	).Scan(&a.ID, &a.Email, &name, &a.PasswordHash, &a.CreatedAt)
	if err != nil {
		return nil, dbError(err, types.ErrCodeNotFoundUser, "get admin")
	}
	a.Name = deref(name)
	return &a, nil
}
