package db

import (
	"context"
	"time"

	"truckmarket/internal/types"
)

// SessionRepository provides data access for the sessions table.
type SessionRepository struct {
	db DBTX
}

// NewSessionRepository creates a new SessionRepository backed by the given
// database connection (pool or transaction).
func NewSessionRepository(db DBTX) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create stores a new session.
func (r *SessionRepository) Create(ctx context.Context, s *types.Session) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO sessions (id, subject_id, actor_type, csrf_token, ip_address, user_agent, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		s.ID,
		s.SubjectID,
		string(s.ActorType),
		s.CSRFToken,
		nilIfEmpty(s.IPAddress),
		nilIfEmpty(s.UserAgent),
		s.ExpiresAt,
		s.CreatedAt,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create session", err)
	}
	return nil
}

// GetByID returns a session that has not expired at now. Unknown and
// expired sessions are auth_session_expired.
func (r *SessionRepository) GetByID(ctx context.Context, id string, now time.Time) (*types.Session, error) {
	var (
		s         types.Session
		actorType string
		ip        *string
		ua        *string
	)
	err := r.db.QueryRow(ctx,
		`SELECT id, subject_id, actor_type, csrf_token, ip_address, user_agent, expires_at, created_at
		 FROM sessions WHERE id = $1 AND expires_at > $2`,
		id,
		now,
	).Scan(&s.ID, &s.SubjectID, &actorType, &s.CSRFToken, &ip, &ua, &s.ExpiresAt, &s.CreatedAt)
	if err != nil {
		return nil, dbError(err, types.ErrCodeAuthSessionExpired, "get session")
	}
	s.ActorType = types.ActorType(actorType)
	s.IPAddress = deref(ip)
	s.UserAgent = deref(ua)
	return &s, nil
}

// Delete removes a session. Deleting a missing session is a no-op.
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to delete session", err)
	}
	return nil
}

// DeleteExpired removes sessions that expired before now and returns how
// many were removed.
func (r *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to delete expired sessions", err)
	}
	return tag.RowsAffected(), nil
}
