package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"truckmarket/internal/types"
)

// bcryptCost is the bcrypt cost factor for user and admin passwords.
const bcryptCost = 12

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 8

// UserStore is the account data the Service needs.
type UserStore interface {
	GetByID(ctx context.Context, id string) (*types.User, error)
	GetByEmail(ctx context.Context, email string) (*types.User, error)
	Create(ctx context.Context, u *types.User) error
	UpdateLastLogin(ctx context.Context, userID string, at time.Time) error
	GetAdminByEmail(ctx context.Context, email string) (*types.Admin, error)
	GetAdminByID(ctx context.Context, id string) (*types.Admin, error)
}

// PasswordHasher abstracts bcrypt for tests.
type PasswordHasher interface {
	CompareHashAndPassword(hashedPassword, password string) error
	GenerateFromPassword(password string) (string, error)
}

// BcryptHasher is the production PasswordHasher.
type BcryptHasher struct{}

func (BcryptHasher) CompareHashAndPassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

func (BcryptHasher) GenerateFromPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// ServiceConfig holds the dependencies of a Service.
type ServiceConfig struct {
	Users    UserStore
	Sessions *Sessions
	// Security is optional; without it no attempts are tracked or blocked.
	Security types.SecurityService
	Hasher   PasswordHasher
	Clock    types.Clock
	Logger   *slog.Logger
}

// Service signs users up, logs users and admins in, and resolves session
// tokens into actors.
type Service struct {
	users    UserStore
	sessions *Sessions
	security types.SecurityService
	hasher   PasswordHasher
	clock    types.Clock
	logger   *slog.Logger
}

// NewService creates a Service. Nil Hasher, Clock and Logger fall back to
// bcrypt, wall time and slog.Default().
func NewService(cfg ServiceConfig) *Service {
	s := &Service{
		users:    cfg.Users,
		sessions: cfg.Sessions,
		security: cfg.Security,
		hasher:   cfg.Hasher,
		clock:    cfg.Clock,
		logger:   cfg.Logger,
	}
	if s.hasher == nil {
		s.hasher = BcryptHasher{}
	}
	if s.clock == nil {
		s.clock = types.RealClock{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Login is the outcome of a successful signup or login. Exactly one of User
// and Admin is set.
type Login struct {
	Actor   types.Actor
	User    *types.User
	Admin   *types.Admin
	Session *types.Session
}

// Signup creates a user account and opens a session for it.
func (s *Service) Signup(ctx context.Context, email, password, fullName, ip, userAgent string) (*Login, error) {
	email = CanonicalizeEmail(email)
	if s.security != nil && s.security.IsIPBlocked(ctx, ip) {
		return nil, types.NewAppError(types.ErrCodeAuthLocked, "too many attempts, try again later", nil)
	}
	if len(password) < MinPasswordLength {
		return nil, types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidInput,
			"password is too short", nil, map[string]any{"min_length": MinPasswordLength})
	}

	hash, err := s.hasher.GenerateFromPassword(password)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to hash password", err)
	}
	user := &types.User{
		ID:               "usr_" + uuid.New().String(),
		Email:            email,
		FullName:         fullName,
		PasswordHash:     hash,
		MessageEmailPref: types.EmailPrefEach,
		CreatedAt:        s.clock.Now(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		s.record(ctx, "signup", email, ip, false, "create_failed")
		return nil, err
	}
	s.record(ctx, "signup", email, ip, true, "")

	session, err := s.sessions.Issue(ctx, user.ID, types.ActorTypeUser, ip, userAgent)
	if err != nil {
		return nil, err
	}
	s.logger.Info("user signed up", "user_id", user.ID)
	return &Login{Actor: userActor(user, session), User: user, Session: session}, nil
}

// Login checks credentials against user accounts, then admin accounts.
// Unknown emails and wrong passwords produce the same error.
func (s *Service) Login(ctx context.Context, email, password, ip, userAgent string) (*Login, error) {
	email = CanonicalizeEmail(email)
	if s.security != nil && (s.security.IsIdentifierBlocked(ctx, email) || s.security.IsIPBlocked(ctx, ip)) {
		s.record(ctx, "login", email, ip, false, "blocked")
		return nil, types.NewAppError(types.ErrCodeAuthLocked, "too many failed attempts, try again later", nil)
	}

	user, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return s.loginUser(ctx, user, password, ip, userAgent)
	case !isCode(err, types.ErrCodeAuthUserNotFound):
		return nil, err
	}

	admin, err := s.users.GetAdminByEmail(ctx, email)
	switch {
	case err == nil:
		return s.loginAdmin(ctx, admin, password, ip, userAgent)
	case !isCode(err, types.ErrCodeAuthUserNotFound):
		return nil, err
	}

	s.record(ctx, "login", email, ip, false, "user_not_found")
	return nil, invalidCredentials()
}

func (s *Service) loginUser(ctx context.Context, user *types.User, password, ip, userAgent string) (*Login, error) {
	if user.PasswordHash == "" || s.hasher.CompareHashAndPassword(user.PasswordHash, password) != nil {
		s.record(ctx, "login", user.Email, ip, false, "invalid_creds")
		return nil, invalidCredentials()
	}

	now := s.clock.Now()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		s.logger.Warn("failed to update last login", "user_id", user.ID, "error", err)
	} else {
		user.LastLoginAt = &now
	}

	session, err := s.sessions.Issue(ctx, user.ID, types.ActorTypeUser, ip, userAgent)
	if err != nil {
		return nil, err
	}
	s.record(ctx, "login", user.Email, ip, true, "")
	s.logger.Info("user logged in", "user_id", user.ID)
	return &Login{Actor: userActor(user, session), User: user, Session: session}, nil
}

func (s *Service) loginAdmin(ctx context.Context, admin *types.Admin, password, ip, userAgent string) (*Login, error) {
	if s.hasher.CompareHashAndPassword(admin.PasswordHash, password) != nil {
		s.record(ctx, "login", admin.Email, ip, false, "invalid_creds")
		return nil, invalidCredentials()
	}
	session, err := s.sessions.Issue(ctx, admin.ID, types.ActorTypeAdmin, ip, userAgent)
	if err != nil {
		return nil, err
	}
	s.record(ctx, "login", admin.Email, ip, true, "")
	s.logger.Info("admin logged in", "admin_id", admin.ID)
	return &Login{Actor: adminActor(admin, session), Admin: admin, Session: session}, nil
}

// Logout revokes the session token.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.sessions.Revoke(ctx, token)
}

// ResolveSession turns a session token into the actor it belongs to. A
// session whose account was removed is invalid.
func (s *Service) ResolveSession(ctx context.Context, token string) (*types.Actor, *types.Session, error) {
	session, err := s.sessions.Validate(ctx, token)
	if err != nil {
		return nil, nil, err
	}

	switch session.ActorType {
	case types.ActorTypeUser:
		user, err := s.users.GetByID(ctx, session.SubjectID)
		if err != nil {
			return nil, nil, subjectError(err)
		}
		actor := userActor(user, session)
		return &actor, session, nil
	case types.ActorTypeAdmin:
		admin, err := s.users.GetAdminByID(ctx, session.SubjectID)
		if err != nil {
			return nil, nil, subjectError(err)
		}
		actor := adminActor(admin, session)
		return &actor, session, nil
	default:
		return nil, nil, types.NewAppError(types.ErrCodeAuthTokenInvalid, "invalid session", nil)
	}
}

func (s *Service) record(ctx context.Context, event, email, ip string, success bool, reason string) {
	if s.security == nil {
		return
	}
	_ = s.security.RecordAttempt(ctx, event, email, ip, success, reason)
}

func userActor(u *types.User, session *types.Session) types.Actor {
	return types.Actor{ID: u.ID, Type: types.ActorTypeUser, Email: u.Email, SessionID: session.ID}
}

func adminActor(a *types.Admin, session *types.Session) types.Actor {
	return types.Actor{ID: a.ID, Type: types.ActorTypeAdmin, Email: a.Email, SessionID: session.ID}
}

func invalidCredentials() error {
	return types.NewAppError(types.ErrCodeAuthInvalidCreds, "invalid email or password", nil)
}

func subjectError(err error) error {
	if isCode(err, types.ErrCodeNotFoundUser) {
		return types.NewAppError(types.ErrCodeAuthTokenInvalid, "session account no longer exists", nil)
	}
	return err
}

func isCode(err error, code types.ErrorCode) bool {
	var appErr *types.AppError
	return errors.As(err, &appErr) && appErr.Code == code
}
