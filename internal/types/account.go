package types

import "time"

// EmailPref controls how a user is told about new messages.
type EmailPref string

const (
	EmailPrefEach  EmailPref = "each"
	EmailPrefDaily EmailPref = "daily"
	EmailPrefNever EmailPref = "never"
)

// User is a marketplace account (buyer and/or seller).
type User struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	FullName         string     `json:"full_name,omitempty"`
	PasswordHash     string     `json:"-"`
	MessageEmailPref EmailPref  `json:"message_email_pref"`
	EmailVerifiedAt  *time.Time `json:"email_verified_at,omitempty"`
	LastLoginAt      *time.Time `json:"last_login_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// IsEmailVerified reports whether the user confirmed their address.
func (u *User) IsEmailVerified() bool {
	return u != nil && u.EmailVerifiedAt != nil
}

// VerificationToken is a single-use email confirmation link.
type VerificationToken struct {
	Token     string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Admin is a back-office operator account.
type Admin struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name,omitempty"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Session is an authenticated login. The ID is the bearer token.
type Session struct {
	ID        string    `json:"id"`
	SubjectID string    `json:"subject_id"`
	ActorType ActorType `json:"actor_type"`
	CSRFToken string    `json:"-"`
	IPAddress string    `json:"ip_address"`
	UserAgent string    `json:"user_agent"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// SecurityEvent is a login or signup attempt used for abuse tracking.
type SecurityEvent struct {
	ID            int64
	EventType     string
	Identifier    string
	IPAddress     string
	AttemptedAt   time.Time
	Success       bool
	FailureReason string
}
