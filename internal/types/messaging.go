package types

import "time"

// MaxMessageLength bounds a single message body after trimming.
const MaxMessageLength = 5000

// MessagePreviewLength is the number of characters of a message included in
// notification emails.
const MessagePreviewLength = 100

// Conversation is a two-party thread, optionally about one listing.
type Conversation struct {
	ID            string    `json:"id"`
	Participant1  string    `json:"participant_1"`
	Participant2  string    `json:"participant_2"`
	ListingID     string    `json:"truck_id,omitempty"`
	LastMessageAt time.Time `json:"last_message_at"`
	CreatedAt     time.Time `json:"created_at"`
}

// HasParticipant reports whether userID is one of the two parties.
func (c *Conversation) HasParticipant(userID string) bool {
	return c.Participant1 == userID || c.Participant2 == userID
}

// OtherParticipant returns the counterpart of userID.
func (c *Conversation) OtherParticipant(userID string) string {
	if c.Participant1 == userID {
		return c.Participant2
	}
	return c.Participant1
}

// Message is a single entry in a conversation.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	Content        string    `json:"content"`
	IsRead         bool      `json:"is_read"`
	CreatedAt      time.Time `json:"created_at"`
}

// Block records that BlockerID no longer wants contact with BlockedID.
type Block struct {
	BlockerID string    `json:"blocker_id"`
	BlockedID string    `json:"blocked_id"`
	CreatedAt time.Time `json:"created_at"`
}

// ReportReason classifies an abuse report.
type ReportReason string

const (
	ReportHarassment    ReportReason = "harassment"
	ReportSpam          ReportReason = "spam"
	ReportScam          ReportReason = "scam"
	ReportInappropriate ReportReason = "inappropriate"
	ReportOther         ReportReason = "other"
)

// Valid reports whether r is an accepted report reason.
func (r ReportReason) Valid() bool {
	switch r {
	case ReportHarassment, ReportSpam, ReportScam, ReportInappropriate, ReportOther:
		return true
	}
	return false
}

// Report is a user-submitted abuse report.
type Report struct {
	ID             string       `json:"id"`
	ReporterID     string       `json:"reporter_id"`
	ReportedUserID string       `json:"reported_user_id"`
	ConversationID string       `json:"conversation_id,omitempty"`
	Reason         ReportReason `json:"reason"`
	Details        string       `json:"details,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
}

// ConversationSummary is the inbox row returned to a participant.
type ConversationSummary struct {
	ID            string           `json:"id"`
	ListingID     string           `json:"truck_id,omitempty"`
	Listing       *ListingSummary  `json:"truck,omitempty"`
	OtherUser     Counterpart      `json:"other_user"`
	LastMessage   *LastMessageInfo `json:"last_message,omitempty"`
	UnreadCount   int              `json:"unread_count"`
	LastMessageAt time.Time        `json:"last_message_at"`
	CreatedAt     time.Time        `json:"created_at"`
}

// ListingSummary is the compact listing reference shown in the inbox.
type ListingSummary struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Photo string `json:"photo,omitempty"`
}

// Counterpart identifies the other party of a conversation.
type Counterpart struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	ProfilePicture string `json:"profile_picture,omitempty"`
}

// LastMessageInfo is the newest message of a conversation.
type LastMessageInfo struct {
	Content   string    `json:"content"`
	SenderID  string    `json:"sender_id"`
	CreatedAt time.Time `json:"created_at"`
	IsFromMe  bool      `json:"is_from_me"`
}

// UnreadDigestRow is one recipient's unread backlog for the daily digest.
type UnreadDigestRow struct {
	UserID      string
	Email       string
	Name        string
	UnreadCount int
}
