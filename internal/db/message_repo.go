package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"truckmarket/internal/types"
)

// MessageRepository provides data access for conversations, messages,
// blocks and abuse reports.
type MessageRepository struct {
	db DBTX
}

// NewMessageRepository creates a new MessageRepository backed by the given
// database connection (pool or transaction).
func NewMessageRepository(db DBTX) *MessageRepository {
	return &MessageRepository{db: db}
}

const conversationColumns = `c.id, c.participant_1, c.participant_2, c.truck_id, c.last_message_at, c.created_at`

func scanConversation(row pgx.Row) (*types.Conversation, error) {
	var c types.Conversation
	var listingID *string
	if err := row.Scan(&c.ID, &c.Participant1, &c.Participant2, &listingID, &c.LastMessageAt, &c.CreatedAt); err != nil {
		return nil, err
	}
	c.ListingID = deref(listingID)
	return &c, nil
}

// GetConversation retrieves a conversation by id.
func (r *MessageRepository) GetConversation(ctx context.Context, id string) (*types.Conversation, error) {
	row := r.db.QueryRow(ctx, `SELECT `+conversationColumns+` FROM conversations c WHERE c.id = $1`, id)
	c, err := scanConversation(row)
	if err != nil {
		return nil, dbError(err, types.ErrCodeNotFoundConversation, "get conversation")
	}
	return c, nil
}

// FindConversation returns the conversation between two users about
// listingID (empty for none), in either participant order, or nil.
func (r *MessageRepository) FindConversation(ctx context.Context, userA, userB, listingID string) (*types.Conversation, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+conversationColumns+` FROM conversations c
		 WHERE ((c.participant_1 = $1 AND c.participant_2 = $2) OR (c.participant_1 = $2 AND c.participant_2 = $1))
		   AND c.truck_id IS NOT DISTINCT FROM $3
		 ORDER BY c.created_at ASC
		 LIMIT 1`,
		userA,
		userB,
		nilIfEmpty(listingID),
	)
	c, err := scanConversation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to find conversation", err)
	}
	return c, nil
}

// CreateConversation inserts a new conversation.
func (r *MessageRepository) CreateConversation(ctx context.Context, c *types.Conversation) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO conversations (id, participant_1, participant_2, truck_id, last_message_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $5)`,
		c.ID,
		c.Participant1,
		c.Participant2,
		nilIfEmpty(c.ListingID),
		c.CreatedAt,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create conversation", err)
	}
	return nil
}

// AddMessage stores a message and bumps the conversation's activity time.
func (r *MessageRepository) AddMessage(ctx context.Context, m *types.Message) error {
	_, err := r.db.Exec(ctx,
		`WITH ins AS (
			INSERT INTO messages (id, conversation_id, sender_id, content, is_read, created_at)
			VALUES ($1, $2, $3, $4, false, $5)
			RETURNING conversation_id, created_at
		 )
		 UPDATE conversations SET last_message_at = ins.created_at
		 FROM ins WHERE conversations.id = ins.conversation_id`,
		m.ID,
		m.ConversationID,
		m.SenderID,
		m.Content,
		m.CreatedAt,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to store message", err)
	}
	return nil
}

// ListMessages returns a conversation's messages, oldest first.
func (r *MessageRepository) ListMessages(ctx context.Context, conversationID string) ([]types.Message, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, conversation_id, sender_id, content, is_read, created_at
		 FROM messages WHERE conversation_id = $1
		 ORDER BY created_at ASC, id ASC`,
		conversationID,
	)
	if err != nil {
		return nil, dbError(err, "", "list messages")
	}
	defer rows.Close()

	out := []types.Message{}
	for rows.Next() {
		var m types.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Content, &m.IsRead, &m.CreatedAt); err != nil {
			return nil, dbError(err, "", "scan message")
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError(err, "", "iterate messages")
	}
	return out, nil
}

// MarkRead marks the messages readerID received in a conversation as read
// and returns how many changed.
func (r *MessageRepository) MarkRead(ctx context.Context, conversationID, readerID string) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE messages SET is_read = true
		 WHERE conversation_id = $1 AND sender_id <> $2 AND is_read = false`,
		conversationID,
		readerID,
	)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to mark messages read", err)
	}
	return tag.RowsAffected(), nil
}

// blockedEither is true when a block exists between $1 and the given column
// in either direction.
const blockedEither = `EXISTS (SELECT 1 FROM user_blocks b
	WHERE (b.blocker_id = $1 AND b.blocked_id = %[1]s) OR (b.blocker_id = %[1]s AND b.blocked_id = $1))`

// blockedBetween instantiates blockedEither for col.
func blockedBetween(col string) string {
	return fmt.Sprintf(blockedEither, col)
}

// ListConversations returns the inbox of userID, newest activity first.
// Conversations with a blocked counterpart (either direction) are omitted.
func (r *MessageRepository) ListConversations(ctx context.Context, userID string) ([]types.ConversationSummary, error) {
	rows, err := r.db.Query(ctx,
		`SELECT c.id, c.truck_id, c.last_message_at, c.created_at,
			other.id, COALESCE(NULLIF(s.name, ''), other.full_name, ''), s.profile_picture_url,
			t.year, t.make, t.model, t.photos,
			lm.content, lm.sender_id, lm.created_at,
			(SELECT COUNT(*) FROM messages m
			 WHERE m.conversation_id = c.id AND m.sender_id <> $1 AND m.is_read = false)
		 FROM conversations c
		 JOIN users other ON other.id = CASE WHEN c.participant_1 = $1 THEN c.participant_2 ELSE c.participant_1 END
		 LEFT JOIN sellers s ON s.user_id = other.id
		 LEFT JOIN trucks t ON t.id = c.truck_id
		 LEFT JOIN LATERAL (
			SELECT content, sender_id, created_at FROM messages
			WHERE conversation_id = c.id ORDER BY created_at DESC LIMIT 1
		 ) lm ON true
		 WHERE (c.participant_1 = $1 OR c.participant_2 = $1)
		   AND NOT `+blockedBetween("other.id")+`
		 ORDER BY c.last_message_at DESC`,
		userID,
	)
	if err != nil {
		return nil, dbError(err, "", "list conversations")
	}
	defer rows.Close()

	out := []types.ConversationSummary{}
	for rows.Next() {
		var (
			cs        types.ConversationSummary
			listingID *string
			picture   *string
			year      *int
			mk, model *string
			photos    []string
			lmContent *string
			lmSender  *string
			lmAt      *time.Time
		)
		err := rows.Scan(
			&cs.ID, &listingID, &cs.LastMessageAt, &cs.CreatedAt,
			&cs.OtherUser.ID, &cs.OtherUser.Name, &picture,
			&year, &mk, &model, &photos,
			&lmContent, &lmSender, &lmAt,
			&cs.UnreadCount,
		)
		if err != nil {
			return nil, dbError(err, "", "scan conversation")
		}
		cs.ListingID = deref(listingID)
		cs.OtherUser.ProfilePicture = deref(picture)
		if year != nil {
			l := types.Listing{Year: *year, Make: deref(mk), Model: deref(model)}
			cs.Listing = &types.ListingSummary{ID: cs.ListingID, Title: l.Title()}
			if len(photos) > 0 {
				cs.Listing.Photo = photos[0]
			}
		}
		if lmContent != nil && lmAt != nil {
			cs.LastMessage = &types.LastMessageInfo{
				Content:   *lmContent,
				SenderID:  deref(lmSender),
				CreatedAt: *lmAt,
				IsFromMe:  deref(lmSender) == userID,
			}
		}
		out = append(out, cs)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError(err, "", "iterate conversations")
	}
	return out, nil
}

// UnreadCount counts unread messages sent to userID, ignoring senders that
// are blocked in either direction.
func (r *MessageRepository) UnreadCount(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM messages m
		 JOIN conversations c ON c.id = m.conversation_id
		 WHERE (c.participant_1 = $1 OR c.participant_2 = $1)
		   AND m.sender_id <> $1 AND m.is_read = false
		   AND NOT `+blockedBetween("m.sender_id"),
		userID,
	).Scan(&n)
	if err != nil {
		return 0, dbError(err, "", "count unread messages")
	}
	return n, nil
}

// BlockState reports whether userA blocked userB and whether userB blocked
// userA.
func (r *MessageRepository) BlockState(ctx context.Context, userA, userB string) (aBlockedB, bBlockedA bool, err error) {
	err = r.db.QueryRow(ctx,
		`SELECT
			EXISTS (SELECT 1 FROM user_blocks WHERE blocker_id = $1 AND blocked_id = $2),
			EXISTS (SELECT 1 FROM user_blocks WHERE blocker_id = $2 AND blocked_id = $1)`,
		userA,
		userB,
	).Scan(&aBlockedB, &bBlockedA)
	if err != nil {
		return false, false, dbError(err, "", "read block state")
	}
	return aBlockedB, bBlockedA, nil
}

// Block records that blocker no longer wants contact with blocked. Blocking
// twice is a no-op.
func (r *MessageRepository) Block(ctx context.Context, blockerID, blockedID string, now time.Time) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO user_blocks (blocker_id, blocked_id, created_at) VALUES ($1, $2, $3)
		 ON CONFLICT (blocker_id, blocked_id) DO NOTHING`,
		blockerID,
		blockedID,
		now,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to block user", err)
	}
	return nil
}

// Unblock removes a block. Removing a missing block is a no-op.
func (r *MessageRepository) Unblock(ctx context.Context, blockerID, blockedID string) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM user_blocks WHERE blocker_id = $1 AND blocked_id = $2`,
		blockerID,
		blockedID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to unblock user", err)
	}
	return nil
}

// ListBlocks returns the users blockerID has blocked, newest first.
func (r *MessageRepository) ListBlocks(ctx context.Context, blockerID string) ([]types.Block, error) {
	rows, err := r.db.Query(ctx,
		`SELECT blocker_id, blocked_id, created_at FROM user_blocks
		 WHERE blocker_id = $1 ORDER BY created_at DESC`,
		blockerID,
	)
	if err != nil {
		return nil, dbError(err, "", "list blocks")
	}
	defer rows.Close()

	out := []types.Block{}
	for rows.Next() {
		var b types.Block
		if err := rows.Scan(&b.BlockerID, &b.BlockedID, &b.CreatedAt); err != nil {
			return nil, dbError(err, "", "scan block")
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError(err, "", "iterate blocks")
	}
	return out, nil
}

// CreateReport stores an abuse report.
func (r *MessageRepository) CreateReport(ctx context.Context, rep *types.Report) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO user_reports (id, reporter_id, reported_user_id, conversation_id, reason, details, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rep.ID,
		rep.ReporterID,
		rep.ReportedUserID,
		nilIfEmpty(rep.ConversationID),
		string(rep.Reason),
		nilIfEmpty(rep.Details),
		rep.CreatedAt,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to store report", err)
	}
	return nil
}

// UnreadDigest lists the users who chose a daily digest and received unread
// messages since the given time from senders they have not blocked.
func (r *MessageRepository) UnreadDigest(ctx context.Context, since time.Time) ([]types.UnreadDigestRow, error) {
	rows, err := r.db.Query(ctx,
		`SELECT u.id, u.email, COALESCE(u.full_name, ''), COUNT(m.id)
		 FROM users u
		 JOIN conversations c ON c.participant_1 = u.id OR c.participant_2 = u.id
		 JOIN messages m ON m.conversation_id = c.id
		 WHERE u.message_email_pref = 'daily'
		   AND m.sender_id <> u.id AND m.is_read = false AND m.created_at >= $1
		   AND NOT EXISTS (SELECT 1 FROM user_blocks b
			WHERE (b.blocker_id = u.id AND b.blocked_id = m.sender_id)
			   OR (b.blocker_id = m.sender_id AND b.blocked_id = u.id))
		 GROUP BY u.id, u.email, u.full_name
		 ORDER BY u.id`,
		since,
	)
	if err != nil {
		return nil, dbError(err, "", "list unread digest")
	}
	defer rows.Close()

	var out []types.UnreadDigestRow
	for rows.Next() {
		var d types.UnreadDigestRow
		if err := rows.Scan(&d.UserID, &d.Email, &d.Name, &d.UnreadCount); err != nil {
			return nil, dbError(err, "", "scan unread digest")
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError(err, "", "iterate unread digest")
	}
	return out, nil
}
