package scheduler

import (
	"context"
	"log/slog"
	"time"

	"truckmarket/internal/types"
)

// DigestWindow is how far back the daily digest looks for unread messages.
const DigestWindow = 24 * time.Hour

// DigestDB lists digest recipients.
type DigestDB interface {
	UnreadDigest(ctx context.Context, since time.Time) ([]types.UnreadDigestRow, error)
}

// Notifier queues one email.
type Notifier interface {
	Notify(ctx context.Context, kind types.EmailKind, to string, data map[string]any) error
}

// DigestService sends one message_digest email to every user who opted into
// daily delivery and has unread messages from the last DigestWindow.
type DigestService struct {
	db       DigestDB
	notifier Notifier
	baseURL  string
	logger   *slog.Logger
}

func NewDigestService(db DigestDB, notifier Notifier, publicBaseURL string, logger *slog.Logger) *DigestService {
	if logger == nil {
		logger = slog.Default()
	}
	return &DigestService{db: db, notifier: notifier, baseURL: publicBaseURL, logger: logger}
}

// SendDigests returns the number of digests queued. A failed send is logged
// and skipped so one bad address does not hold back the rest.
func (s *DigestService) SendDigests(ctx context.Context, now time.Time) (int, error) {
	rows, err := s.db.UnreadDigest(ctx, now.Add(-DigestWindow))
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, row := range rows {
		if row.UnreadCount <= 0 || row.Email == "" {
			continue
		}
		err := s.notifier.Notify(ctx, types.EmailMessageDigest, row.Email, map[string]any{
			"name":         row.Name,
			"unread_count": row.UnreadCount,
			"inbox_url":    s.baseURL + "/messages",
		})
		if err != nil {
			s.logger.WarnContext(ctx, "failed to queue message digest",
				"user_id", row.UserID,
				"error", err,
			)
			continue
		}
		sent++
	}

	s.logger.InfoContext(ctx, "message digests queued",
		"recipients", len(rows),
		"sent", sent,
	)
	return sent, nil
}
