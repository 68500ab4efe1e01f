// Package email turns marketplace events into transactional emails. Jobs are
// resolved to SendGrid dynamic templates and handed to an EmailProvider,
// either inline or through the email queue and its worker.
package email

import (
	"errors"

	"truckmarket/internal/types"
)

// ErrRecipientBlocked means the provider suppressed the recipient. It is
// terminal; retrying will not help.
var ErrRecipientBlocked = errors.New("recipient blocked by provider")

// ErrUnknownTemplate means no template is configured for an email kind.
var ErrUnknownTemplate = errors.New("no template configured for email kind")

// IsBlocklistError reports whether err means the recipient is suppressed.
func IsBlocklistError(err error) bool {
	if errors.Is(err, ErrRecipientBlocked) {
		return true
	}
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		return appErr.Code == types.ErrCodeEmailBlocked
	}
	return false
}
