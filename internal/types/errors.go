package types

import (
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Complete error code constants.
// All handlers MUST use these constants instead of hardcoded strings.
const (
	// Validation (400)
	ErrCodeValidationMissingField  ErrorCode = "validation_missing_required_field"
	ErrCodeValidationInvalidEmail  ErrorCode = "validation_invalid_email"
	ErrCodeValidationInvalidStatus ErrorCode = "validation_invalid_status"
	ErrCodeValidationInvalidTier   ErrorCode = "validation_invalid_plan_type"
	ErrCodeValidationInvalidReason ErrorCode = "validation_invalid_report_reason"
	ErrCodeValidationInvalidRating ErrorCode = "validation_invalid_rating"
	ErrCodeValidationPhotoLimit    ErrorCode = "validation_photo_limit_exceeded"
	ErrCodeValidationSelfAction    ErrorCode = "validation_self_action"
	ErrCodeValidationMessageLength ErrorCode = "validation_message_length"
	ErrCodeValidationInvalidInput  ErrorCode = "validation_invalid_input"
	ErrCodeValidationVerifyToken   ErrorCode = "validation_invalid_verification_token"
	ErrCodeProfileIncomplete       ErrorCode = "profile_incomplete"

	// Auth (401)
	ErrCodeAuthTokenMissing     ErrorCode = "auth_token_missing"
	ErrCodeAuthTokenInvalid     ErrorCode = "auth_token_invalid"
	ErrCodeAuthTokenExpired     ErrorCode = "auth_token_expired"
	ErrCodeAuthSessionExpired   ErrorCode = "auth_session_expired"
	ErrCodeAuthInvalidCreds     ErrorCode = "auth_invalid_credentials"
	ErrCodeAuthUserNotFound     ErrorCode = "auth_user_not_found"
	ErrCodeAuthLocked           ErrorCode = "auth_account_locked"
	ErrCodeAuthEmailNotVerified ErrorCode = "auth_email_not_verified"

	// Permission (403)
	ErrCodePermissionRole    ErrorCode = "permission_role_insufficient"
	ErrCodePermissionOwner   ErrorCode = "permission_not_owner"
	ErrCodePermissionBlocked ErrorCode = "permission_blocked"
	ErrCodePermissionMember  ErrorCode = "permission_not_participant"

	// Limits (403/429)
	ErrCodeLimitListingReached ErrorCode = "limit_listing_reached"
	ErrCodeRateLimit           ErrorCode = "rate_limit_exceeded"

	// Not Found (404)
	ErrCodeNotFoundListing      ErrorCode = "not_found_listing"
	ErrCodeNotFoundSeller       ErrorCode = "not_found_seller"
	ErrCodeNotFoundUser         ErrorCode = "not_found_user"
	ErrCodeNotFoundConversation ErrorCode = "not_found_conversation"
	ErrCodeNotFoundAd           ErrorCode = "not_found_ad"
	ErrCodeNotFoundSession      ErrorCode = "not_found_checkout_session"
	ErrCodeNotFoundFinancing    ErrorCode = "not_found_financing_request"

	// Conflict (409)
	ErrCodeConflictEmail      ErrorCode = "conflict_email_exists"
	ErrCodeConflictConcurrent ErrorCode = "conflict_concurrent_modification"

	// Internal/Upstream (500/502)
	ErrCodeInternalDB            ErrorCode = "internal_database_error"
	ErrCodeInternalUnexpected    ErrorCode = "internal_unexpected_error"
	ErrCodeUpstreamStripe        ErrorCode = "upstream_stripe_unavailable"
	ErrCodeUpstreamEmailProvider ErrorCode = "upstream_email_provider_unavailable"
	ErrCodeUpstreamQueue         ErrorCode = "upstream_queue_unavailable"
	ErrCodeUpstreamUnavailable   ErrorCode = "upstream_unavailable"
	ErrCodeUpstreamRateLimited   ErrorCode = "upstream_rate_limited"

	// Payment-specific
	ErrCodePaymentDeclined   ErrorCode = "payment_declined"
	ErrCodePaymentNotSettled ErrorCode = "payment_not_settled"
	ErrCodeEmailBlocked      ErrorCode = "email_blocked"
)

// ReasonListingLimitReached is the machine-readable rejection reason carried
// in the details of ErrCodeLimitListingReached responses.
const ReasonListingLimitReached = "LISTING_LIMIT_REACHED"

// HTTPStatus maps an ErrorCode to its corresponding HTTP status code.
// Returns 500 for unrecognized error codes as a safe default.
func (c ErrorCode) HTTPStatus() int {
	s := string(c)
	switch {
	case strings.HasPrefix(s, "validation_"), c == ErrCodeProfileIncomplete:
		return http.StatusBadRequest // 400
	case c == ErrCodeAuthLocked:
		return http.StatusTooManyRequests // 429
	case c == ErrCodeAuthEmailNotVerified:
		return http.StatusForbidden // 403
	case strings.HasPrefix(s, "auth_"):
		return http.StatusUnauthorized // 401
	case strings.HasPrefix(s, "permission_"):
		return http.StatusForbidden // 403
	case c == ErrCodeLimitListingReached:
		return http.StatusForbidden // 403
	case c == ErrCodeRateLimit:
		return http.StatusTooManyRequests // 429
	case strings.HasPrefix(s, "not_found_"):
		return http.StatusNotFound // 404
	case strings.HasPrefix(s, "conflict_"):
		return http.StatusConflict // 409
	case c == ErrCodePaymentDeclined, c == ErrCodePaymentNotSettled:
		return http.StatusPaymentRequired // 402
	case c == ErrCodeEmailBlocked:
		return http.StatusForbidden // 403
	case strings.HasPrefix(s, "upstream_"):
		return http.StatusBadGateway // 502
	default:
		return http.StatusInternalServerError // 500
	}
}

// AppError is the standard application error type used throughout the service.
// All domain and handler errors should be expressed as AppError to enable
// consistent error formatting, HTTP status mapping, and error chain support.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the HTTP status code corresponding to this error's code.
func (e *AppError) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// WithDetails returns a copy of the error with the provided details merged in.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	merged := make(map[string]any, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Err:     e.Err,
		Details: merged,
	}
}

// NewAppError creates a new AppError with the given code, message, and optional
// underlying error.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewAppErrorWithDetails creates a new AppError with structured details.
func NewAppErrorWithDetails(code ErrorCode, message string, err error, details map[string]any) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
		Details: details,
	}
}

// NewListingLimitError builds the rejection surfaced when a seller's plan
// cap on available listings has been reached.
func NewListingLimitError(limit int) *AppError {
	plural := "s"
	if limit == 1 {
		plural = ""
	}
	return NewAppErrorWithDetails(
		ErrCodeLimitListingReached,
		fmt.Sprintf("Your plan allows %d active listing%s. Upgrade to add more.", limit, plural),
		nil,
		map[string]any{
			"reason": ReasonListingLimitReached,
			"limit":  limit,
		},
	)
}
