package types

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestAppErrorErrorFormat(t *testing.T) {
	appErr := &AppError{
		Code:    ErrCodeNotFoundListing,
		Message: "listing not found",
	}
	if got, want := appErr.Error(), "not_found_listing: listing not found"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	underlying := errors.New("connection reset")
	appErr := NewAppError(ErrCodeInternalDB, "failed to query listings", underlying)

	if !errors.Is(appErr, underlying) {
		t.Error("errors.Is should find the wrapped error")
	}

	wrapped := fmt.Errorf("handler: %w", appErr)
	var target *AppError
	if !errors.As(wrapped, &target) {
		t.Fatal("errors.As should extract *AppError")
	}
	if target.Code != ErrCodeInternalDB {
		t.Errorf("Code = %s", target.Code)
	}
}

func TestErrorCodeHTTPStatus(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{ErrCodeValidationMissingField, http.StatusBadRequest},
		{ErrCodeValidationPhotoLimit, http.StatusBadRequest},
		{ErrCodeProfileIncomplete, http.StatusBadRequest},
		{ErrCodeAuthTokenMissing, http.StatusUnauthorized},
		{ErrCodeAuthInvalidCreds, http.StatusUnauthorized},
		{ErrCodeAuthLocked, http.StatusTooManyRequests},
		{ErrCodePermissionOwner, http.StatusForbidden},
		{ErrCodePermissionBlocked, http.StatusForbidden},
		{ErrCodeLimitListingReached, http.StatusForbidden},
		{ErrCodeRateLimit, http.StatusTooManyRequests},
		{ErrCodeNotFoundSession, http.StatusNotFound},
		{ErrCodeNotFoundFinancing, http.StatusNotFound},
		{ErrCodeConflictEmail, http.StatusConflict},
		{ErrCodePaymentDeclined, http.StatusPaymentRequired},
		{ErrCodePaymentNotSettled, http.StatusPaymentRequired},
		{ErrCodeEmailBlocked, http.StatusForbidden},
		{ErrCodeUpstreamStripe, http.StatusBadGateway},
		{ErrCodeInternalDB, http.StatusInternalServerError},
		{ErrorCode("something_new"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			if got := tt.code.HTTPStatus(); got != tt.want {
				t.Errorf("HTTPStatus() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestAppErrorWithDetails(t *testing.T) {
	base := NewAppErrorWithDetails(ErrCodeValidationInvalidInput, "bad", nil, map[string]any{"field": "price"})
	merged := base.WithDetails(map[string]any{"min": 0})

	if merged.Details["field"] != "price" || merged.Details["min"] != 0 {
		t.Errorf("Details = %v", merged.Details)
	}
	if _, ok := base.Details["min"]; ok {
		t.Error("WithDetails mutated the receiver")
	}
}

func TestNewListingLimitError(t *testing.T) {
	tests := []struct {
		limit   int
		message string
	}{
		{1, "Your plan allows 1 active listing. Upgrade to add more."},
		{3, "Your plan allows 3 active listings. Upgrade to add more."},
	}
	for _, tt := range tests {
		err := NewListingLimitError(tt.limit)
		if err.Code != ErrCodeLimitListingReached {
			t.Errorf("Code = %s", err.Code)
		}
		if err.Message != tt.message {
			t.Errorf("Message = %q, want %q", err.Message, tt.message)
		}
		if err.Details["reason"] != ReasonListingLimitReached || err.Details["limit"] != tt.limit {
			t.Errorf("Details = %v", err.Details)
		}
	}
}
