package core

import (
	"errors"
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"truckmarket/internal/types"
)

// Validator wraps go-playground/validator with the marketplace enum tags:
// tier, listing_status, lead_status, seller_type and report_reason.
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewValidator creates a Validator. Field names in errors are taken from
// json tags.
func NewValidator(logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})

	mustRegister(v, "tier", func(fl validator.FieldLevel) bool {
		return types.Tier(fl.Field().String()).Valid()
	})
	mustRegister(v, "listing_status", func(fl validator.FieldLevel) bool {
		return types.ListingStatus(fl.Field().String()).Valid()
	})
	mustRegister(v, "lead_status", func(fl validator.FieldLevel) bool {
		return types.ValidLeadStatus(fl.Field().String())
	})
	mustRegister(v, "seller_type", func(fl validator.FieldLevel) bool {
		return types.SellerType(fl.Field().String()).Valid()
	})
	mustRegister(v, "report_reason", func(fl validator.FieldLevel) bool {
		return types.ReportReason(fl.Field().String()).Valid()
	})

	return &Validator{validate: v, logger: logger}
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic("register validation " + tag + ": " + err.Error())
	}
}

// enumCodes maps custom tags to their dedicated error codes.
var enumCodes = map[string]types.ErrorCode{
	"tier":           types.ErrCodeValidationInvalidTier,
	"listing_status": types.ErrCodeValidationInvalidStatus,
	"lead_status":    types.ErrCodeValidationInvalidStatus,
	"report_reason":  types.ErrCodeValidationInvalidReason,
	"email":          types.ErrCodeValidationInvalidEmail,
}

// Struct validates s and reports the first failing field as an AppError
// with details {field, rule}.
func (v *Validator) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		v.logger.Error("validator misuse", "error", err)
		return types.NewAppError(types.ErrCodeInternalUnexpected, "request validation failed", err)
	}

	fe := verrs[0]
	details := map[string]any{"field": fe.Field(), "rule": fe.Tag()}
	if fe.Param() != "" {
		details["param"] = fe.Param()
	}

	code := types.ErrCodeValidationInvalidInput
	msg := fe.Field() + " is invalid"
	switch {
	case fe.Tag() == "required":
		code = types.ErrCodeValidationMissingField
		msg = fe.Field() + " is required"
	case enumCodes[fe.Tag()] != "":
		code = enumCodes[fe.Tag()]
	case fe.Field() == "rating":
		code = types.ErrCodeValidationInvalidRating
		msg = "rating must be between 1 and 5"
	}
	return types.NewAppErrorWithDetails(code, msg, err, details)
}
