package external

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"truckmarket/internal/types"
)

const stripeAPIBase = "https://api.stripe.com"

// StripeClientConfig holds the configuration for creating a StripeClient.
type StripeClientConfig struct {
	SecretKey string
	BaseURL   string // defaults to stripeAPIBase
	Logger    *slog.Logger
}

// StripeClient implements PaymentGateway against the Stripe REST API. The
// requests are form-encoded by hand and sent through BaseClient; responses
// are decoded into stripe-go's resource types.
type StripeClient struct {
	base      *BaseClient
	secretKey string
	baseURL   string
	logger    *slog.Logger
}

// NewStripeClient creates a StripeClient. httpClient should carry a 20s
// timeout.
func NewStripeClient(httpClient *http.Client, cfg StripeClientConfig) *StripeClient {
	return NewStripeClientWithBase(NewBaseClient(httpClient, "stripe", DefaultRetryPolicy()), cfg)
}

// NewStripeClientWithBase creates a StripeClient on a pre-built BaseClient.
func NewStripeClientWithBase(base *BaseClient, cfg StripeClientConfig) *StripeClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = stripeAPIBase
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &StripeClient{
		base:      base,
		secretKey: cfg.SecretKey,
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		logger:    logger,
	}
}

// CreateCheckoutSession opens a hosted checkout page. Subscriptions are
// billed against a configured price; one-off payments carry inline
// price_data.
func (s *StripeClient) CreateCheckoutSession(ctx context.Context, in types.CheckoutRequest) (*types.CheckoutLink, error) {
	params := url.Values{}
	params.Set("mode", string(in.Mode))
	params.Set("payment_method_types[0]", "card")
	params.Set("success_url", in.SuccessURL)
	params.Set("cancel_url", in.CancelURL)
	if in.AllowPromotionCodes {
		params.Set("allow_promotion_codes", "true")
	}

	params.Set("line_items[0][quantity]", "1")
	if in.PriceID != "" {
		params.Set("line_items[0][price]", in.PriceID)
	} else {
		currency := in.Currency
		if currency == "" {
			currency = "usd"
		}
		params.Set("line_items[0][price_data][currency]", currency)
		params.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(in.UnitAmountCents, 10))
		params.Set("line_items[0][price_data][product_data][name]", in.ProductName)
		if in.ProductDescription != "" {
			params.Set("line_items[0][price_data][product_data][description]", in.ProductDescription)
		}
		for i, img := range in.ProductImages {
			params.Set(fmt.Sprintf("line_items[0][price_data][product_data][images][%d]", i), img)
		}
	}

	for k, v := range in.Metadata {
		params.Set("metadata["+k+"]", v)
	}
	for k, v := range in.SubscriptionMetadata {
		params.Set("subscription_data[metadata]["+k+"]", v)
	}

	resp, err := s.doPost(ctx, "/v1/checkout/sessions", params)
	if err != nil {
		return nil, s.wrapStripeError("CreateCheckoutSession", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, s.handleErrorResponse(resp, "CreateCheckoutSession")
	}

	var session stripe.CheckoutSession
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamStripe, "failed to decode Stripe checkout session", err)
	}

	s.logger.InfoContext(ctx, "stripe checkout session created",
		"session_id", session.ID,
		"mode", in.Mode,
	)
	return &types.CheckoutLink{SessionID: session.ID, URL: session.URL}, nil
}

// GetCheckoutSession retrieves a session. An unknown id is reported as
// not_found_checkout_session.
func (s *StripeClient) GetCheckoutSession(ctx context.Context, sessionID string) (*types.CheckoutSession, error) {
	if sessionID == "" || strings.ContainsAny(sessionID, "/?#") {
		return nil, types.NewAppError(types.ErrCodeValidationInvalidInput, "invalid checkout session id", nil)
	}

	resp, err := s.doGet(ctx, "/v1/checkout/sessions/"+url.PathEscape(sessionID), nil)
	if err != nil {
		return nil, s.wrapStripeError("GetCheckoutSession", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, s.handleErrorResponse(resp, "GetCheckoutSession")
	}

	var session stripe.CheckoutSession
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamStripe, "failed to decode Stripe checkout session", err)
	}
	return MapCheckoutSession(&session), nil
}

// MapCheckoutSession converts a stripe-go session into the domain shape.
// stripe-go decodes an unexpanded subscription into a Subscription with
// only its ID set, so both forms land in SubscriptionID.
func MapCheckoutSession(cs *stripe.CheckoutSession) *types.CheckoutSession {
	out := &types.CheckoutSession{
		ID:            cs.ID,
		Mode:          types.CheckoutMode(cs.Mode),
		PaymentStatus: string(cs.PaymentStatus),
		AmountTotal:   cs.AmountTotal,
		Metadata:      cs.Metadata,
	}
	if out.Metadata == nil {
		out.Metadata = map[string]string{}
	}
	if cs.Subscription != nil {
		out.SubscriptionID = cs.Subscription.ID
	}
	if cs.CustomerDetails != nil {
		out.CustomerEmail = cs.CustomerDetails.Email
	}
	return out
}

// stripeInvoice covers both the legacy top-level subscription field and
// the newer parent.subscription_details location.
type stripeInvoice struct {
	ID            string `json:"id"`
	BillingReason string `json:"billing_reason"`
	AmountPaid    int64  `json:"amount_paid"`
	Subscription  any    `json:"subscription"`
	Parent        *struct {
		SubscriptionDetails *struct {
			Subscription any `json:"subscription"`
		} `json:"subscription_details"`
	} `json:"parent"`
}

// DecodeInvoicePayment extracts the renewal fields from an invoice object
// embedded in a webhook event.
func DecodeInvoicePayment(raw json.RawMessage) (*types.InvoicePayment, error) {
	var inv stripeInvoice
	if err := json.Unmarshal(raw, &inv); err != nil {
		return nil, fmt.Errorf("decode invoice: %w", err)
	}
	out := &types.InvoicePayment{
		ID:             inv.ID,
		BillingReason:  inv.BillingReason,
		AmountPaid:     inv.AmountPaid,
		SubscriptionID: expandableID(inv.Subscription),
	}
	if out.SubscriptionID == "" && inv.Parent != nil && inv.Parent.SubscriptionDetails != nil {
		out.SubscriptionID = expandableID(inv.Parent.SubscriptionDetails.Subscription)
	}
	return out, nil
}

// expandableID returns the id of a Stripe field that is either a bare id
// string or an expanded object.
func expandableID(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case map[string]any:
		if id, ok := t["id"].(string); ok {
			return id
		}
	}
	return ""
}

func (s *StripeClient) doGet(ctx context.Context, path string, params url.Values) (*http.Response, error) {
	reqURL := s.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	s.setAuthHeaders(req)
	return s.base.Do(req)
}

func (s *StripeClient) doPost(ctx context.Context, path string, params url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, strings.NewReader(params.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	s.setAuthHeaders(req)
	return s.base.Do(req)
}

// setAuthHeaders pins the API version to the one stripe-go's types model.
func (s *StripeClient) setAuthHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+s.secretKey)
	req.Header.Set("Stripe-Version", stripe.APIVersion)
}

type stripeErrorResponse struct {
	Error stripeErrorBody `json:"error"`
}

type stripeErrorBody struct {
	Type        string `json:"type"`
	Code        string `json:"code"`
	DeclineCode string `json:"decline_code"`
	Message     string `json:"message"`
}

func (s *StripeClient) handleErrorResponse(resp *http.Response, operation string) error {
	body, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return types.NewAppError(types.ErrCodeUpstreamStripe,
			fmt.Sprintf("%s: Stripe returned status %d and the body was unreadable", operation, resp.StatusCode), readErr)
	}

	var stripeErr stripeErrorResponse
	if jsonErr := json.Unmarshal(body, &stripeErr); jsonErr != nil {
		return types.NewAppError(types.ErrCodeUpstreamStripe,
			fmt.Sprintf("%s: Stripe returned status %d with a non-JSON body", operation, resp.StatusCode), jsonErr)
	}
	return mapStripeError(operation, resp.StatusCode, &stripeErr.Error)
}

func mapStripeError(operation string, statusCode int, e *stripeErrorBody) error {
	if e.Code == "card_declined" || e.DeclineCode != "" {
		return types.NewAppErrorWithDetails(
			types.ErrCodePaymentDeclined,
			fmt.Sprintf("%s: payment declined: %s", operation, e.Message),
			nil,
			map[string]any{"decline_code": e.DeclineCode, "stripe_code": e.Code},
		)
	}

	switch {
	case statusCode == http.StatusNotFound || e.Code == "resource_missing":
		return types.NewAppError(types.ErrCodeNotFoundSession,
			fmt.Sprintf("%s: checkout session not found", operation), nil)
	case statusCode == http.StatusTooManyRequests:
		return types.NewAppError(types.ErrCodeUpstreamRateLimited,
			fmt.Sprintf("%s: Stripe rate limit exceeded", operation), nil)
	case statusCode >= 500:
		return types.NewAppError(types.ErrCodeUpstreamUnavailable,
			fmt.Sprintf("%s: Stripe server error: %s", operation, e.Message), nil)
	default:
		return types.NewAppError(types.ErrCodeUpstreamStripe,
			fmt.Sprintf("%s: Stripe error (%d): %s", operation, statusCode, e.Message), nil)
	}
}

func (s *StripeClient) wrapStripeError(operation string, err error) error {
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return types.NewAppError(types.ErrCodeUpstreamStripe,
		fmt.Sprintf("%s: Stripe request failed: %v", operation, err), err)
}

// StripeVerifier implements WebhookVerifier with stripe-go's HMAC and
// timestamp-tolerance check.
type StripeVerifier struct {
	Tolerance time.Duration
}

// Verify validates payload against the Stripe-Signature header.
func (v *StripeVerifier) Verify(payload []byte, header string, secret string) error {
	if v.Tolerance > 0 {
		return webhook.ValidatePayloadWithTolerance(payload, header, secret, v.Tolerance)
	}
	return webhook.ValidatePayload(payload, header, secret)
}

var (
	_ PaymentGateway  = (*StripeClient)(nil)
	_ WebhookVerifier = (*StripeVerifier)(nil)
)
