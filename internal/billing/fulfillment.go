package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"truckmarket/internal/types"
	"truckmarket/internal/visibility"
)

// Fulfillment reports what a paid order changed.
type Fulfillment struct {
	Kind             types.CheckoutKind `json:"kind"`
	AlreadyFulfilled bool               `json:"already_fulfilled"`
	ListingID        string             `json:"truck_id,omitempty"`
	SellerID         string             `json:"seller_id,omitempty"`
	AdID             string             `json:"ad_id,omitempty"`
	PlanType         types.Tier         `json:"plan_type,omitempty"`
	ExpiresAt        *time.Time         `json:"expires_at,omitempty"`
}

const emailDateLayout = "January 2, 2006"

// Verify settles a checkout the buyer was redirected back from. The session
// must be paid. Verifying the same session twice applies it once.
func (s *Service) Verify(ctx context.Context, kind types.CheckoutKind, sessionID string) (*Fulfillment, error) {
	if !kind.Valid() {
		return nil, types.NewAppError(types.ErrCodeValidationInvalidInput,
			fmt.Sprintf("unknown checkout kind %q", kind), nil)
	}
	session, err := s.gateway.GetCheckoutSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.Paid() {
		return nil, types.NewAppError(types.ErrCodePaymentNotSettled, "payment has not been completed", nil)
	}

	switch kind {
	case types.CheckoutBoost:
		return s.fulfillBoost(ctx, session)
	case types.CheckoutSellerPlan:
		return s.fulfillSellerPlan(ctx, session)
	default:
		return s.fulfillAd(ctx, session)
	}
}

// HandleCheckoutCompleted fulfills a session reported by the processor's
// webhook. Subscription sessions are seller plans; payment sessions carrying
// a truckId are boosts. Other sessions are left to the redirect flow and
// yield nil.
func (s *Service) HandleCheckoutCompleted(ctx context.Context, session *types.CheckoutSession) (*Fulfillment, error) {
	if !session.Paid() {
		s.logger.InfoContext(ctx, "ignoring unpaid checkout session", "session_id", session.ID)
		return nil, nil
	}
	switch {
	case session.Mode == types.CheckoutModeSubscription:
		return s.fulfillSellerPlan(ctx, session)
	case session.Metadata["truckId"] != "":
		return s.fulfillBoost(ctx, session)
	}
	return nil, nil
}

func (s *Service) fulfillBoost(ctx context.Context, session *types.CheckoutSession) (*Fulfillment, error) {
	listingID := session.Metadata["truckId"]
	if listingID == "" {
		return nil, types.NewAppError(types.ErrCodeValidationInvalidInput, "checkout session is not a listing boost", nil)
	}
	listing, err := s.listings.GetByID(ctx, listingID)
	if err != nil {
		return nil, err
	}

	until := s.clock.Now().Add(BoostDuration)
	payment := &types.Payment{
		ID:          "pay_" + uuid.New().String(),
		PaymentType: types.PaymentBoost,
		Amount:      float64(BoostPriceCents) / 100,
		StripeRef:   session.ID,
		SellerID:    listing.SellerID,
		ListingID:   listingID,
		Metadata:    map[string]any{"featured_until": until.Format(time.RFC3339)},
	}
	applied, err := s.store.ApplyBoost(ctx, payment, listingID, until)
	if err != nil {
		return nil, err
	}
	result := &Fulfillment{Kind: types.CheckoutBoost, ListingID: listingID, SellerID: listing.SellerID, ExpiresAt: &until}
	if !applied {
		result.AlreadyFulfilled = true
		return result, nil
	}

	s.logger.InfoContext(ctx, "listing boosted", "listing_id", listingID, "featured_until", until)
	s.recordPayment(ctx, payment)

	if seller, err := s.sellers.GetByID(ctx, listing.SellerID); err == nil {
		s.notify(ctx, types.EmailTruckBoosted, seller.Email, map[string]any{
			"sellerName": seller.Name,
			"truckName":  listing.Title(),
			"expiresAt":  until.Format(emailDateLayout),
		})
	}
	return result, nil
}

func (s *Service) fulfillSellerPlan(ctx context.Context, session *types.CheckoutSession) (*Fulfillment, error) {
	sellerID := session.Metadata["sellerId"]
	if sellerID == "" {
		return nil, types.NewAppError(types.ErrCodeValidationInvalidInput, "checkout session is not a seller plan", nil)
	}
	tier := PurchasableTier(types.Tier(session.Metadata["planType"]))
	catalog := s.plans.GetPlan(tier)

	now := s.clock.Now()
	expires := now.Add(PlanPeriod)
	amount := catalog.MonthlyPrice
	if session.AmountTotal > 0 {
		amount = float64(session.AmountTotal) / 100
	}

	plan := &types.SellerPlan{
		SellerID:             sellerID,
		PlanType:             tier,
		PlanExpires:          &expires,
		StripeSubscriptionID: session.SubscriptionID,
		UpdatedAt:            now,
	}
	payment := &types.Payment{
		ID:          "pay_" + uuid.New().String(),
		PaymentType: types.PaymentSellerPlan,
		Amount:      amount,
		StripeRef:   session.ID,
		SellerID:    sellerID,
		Metadata: map[string]any{
			"plan_type":       string(tier),
			"plan_expires":    expires.Format(time.RFC3339),
			"subscription_id": session.SubscriptionID,
		},
	}
	applied, err := s.store.ApplySellerPlan(ctx, payment, plan)
	if err != nil {
		return nil, err
	}
	result := &Fulfillment{Kind: types.CheckoutSellerPlan, SellerID: sellerID, PlanType: tier, ExpiresAt: &expires}
	if !applied {
		result.AlreadyFulfilled = true
		return result, nil
	}

	s.logger.InfoContext(ctx, "seller plan activated", "seller_id", sellerID, "plan_type", tier, "plan_expires", expires)
	s.recordPayment(ctx, payment)
	s.notifyUpgrade(ctx, sellerID, tier, expires)
	return result, nil
}

// RenewSubscription extends the plan behind a paid subscription-cycle
// invoice by one period, counted from the later of the current expiry and
// now. Other invoices yield nil.
func (s *Service) RenewSubscription(ctx context.Context, inv *types.InvoicePayment) (*Fulfillment, error) {
	if inv.BillingReason != types.BillingReasonSubscriptionCycle || inv.SubscriptionID == "" {
		return nil, nil
	}
	current, err := s.store.GetPlanBySubscription(ctx, inv.SubscriptionID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	from := now
	if current.PlanExpires != nil && current.PlanExpires.After(now) {
		from = *current.PlanExpires
	}
	expires := from.Add(PlanPeriod)
	tier := PurchasableTier(current.PlanType)

	amount := s.plans.GetPlan(tier).MonthlyPrice
	if inv.AmountPaid > 0 {
		amount = float64(inv.AmountPaid) / 100
	}

	plan := &types.SellerPlan{
		SellerID:             current.SellerID,
		PlanType:             tier,
		PlanExpires:          &expires,
		StripeSubscriptionID: inv.SubscriptionID,
		UpdatedAt:            now,
	}
	payment := &types.Payment{
		ID:          "pay_" + uuid.New().String(),
		PaymentType: types.PaymentSellerPlanRenewal,
		Amount:      amount,
		StripeRef:   inv.ID,
		SellerID:    current.SellerID,
		Metadata: map[string]any{
			"plan_type":       string(tier),
			"plan_expires":    expires.Format(time.RFC3339),
			"subscription_id": inv.SubscriptionID,
		},
	}
	applied, err := s.store.ApplySellerPlan(ctx, payment, plan)
	if err != nil {
		return nil, err
	}
	result := &Fulfillment{Kind: types.CheckoutSellerPlan, SellerID: current.SellerID, PlanType: tier, ExpiresAt: &expires}
	if !applied {
		result.AlreadyFulfilled = true
		return result, nil
	}

	s.logger.InfoContext(ctx, "seller plan renewed", "seller_id", current.SellerID, "invoice_id", inv.ID, "plan_expires", expires)
	s.recordPayment(ctx, payment)
	s.notifyUpgrade(ctx, current.SellerID, tier, expires)
	return result, nil
}

func (s *Service) notifyUpgrade(ctx context.Context, sellerID string, tier types.Tier, expires time.Time) {
	seller, err := s.sellers.GetByID(ctx, sellerID)
	if err != nil {
		s.logger.WarnContext(ctx, "seller lookup for upgrade email failed", "seller_id", sellerID, "error", err)
		return
	}
	s.notify(ctx, types.EmailSellerUpgraded, seller.Email, map[string]any{
		"sellerName": seller.Name,
		"planLabel":  visibility.TierLabel(tier),
		"expiresAt":  expires.Format(emailDateLayout),
	})
}

func (s *Service) fulfillAd(ctx context.Context, session *types.CheckoutSession) (*Fulfillment, error) {
	meta := session.Metadata
	if meta["title"] == "" || meta["placement"] == "" {
		return nil, types.NewAppError(types.ErrCodeValidationInvalidInput, "checkout session is not an ad purchase", nil)
	}

	now := s.clock.Now()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, AdRunDays)
	ad := &types.Ad{
		ID:        "ad_" + uuid.New().String(),
		Title:     meta["title"],
		ImageURL:  meta["image_url"],
		LinkURL:   meta["link_url"],
		Placement: meta["placement"],
		StartDate: start,
		EndDate:   end,
		IsActive:  false,
		CreatedAt: now,
	}
	payment := &types.Payment{
		ID:          "pay_" + uuid.New().String(),
		PaymentType: types.PaymentAd,
		Amount:      float64(AdPriceCents) / 100,
		StripeRef:   session.ID,
		AdID:        ad.ID,
		Metadata: map[string]any{
			"placement": ad.Placement,
			"end_date":  end.Format(time.DateOnly),
		},
	}
	applied, err := s.store.ApplyAd(ctx, payment, ad)
	if err != nil {
		return nil, err
	}
	result := &Fulfillment{Kind: types.CheckoutAd, AdID: ad.ID, ExpiresAt: &end}
	if !applied {
		result.AdID = ""
		result.AlreadyFulfilled = true
		return result, nil
	}

	s.logger.InfoContext(ctx, "ad purchased", "ad_id", ad.ID, "placement", ad.Placement)
	s.recordPayment(ctx, payment)
	s.notify(ctx, types.EmailAdPurchased, session.CustomerEmail, map[string]any{
		"adTitle":   ad.Title,
		"placement": ad.Placement,
		"endDate":   end.Format(emailDateLayout),
	})
	return result, nil
}
