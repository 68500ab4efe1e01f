package billing

import (
	"context"
	"strings"

	"truckmarket/internal/types"
)

const sessionIDPlaceholder = "{CHECKOUT_SESSION_ID}"

// AdOrder is a banner ad a buyer wants to run.
type AdOrder struct {
	Title     string
	ImageURL  string
	LinkURL   string
	Placement string
}

// StartBoost opens a checkout for featuring listingID for seven days. Only
// the listing's seller may boost it.
func (s *Service) StartBoost(ctx context.Context, sellerID, listingID string) (*types.CheckoutLink, error) {
	listing, err := s.listings.GetByID(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if sellerID == "" || listing.SellerID != sellerID {
		return nil, types.NewAppError(types.ErrCodePermissionOwner, "only the listing's seller can boost it", nil)
	}

	link, err := s.gateway.CreateCheckoutSession(ctx, types.CheckoutRequest{
		Mode:                types.CheckoutModePayment,
		UnitAmountCents:     BoostPriceCents,
		ProductName:         "Featured Listing - 7 Days",
		ProductDescription:  "Get your truck seen first on homepage and listings for 7 days",
		SuccessURL:          s.baseURL + "/boost-listing/success?session_id=" + sessionIDPlaceholder,
		CancelURL:           s.baseURL + "/boost-listing/" + listingID,
		Metadata:            map[string]string{"truckId": listingID},
		AllowPromotionCodes: true,
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "boost checkout opened", "listing_id", listingID, "session_id", link.SessionID)
	return link, nil
}

// StartSellerPlan opens a subscription checkout for the seller. Requests for
// anything other than a paid tier are sold as pro.
func (s *Service) StartSellerPlan(ctx context.Context, sellerID string, requested types.Tier) (*types.CheckoutLink, error) {
	if sellerID == "" {
		return nil, types.NewAppError(types.ErrCodeNotFoundSeller, "create a seller profile before choosing a plan", nil)
	}
	tier := PurchasableTier(requested)
	priceID, err := s.plans.PriceID(tier)
	if err != nil {
		return nil, err
	}

	meta := map[string]string{"sellerId": sellerID, "planType": string(tier)}
	link, err := s.gateway.CreateCheckoutSession(ctx, types.CheckoutRequest{
		Mode:                 types.CheckoutModeSubscription,
		PriceID:              priceID,
		SuccessURL:           s.baseURL + "/upgrade-seller/success?session_id=" + sessionIDPlaceholder,
		CancelURL:            s.baseURL + "/upgrade-seller/" + sellerID,
		Metadata:             meta,
		SubscriptionMetadata: meta,
		AllowPromotionCodes:  true,
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "plan checkout opened", "seller_id", sellerID, "plan_type", tier, "session_id", link.SessionID)
	return link, nil
}

// StartAd opens a checkout for a 30-day banner ad.
func (s *Service) StartAd(ctx context.Context, order AdOrder) (*types.CheckoutLink, error) {
	order.Title = strings.TrimSpace(order.Title)
	if order.Title == "" || order.ImageURL == "" || order.Placement == "" {
		return nil, types.NewAppError(types.ErrCodeValidationMissingField, "title, image_url and placement are required", nil)
	}

	link, err := s.gateway.CreateCheckoutSession(ctx, types.CheckoutRequest{
		Mode:               types.CheckoutModePayment,
		UnitAmountCents:    AdPriceCents,
		ProductName:        "Advertisement - 30 Days",
		ProductDescription: "Ad placement: " + order.Placement,
		ProductImages:      []string{order.ImageURL},
		SuccessURL:         s.baseURL + "/advertise/success?session_id=" + sessionIDPlaceholder,
		CancelURL:          s.baseURL + "/advertise/buy",
		Metadata: map[string]string{
			"title":     order.Title,
			"image_url": order.ImageURL,
			"link_url":  order.LinkURL,
			"placement": order.Placement,
		},
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "ad checkout opened", "placement", order.Placement, "session_id", link.SessionID)
	return link, nil
}
