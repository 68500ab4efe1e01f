package types

import (
	"strconv"
	"time"
)

// Tier is a seller's subscription level.
type Tier string

const (
	TierFree    Tier = "free"
	TierPro     Tier = "pro"
	TierProPlus Tier = "pro_plus"
	TierDealer  Tier = "dealer"
)

// PaidTiers lists the purchasable tiers in ascending order.
var PaidTiers = []Tier{TierPro, TierProPlus, TierDealer}

// Valid reports whether t is one of the known tier strings.
func (t Tier) Valid() bool {
	switch t {
	case TierFree, TierPro, TierProPlus, TierDealer:
		return true
	}
	return false
}

// ListingStatus is the sale state of a listing.
type ListingStatus string

const (
	ListingAvailable ListingStatus = "available"
	ListingPending   ListingStatus = "pending"
	ListingSold      ListingStatus = "sold"
)

// Valid reports whether s is a known listing status.
func (s ListingStatus) Valid() bool {
	switch s {
	case ListingAvailable, ListingPending, ListingSold:
		return true
	}
	return false
}

// SellerType distinguishes private sellers from dealerships.
type SellerType string

const (
	SellerPrivate SellerType = "private"
	SellerDealer  SellerType = "dealer"
)

// Valid reports whether s is a known seller type.
func (s SellerType) Valid() bool {
	return s == SellerPrivate || s == SellerDealer
}

// Listing is a truck offered for sale.
type Listing struct {
	ID            string        `json:"id"`
	SellerID      string        `json:"seller_id"`
	Year          int           `json:"year"`
	Make          string        `json:"make"`
	Model         string        `json:"model"`
	Price         float64       `json:"price"`
	Mileage       *int          `json:"mileage,omitempty"`
	Condition     string        `json:"condition,omitempty"`
	Description   string        `json:"description,omitempty"`
	City          string        `json:"city,omitempty"`
	State         string        `json:"state,omitempty"`
	Photos        []string      `json:"photos"`
	Status        ListingStatus `json:"status"`
	IsFeatured    bool          `json:"is_featured"`
	FeaturedUntil *time.Time    `json:"featured_until,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// Title is the display name used in emails and conversation summaries.
func (l Listing) Title() string {
	return strconv.Itoa(l.Year) + " " + l.Make + " " + l.Model
}

// ListingFilter narrows the public listings feed.
type ListingFilter struct {
	SellerType SellerType
	Make       string
	State      string
	MinPrice   *float64
	MaxPrice   *float64
	Query      string
	Status     ListingStatus
}

// ListingPatch carries a partial listing update. Nil fields are untouched.
type ListingPatch struct {
	Year        *int
	Make        *string
	Model       *string
	Price       *float64
	Mileage     *int
	Condition   *string
	Description *string
	City        *string
	State       *string
	Photos      []string
	Status      *ListingStatus
}

// Seller is a seller profile owned by a user account. Legacy sellers may have
// no UserID yet and are matched to accounts by email.
type Seller struct {
	ID                string     `json:"id"`
	UserID            string     `json:"user_id,omitempty"`
	Email             string     `json:"email,omitempty"`
	Name              string     `json:"name"`
	Phone             string     `json:"phone,omitempty"`
	Company           string     `json:"company,omitempty"`
	ProfilePictureURL string     `json:"profile_picture_url,omitempty"`
	SellerType        SellerType `json:"seller_type,omitempty"`
	City              string     `json:"city,omitempty"`
	State             string     `json:"state,omitempty"`
	HideEmail         bool       `json:"hide_email"`
	HidePhone         bool       `json:"hide_phone"`
	CreatedAt         time.Time  `json:"created_at"`
}

// ProfileComplete reports whether the seller may publish listings.
func (s *Seller) ProfileComplete() bool {
	return s.Phone != "" && s.SellerType.Valid()
}

// SellerPlan is the subscription record of a seller. PlanExpires nil on a
// paid plan means the plan never expires.
type SellerPlan struct {
	SellerID             string     `json:"seller_id"`
	PlanType             Tier       `json:"plan_type"`
	PlanExpires          *time.Time `json:"plan_expires,omitempty"`
	StripeSubscriptionID string     `json:"stripe_subscription_id,omitempty"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// PaymentType classifies revenue rows.
type PaymentType string

const (
	PaymentBoost             PaymentType = "boost"
	PaymentSellerPlan        PaymentType = "seller_plan"
	PaymentSellerPlanRenewal PaymentType = "seller_plan_renewal"
	PaymentAd                PaymentType = "ad"
)

// Payment is a recorded revenue event. StripeRef is the checkout session id
// or, for renewals, the invoice id; it is unique.
type Payment struct {
	ID          string         `json:"id"`
	PaymentType PaymentType    `json:"payment_type"`
	Amount      float64        `json:"amount"`
	StripeRef   string         `json:"stripe_session_id"`
	SellerID    string         `json:"seller_id,omitempty"`
	ListingID   string         `json:"truck_id,omitempty"`
	AdID        string         `json:"ad_id,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Ad is a purchased banner placement. Ads start inactive until an admin
// approves them.
type Ad struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	ImageURL  string    `json:"image_url"`
	LinkURL   string    `json:"link_url,omitempty"`
	Placement string    `json:"placement"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// RunningOn reports whether the ad is approved and its date window covers day.
func (a Ad) RunningOn(day time.Time) bool {
	if !a.IsActive {
		return false
	}
	d := day.UTC().Truncate(24 * time.Hour)
	return !d.Before(a.StartDate.UTC().Truncate(24*time.Hour)) && !d.After(a.EndDate.UTC().Truncate(24*time.Hour))
}

// Review is a buyer's rating of a seller.
type Review struct {
	ID           string    `json:"id"`
	SellerID     string    `json:"seller_id"`
	ReviewerID   string    `json:"reviewer_id"`
	ReviewerName string    `json:"reviewer_name,omitempty"`
	Rating       int       `json:"rating"`
	Comment      string    `json:"comment,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// SellerReviewCount is one row of the "most reviewed sellers" ranking.
type SellerReviewCount struct {
	SellerID string
	Count    int
}
