package types

import "time"

// Lender status assigned to new financing requests.
const LenderStatusPending = "pending"

// Lead pipeline states, in the order a lead normally moves through them.
const (
	LeadStatusNew          = "new"
	LeadStatusContacted    = "contacted"
	LeadStatusSentToLender = "sent_to_lender"
	LeadStatusClosed       = "closed"
)

// ValidLeadStatus reports whether s is a lead pipeline state.
func ValidLeadStatus(s string) bool {
	switch s {
	case LeadStatusNew, LeadStatusContacted, LeadStatusSentToLender, LeadStatusClosed:
		return true
	}
	return false
}

// Financing activity types.
const (
	ActivityCreated      = "created"
	ActivityStatusChange = "status_change"
	ActivityNoteAdded    = "note_added"
)

// Buyer is a financing applicant, keyed by email.
type Buyer struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// FinancingRequest is a lead for truck financing.
type FinancingRequest struct {
	ID           string    `json:"id"`
	BuyerID      string    `json:"buyer_id,omitempty"`
	ListingID    string    `json:"truck_id,omitempty"`
	CreditScore  string    `json:"credit_score,omitempty"`
	DownPayment  *float64  `json:"down_payment,omitempty"`
	Message      string    `json:"message,omitempty"`
	LenderStatus string    `json:"lender_status"`
	LeadStatus   string    `json:"lead_status"`
	CreatedAt    time.Time `json:"created_at"`
	BuyerName    string    `json:"buyer_name,omitempty"`
	BuyerEmail   string    `json:"buyer_email,omitempty"`
	ListingTitle string    `json:"truck_title,omitempty"`
}

// FinancingNote is an admin's note on a lead.
type FinancingNote struct {
	ID        string    `json:"id"`
	RequestID string    `json:"financing_request_id"`
	AuthorID  string    `json:"author_id,omitempty"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// FinancingActivity is one entry in a lead's history.
type FinancingActivity struct {
	ID           string    `json:"id"`
	RequestID    string    `json:"financing_request_id"`
	ActivityType string    `json:"activity_type"`
	Description  string    `json:"description,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// AdminStats is the back-office dashboard summary.
type AdminStats struct {
	TotalListings     int          `json:"total_listings"`
	FeaturedActive    int          `json:"featured_active"`
	ProSellers        int          `json:"pro_sellers"`
	FinancingRequests int          `json:"financing_requests"`
	ActiveAds         int          `json:"active_ads"`
	Revenue           RevenueStats `json:"revenue"`
}

// RevenueStats sums recorded payments by kind.
type RevenueStats struct {
	Boost      float64 `json:"boost"`
	SellerPlan float64 `json:"seller_plan"`
	Ad         float64 `json:"ad"`
	Total      float64 `json:"total"`
}
