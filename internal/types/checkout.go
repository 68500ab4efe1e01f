package types

// CheckoutMode mirrors the payment processor's checkout modes.
type CheckoutMode string

const (
	CheckoutModePayment      CheckoutMode = "payment"
	CheckoutModeSubscription CheckoutMode = "subscription"
)

// CheckoutKind names what a checkout session was opened for.
type CheckoutKind string

const (
	CheckoutBoost      CheckoutKind = "boost"
	CheckoutSellerPlan CheckoutKind = "seller_plan"
	CheckoutAd         CheckoutKind = "ad"
)

// Valid reports whether k is a known kind.
func (k CheckoutKind) Valid() bool {
	switch k {
	case CheckoutBoost, CheckoutSellerPlan, CheckoutAd:
		return true
	}
	return false
}

// CheckoutRequest describes a hosted checkout page to open. Either PriceID
// (subscriptions) or UnitAmountCents with ProductName (one-off payments) is
// set.
type CheckoutRequest struct {
	Mode                 CheckoutMode
	PriceID              string
	UnitAmountCents      int64
	Currency             string
	ProductName          string
	ProductDescription   string
	ProductImages        []string
	SuccessURL           string
	CancelURL            string
	Metadata             map[string]string
	SubscriptionMetadata map[string]string
	AllowPromotionCodes  bool
}

// CheckoutLink is what the buyer is redirected to.
type CheckoutLink struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

// CheckoutSession is the subset of a completed checkout the fulfillment
// flows read.
type CheckoutSession struct {
	ID             string
	Mode           CheckoutMode
	PaymentStatus  string
	AmountTotal    int64
	Metadata       map[string]string
	SubscriptionID string
	CustomerEmail  string
}

// Paid reports whether the processor has settled the session.
func (s *CheckoutSession) Paid() bool {
	return s.PaymentStatus == "paid"
}

// InvoicePayment is the subset of a paid invoice the renewal flow reads.
type InvoicePayment struct {
	ID             string
	SubscriptionID string
	BillingReason  string
	AmountPaid     int64
}

// BillingReasonSubscriptionCycle marks a routine renewal invoice.
const BillingReasonSubscriptionCycle = "subscription_cycle"
