package types

// EmailKind names a transactional email. Each kind maps to one provider
// template.
type EmailKind string

const (
	EmailTruckListed           EmailKind = "truck_listed"
	EmailTruckBoosted          EmailKind = "truck_boosted"
	EmailSellerUpgraded        EmailKind = "seller_upgraded"
	EmailAdPurchased           EmailKind = "ad_purchased"
	EmailNewMessage            EmailKind = "new_message"
	EmailMessageDigest         EmailKind = "message_digest"
	EmailFinancingConfirmation EmailKind = "financing_confirmation"
	EmailFinancingTeamNotice   EmailKind = "financing_team_notice"
	EmailVerification          EmailKind = "email_verification"
)

// AllEmailKinds lists every kind a template configuration must cover.
var AllEmailKinds = []EmailKind{
	EmailTruckListed,
	EmailTruckBoosted,
	EmailSellerUpgraded,
	EmailAdPurchased,
	EmailNewMessage,
	EmailMessageDigest,
	EmailFinancingConfirmation,
	EmailFinancingTeamNotice,
	EmailVerification,
}

// EmailJob is the queue payload for one outgoing email. JSON tags are the
// wire format between the API and the email worker.
type EmailJob struct {
	JobID   string         `json:"job_id"`
	Kind    EmailKind      `json:"kind"`
	To      string         `json:"to"`
	Data    map[string]any `json:"data"`
	TraceID string         `json:"trace_id,omitempty"`
}

// SendInput defines the contract for email transmission.
type SendInput struct {
	To           string
	From         SenderIdentity
	TemplateID   string
	TemplateData map[string]interface{}
	ReferenceID  string
}

// SenderIdentity defines the sender for outgoing emails.
type SenderIdentity struct {
	Name    string
	Address string
}
