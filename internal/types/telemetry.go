package types

// Telemetry metric names for CloudWatch.
// All components MUST use these constants.
const (
	MetricAPIRequest     = "APIRequest"
	MetricAPILatency     = "APILatency"
	MetricEmailSent      = "EmailSent"
	MetricEmailFailed    = "EmailFailed"
	MetricPaymentApplied = "PaymentApplied"

	DimEndpoint    = "Endpoint"
	DimStatusClass = "StatusClass"
	DimTemplate    = "Template"
	DimPayment     = "PaymentType"

	MetricNamespace = "TruckMarket"
)
