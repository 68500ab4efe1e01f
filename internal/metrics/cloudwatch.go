// Package metrics publishes service metrics to CloudWatch.
package metrics

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"truckmarket/internal/types"
)

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// Collector emits API, email and payment metrics. Failures to publish are
// logged and otherwise ignored; metrics never fail a request.
//
// Metrics emitted:
//   - APIRequest, APILatency: Dims {Endpoint, StatusClass}
//   - EmailSent / EmailFailed: Dims {Template}
//   - PaymentApplied: Dims {PaymentType}, value is the amount in dollars
type Collector struct {
	client    CloudWatchClient
	namespace string
	logger    *slog.Logger
}

// NewCollector creates a Collector. An empty namespace uses
// types.MetricNamespace.
func NewCollector(client CloudWatchClient, namespace string, logger *slog.Logger) *Collector {
	if namespace == "" {
		namespace = types.MetricNamespace
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{client: client, namespace: namespace, logger: logger}
}

// StatusClass buckets an HTTP status as "2xx", "4xx" and so on.
func StatusClass(status int) string {
	if status < 100 || status > 599 {
		return "unknown"
	}
	return strconv.Itoa(status/100) + "xx"
}

// RecordRequest emits the request count and latency for one API call.
// endpoint is the route pattern, not the raw path.
func (c *Collector) RecordRequest(ctx context.Context, endpoint string, status int, latency time.Duration) {
	dims := []cwtypes.Dimension{
		{Name: aws.String(types.DimEndpoint), Value: aws.String(endpoint)},
		{Name: aws.String(types.DimStatusClass), Value: aws.String(StatusClass(status))},
	}
	c.put(ctx,
		cwtypes.MetricDatum{
			MetricName: aws.String(types.MetricAPIRequest),
			Value:      aws.Float64(1),
			Unit:       cwtypes.StandardUnitCount,
			Dimensions: dims,
		},
		cwtypes.MetricDatum{
			MetricName: aws.String(types.MetricAPILatency),
			Value:      aws.Float64(float64(latency.Milliseconds())),
			Unit:       cwtypes.StandardUnitMilliseconds,
			Dimensions: dims,
		},
	)
}

// RecordEmail emits EmailSent or EmailFailed for one delivery.
func (c *Collector) RecordEmail(ctx context.Context, kind types.EmailKind, sent bool, _ time.Duration) {
	name := types.MetricEmailSent
	if !sent {
		name = types.MetricEmailFailed
	}
	c.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(name),
		Value:      aws.Float64(1),
		Unit:       cwtypes.StandardUnitCount,
		Dimensions: []cwtypes.Dimension{
			{Name: aws.String(types.DimTemplate), Value: aws.String(string(kind))},
		},
	})
}

// RecordPayment emits the amount of an applied payment.
func (c *Collector) RecordPayment(ctx context.Context, kind types.PaymentType, amount float64) {
	c.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricPaymentApplied),
		Value:      aws.Float64(amount),
		Unit:       cwtypes.StandardUnitNone,
		Dimensions: []cwtypes.Dimension{
			{Name: aws.String(types.DimPayment), Value: aws.String(string(kind))},
		},
	})
}

func (c *Collector) put(ctx context.Context, data ...cwtypes.MetricDatum) {
	_, err := c.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(c.namespace),
		MetricData: data,
	})
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to publish metrics",
			"error", err.Error(),
			"metric", aws.ToString(data[0].MetricName),
		)
	}
}
