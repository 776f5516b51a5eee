// Package metrics publishes directive handling metrics to CloudWatch.
package metrics

import (
	"context"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"kvsdoorbell/internal/alexa"
	"kvsdoorbell/internal/types"
)

// Result is the outcome dimension of a handled directive.
type Result string

const (
	// ResultSuccess is a normal response envelope.
	ResultSuccess Result = "success"
	// ResultRejected is an ErrorResponse envelope returned to Alexa.
	ResultRejected Result = "rejected"
	// ResultFailed is an error propagated out of the handler.
	ResultFailed Result = "failed"
)

// DirectiveMetrics records how directives were handled. Implementations
// never return errors: metric failures must not affect the response.
type DirectiveMetrics interface {
	// RecordDirective records the outcome and handler time of one directive.
	RecordDirective(ctx context.Context, namespace string, result Result, duration time.Duration)
}

// UnknownNamespace is the dimension value for namespaces the skill does
// not route.
const UnknownNamespace = "unknown"

var knownNamespaces = map[string]bool{
	strings.ToLower(alexa.NamespaceAuthorization):        true,
	strings.ToLower(alexa.NamespaceDiscovery):            true,
	strings.ToLower(alexa.NamespaceRTCSessionController): true,
}

// NamespaceDimension returns the lower-cased namespace when the skill routes
// it and UnknownNamespace otherwise, so request input cannot create new
// dimension values.
func NamespaceDimension(namespace string) string {
	ns := strings.ToLower(namespace)
	if knownNamespaces[ns] {
		return ns
	}
	return UnknownNamespace
}

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatchDirectiveMetrics emits, in a single PutMetricData call per
// directive:
//   - DirectiveHandled: Dims {Namespace, Result}, one per directive
//   - DirectiveLatency: Dims {Namespace}, handler time in milliseconds
type CloudWatchDirectiveMetrics struct {
	client    CloudWatchClient
	namespace string
	logger    types.Logger
}

var _ DirectiveMetrics = (*CloudWatchDirectiveMetrics)(nil)

// NewCloudWatchDirectiveMetrics creates a publisher for metricNamespace. An
// empty namespace uses types.MetricNamespace.
func NewCloudWatchDirectiveMetrics(client CloudWatchClient, metricNamespace string, logger types.Logger) *CloudWatchDirectiveMetrics {
	if metricNamespace == "" {
		metricNamespace = types.MetricNamespace
	}
	if logger == nil {
		logger = types.NopLogger{}
	}
	return &CloudWatchDirectiveMetrics{
		client:    client,
		namespace: metricNamespace,
		logger:    logger,
	}
}

// RecordDirective emits the DirectiveHandled count and DirectiveLatency.
func (m *CloudWatchDirectiveMetrics) RecordDirective(ctx context.Context, namespace string, result Result, duration time.Duration) {
	ns := NamespaceDimension(namespace)
	input := &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(m.namespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: aws.String(types.MetricDirectiveHandled),
				Value:      aws.Float64(1),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: []cwtypes.Dimension{
					{Name: aws.String(types.DimNamespace), Value: aws.String(ns)},
					{Name: aws.String(types.DimResult), Value: aws.String(string(result))},
				},
			},
			{
				MetricName: aws.String(types.MetricDirectiveLatency),
				Value:      aws.Float64(float64(duration.Milliseconds())),
				Unit:       cwtypes.StandardUnitMilliseconds,
				Dimensions: []cwtypes.Dimension{
					{Name: aws.String(types.DimNamespace), Value: aws.String(ns)},
				},
			},
		},
	}
	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.Error("failed to record metric",
			"error", err.Error(),
			"namespace", ns,
			"result", string(result),
			"duration_ms", duration.Milliseconds(),
		)
	}
}

// Nop discards all metrics. It is used when ENABLE_METRICS is false.
type Nop struct{}

var _ DirectiveMetrics = Nop{}

func (Nop) RecordDirective(context.Context, string, Result, time.Duration) {}
