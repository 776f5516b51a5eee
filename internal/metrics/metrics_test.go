package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kvsdoorbell/internal/types"
)

type mockCloudWatchClient struct {
	inputs []*cloudwatch.PutMetricDataInput
	err    error
}

func (m *mockCloudWatchClient) PutMetricData(_ context.Context, params *cloudwatch.PutMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	m.inputs = append(m.inputs, params)
	return &cloudwatch.PutMetricDataOutput{}, m.err
}

type recordingLogger struct {
	types.NopLogger
	errors []string
}

func (l *recordingLogger) Error(msg string, _ ...any) { l.errors = append(l.errors, msg) }

func dims(d []cwtypes.Dimension) map[string]string {
	out := make(map[string]string, len(d))
	for _, dim := range d {
		out[aws.ToString(dim.Name)] = aws.ToString(dim.Value)
	}
	return out
}

func TestRecordDirective(t *testing.T) {
	client := &mockCloudWatchClient{}
	m := NewCloudWatchDirectiveMetrics(client, "", nil)

	m.RecordDirective(context.Background(), "alexa.discovery", ResultSuccess, 1500*time.Millisecond)

	require.Len(t, client.inputs, 1, "both metrics go out in one call")
	in := client.inputs[0]
	assert.Equal(t, types.MetricNamespace, aws.ToString(in.Namespace))
	require.Len(t, in.MetricData, 2)

	handled := in.MetricData[0]
	assert.Equal(t, types.MetricDirectiveHandled, aws.ToString(handled.MetricName))
	assert.Equal(t, 1.0, aws.ToFloat64(handled.Value))
	assert.Equal(t, cwtypes.StandardUnitCount, handled.Unit)
	assert.Equal(t, map[string]string{"Namespace": "alexa.discovery", "Result": "success"}, dims(handled.Dimensions))

	latency := in.MetricData[1]
	assert.Equal(t, types.MetricDirectiveLatency, aws.ToString(latency.MetricName))
	assert.Equal(t, 1500.0, aws.ToFloat64(latency.Value))
	assert.Equal(t, cwtypes.StandardUnitMilliseconds, latency.Unit)
	assert.Equal(t, map[string]string{"Namespace": "alexa.discovery"}, dims(latency.Dimensions))
}

func TestRecordDirective_CustomNamespace(t *testing.T) {
	client := &mockCloudWatchClient{}
	m := NewCloudWatchDirectiveMetrics(client, "DoorbellStaging", nil)

	m.RecordDirective(context.Background(), "", ResultRejected, 0)

	require.Len(t, client.inputs, 1)
	assert.Equal(t, "DoorbellStaging", aws.ToString(client.inputs[0].Namespace))
	for _, datum := range client.inputs[0].MetricData {
		assert.Equal(t, UnknownNamespace, dims(datum.Dimensions)["Namespace"])
	}
}

func TestRecordDirective_UnroutedNamespaceIsBounded(t *testing.T) {
	client := &mockCloudWatchClient{}
	m := NewCloudWatchDirectiveMetrics(client, "", nil)

	for _, ns := range []string{"alexa.foo", "Alexa.Bar", "alexa.discovery.v2"} {
		m.RecordDirective(context.Background(), ns, ResultRejected, time.Millisecond)
	}

	require.Len(t, client.inputs, 3)
	for _, in := range client.inputs {
		for _, datum := range in.MetricData {
			assert.Equal(t, UnknownNamespace, dims(datum.Dimensions)["Namespace"])
		}
	}
}

func TestNamespaceDimension(t *testing.T) {
	tests := map[string]string{
		"Alexa.Authorization":        "alexa.authorization",
		"ALEXA.DISCOVERY":            "alexa.discovery",
		"alexa.rtcsessioncontroller": "alexa.rtcsessioncontroller",
		"Alexa.DoorbellEventSource":  UnknownNamespace,
		"alexa.foo":                  UnknownNamespace,
		"":                           UnknownNamespace,
	}
	for in, want := range tests {
		assert.Equal(t, want, NamespaceDimension(in), in)
	}
}

func TestRecordDirective_ErrorIsLogged(t *testing.T) {
	client := &mockCloudWatchClient{err: errors.New("throttled")}
	logger := &recordingLogger{}
	m := NewCloudWatchDirectiveMetrics(client, "", logger)

	m.RecordDirective(context.Background(), "alexa.authorization", ResultFailed, time.Second)

	assert.Equal(t, []string{"failed to record metric"}, logger.errors)
}

func TestNop(t *testing.T) {
	var m DirectiveMetrics = Nop{}
	m.RecordDirective(context.Background(), "x", ResultSuccess, time.Second)
}
