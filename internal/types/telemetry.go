package types

// Telemetry metric names for CloudWatch.
// All components MUST use these constants.
const (
	// Metric Names
	MetricDirectiveHandled = "DirectiveHandled"
	MetricDirectiveLatency = "DirectiveLatency"

	// Dimension Keys
	DimNamespace = "Namespace"
	DimResult    = "Result"

	// Metric Namespace
	MetricNamespace = "AlexaDoorbell"
)
