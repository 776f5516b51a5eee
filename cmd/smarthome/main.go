// Package main is the entrypoint for the Smart Home skill Lambda function.
//
// Cold Start (main):
//  1. Load configuration (environment, .env, SSM for the LWA client secret).
//  2. Initialize the structured logger.
//  3. Load AWS SDK configuration for the KVS region.
//  4. Build the Kinesis Video signaling viewer, the LWA client and the
//     directive metrics.
//  5. Register the handler and call lambda.Start.
//
// Each invocation carries one Alexa directive. Validation failures are
// answered with an ErrorResponse event; upstream failures (LWA, KVS) are
// returned to the Lambda runtime as errors.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/kinesisvideo"

	"kvsdoorbell/internal/alexa"
	"kvsdoorbell/internal/config"
	"kvsdoorbell/internal/external"
	"kvsdoorbell/internal/metrics"
	"kvsdoorbell/internal/signaling"
	"kvsdoorbell/internal/skill"
	"kvsdoorbell/internal/types"
)

// slogAdapter wraps *slog.Logger to implement the types.Logger interface.
// slog.Logger.With returns *slog.Logger, not types.Logger, so an adapter is
// necessary.
type slogAdapter struct {
	logger *slog.Logger
}

func (a *slogAdapter) Info(msg string, args ...any)  { a.logger.Info(msg, args...) }
func (a *slogAdapter) Error(msg string, args ...any) { a.logger.Error(msg, args...) }
func (a *slogAdapter) Warn(msg string, args ...any)  { a.logger.Warn(msg, args...) }
func (a *slogAdapter) With(args ...any) types.Logger {
	return &slogAdapter{logger: a.logger.With(args...)}
}

// directiveDispatcher is the part of skill.Dispatcher the handler uses.
type directiveDispatcher interface {
	Handle(ctx context.Context, raw []byte) (*alexa.Envelope, error)
}

// Handler holds the dependencies for the Smart Home Lambda handler.
type Handler struct {
	dispatcher directiveDispatcher
	logger     types.Logger
}

// Handle processes one directive and returns the response event.
func (h *Handler) Handle(ctx context.Context, raw json.RawMessage) (*alexa.Envelope, error) {
	logger := h.logger
	if lc, ok := lambdacontext.FromContext(ctx); ok {
		logger = logger.With("aws_request_id", lc.AwsRequestID)
		ctx = types.WithRequestID(ctx, lc.AwsRequestID)
	}
	ctx = types.WithLogger(ctx, logger)

	env, err := h.dispatcher.Handle(ctx, raw)
	if err != nil {
		logger.Error("directive failed", "error", err.Error())
		return nil, err
	}

	logger.Info("directive handled",
		"event_namespace", env.Event.Header.Namespace,
		"event_name", env.Event.Header.Name,
		"message_id", env.Event.Header.MessageID,
	)
	return env, nil
}

func main() {
	cfg, err := config.LoadConfig(config.NewSSMProvider(os.Getenv("AWS_REGION")))
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: loading configuration: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("Smart Home Lambda initializing (cold start)",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
	)
	typedLogger := &slogAdapter{logger: logger}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(cfg.KVS.Region))
	if err != nil {
		logger.Error("Failed to load AWS SDK config", "error", err)
		os.Exit(1)
	}
	if cfg.KVS.EndpointURL != "" {
		awsCfg.BaseEndpoint = aws.String(cfg.KVS.EndpointURL)
	}

	handler := &Handler{
		dispatcher: newDispatcher(cfg, awsCfg, typedLogger),
		logger:     typedLogger,
	}

	logger.Info("Smart Home Lambda initialized",
		"kvs_region", cfg.KVS.Region,
		"kvs_channel", cfg.KVS.ChannelName,
		"endpoint_id", cfg.Device.EndpointID,
		"metrics_enabled", cfg.Observability.EnableMetrics,
	)

	lambda.Start(handler.Handle)
}

// newDispatcher wires the skill's collaborators from configuration.
func newDispatcher(cfg *config.Config, awsCfg aws.Config, logger types.Logger) *skill.Dispatcher {
	resolver := signaling.NewEndpointResolver(
		kinesisvideo.NewFromConfig(awsCfg),
		signaling.Channel{Name: cfg.KVS.ChannelName, ARN: cfg.KVS.ChannelARN},
	)
	viewer := signaling.NewViewer(resolver, signaling.NewDataPlaneFactory(awsCfg), cfg.KVS.RelayTimeout)

	lwa := external.NewLWAClient(&http.Client{Timeout: cfg.LWA.Timeout}, external.LWAConfig{
		ClientID:     cfg.LWA.ClientID,
		ClientSecret: cfg.LWA.ClientSecret,
		TokenURL:     cfg.LWA.TokenURL,
	})

	var m metrics.DirectiveMetrics = metrics.Nop{}
	if cfg.Observability.EnableMetrics {
		m = metrics.NewCloudWatchDirectiveMetrics(
			cloudwatch.NewFromConfig(awsCfg),
			cfg.Observability.MetricNamespace,
			logger,
		)
	}

	return skill.NewDispatcher(skill.Deps{
		Grants:  lwa,
		Relay:   viewer,
		Device:  cfg.Device,
		Metrics: m,
	})
}

// newLogger creates a JSON slog.Logger on stdout at the given level.
func newLogger(level string) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(level),
	}))
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Compile-time assertions.
var (
	_ types.Logger        = (*slogAdapter)(nil)
	_ directiveDispatcher = (*skill.Dispatcher)(nil)
)
