// Package config defines the configuration structures for the doorbell skill
// binaries. Configuration is loaded once at process initialization (Lambda Cold
// Start) and is immutable thereafter.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> AWS SSM Parameter Store (Lowest)
//
// Any missing required value or invalid format fails the load; the entrypoints
// exit immediately (fail fast).
package config

import (
	"net"
	"time"

	"kvsdoorbell/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type used
// throughout configuration to prevent accidental logging of sensitive values.
type SecretString = types.SecretString

// Config is the configuration of the Smart Home skill Lambda (cmd/smarthome).
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" default:"local" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"doorbell-smarthome"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	LWA           LWAConfig
	KVS           KVSConfig
	Device        DeviceConfig
	Observability ObservabilityConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// ConsoleConfig is the configuration of the doorbell console (cmd/console).
// The console collects tokens and client credentials from its forms, so it
// needs no LWA client secret of its own.
type ConsoleConfig struct {
	Environment string `envconfig:"APP_ENV" default:"local" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"doorbell-console"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	// Addr is the interface the console binds to. It shows the last tokens
	// it handled, so it stays on loopback unless set explicitly.
	Addr           string        `envconfig:"CONSOLE_ADDR" default:"127.0.0.1" validate:"required,ip|hostname"`
	Port           string        `envconfig:"CONSOLE_PORT" default:"8080" validate:"required,numeric"`
	RequestTimeout time.Duration `envconfig:"CONSOLE_REQUEST_TIMEOUT" default:"15s"`
	JournalSize    int           `envconfig:"CONSOLE_JOURNAL_SIZE" default:"200" validate:"min=1"`

	Gateway       GatewayConfig
	TokenURL      string        `envconfig:"LWA_TOKEN_URL" default:"https://api.amazon.com/auth/o2/token" validate:"required,url"`
	TokenTimeout  time.Duration `envconfig:"LWA_TIMEOUT" default:"5s"`
	DefaultDevice DeviceConfig

	Build BuildInfo
}

// ListenAddr returns the host:port the console listens on.
func (c *ConsoleConfig) ListenAddr() string {
	return net.JoinHostPort(c.Addr, c.Port)
}

// MasterConfig is the configuration of the camera master (cmd/master), the
// long-running process that answers viewer offers on the signaling channel.
type MasterConfig struct {
	Environment string `envconfig:"APP_ENV" default:"local" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"doorbell-master"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	KVS   KVSConfig
	Media MediaConfig
	ICE   ICEConfig

	// Reconnect bounds the delay between attempts to reopen a dropped
	// signaling connection.
	ReconnectMin time.Duration `envconfig:"MASTER_RECONNECT_MIN" default:"1s" validate:"gt=0"`
	ReconnectMax time.Duration `envconfig:"MASTER_RECONNECT_MAX" default:"30s" validate:"gtefield=ReconnectMin"`

	Build BuildInfo
}

// MediaConfig selects the local video the master streams to viewers. With no
// file the master answers offers without sending media.
type MediaConfig struct {
	File string `envconfig:"MASTER_MEDIA_FILE"`
	Loop bool   `envconfig:"MASTER_MEDIA_LOOP" default:"true"`
}

// ICEConfig adds TURN or STUN servers after the regional KVS STUN server.
type ICEConfig struct {
	URLs          []string      `envconfig:"MASTER_ICE_URLS" validate:"dive,startswith=stun:|startswith=turn:|startswith=turns:"`
	Username      string        `envconfig:"MASTER_ICE_USERNAME"`
	Credential    SecretString  `envconfig:"MASTER_ICE_CREDENTIAL"`
	GatherTimeout time.Duration `envconfig:"MASTER_GATHER_TIMEOUT" default:"10s" validate:"gt=0"`
}

// LWAConfig holds the Login with Amazon client credentials used to exchange
// AcceptGrant authorization codes for access and refresh tokens.
type LWAConfig struct {
	ClientID     string        `envconfig:"LWA_CLIENT_ID" validate:"required"`
	ClientSecret SecretString  `envconfig:"LWA_CLIENT_SECRET" validate:"required"`
	TokenURL     string        `envconfig:"LWA_TOKEN_URL" default:"https://api.amazon.com/auth/o2/token" validate:"required,url"`
	Timeout      time.Duration `envconfig:"LWA_TIMEOUT" default:"5s"`
}

// KVSConfig identifies the Kinesis Video Streams signaling channel the camera
// master is connected to. Either the channel name or its ARN must be set; when
// only the name is set the ARN is resolved with DescribeSignalingChannel.
type KVSConfig struct {
	Region       string        `envconfig:"KVS_REGION" validate:"required"`
	ChannelName  string        `envconfig:"KVS_CHANNEL_NAME" validate:"required_without=ChannelARN"`
	ChannelARN   string        `envconfig:"KVS_CHANNEL_ARN" validate:"required_without=ChannelName"`
	RelayTimeout time.Duration `envconfig:"KVS_RELAY_TIMEOUT" default:"5s"`

	// LocalStack Support (Empty in Prod)
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// DeviceConfig describes the single appliance exposed at discovery.
type DeviceConfig struct {
	EndpointID       string `envconfig:"DEVICE_ENDPOINT_ID" default:"video-doorbell-001" validate:"required"`
	FriendlyName     string `envconfig:"DEVICE_FRIENDLY_NAME" default:"doorbell" validate:"required"`
	Description      string `envconfig:"DEVICE_DESCRIPTION" default:"Appliance with Video and Doorbell announcement supported"`
	ManufacturerName string `envconfig:"DEVICE_MANUFACTURER" default:"My DoorBell Inc." validate:"required"`
}

// GatewayConfig holds settings for proactive events sent to the Alexa Event
// Gateway.
type GatewayConfig struct {
	// DefaultRegion preselects the region in the console form.
	DefaultRegion string        `envconfig:"ALEXA_REGION" default:"NA" validate:"oneof=NA EU FE"`
	Timeout       time.Duration `envconfig:"GATEWAY_TIMEOUT" default:"10s"`
}

// ObservabilityConfig holds telemetry settings.
type ObservabilityConfig struct {
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"AlexaDoorbell"`
	EnableMetrics   bool   `envconfig:"ENABLE_METRICS" default:"false"`
}

// BuildInfo identifies the running binary. It comes from ldflags or the VCS
// stamp, never from the environment.
type BuildInfo struct {
	Version   string `ignored:"true"`
	Commit    string `ignored:"true"`
	BuildTime string `ignored:"true"`
}

// ConfigErrorType categorizes configuration loading failures to aid debugging.
type ConfigErrorType string

const (
	// ErrSSMResolution indicates a failure when fetching secrets from AWS SSM.
	ErrSSMResolution ConfigErrorType = "SSM_FAILURE"
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values
	// into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
