package main

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kinesisvideo"

	"kvsdoorbell/internal/signaling"
)

// ValidationResult is the outcome of checking one operator input.
type ValidationResult struct {
	Valid   bool
	Message string
}

// Validator checks operator input before it is written to SSM. The KVS
// channel is checked against the live account.
type Validator struct {
	channels signaling.ControlPlaneAPI
}

// NewValidator creates a Validator that describes channels with the
// session's credentials.
func NewValidator(cfg aws.Config) *Validator {
	return &Validator{channels: kinesisvideo.NewFromConfig(cfg)}
}

// NewValidatorWithDeps creates a Validator over an injected control plane
// client. A nil client skips the live channel check.
func NewValidatorWithDeps(channels signaling.ControlPlaneAPI) *Validator {
	return &Validator{channels: channels}
}

// validateTimeout bounds each live check.
const validateTimeout = 10 * time.Second

var (
	lwaClientIDPattern     = `^amzn1\.application-oa2-client\.[0-9a-zA-Z]+$`
	lwaClientSecretPattern = `^amzn1\.oa2-cs\.v1\.[0-9a-zA-Z]{16,}$`
	endpointIDPattern      = `^[a-zA-Z0-9_\-=#;:?@&]{1,256}$`
)

// ValidateRegex checks input against pattern.
func (v *Validator) ValidateRegex(_ context.Context, input, pattern, fieldName string) ValidationResult {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return ValidationResult{Message: fmt.Sprintf("invalid pattern for %s: %v", fieldName, err)}
	}
	if !re.MatchString(input) {
		return ValidationResult{Message: fmt.Sprintf("%s does not have the expected format", fieldName)}
	}
	return ValidationResult{Valid: true, Message: fmt.Sprintf("%s format OK", fieldName)}
}

// ValidateChannel checks that a signaling channel with this name exists in
// the account and reports its ARN.
func (v *Validator) ValidateChannel(ctx context.Context, name string) ValidationResult {
	if name == "" {
		return ValidationResult{Message: "channel name must not be empty"}
	}
	if v.channels == nil {
		return ValidationResult{Valid: true, Message: "channel not checked (no AWS client)"}
	}

	ctx, cancel := context.WithTimeout(ctx, validateTimeout)
	defer cancel()

	arn, err := signaling.NewEndpointResolver(v.channels, signaling.Channel{Name: name}).ChannelARN(ctx)
	if err != nil {
		return ValidationResult{Message: fmt.Sprintf("signaling channel %q not usable: %v", name, err)}
	}
	return ValidationResult{Valid: true, Message: fmt.Sprintf("signaling channel found: %s", arn)}
}
