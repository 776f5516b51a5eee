package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// ParameterType is the SSM storage type of a parameter.
type ParameterType int

const (
	ParamSecureString ParameterType = iota
	ParamString
)

// BootstrapStep is one parameter the operator provides.
type BootstrapStep struct {
	HumanLabel string

	// SSMCategoryKey becomes /{env}/doorbell/{SSMCategoryKey}.
	SSMCategoryKey string

	// EnvVar is the configuration variable the parameter feeds, e.g.
	// LWA_CLIENT_SECRET.
	EnvVar string

	ParamType  ParameterType
	Prompt     string
	ValidateFn func(ctx context.Context, input string) ValidationResult

	// IsSecret masks the input while it is typed.
	IsSecret bool
	Optional bool
	Phase    string
}

// maxRetries is how many invalid inputs a step accepts before aborting.
const maxRetries = 5

var errSkipped = errors.New("parameter skipped by operator")

// BuildInventory returns the parameters the skill and console need, in
// prompt order.
func BuildInventory(v *Validator) []BootstrapStep {
	return []BootstrapStep{
		{
			HumanLabel:     "LWA Client ID",
			SSMCategoryKey: "lwa/client_id",
			EnvVar:         "LWA_CLIENT_ID",
			ParamType:      ParamString,
			Prompt: `1. Open the Alexa developer console > your skill > Build > Permissions.
   2. Enable "Send Alexa Events".
   3. Paste the Alexa Skill Messaging Client ID (amzn1.application-oa2-client...):`,
			ValidateFn: func(ctx context.Context, input string) ValidationResult {
				return v.ValidateRegex(ctx, input, lwaClientIDPattern, "LWA Client ID")
			},
			Phase: "Login with Amazon",
		},
		{
			HumanLabel:     "LWA Client Secret",
			SSMCategoryKey: "lwa/client_secret",
			EnvVar:         "LWA_CLIENT_SECRET",
			ParamType:      ParamSecureString,
			Prompt:         `Paste the Alexa Skill Messaging Client Secret (amzn1.oa2-cs.v1...):`,
			ValidateFn: func(ctx context.Context, input string) ValidationResult {
				return v.ValidateRegex(ctx, input, lwaClientSecretPattern, "LWA Client Secret")
			},
			IsSecret: true,
			Phase:    "Login with Amazon",
		},
		{
			HumanLabel:     "KVS Signaling Channel",
			SSMCategoryKey: "kvs/channel_name",
			EnvVar:         "KVS_CHANNEL_NAME",
			ParamType:      ParamString,
			Prompt: `Create a Kinesis Video Streams signaling channel for the camera
   (aws kinesisvideo create-signaling-channel --channel-name <name>)
   and paste its name:`,
			ValidateFn: v.ValidateChannel,
			Phase:      "Kinesis Video Streams",
		},
		{
			HumanLabel:     "Doorbell Endpoint ID (optional)",
			SSMCategoryKey: "device/endpoint_id",
			EnvVar:         "DEVICE_ENDPOINT_ID",
			ParamType:      ParamString,
			Prompt:         `Paste the endpoint id reported at discovery (or press Enter for video-doorbell-001):`,
			ValidateFn: func(ctx context.Context, input string) ValidationResult {
				return v.ValidateRegex(ctx, input, endpointIDPattern, "Endpoint ID")
			},
			Optional: true,
			Phase:    "Device",
		},
	}
}

// BootstrapRunner walks the inventory, prompting, validating and writing
// each parameter.
type BootstrapRunner struct {
	SSM       *SSMManager
	Validator *Validator
	Stdin     io.Reader
	Stderr    io.Writer

	// scanner is shared so buffered input is not lost between prompts.
	scanner *bufio.Scanner

	inventoryOverride []BootstrapStep
}

// NewBootstrapRunner creates a BootstrapRunner with production dependencies.
func NewBootstrapRunner(bctx *BootstrapContext) *BootstrapRunner {
	return &BootstrapRunner{
		SSM:       NewSSMManager(bctx),
		Validator: NewValidator(bctx.AWSConfig),
		Stdin:     os.Stdin,
		Stderr:    os.Stderr,
	}
}

func (r *BootstrapRunner) inventory() []BootstrapStep {
	if r.inventoryOverride != nil {
		return r.inventoryOverride
	}
	return BuildInventory(r.Validator)
}

// Run processes every step and prints a summary.
func (r *BootstrapRunner) Run(ctx context.Context) error {
	inventory := r.inventory()

	var currentPhase string
	var results []stepResult

	for i, step := range inventory {
		if step.Phase != currentPhase {
			currentPhase = step.Phase
			r.printPhaseHeader(currentPhase)
		}

		fmt.Fprintf(r.Stderr, "\n[%d/%d] %s\n", i+1, len(inventory), step.HumanLabel)

		result, err := r.processStep(ctx, step)
		if err != nil {
			return fmt.Errorf("step %q failed: %w", step.HumanLabel, err)
		}
		results = append(results, result)
	}

	r.printSummary(results)
	return nil
}

type stepResult struct {
	Label  string
	Action string // "written", "skipped", "overwritten"
	Path   string
}

func (r *BootstrapRunner) processStep(ctx context.Context, step BootstrapStep) (stepResult, error) {
	path := r.SSM.SSMPath(step.SSMCategoryKey)
	result := stepResult{Label: step.HumanLabel, Path: path}

	exists, err := r.SSM.ParameterExists(ctx, path)
	if err != nil {
		return result, fmt.Errorf("checking existence of %s: %w", path, err)
	}

	if exists {
		fmt.Fprintf(r.Stderr, "  Parameter already exists: %s\n", path)
		choice, err := r.promptChoice("  [S]kip or [O]verwrite? ", "overwrite")
		if err != nil {
			return result, fmt.Errorf("reading skip/overwrite choice: %w", err)
		}
		if choice == "skip" {
			fmt.Fprintf(r.Stderr, "  Skipped.\n")
			result.Action = "skipped"
			return result, nil
		}
	}

	value, err := r.promptAndValidate(ctx, step)
	if errors.Is(err, errSkipped) {
		fmt.Fprintf(r.Stderr, "  Skipped.\n")
		result.Action = "skipped"
		return result, nil
	}
	if err != nil {
		return result, err
	}

	if step.ParamType == ParamSecureString {
		err = r.SSM.PutSecret(ctx, path, value, exists)
	} else {
		err = r.SSM.PutString(ctx, path, value)
	}
	if err != nil {
		return result, fmt.Errorf("writing SSM parameter %s: %w", path, err)
	}

	result.Action = "written"
	if exists {
		result.Action = "overwritten"
	}
	fmt.Fprintf(r.Stderr, "  Stored: %s\n", path)
	return result, nil
}

// promptAndValidate reads a value, retrying up to maxRetries on validation
// failure. Secrets are never echoed back.
func (r *BootstrapRunner) promptAndValidate(ctx context.Context, step BootstrapStep) (string, error) {
	fmt.Fprintf(r.Stderr, "\n  %s\n\n", step.Prompt)

	for attempt := 1; attempt <= maxRetries; attempt++ {
		var input string
		var err error
		if step.IsSecret {
			input, err = r.readSecretInput("  > ")
		} else {
			input, err = r.readInput("  > ")
		}
		if err != nil {
			return "", fmt.Errorf("reading input for %s: %w", step.HumanLabel, err)
		}

		input = strings.TrimSpace(input)
		if input == "" {
			if step.Optional {
				return "", errSkipped
			}
			choice, err := r.promptChoice("  No input received. [S]kip this parameter or [R]etry? ", "retry")
			if err != nil {
				return "", fmt.Errorf("reading skip/retry choice for %s: %w", step.HumanLabel, err)
			}
			if choice == "skip" {
				return "", errSkipped
			}
			attempt--
			continue
		}

		if step.IsSecret {
			fmt.Fprintf(r.Stderr, "  Received %d chars.\n", len(input))
		}

		if step.ValidateFn != nil {
			vr := step.ValidateFn(ctx, input)
			if !vr.Valid {
				fmt.Fprintf(r.Stderr, "  Validation failed: %s\n", vr.Message)
				if attempt < maxRetries {
					fmt.Fprintf(r.Stderr, "  Try again (%d/%d).\n", attempt, maxRetries)
				}
				continue
			}
			fmt.Fprintf(r.Stderr, "  Validated: %s\n", vr.Message)
		}
		return input, nil
	}

	return "", fmt.Errorf("maximum retries (%d) exceeded for %s", maxRetries, step.HumanLabel)
}

func (r *BootstrapRunner) scanLine() (string, error) {
	if r.scanner == nil {
		r.scanner = bufio.NewScanner(r.Stdin)
	}
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return r.scanner.Text(), nil
}

func (r *BootstrapRunner) readInput(prompt string) (string, error) {
	fmt.Fprint(r.Stderr, prompt)
	return r.scanLine()
}

// readSecretInput disables echo when stdin is a terminal and falls back to a
// plain line read otherwise (piped input, tests).
func (r *BootstrapRunner) readSecretInput(prompt string) (string, error) {
	fmt.Fprint(r.Stderr, prompt)

	if f, ok := r.Stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		secret, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(r.Stderr)
		if err != nil {
			return "", fmt.Errorf("reading secret input: %w", err)
		}
		return string(secret), nil
	}
	return r.scanLine()
}

// promptChoice asks until the operator answers "skip" or alt (matched by
// full word or first letter).
func (r *BootstrapRunner) promptChoice(prompt, alt string) (string, error) {
	for {
		fmt.Fprint(r.Stderr, prompt)

		line, err := r.scanLine()
		if err != nil {
			return "", err
		}

		switch choice := strings.TrimSpace(strings.ToLower(line)); choice {
		case "s", "skip":
			return "skip", nil
		case alt[:1], alt:
			return alt, nil
		default:
			fmt.Fprintf(r.Stderr, "  Please enter 'S' to skip or '%s' to %s.\n", strings.ToUpper(alt[:1]), alt)
		}
	}
}

func (r *BootstrapRunner) printPhaseHeader(phase string) {
	fmt.Fprintf(r.Stderr, "\n============================================================\n")
	fmt.Fprintf(r.Stderr, "  Phase: %s\n", phase)
	fmt.Fprintf(r.Stderr, "============================================================\n")
}

func (r *BootstrapRunner) printSummary(results []stepResult) {
	fmt.Fprintf(r.Stderr, "\n============================================================\n")
	fmt.Fprintf(r.Stderr, "  Bootstrap Summary\n")
	fmt.Fprintf(r.Stderr, "============================================================\n")

	counts := map[string]int{}
	for _, res := range results {
		counts[res.Action]++
		fmt.Fprintf(r.Stderr, "  %-14s %s\n", "["+strings.ToUpper(res.Action)+"]", res.Label)
	}

	fmt.Fprintf(r.Stderr, "------------------------------------------------------------\n")
	fmt.Fprintf(r.Stderr, "  Total: %d parameters\n", len(results))
	fmt.Fprintf(r.Stderr, "  Written: %d | Overwritten: %d | Skipped: %d\n",
		counts["written"], counts["overwritten"], counts["skipped"])
	fmt.Fprintf(r.Stderr, "============================================================\n\n")
}
