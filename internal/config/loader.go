// loader.go implements the configuration loading lifecycle.
//
// The loading sequence is:
//  1. Enforce UTC timezone so event timestamps are emitted in UTC.
//  2. Load .env file via godotenv (non-fatal if absent).
//  3. Scan environment for _SSM_PARAM suffix variables.
//  4. If APP_ENV != "local", resolve SSM parameters via the SecretProvider
//     and inject the resolved values back into the environment.
//  5. Use envconfig to process struct tags and populate the target struct.
//  6. Populate BuildInfo from linker-injected variables.
//  7. Validate the struct using go-playground/validator.
package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// ConfigError is a diagnostic error type returned by the loaders.
type ConfigError struct {
	Type    ConfigErrorType
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// ssmParamSuffix marks SSM pointer variables: LWA_CLIENT_SECRET_SSM_PARAM
// holds the SSM path of the LWA_CLIENT_SECRET value.
const ssmParamSuffix = "_SSM_PARAM"

// localEnv is the APP_ENV value that bypasses SSM resolution.
const localEnv = "local"

// ssmResolveTimeout bounds the batch SSM lookup during cold start.
const ssmResolveTimeout = 10 * time.Second

type envLookup func(key string) (string, bool)

type envSet func(key, value string) error

type environ func() []string

// loaderDeps holds the injectable dependencies for the loader, enabling
// testing without mutating global state.
type loaderDeps struct {
	lookupEnv envLookup
	setEnv    envSet
	environ   environ
	dotenv    func() error
}

// defaultDeps returns the standard OS-backed dependencies.
func defaultDeps() loaderDeps {
	return loaderDeps{
		lookupEnv: os.LookupEnv,
		setEnv:    os.Setenv,
		environ:   os.Environ,
		dotenv:    func() error { return godotenv.Load() },
	}
}

// LoadConfig loads and validates the Smart Home skill configuration.
//
// The provider is the SecretProvider used for _SSM_PARAM resolution. It may
// be nil for local development (APP_ENV=local), where SSM is skipped.
func LoadConfig(provider SecretProvider) (*Config, error) {
	var cfg Config
	if err := load(provider, defaultDeps(), &cfg); err != nil {
		return nil, err
	}
	cfg.Build = NewBuildInfo()
	return &cfg, nil
}

// LoadConsoleConfig loads and validates the doorbell console configuration.
func LoadConsoleConfig(provider SecretProvider) (*ConsoleConfig, error) {
	var cfg ConsoleConfig
	if err := load(provider, defaultDeps(), &cfg); err != nil {
		return nil, err
	}
	cfg.Build = NewBuildInfo()
	return &cfg, nil
}

// LoadMasterConfig loads and validates the camera master configuration.
func LoadMasterConfig(provider SecretProvider) (*MasterConfig, error) {
	var cfg MasterConfig
	if err := load(provider, defaultDeps(), &cfg); err != nil {
		return nil, err
	}
	cfg.Build = NewBuildInfo()
	return &cfg, nil
}

// load runs the full lifecycle against dst, which must be a pointer to a
// struct carrying envconfig and validate tags.
func load(provider SecretProvider, deps loaderDeps, dst any) error {
	// Step 1: Enforce UTC timezone.
	time.Local = time.UTC

	// Step 2: Load .env file (non-fatal if absent). godotenv does NOT override
	// variables that are already set.
	if deps.dotenv != nil {
		_ = deps.dotenv()
	}

	// Step 3 + 4: Resolve _SSM_PARAM pointers outside local development.
	appEnv, _ := deps.lookupEnv("APP_ENV")
	if appEnv != localEnv {
		if err := resolveSSMParams(provider, deps); err != nil {
			return err
		}
	}

	// Step 5: The empty prefix makes envconfig fall back to the exact tag
	// values (envconfig:"LWA_CLIENT_ID" reads LWA_CLIENT_ID).
	if err := envconfig.Process("", dst); err != nil {
		return &ConfigError{
			Type:    ErrParsing,
			Message: "failed to process environment configuration",
			Err:     err,
		}
	}

	// Step 7: Validate. BuildInfo (step 6) is set by the typed loaders.
	validate := validator.New()
	if err := validate.Struct(dst); err != nil {
		return &ConfigError{
			Type:    ErrValidation,
			Message: "configuration validation failed",
			Err:     err,
		}
	}

	return nil
}

// resolveSSMParams scans the environment for variables ending in _SSM_PARAM,
// fetches the corresponding values via the SecretProvider, and injects them
// back into the environment so that envconfig can process them.
//
// If the target variable is already set in the environment (direct env var or
// .env file), the SSM resolution is skipped for that variable.
func resolveSSMParams(provider SecretProvider, deps loaderDeps) error {
	type ssmBinding struct {
		targetEnvVar string // e.g., LWA_CLIENT_SECRET
		ssmPath      string // e.g., /prod/doorbell/lwa/client_secret
	}

	var bindings []ssmBinding
	ssmPathToTarget := make(map[string]string)

	for _, envEntry := range deps.environ() {
		eqIdx := strings.IndexByte(envEntry, '=')
		if eqIdx < 0 {
			continue
		}
		key := envEntry[:eqIdx]
		if !strings.HasSuffix(key, ssmParamSuffix) {
			continue
		}

		targetEnvVar := strings.TrimSuffix(key, ssmParamSuffix)
		if _, exists := deps.lookupEnv(targetEnvVar); exists {
			continue
		}

		ssmPath := envEntry[eqIdx+1:]
		if ssmPath == "" {
			continue
		}

		bindings = append(bindings, ssmBinding{targetEnvVar: targetEnvVar, ssmPath: ssmPath})
		ssmPathToTarget[ssmPath] = targetEnvVar
	}

	if len(bindings) == 0 {
		return nil
	}

	if provider == nil {
		targetVars := make([]string, 0, len(bindings))
		for _, b := range bindings {
			targetVars = append(targetVars, b.targetEnvVar)
		}
		return &ConfigError{
			Type:    ErrSSMResolution,
			Message: fmt.Sprintf("SecretProvider is required for non-local environments (need to resolve: %s)", strings.Join(targetVars, ", ")),
		}
	}

	ssmPaths := make([]string, 0, len(bindings))
	for _, b := range bindings {
		ssmPaths = append(ssmPaths, b.ssmPath)
	}

	ctx, cancel := context.WithTimeout(context.Background(), ssmResolveTimeout)
	defer cancel()

	resolved, err := provider.GetParametersBatch(ctx, ssmPaths)
	if err != nil {
		return &ConfigError{
			Type:    ErrSSMResolution,
			Message: fmt.Sprintf("failed to resolve %d SSM parameters", len(ssmPaths)),
			Err:     err,
		}
	}

	for ssmPath, value := range resolved {
		targetEnvVar, ok := ssmPathToTarget[ssmPath]
		if !ok {
			continue
		}
		if err := deps.setEnv(targetEnvVar, value); err != nil {
			return &ConfigError{
				Type:    ErrSSMResolution,
				Message: fmt.Sprintf("failed to set resolved value for %s", targetEnvVar),
				Err:     err,
			}
		}
	}

	var missing []string
	for _, b := range bindings {
		if _, ok := resolved[b.ssmPath]; !ok {
			missing = append(missing, b.targetEnvVar)
		}
	}
	if len(missing) > 0 {
		return &ConfigError{
			Type:    ErrSSMResolution,
			Message: fmt.Sprintf("SSM parameters not found for: %s", strings.Join(missing, ", ")),
		}
	}

	return nil
}
