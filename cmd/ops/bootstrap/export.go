package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
)

// ExportEnvConfig controls ExportEnvFile.
type ExportEnvConfig struct {
	OutputPath  string
	Environment string

	// AWSRegion is written as KVS_REGION; the channel lives in the region
	// the parameters were bootstrapped in.
	AWSRegion string

	SSM       *SSMManager
	Inventory []BootstrapStep
	Stderr    io.Writer
}

// ExportEnvFile writes a .env file the config loaders understand. Plain
// parameters are written by value. SecureString parameters are written as
// KEY_SSM_PARAM=/path so that the secret never lands on disk and is
// resolved from SSM at startup. Parameters missing from SSM are left out.
func ExportEnvFile(ctx context.Context, cfg ExportEnvConfig) error {
	if cfg.OutputPath == "" {
		return fmt.Errorf("export path must not be empty")
	}

	vars := map[string]string{
		"APP_ENV": cfg.Environment,
	}
	if cfg.AWSRegion != "" {
		vars["KVS_REGION"] = cfg.AWSRegion
		vars["AWS_REGION"] = cfg.AWSRegion
	}

	var missing []string
	for _, step := range cfg.Inventory {
		path := cfg.SSM.SSMPath(step.SSMCategoryKey)

		exists, err := cfg.SSM.ParameterExists(ctx, path)
		if err != nil {
			return err
		}
		if !exists {
			missing = append(missing, path)
			continue
		}
		if step.ParamType == ParamSecureString {
			vars[step.EnvVar+"_SSM_PARAM"] = path
			continue
		}

		value, err := cfg.SSM.GetParameterValue(ctx, path, false)
		if err != nil {
			return err
		}
		vars[step.EnvVar] = value
	}

	body, err := godotenv.Marshal(vars)
	if err != nil {
		return fmt.Errorf("rendering env file: %w", err)
	}
	content := "# Generated by cmd/ops/bootstrap. Secrets are referenced by SSM path.\n" + body + "\n"
	if err := os.WriteFile(cfg.OutputPath, []byte(content), 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", cfg.OutputPath, err)
	}

	if cfg.Stderr != nil {
		fmt.Fprintf(cfg.Stderr, "  Wrote %d variables to %s\n", len(vars), cfg.OutputPath)
		for _, path := range missing {
			fmt.Fprintf(cfg.Stderr, "  Not set in SSM (left out): %s\n", path)
		}
	}
	return nil
}
