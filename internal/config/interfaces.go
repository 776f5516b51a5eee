package config

import "context"

// SecretProvider abstracts the retrieval of secrets (the LWA client secret in
// particular) from AWS SSM Parameter Store in deployed environments or from
// environment variables during local development.
type SecretProvider interface {
	// GetParametersBatch resolves the given parameter paths and returns a map
	// of path -> plaintext value for every parameter that was found.
	GetParametersBatch(ctx context.Context, keys []string) (map[string]string, error)
}
