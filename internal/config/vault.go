// Package config loads process configuration from Vault's KV v2 engine,
// following the bootstrap sequence every app in this codebase uses: read
// VAULT_ADDR/VAULT_TOKEN/VAULT_SECRET_PATH from the environment and fetch
// the secret map once at startup. LoadSettings falls back to environment
// variables and in-code defaults for any key the secret map lacks.
package config

import (
	"fmt"
	"os"

	"github.com/hashicorp/vault/api"
)

// SecretManager wraps the Vault API client for reading secrets.
type SecretManager struct {
	client *api.Client
}

// NewSecretManager creates a Vault client pointed at the given address and
// authenticated with the provided token.
func NewSecretManager(address, token string) (*SecretManager, error) {
	cfg := api.DefaultConfig()
	cfg.Address = address

	client, err := api.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("vault client initialization failed: %w", err)
	}
	client.SetToken(token)

	return &SecretManager{client: client}, nil
}

// GetSecret reads a secret at the given path and returns the raw data map.
// For KV v2 backends the caller must unwrap the nested "data" key.
func (s *SecretManager) GetSecret(path string) (map[string]interface{}, error) {
	secret, err := s.client.Logical().Read(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read secret at %s: %w", path, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("no data found at %s", path)
	}
	return secret.Data, nil
}

// GetKV2 is a convenience wrapper that reads from a KV v2 backend and
// returns the inner "data" map, unwrapping the v2 envelope automatically.
func (s *SecretManager) GetKV2(path string) (map[string]interface{}, error) {
	raw, err := s.GetSecret(path)
	if err != nil {
		return nil, err
	}
	data, ok := raw["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected data format at %s", path)
	}
	return data, nil
}

// Settings is the fully-resolved runtime configuration for the access-core
// process, merged from Vault secrets and environment fallbacks.
type Settings struct {
	PGUrl                  string
	NATSUrl                string
	RedisURL               string
	InstanceID             string
	DispatchBatchSize      int
	DispatchInterval       int // milliseconds
	LockTTLSeconds         int
	RetryMaxAttempts       int
	RetryBaseMillis        int
	RetryMaxMillis         int
	CacheTTLSeconds        int
	TransportURL           string
	TransportTimeoutMillis int
	SlackBotToken          string
	SlackChannel           string
}

// stringSecret reads key from secrets as a string, falling back to def.
func stringSecret(secrets map[string]interface{}, key, def string) string {
	if v, ok := secrets[key].(string); ok && v != "" {
		return v
	}
	return def
}

// LoadSettings assembles Settings from the Vault secret map, falling back
// to environment variables and, finally, to the in-code defaults used in
// local/dev compose environments.
func LoadSettings(secrets map[string]interface{}) Settings {
	s := Settings{
		PGUrl:                  stringSecret(secrets, "PG_URL", os.Getenv("PG_URL")),
		NATSUrl:                stringSecret(secrets, "NATS_URL", envOr("NATS_URL", "nats://localhost:4222")),
		RedisURL:               stringSecret(secrets, "REDIS_URL", envOr("REDIS_URL", "")),
		InstanceID:             stringSecret(secrets, "INSTANCE_ID", envOr("INSTANCE_ID", hostnameOrDefault())),
		DispatchBatchSize:      envInt("DISPATCH_BATCH_SIZE", 50),
		DispatchInterval:       envInt("DISPATCH_INTERVAL_MS", 1000),
		LockTTLSeconds:         envInt("LOCK_TTL_SECONDS", 30),
		RetryMaxAttempts:       envInt("RETRY_MAX_ATTEMPTS", 8),
		RetryBaseMillis:        envInt("RETRY_BASE_MS", 500),
		RetryMaxMillis:         envInt("RETRY_MAX_MS", 60000),
		CacheTTLSeconds:        envInt("CACHE_TTL_SECONDS", 300),
		TransportURL:           stringSecret(secrets, "TRANSPORT_URL", os.Getenv("TRANSPORT_URL")),
		TransportTimeoutMillis: envInt("TRANSPORT_TIMEOUT_MS", 5000),
		SlackBotToken:          stringSecret(secrets, "SLACK_BOT_TOKEN", os.Getenv("SLACK_BOT_TOKEN")),
		SlackChannel:           stringSecret(secrets, "DLQ_SLACK_CHANNEL", os.Getenv("DLQ_SLACK_CHANNEL")),
	}
	return s
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n := 0
	for _, c := range v {
		if c < '0' || c > '9' {
			return def
		}
		n = n*10 + int(c-'0')
	}
	return n
}

func hostnameOrDefault() string {
	h, err := os.Hostname()
	if err != nil || h == "" {
		return "access-core-instance"
	}
	return h
}
