// Package config builds process configuration from the environment.
//
// The tenant routing table is discovered once at startup from
// TENANT_<NAME>_TOOLS_URL environment variables and passed down
// explicitly; nothing in this package is consulted after Load returns.
package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/joho/godotenv"
)

const (
	tenantEnvPrefix = "TENANT_"
	tenantEnvSuffix = "_TOOLS_URL"

	DefaultGeminiHost  = "https://generativelanguage.googleapis.com"
	DefaultGeminiModel = "gemini-2.5-pro"
	DefaultEmbedModel  = "gemini-embedding-001"
)

// Tenant maps a tenant identifier to its tool server endpoint.
type Tenant struct {
	ID       string
	Endpoint string
}

// Config holds everything the orchestrator and tool server need at startup.
type Config struct {
	// Tenants is the static tenant -> tool server routing table.
	Tenants []Tenant

	// GeminiAPIKey enables the LLM client and the embedder. An empty key is
	// tolerated at startup; agent construction fails later without it.
	GeminiAPIKey string

	GeminiHost  string
	GeminiModel string
	EmbedModel  string

	// SessionDBPath is the sqlite file backing session memory.
	// Empty disables session memory (the store degrades to a no-op).
	SessionDBPath string
}

// LoadEnvFiles loads .env.local and .env if present. Missing files are fine.
func LoadEnvFiles() error {
	for _, file := range []string{".env.local", ".env"} {
		if err := godotenv.Load(file); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to load %s: %w", file, err)
		}
	}
	return nil
}

// Load builds a Config from the process environment.
func Load() (*Config, error) {
	if err := LoadEnvFiles(); err != nil {
		return nil, err
	}

	cfg := &Config{
		Tenants:       TenantsFromEnviron(os.Environ()),
		GeminiAPIKey:  os.Getenv("GEMINI_API_KEY"),
		GeminiHost:    envOr("GEMINI_HOST", DefaultGeminiHost),
		GeminiModel:   envOr("GEMINI_MODEL", DefaultGeminiModel),
		EmbedModel:    envOr("GEMINI_EMBED_MODEL", DefaultEmbedModel),
		SessionDBPath: envOr("SESSION_DB_PATH", "data/sessions.db"),
	}

	return cfg, nil
}

// TenantsFromEnviron discovers the tenant routing table from "KEY=VALUE"
// pairs. A variable TENANT_ACME_TOOLS_URL=http://... registers tenant
// "tenant_acme" at that endpoint. When nothing is discovered, a fixed pair
// of local endpoints is used so a bare `askdata serve` still works.
func TenantsFromEnviron(environ []string) []Tenant {
	var tenants []Tenant
	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || value == "" {
			continue
		}
		if !strings.HasPrefix(key, tenantEnvPrefix) || !strings.HasSuffix(key, tenantEnvSuffix) {
			continue
		}
		tenants = append(tenants, Tenant{
			ID:       strings.ToLower(strings.TrimSuffix(key, tenantEnvSuffix)),
			Endpoint: value,
		})
	}

	if len(tenants) == 0 {
		return []Tenant{
			{ID: "tenant_a", Endpoint: "http://localhost:3001/rpc"},
			{ID: "tenant_b", Endpoint: "http://localhost:3002/rpc"},
		}
	}

	// Environment iteration order is not stable; keep the table deterministic.
	sort.Slice(tenants, func(i, j int) bool { return tenants[i].ID < tenants[j].ID })
	return tenants
}

// Endpoint returns the tool server endpoint for a tenant id.
func (c *Config) Endpoint(tenantID string) (string, bool) {
	for _, t := range c.Tenants {
		if t.ID == tenantID {
			return t.Endpoint, true
		}
	}
	return "", false
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
