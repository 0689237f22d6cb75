package agent

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ocakhasan/askdata/pkg/config"
	"github.com/ocakhasan/askdata/pkg/llms"
	"github.com/ocakhasan/askdata/pkg/tools"
)

// Registry caches one agent per tenant for the process lifetime.
// Invalidate drops a tenant so the next request rebuilds it, for example
// after a tool server redeploy changes its capabilities.
type Registry struct {
	provider llms.Provider

	mu     sync.RWMutex
	agents map[string]*Agent
}

// NewRegistry creates an empty registry bound to an LLM provider.
func NewRegistry(provider llms.Provider) *Registry {
	return &Registry{
		provider: provider,
		agents:   make(map[string]*Agent),
	}
}

// GetOrCreate returns the cached agent for a tenant, building it on first
// use. Concurrent first requests for the same tenant may both run discovery;
// the last insert wins. The handles are functionally equivalent, so the
// duplicate work is wasteful but harmless.
func (r *Registry) GetOrCreate(ctx context.Context, tenantID, endpoint string) *Agent {
	r.mu.RLock()
	cached := r.agents[tenantID]
	r.mu.RUnlock()
	if cached != nil {
		return cached
	}

	handles := tools.Discover(ctx, endpoint)
	built := New(tenantID, r.provider, handles)
	slog.Info("built agent", "tenant", tenantID, "tools", len(handles))

	r.mu.Lock()
	r.agents[tenantID] = built
	r.mu.Unlock()
	return built
}

// Invalidate removes a tenant's cached agent.
func (r *Registry) Invalidate(tenantID string) {
	r.mu.Lock()
	delete(r.agents, tenantID)
	r.mu.Unlock()
}

// WarmUp builds agents for every known tenant concurrently so the first
// request does not pay for discovery.
func (r *Registry) WarmUp(ctx context.Context, tenants []config.Tenant) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, tenant := range tenants {
		tenant := tenant
		g.Go(func() error {
			r.GetOrCreate(ctx, tenant.ID, tenant.Endpoint)
			return nil
		})
	}
	return g.Wait()
}
