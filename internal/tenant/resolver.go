package tenant

import "context"

// SlugLookup is the store capability the resolver needs.
type SlugLookup interface {
	GetBySlug(ctx context.Context, slug string) (*Organization, error)
}

// Resolver maps URL slugs to organizations. It is read-only and
// side-effect-free; the demo slug short-circuits to the fixed demo tenant
// without touching the store.
type Resolver struct {
	store       SlugLookup
	demoEnabled bool
}

// NewResolver creates a resolver over the given store.
func NewResolver(store SlugLookup, demoEnabled bool) *Resolver {
	return &Resolver{store: store, demoEnabled: demoEnabled}
}

// Resolve returns the organization for slug. A miss is ErrNotFound.
func (r *Resolver) Resolve(ctx context.Context, slug string) (*Organization, error) {
	if r.demoEnabled && slug == DemoSlug {
		return DemoOrganization(), nil
	}
	return r.store.GetBySlug(ctx, slug)
}
