package tenant

import (
	"context"
	"testing"
)

// fakeSlugLookup counts store hits so tests can assert the demo tenant
// never reaches persistent storage.
type fakeSlugLookup struct {
	orgs    map[string]*Organization
	lookups int
}

func (f *fakeSlugLookup) GetBySlug(_ context.Context, slug string) (*Organization, error) {
	f.lookups++
	o, ok := f.orgs[slug]
	if !ok {
		return nil, ErrNotFound
	}
	return o, nil
}

func TestResolve_ExactMatch(t *testing.T) {
	store := &fakeSlugLookup{orgs: map[string]*Organization{
		"acme": {ID: "org1", Slug: "acme"},
	}}
	r := NewResolver(store, true)

	o, err := r.Resolve(context.Background(), "acme")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if o.ID != "org1" {
		t.Errorf("expected org1, got %s", o.ID)
	}
}

func TestResolve_NoFuzzyMatching(t *testing.T) {
	store := &fakeSlugLookup{orgs: map[string]*Organization{
		"acme": {ID: "org1", Slug: "acme"},
	}}
	r := NewResolver(store, true)

	for _, slug := range []string{"ACME", "Acme", "acme ", "acm"} {
		if _, err := r.Resolve(context.Background(), slug); err != ErrNotFound {
			t.Errorf("Resolve(%q) should be ErrNotFound, got %v", slug, err)
		}
	}
}

func TestResolve_DemoSkipsStore(t *testing.T) {
	store := &fakeSlugLookup{}
	r := NewResolver(store, true)

	o, err := r.Resolve(context.Background(), DemoSlug)
	if err != nil {
		t.Fatalf("Resolve(demo) failed: %v", err)
	}
	if o.ID != DemoOrganizationID {
		t.Errorf("expected demo organization id, got %s", o.ID)
	}
	if store.lookups != 0 {
		t.Errorf("demo resolution must not touch the store, got %d lookups", store.lookups)
	}
}

func TestResolve_DemoDisabled(t *testing.T) {
	store := &fakeSlugLookup{}
	r := NewResolver(store, false)

	if _, err := r.Resolve(context.Background(), DemoSlug); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound with demo disabled, got %v", err)
	}
	if store.lookups != 1 {
		t.Errorf("expected regular store lookup with demo disabled")
	}
}

func TestDemoOrganization_FreshPerCall(t *testing.T) {
	a := DemoOrganization()
	a.Settings["poisoned"] = true

	b := DemoOrganization()
	if _, ok := b.Settings["poisoned"]; ok {
		t.Error("DemoOrganization must not share mutable state between calls")
	}
}

func TestIsDemo(t *testing.T) {
	if !IsDemo(DemoOrganizationID) {
		t.Error("IsDemo(DemoOrganizationID) = false")
	}
	if IsDemo("11111111-1111-1111-1111-111111111111") {
		t.Error("IsDemo should be false for other ids")
	}
}

func TestValidSlug(t *testing.T) {
	tests := []struct {
		slug string
		want bool
	}{
		{"acme", true},
		{"acme-tax", true},
		{"a1b2c3", true},
		{"ab", false},              // too short
		{"Acme", false},            // upper case
		{"-acme", false},           // leading dash
		{"acme-", false},           // trailing dash
		{"demo", false},            // demo literal
		{"api", false},             // reserved
		{"login", false},           // reserved
		{"acme tax", false},        // space
		{"ümlaut", false},          // non-ascii
	}
	for _, tt := range tests {
		if got := ValidSlug(tt.slug); got != tt.want {
			t.Errorf("ValidSlug(%q) = %v, want %v", tt.slug, got, tt.want)
		}
	}
}

func TestIsReservedSlug_DemoCarveOut(t *testing.T) {
	// The demo slug routes as a tenant even though it could collide with
	// reserved routing.
	if IsReservedSlug(DemoSlug) {
		t.Error("demo must not be in the reserved set")
	}
	if !IsReservedSlug("api") || !IsReservedSlug("login") {
		t.Error("expected api and login reserved")
	}
}
