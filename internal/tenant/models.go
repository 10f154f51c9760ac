package tenant

import (
	"errors"
	"regexp"
	"time"
)

// Organization is an isolated customer account. All business data is
// partitioned by its ID; the slug is the sole tenant-routing key and is
// immutable after creation.
type Organization struct {
	ID        string         `json:"id"`
	Slug      string         `json:"slug"`
	Name      string         `json:"name"`
	Plan      string         `json:"plan"`
	Settings  map[string]any `json:"settings"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// CreateOrganizationInput is the input for registering an organization.
type CreateOrganizationInput struct {
	Slug string
	Name string
	Plan string
}

var (
	// ErrNotFound is returned when no organization matches a slug or id.
	ErrNotFound = errors.New("organization not found")
	// ErrSlugTaken is returned when the requested slug already exists.
	ErrSlugTaken = errors.New("organization slug already taken")
)

// DemoSlug is the reserved slug of the shared read-only demo tenant.
const DemoSlug = "demo"

// DemoOrganizationID is the fixed identity of the demo tenant. It never
// exists in the database; any resolved request carrying it must reject
// mutations.
const DemoOrganizationID = "00000000-0000-0000-0000-000000000001"

// DemoOrganization returns the fixed demo tenant. It is constructed fresh
// per call so callers cannot mutate shared state.
func DemoOrganization() *Organization {
	return &Organization{
		ID:   DemoOrganizationID,
		Slug: DemoSlug,
		Name: "Musterkanzlei Schmidt & Partner",
		Plan: "demo",
		Settings: map[string]any{
			"locale": "de-DE",
		},
	}
}

// IsDemo reports whether orgID is the demo tenant identity.
func IsDemo(orgID string) bool {
	return orgID == DemoOrganizationID
}

// reservedSlugs are first path segments that can never be tenant slugs.
// The demo slug is deliberately absent: it routes as a tenant.
var reservedSlugs = map[string]struct{}{
	"api":      {},
	"assets":   {},
	"static":   {},
	"login":    {},
	"signup":   {},
	"logout":   {},
	"health":   {},
	"metrics":  {},
	"pricing":  {},
	"features": {},
	"imprint":  {},
	"privacy":  {},
	"terms":    {},
	"contact":  {},
	"admin":    {},
	"www":      {},
	"favicon.ico": {},
	"robots.txt":  {},
}

// IsReservedSlug reports whether s collides with a reserved route segment
// and therefore cannot be used as an organization slug.
func IsReservedSlug(s string) bool {
	_, ok := reservedSlugs[s]
	return ok
}

var slugPattern = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9-]{1,38}[a-z0-9])?$`)

// ValidSlug reports whether s is an acceptable new organization slug:
// 3-40 chars of [a-z0-9-], no leading/trailing dash, not reserved and not
// the demo literal.
func ValidSlug(s string) bool {
	if len(s) < 3 || len(s) > 40 {
		return false
	}
	if s == DemoSlug || IsReservedSlug(s) {
		return false
	}
	return slugPattern.MatchString(s)
}
