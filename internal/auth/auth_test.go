package auth

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

// fakeCredentialStore records lookups so tests can assert whether the
// verifier touched the store at all.
type fakeCredentialStore struct {
	creds   map[string]*Credentials
	lookups int
}

func (f *fakeCredentialStore) GetCredentialsByEmail(_ context.Context, email string) (*Credentials, error) {
	f.lookups++
	c, ok := f.creds[email]
	if !ok {
		return nil, errors.New("not found")
	}
	return c, nil
}

func newFakeCredentialStore(t *testing.T, email, password string, p Principal) *fakeCredentialStore {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	return &fakeCredentialStore{
		creds: map[string]*Credentials{
			email: {Principal: p, PasswordHash: string(hash)},
		},
	}
}

func TestVerifyCredentials_EmptyInputSkipsStore(t *testing.T) {
	store := &fakeCredentialStore{}

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{"empty email", "", "password1!"},
		{"empty password", "a@b.com", ""},
		{"both empty", "", ""},
		{"blank email", "   ", "password1!"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := VerifyCredentials(context.Background(), store, tt.email, tt.password)
			if !errors.Is(err, ErrInvalidCredentials) {
				t.Fatalf("expected ErrInvalidCredentials, got %v", err)
			}
		})
	}

	if store.lookups != 0 {
		t.Fatalf("expected zero store lookups for malformed input, got %d", store.lookups)
	}
}

func TestVerifyCredentials_UnknownEmail(t *testing.T) {
	store := newFakeCredentialStore(t, "known@acme.test", "correct horse", Principal{ID: "u1"})

	_, err := VerifyCredentials(context.Background(), store, "unknown@acme.test", "whatever")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestVerifyCredentials_WrongPassword(t *testing.T) {
	store := newFakeCredentialStore(t, "known@acme.test", "correct horse", Principal{ID: "u1"})

	_, err := VerifyCredentials(context.Background(), store, "known@acme.test", "wrong horse")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestVerifyCredentials_SameErrorForBothFailures(t *testing.T) {
	store := newFakeCredentialStore(t, "known@acme.test", "correct horse", Principal{ID: "u1"})

	_, errUnknown := VerifyCredentials(context.Background(), store, "nobody@acme.test", "x")
	_, errWrong := VerifyCredentials(context.Background(), store, "known@acme.test", "x")

	if errUnknown.Error() != errWrong.Error() {
		t.Fatalf("failure causes must be indistinguishable: %q vs %q", errUnknown, errWrong)
	}
}

func TestVerifyCredentials_Success(t *testing.T) {
	want := Principal{
		ID:               "u1",
		Email:            "owner@acme.test",
		Role:             RoleOwner,
		OrganizationID:   "org1",
		OrganizationSlug: "acme",
	}
	store := newFakeCredentialStore(t, "owner@acme.test", "correct horse", want)

	// Email should be normalized before lookup.
	got, err := VerifyCredentials(context.Background(), store, "  Owner@Acme.TEST ", "correct horse")
	if err != nil {
		t.Fatalf("VerifyCredentials failed: %v", err)
	}
	if got.ID != want.ID || got.OrganizationSlug != want.OrganizationSlug || got.Role != want.Role {
		t.Fatalf("principal mismatch: got %+v", got)
	}
}

func TestNormalizeEmail(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"User@Example.COM", "user@example.com"},
		{"  a@b.com  ", "a@b.com"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeEmail(tt.in); got != tt.want {
			t.Errorf("NormalizeEmail(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestValidRole(t *testing.T) {
	for _, role := range []string{RoleOwner, RoleAdmin, RoleMember} {
		if !ValidRole(role) {
			t.Errorf("ValidRole(%q) = false", role)
		}
	}
	for _, role := range []string{"", "superuser", "org_admin"} {
		if ValidRole(role) {
			t.Errorf("ValidRole(%q) = true", role)
		}
	}
}
