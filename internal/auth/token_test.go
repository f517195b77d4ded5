package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

func TestVerifierDisabledAcceptsEverything(t *testing.T) {
	v, err := NewTokenVerifier("", "", "")
	if err != nil {
		t.Fatalf("NewTokenVerifier returned %v", err)
	}
	if v.Enabled() {
		t.Fatal("Enabled returned true with nothing configured")
	}
	if err := v.Verify(""); err != nil {
		t.Fatalf("Verify returned %v, want nil", err)
	}
}

func TestVerifierStaticToken(t *testing.T) {
	v, _ := NewTokenVerifier("s3cret", "", "")

	if err := v.Verify("s3cret"); err != nil {
		t.Fatalf("Verify returned %v for the right token", err)
	}
	for _, token := range []string{"", "wrong", "s3cret "} {
		if err := v.Verify(token); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("Verify(%q) returned %v, want ErrInvalidToken", token, err)
		}
	}
}

func TestVerifierBcryptHash(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hashed-token"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("GenerateFromPassword returned %v", err)
	}
	v, err := NewTokenVerifier("", string(hash), "")
	if err != nil {
		t.Fatalf("NewTokenVerifier returned %v", err)
	}

	if err := v.Verify("hashed-token"); err != nil {
		t.Fatalf("Verify returned %v for the right token", err)
	}
	if err := v.Verify("other"); err == nil {
		t.Fatal("Verify accepted a token that does not match the hash")
	}

	if _, err := NewTokenVerifier("", "not-a-hash", ""); err == nil {
		t.Fatal("NewTokenVerifier accepted an invalid bcrypt hash")
	}
}

func TestVerifierJWT(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	v, _ := NewTokenVerifier("", "", "jwt-secret")
	v.now = func() time.Time { return now }

	token, err := v.IssueToken("fortigate-01", time.Hour)
	if err != nil {
		t.Fatalf("IssueToken returned %v", err)
	}
	if err := v.Verify(token); err != nil {
		t.Fatalf("Verify returned %v for a fresh token", err)
	}

	other, _ := NewTokenVerifier("", "", "different-secret")
	other.now = v.now
	forged, _ := other.IssueToken("fortigate-01", time.Hour)
	if err := v.Verify(forged); err == nil {
		t.Fatal("Verify accepted a token signed with another secret")
	}

	now = now.Add(2 * time.Hour)
	if err := v.Verify(token); err == nil {
		t.Fatal("Verify accepted an expired token")
	}
}

func TestIssueTokenWithoutSecret(t *testing.T) {
	v, _ := NewTokenVerifier("static", "", "")
	if _, err := v.IssueToken("x", time.Hour); err == nil {
		t.Fatal("IssueToken succeeded without a JWT secret")
	}
}

func TestRequireToken(t *testing.T) {
	v, _ := NewTokenVerifier("s3cret", "", "")
	handler := RequireToken(v)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	cases := []struct {
		name   string
		target string
		want   int
	}{
		{"missing", "/tags", http.StatusForbidden},
		{"wrong", "/tags?token=nope", http.StatusForbidden},
		{"right", "/tags?token=s3cret", http.StatusNoContent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tc.target, nil))
			if rec.Code != tc.want {
				t.Fatalf("status = %d, want %d", rec.Code, tc.want)
			}
			if tc.want == http.StatusForbidden && rec.Body.String() != "{\"detail\":\"Forbidden\"}\n" {
				t.Fatalf("body = %q", rec.Body.String())
			}
		})
	}
}
