package identity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newClerkForTest(t *testing.T, handler http.HandlerFunc) *ClerkProvider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewClerkProvider(ClerkConfig{
		SecretKey:  "sk_clerk_test",
		APIBaseURL: server.URL,
	})
}

func TestVerifiedEmailPrefersPrimaryAddress(t *testing.T) {
	provider := newClerkForTest(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/users/user-1" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk_clerk_test" {
			t.Fatalf("unexpected authorization header: %s", r.Header.Get("Authorization"))
		}
		_, _ = w.Write([]byte(`{
			"primary_email_address_id": "addr-2",
			"email_addresses": [
				{"id": "addr-1", "email_address": "old@example.com"},
				{"id": "addr-2", "email_address": "ana@example.com"}
			]
		}`))
	})

	email, err := provider.VerifiedEmail(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("verified email failed: %v", err)
	}
	if email != "ana@example.com" {
		t.Fatalf("expected the primary address, got %q", email)
	}
}

func TestVerifiedEmailFallsBackToFirstAddress(t *testing.T) {
	provider := newClerkForTest(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"primary_email_address_id": "addr-missing",
			"email_addresses": [
				{"id": "addr-1", "email_address": "ana@example.com"}
			]
		}`))
	})

	email, err := provider.VerifiedEmail(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("verified email failed: %v", err)
	}
	if email != "ana@example.com" {
		t.Fatalf("expected the first address, got %q", email)
	}
}

func TestVerifiedEmailFailsWithoutAddresses(t *testing.T) {
	provider := newClerkForTest(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"primary_email_address_id": "", "email_addresses": []}`))
	})

	_, err := provider.VerifiedEmail(context.Background(), "user-1")
	if err == nil {
		t.Fatal("expected an error for a user without addresses")
	}
}

func TestVerifiedEmailRequiresUserID(t *testing.T) {
	provider := newClerkForTest(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected without a user id")
	})

	_, err := provider.VerifiedEmail(context.Background(), "")
	if err == nil {
		t.Fatal("expected an error for a missing user id")
	}
}
