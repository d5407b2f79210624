package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/slotline/slotline/libs/auth"
)

const testSecret = "test-secret"

func signedToken(t *testing.T, sub, role string) string {
	t.Helper()
	now := time.Now()
	token, err := auth.SignHS256(auth.Claims{
		Sub:  sub,
		Role: role,
		Iat:  now.Unix(),
		Exp:  now.Add(time.Hour).Unix(),
	}, testSecret)
	if err != nil {
		t.Fatalf("SignHS256: %v", err)
	}
	return token
}

func TestVerifier_RequireRole(t *testing.T) {
	v := NewVerifier(testSecret, nil)

	var gotProvider string
	protected := v.RequireRole(func(w http.ResponseWriter, r *http.Request) {
		gotProvider = r.Header.Get("X-Provider-Id")
		w.WriteHeader(http.StatusOK)
	}, "provider")

	// No token.
	rec := httptest.NewRecorder()
	protected(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token: status = %d", rec.Code)
	}

	// Wrong role.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signedToken(t, "client-1", "client"))
	rec = httptest.NewRecorder()
	protected(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("wrong role: status = %d", rec.Code)
	}

	// Right role: the subject id overrides any caller-supplied header.
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signedToken(t, "prov-1", "provider"))
	req.Header.Set("X-Provider-Id", "prov-spoofed")
	rec = httptest.NewRecorder()
	protected(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("valid token: status = %d", rec.Code)
	}
	if gotProvider != "prov-1" {
		t.Fatalf("provider header = %q, want token subject", gotProvider)
	}
}

func TestVerifier_RejectsTamperedToken(t *testing.T) {
	v := NewVerifier(testSecret, nil)
	token := signedToken(t, "prov-1", "provider") + "x"

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	if _, err := v.Claims(req); err == nil {
		t.Fatal("tampered token accepted")
	}
}
