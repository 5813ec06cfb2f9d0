package identity_test

import (
	"testing"
	"time"

	"github.com/merklebase/attestd/internal/identity"
)

func TestIssueAndVerify(t *testing.T) {
	issuer := identity.NewTokenIssuer([]byte("test-secret"), "attestd-test", time.Hour)

	token, err := issuer.Issue("biz-42")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	claims, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.BusinessID != "biz-42" {
		t.Errorf("business ID = %q, want biz-42", claims.BusinessID)
	}
	if claims.Issuer != "attestd-test" {
		t.Errorf("issuer = %q", claims.Issuer)
	}
}

func TestVerify_rejectsWrongSecret(t *testing.T) {
	a := identity.NewTokenIssuer([]byte("secret-a"), "attestd-test", time.Hour)
	b := identity.NewTokenIssuer([]byte("secret-b"), "attestd-test", time.Hour)

	token, err := a.Issue("biz-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := b.Verify(token); err == nil {
		t.Error("Verify accepted a token signed with a different secret")
	}
}

func TestVerify_rejectsWrongIssuer(t *testing.T) {
	a := identity.NewTokenIssuer([]byte("shared"), "issuer-a", time.Hour)
	b := identity.NewTokenIssuer([]byte("shared"), "issuer-b", time.Hour)

	token, err := a.Issue("biz-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := b.Verify(token); err == nil {
		t.Error("Verify accepted a token from a different issuer")
	}
}

func TestVerify_rejectsExpired(t *testing.T) {
	issuer := identity.NewTokenIssuer([]byte("secret"), "attestd-test", -time.Minute)

	token, err := issuer.Issue("biz-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := issuer.Verify(token); err == nil {
		t.Error("Verify accepted an expired token")
	}
}

func TestVerify_rejectsGarbage(t *testing.T) {
	issuer := identity.NewTokenIssuer([]byte("secret"), "attestd-test", time.Hour)
	if _, err := issuer.Verify("not-a-jwt"); err == nil {
		t.Error("Verify accepted garbage input")
	}
}
