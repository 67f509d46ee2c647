package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/angelmondragon/basketcase/pkg/config"
	"github.com/angelmondragon/basketcase/pkg/enums"
)

func testAPIConfig() config.APIConfig {
	return config.APIConfig{
		JWTSecret:     "secret",
		JWTIssuer:     "basketcase",
		JWTTTLMinutes: 30,
	}
}

func TestMintAndParseAdminToken(t *testing.T) {
	cfg := testAPIConfig()
	now := time.Now().UTC()

	token, err := MintAdminToken(cfg, now, AdminTokenPayload{Operator: "ops@example.com", Role: enums.OperatorRoleAdmin})
	if err != nil {
		t.Fatalf("mint admin token: %v", err)
	}

	claims, err := ParseAdminToken(cfg, token)
	if err != nil {
		t.Fatalf("parse admin token: %v", err)
	}
	if claims.Operator() != "ops@example.com" {
		t.Fatalf("unexpected operator %q", claims.Operator())
	}
	if claims.Role != enums.OperatorRoleAdmin {
		t.Fatalf("unexpected role %s", claims.Role)
	}
	if claims.Issuer != cfg.JWTIssuer {
		t.Fatalf("expected issuer %s, got %s", cfg.JWTIssuer, claims.Issuer)
	}
	if claims.ID == "" {
		t.Fatal("expected generated jti")
	}

	exp := now.Add(30 * time.Minute)
	diff := claims.ExpiresAt.Sub(exp)
	if diff < 0 {
		diff = -diff
	}
	if diff >= time.Second {
		t.Fatalf("expected exp roughly %v, got %v", exp, claims.ExpiresAt.UTC())
	}
}

func TestParseAdminTokenInvalidSignature(t *testing.T) {
	cfg := testAPIConfig()
	token, err := MintAdminToken(cfg, time.Now(), AdminTokenPayload{Operator: "ops", Role: enums.OperatorRoleViewer})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	other := cfg
	other.JWTSecret = "different"
	if _, err := ParseAdminToken(other, token); err == nil {
		t.Fatal("expected signature validation error")
	}
}

func TestParseAdminTokenExpired(t *testing.T) {
	cfg := testAPIConfig()
	token, err := MintAdminToken(cfg, time.Now().Add(-2*time.Hour), AdminTokenPayload{Operator: "ops", Role: enums.OperatorRoleViewer})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	_, err = ParseAdminToken(cfg, token)
	if err == nil || !strings.Contains(err.Error(), "expired") {
		t.Fatalf("expected expiry error, got %v", err)
	}
}

func TestMintAdminTokenValidatesInput(t *testing.T) {
	cfg := testAPIConfig()
	if _, err := MintAdminToken(cfg, time.Now(), AdminTokenPayload{Role: enums.OperatorRoleAdmin}); err == nil {
		t.Fatal("expected operator required error")
	}
	if _, err := MintAdminToken(cfg, time.Now(), AdminTokenPayload{Operator: "ops", Role: "root"}); err == nil {
		t.Fatal("expected invalid role error")
	}
	noSecret := cfg
	noSecret.JWTSecret = ""
	if _, err := MintAdminToken(noSecret, time.Now(), AdminTokenPayload{Operator: "ops", Role: enums.OperatorRoleAdmin}); err == nil {
		t.Fatal("expected secret required error")
	}
}
