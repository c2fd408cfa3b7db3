package service_test

import (
	"testing"
	"time"

	"codegame/internal/gateway/service"
	pkgerrors "codegame/pkg/errors"

	"github.com/golang-jwt/jwt/v5"
)

func TestAuthServiceIssueAndAuthenticate(t *testing.T) {
	authService := service.NewAuthService("test-secret", "codegame")

	token, err := authService.Issue("c-123")
	if err != nil {
		t.Fatalf("issue token failed: %v", err)
	}
	id, err := authService.Authenticate(token)
	if err != nil {
		t.Fatalf("expected auth success, got error: %v", err)
	}
	if id != "c-123" {
		t.Fatalf("unexpected contestant id: %s", id)
	}

	other := service.NewAuthService("other-secret", "codegame")
	if _, err := other.Authenticate(token); pkgerrors.GetCode(err) != pkgerrors.TokenInvalid {
		t.Fatalf("expected token invalid for foreign secret, got %v", err)
	}

	wrongIssuer := service.NewAuthService("test-secret", "elsewhere")
	if _, err := wrongIssuer.Authenticate(token); pkgerrors.GetCode(err) != pkgerrors.TokenInvalid {
		t.Fatalf("expected token invalid for issuer mismatch, got %v", err)
	}
}

func TestAuthServiceAcceptsLegacyClaims(t *testing.T) {
	authService := service.NewAuthService("", "")
	raw := signMapClaims(t, "dev", jwt.MapClaims{"user_id": "c-9"})

	id, err := authService.Authenticate(raw)
	if err != nil {
		t.Fatalf("expected auth success, got %v", err)
	}
	if id != "c-9" {
		t.Fatalf("unexpected contestant id: %s", id)
	}
}

func TestAuthServiceRejects(t *testing.T) {
	authService := service.NewAuthService("test-secret", "")

	if _, err := authService.Authenticate(""); pkgerrors.GetCode(err) != pkgerrors.Unauthorized {
		t.Fatalf("expected unauthorized for empty token, got %v", err)
	}
	if _, err := authService.Authenticate("garbage"); pkgerrors.GetCode(err) != pkgerrors.TokenInvalid {
		t.Fatalf("expected token invalid for garbage, got %v", err)
	}
	expired := signMapClaims(t, "test-secret", jwt.MapClaims{
		"user_id": "c-1",
		"exp":     time.Now().Add(-time.Minute).Unix(),
	})
	if _, err := authService.Authenticate(expired); pkgerrors.GetCode(err) != pkgerrors.TokenInvalid {
		t.Fatalf("expected token invalid for expired token, got %v", err)
	}
	empty := signMapClaims(t, "test-secret", jwt.MapClaims{"iat": time.Now().Unix()})
	if _, err := authService.Authenticate(empty); pkgerrors.GetCode(err) != pkgerrors.TokenInvalid {
		t.Fatalf("expected token invalid without subject, got %v", err)
	}
	if _, err := authService.Issue(""); pkgerrors.GetCode(err) != pkgerrors.TokenGenerationFailed {
		t.Fatalf("expected generation failure, got %v", err)
	}
}

func TestRateLimitService(t *testing.T) {
	svc := service.NewRateLimitService(service.RateLimitConfig{
		Rate:           0.001,
		Burst:          3,
		PerClientRate:  0.001,
		PerClientBurst: 2,
	})

	if err := svc.Allow("10.0.0.1"); err != nil {
		t.Fatalf("first request rejected: %v", err)
	}
	if err := svc.Allow("10.0.0.1"); err != nil {
		t.Fatalf("second request rejected: %v", err)
	}
	if err := svc.Allow("10.0.0.1"); pkgerrors.GetCode(err) != pkgerrors.TooManyRequests {
		t.Fatalf("expected per-client limit, got %v", err)
	}
	if err := svc.Allow("10.0.0.2"); err != nil {
		t.Fatalf("other client rejected: %v", err)
	}
	if err := svc.Allow("10.0.0.3"); pkgerrors.GetCode(err) != pkgerrors.TooManyRequests {
		t.Fatalf("expected global limit, got %v", err)
	}
}

func signMapClaims(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token failed: %v", err)
	}
	return raw
}
