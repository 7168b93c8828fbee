package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func testService() *Service {
	return NewService(Config{
		SigningKey: "test-signing-key-for-unit-tests",
		Issuer:     "https://api.shiftwake.test",
		Audience:   "shiftwake-api",
	})
}

func TestGenerateAndValidateDeviceToken(t *testing.T) {
	svc := testService()

	token, expiresAt, err := svc.GenerateDeviceToken("dev_abc123")
	if err != nil {
		t.Fatalf("GenerateDeviceToken: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}
	if remaining := time.Until(expiresAt); remaining < DeviceTokenExpiry-time.Minute {
		t.Errorf("expiry too soon: %v remaining", remaining)
	}

	deviceID, err := svc.ValidateAccessToken(token)
	if err != nil {
		t.Fatalf("ValidateAccessToken: %v", err)
	}
	if deviceID != "dev_abc123" {
		t.Errorf("deviceID = %q, want dev_abc123", deviceID)
	}
}

func TestValidateAccessToken_WrongKey(t *testing.T) {
	svc := testService()
	other := NewService(Config{
		SigningKey: "a-different-key-entirely",
		Issuer:     "https://api.shiftwake.test",
		Audience:   "shiftwake-api",
	})

	token, _, err := svc.GenerateDeviceToken("dev_abc123")
	if err != nil {
		t.Fatalf("GenerateDeviceToken: %v", err)
	}

	if _, err := other.ValidateAccessToken(token); !errors.Is(err, ErrInvalidAccessToken) {
		t.Errorf("err = %v, want ErrInvalidAccessToken", err)
	}
}

func TestValidateAccessToken_WrongAudience(t *testing.T) {
	svc := testService()
	other := NewService(Config{
		SigningKey: "test-signing-key-for-unit-tests",
		Issuer:     "https://api.shiftwake.test",
		Audience:   "some-other-api",
	})

	token, _, err := svc.GenerateDeviceToken("dev_abc123")
	if err != nil {
		t.Fatalf("GenerateDeviceToken: %v", err)
	}

	if _, err := other.ValidateAccessToken(token); !errors.Is(err, ErrInvalidAccessToken) {
		t.Errorf("err = %v, want ErrInvalidAccessToken", err)
	}
}

func TestValidateAccessToken_Expired(t *testing.T) {
	svc := testService()

	// Craft a token that expired an hour ago with the service's own key.
	now := time.Now()
	claims := DeviceClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "https://api.shiftwake.test",
			Subject:   "dev_abc123",
			Audience:  jwt.ClaimStrings{"shiftwake-api"},
			IssuedAt:  jwt.NewNumericDate(now.Add(-2 * time.Hour)),
			ExpiresAt: jwt.NewNumericDate(now.Add(-1 * time.Hour)),
		},
		DeviceID: "dev_abc123",
	}
	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).
		SignedString([]byte("test-signing-key-for-unit-tests"))
	if err != nil {
		t.Fatalf("signing: %v", err)
	}

	if _, err := svc.ValidateAccessToken(tokenString); !errors.Is(err, ErrAccessTokenExpired) {
		t.Errorf("err = %v, want ErrAccessTokenExpired", err)
	}
}

func TestValidateAccessToken_Garbage(t *testing.T) {
	svc := testService()
	if _, err := svc.ValidateAccessToken("not.a.jwt"); !errors.Is(err, ErrInvalidAccessToken) {
		t.Errorf("err = %v, want ErrInvalidAccessToken", err)
	}
}
