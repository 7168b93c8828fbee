// Package auth provides bearer-token authentication for the ShiftWake API.
//
// The companion app authenticates with a device token: an HS256 JWT minted
// when the device is paired with the backend. Tokens are long-lived (the app
// runs unattended and must be able to call the trigger webhook at 05:30
// without a refresh dance) and carry the device ID as a claim.
package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DeviceTokenExpiry is how long device tokens are valid. Devices re-pair
// roughly twice a year; shorter expiries would strand the app overnight.
const DeviceTokenExpiry = 180 * 24 * time.Hour

// Predefined token errors.
var (
	ErrInvalidAccessToken = errors.New("invalid access token")
	ErrAccessTokenExpired = errors.New("access token has expired")
)

// DeviceClaims represents the claims in a ShiftWake device token.
type DeviceClaims struct {
	jwt.RegisteredClaims

	// DeviceID identifies the paired device.
	DeviceID string `json:"did"`
}

// Service handles device token creation and validation.
type Service struct {
	signingKey []byte
	issuer     string
	audience   string
}

// Config holds configuration for the auth service.
type Config struct {
	// SigningKey is the secret key used to sign device tokens.
	SigningKey string

	// Issuer is the issuer claim for tokens (e.g., "https://api.shiftwake.dev").
	Issuer string

	// Audience is the audience claim for tokens (e.g., "shiftwake-api").
	Audience string
}

// NewService creates a new auth service.
func NewService(cfg Config) *Service {
	return &Service{
		signingKey: []byte(cfg.SigningKey),
		issuer:     cfg.Issuer,
		audience:   cfg.Audience,
	}
}

// GenerateDeviceToken mints a new device token for the given device ID.
func (s *Service) GenerateDeviceToken(deviceID string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(DeviceTokenExpiry)

	claims := DeviceClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   deviceID,
			Audience:  jwt.ClaimStrings{s.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			NotBefore: jwt.NewNumericDate(now),
			ID:        generateTokenID(),
		},
		DeviceID: deviceID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing device token: %w", err)
	}

	return tokenString, expiresAt, nil
}

// ValidateAccessToken validates a device token and returns the device ID.
func (s *Service) ValidateAccessToken(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &DeviceClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.signingKey, nil
	}, jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithExpirationRequired(),
	)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrAccessTokenExpired
		}
		return "", fmt.Errorf("%w: %s", ErrInvalidAccessToken, err.Error())
	}

	claims, ok := token.Claims.(*DeviceClaims)
	if !ok || !token.Valid {
		return "", ErrInvalidAccessToken
	}

	return claims.DeviceID, nil
}

// generateTokenID generates a unique token ID.
func generateTokenID() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(bytes)
}
