package auth

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// maxTokenSize bounds the bearer tokens accepted for inspection.
const maxTokenSize = 8192

var (
	// ErrMissingToken is returned when no token is available.
	ErrMissingToken = errors.New("token is required")
	// ErrMalformedToken is returned when a token cannot be decoded as a JWT.
	ErrMalformedToken = errors.New("invalid JWT token format")
	// ErrTokenExpired is returned when the token's exp claim has passed.
	ErrTokenExpired = errors.New("token has expired")
)

// Claims represents the access token claims issued by the backend.
// The subject carries the user id as a decimal string.
type Claims struct {
	Type  string `json:"type,omitempty"`
	Fresh bool   `json:"fresh,omitempty"`
	jwt.RegisteredClaims
}

// UserID parses the subject claim.
func (c *Claims) UserID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid subject %q", c.Subject)
	}
	return id, nil
}

// ExpiresIn returns the time left before expiry, or zero when the token has no exp claim.
func (c *Claims) ExpiresIn(now time.Time) time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	return c.ExpiresAt.Time.Sub(now)
}

// validateTokenFormat performs basic token format validation
func validateTokenFormat(tokenString string) error {
	if len(tokenString) == 0 {
		return ErrMissingToken
	}
	if len(tokenString) > maxTokenSize {
		return fmt.Errorf("%w: token size exceeds maximum allowed", ErrMalformedToken)
	}
	if len(strings.Split(tokenString, ".")) != 3 {
		return ErrMalformedToken
	}
	return nil
}

// Inspect decodes a token without verifying its signature. The backend holds the
// signing key; the client reads subject and expiry only to skip calls that would
// fail with 401 anyway. The returned claims are set even when ErrTokenExpired is returned.
func Inspect(tokenString string, now time.Time) (*Claims, error) {
	if err := validateTokenFormat(tokenString); err != nil {
		return nil, err
	}
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	if claims.ExpiresAt != nil && !now.Before(claims.ExpiresAt.Time) {
		return claims, ErrTokenExpired
	}
	return claims, nil
}

// JWTManager signs and verifies backend-shaped tokens with a shared secret.
// It is used to mint development tokens for a backend configured with the same key.
type JWTManager struct {
	secret string
	expiry time.Duration
}

// NewJWTManager creates a new JWT manager
func NewJWTManager(secret string, expiry time.Duration) *JWTManager {
	return &JWTManager{
		secret: secret,
		expiry: expiry,
	}
}

// GenerateToken creates an access token for userID.
func (j *JWTManager) GenerateToken(userID int64) (string, error) {
	if j.secret == "" {
		return "", errors.New("signing secret is required")
	}
	if userID <= 0 {
		return "", fmt.Errorf("invalid user id %d", userID)
	}
	now := time.Now()
	claims := &Claims{
		Type: "access",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(j.expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Subject:   strconv.FormatInt(userID, 10),
			ID:        fmt.Sprintf("%d-%d", userID, now.UnixNano()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(j.secret))
}

// ValidateToken validates and parses a JWT token
func (j *JWTManager) ValidateToken(tokenString string) (*Claims, error) {
	if err := validateTokenFormat(tokenString); err != nil {
		return nil, err
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(j.secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, errors.New("invalid token")
}
