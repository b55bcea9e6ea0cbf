package auth

import (
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/golang-jwt/jwt/v5"
)

// Claims carries the authenticated user identity extracted from a token.
type Claims struct {
	UserID string `json:"uid"`
	Email  string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// JWTConfig holds validator configuration
type JWTConfig struct {
	SigningMethod string
	SecretKey     string
	Issuer        string
}

// JWTValidator validates bearer tokens and caches verified claims so that a
// chatty mobile client does not pay the parse cost on every request.
type JWTValidator struct {
	config JWTConfig
	cache  *ristretto.Cache
}

// NewJWTValidator creates a validator for the given configuration.
func NewJWTValidator(config JWTConfig) (*JWTValidator, error) {
	if config.SecretKey == "" {
		return nil, fmt.Errorf("jwt secret key is required")
	}
	if config.SigningMethod == "" {
		config.SigningMethod = "HS256"
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 10_000,
		MaxCost:     1 << 20,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create claims cache: %w", err)
	}

	return &JWTValidator{config: config, cache: cache}, nil
}

// Validate parses and verifies a token, returning its claims.
func (v *JWTValidator) Validate(tokenString string) (*Claims, error) {
	if cached, ok := v.cache.Get(tokenString); ok {
		if claims, ok := cached.(*Claims); ok {
			return claims, nil
		}
	}

	claims := &Claims{}
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{v.config.SigningMethod})}
	if v.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.config.Issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(v.config.SecretKey), nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if claims.UserID == "" {
		// Fall back on the registered subject claim.
		claims.UserID = claims.Subject
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("token carries no user identity")
	}

	// Cache until the token itself expires.
	if claims.ExpiresAt != nil {
		if ttl := time.Until(claims.ExpiresAt.Time); ttl > 0 {
			v.cache.SetWithTTL(tokenString, claims, 1, ttl)
		}
	}

	return claims, nil
}

// IssueToken mints a signed token for the given user. Used by tests and by
// local development tooling; production tokens come from the identity provider.
func (v *JWTValidator) IssueToken(userID, email string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    v.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(v.config.SecretKey))
}
