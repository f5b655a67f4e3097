package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims extends JWT registered claims with the daemon's fields.
type Claims struct {
	jwt.RegisteredClaims
	Role      Role   `json:"role"`
	TokenType string `json:"typ"`
	SessionID string `json:"sid"`
}

// TokenPair bundles the tokens issued by login and refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"` // access token lifetime in seconds
}

// GenerateTokenPair issues an access/refresh token pair for a username.
// Both tokens share a session id; the refresh token differs only in type
// claim and lifetime. Zero or negative TTLs fall back to 15 minutes for
// access and 24 hours for refresh.
func GenerateTokenPair(username, secret string, accessTTLMinutes, refreshTTLMinutes int) (TokenPair, error) {
	if accessTTLMinutes <= 0 {
		accessTTLMinutes = 15 //nolint:mnd // default 15-minute access token TTL
	}
	if refreshTTLMinutes <= 0 {
		refreshTTLMinutes = 24 * 60 //nolint:mnd // default 24-hour refresh token TTL
	}

	sessionID := uuid.NewString()

	access, err := signToken(username, secret, TokenTypeAccess, sessionID,
		time.Duration(accessTTLMinutes)*time.Minute)
	if err != nil {
		return TokenPair{}, fmt.Errorf("signing access token: %w", err)
	}

	refresh, err := signToken(username, secret, TokenTypeRefresh, sessionID,
		time.Duration(refreshTTLMinutes)*time.Minute)
	if err != nil {
		return TokenPair{}, fmt.Errorf("signing refresh token: %w", err)
	}

	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    accessTTLMinutes * 60,
	}, nil
}

// signToken creates a signed HS256 JWT with the daemon's claim set.
func signToken(username, secret, tokenType, sessionID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
		Role:      RoleAdmin,
		TokenType: tokenType,
		SessionID: sessionID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseToken validates and parses a JWT, returning its claims.
// It checks the signature, expiry, and required fields. Callers decide
// which TokenType they accept (middleware wants access, the refresh
// endpoint wants refresh).
func ParseToken(tokenString, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %w", ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}

	if claims.TokenType == "" {
		return nil, fmt.Errorf("%w: missing token type", ErrTokenInvalid)
	}

	return claims, nil
}
