// Package auth validates the session tokens presented by HTTP clients. It
// has no opinion on where accounts come from — any JWKS-publishing identity
// provider behind authBaseURL works.
package auth

import (
	"fmt"
	"net/url"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

// ValidateSessionToken validates a JWT against authBaseURL's published JWKS
// and returns its claims. authBaseURL is the identity provider's base URL
// (e.g. from config.Config.AuthBaseURL).
func ValidateSessionToken(authBaseURL, tokenString string) (jwt.MapClaims, error) {
	if authBaseURL == "" {
		return nil, fmt.Errorf("auth base URL is not set")
	}
	jwksURL := authBaseURL + "/.well-known/jwks.json"

	u, err := url.Parse(authBaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid auth base URL: %w", err)
	}
	expectedIssuer := u.Scheme + "://" + u.Host

	jwks, err := keyfunc.NewDefault([]string{jwksURL})
	if err != nil {
		return nil, err
	}

	token, err := jwt.Parse(tokenString, jwks.Keyfunc,
		jwt.WithIssuer(expectedIssuer),
		jwt.WithValidMethods([]string{"EdDSA"}))
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}

// UserIDFromClaims returns the user id from claims ("sub" or "id").
func UserIDFromClaims(claims jwt.MapClaims) string {
	if sub, ok := claims["sub"].(string); ok && sub != "" {
		return sub
	}
	if id, ok := claims["id"].(string); ok && id != "" {
		return id
	}
	return ""
}
