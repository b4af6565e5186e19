package token

import (
	"errors"
	"fmt"
	"strings"

	"church-admin-gateway/internal/domain"

	"github.com/golang-jwt/jwt/v5"
)

// JWTInspector reads the expiry of church API bearer tokens.
// Implements domain.TokenInspector.
//
// Opaque tokens (anything that is not a three-part JWT) carry no expiry and
// are accepted as-is. When a secret is configured, JWT signatures are
// verified with HS256; otherwise only the claims are read.
type JWTInspector struct {
	secret []byte
	parser *jwt.Parser
}

// NewJWTInspector creates a new inspector. secret may be empty.
func NewJWTInspector(secret string) *JWTInspector {
	return &JWTInspector{
		secret: []byte(secret),
		parser: jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})),
	}
}

// Inspect returns what is known about token.
func (i *JWTInspector) Inspect(token string) (domain.TokenInfo, error) {
	if token == "" {
		return domain.TokenInfo{}, domain.ErrNotAuthenticated
	}
	if strings.Count(token, ".") != 2 {
		return domain.TokenInfo{}, nil
	}

	claims := &jwt.RegisteredClaims{}
	if len(i.secret) > 0 {
		_, err := i.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
			return i.secret, nil
		})
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return domain.TokenInfo{}, domain.ErrSessionExpired
		case err != nil:
			return domain.TokenInfo{}, fmt.Errorf("%w: %w", domain.ErrNotAuthenticated, err)
		}
		return infoFrom(claims), nil
	}

	if _, _, err := i.parser.ParseUnverified(token, claims); err != nil {
		return domain.TokenInfo{}, nil
	}
	return infoFrom(claims), nil
}

func infoFrom(claims *jwt.RegisteredClaims) domain.TokenInfo {
	info := domain.TokenInfo{Subject: claims.Subject}
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Time
	}
	return info
}
