package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"

	"church-admin-gateway/internal/domain"
)

// HMACCSRF derives CSRF tokens from browser-context IDs using HMAC-SHA256.
// Implements domain.CSRFTokenGenerator.
type HMACCSRF struct {
	secret []byte
}

// NewHMACCSRF creates a new CSRF token generator.
func NewHMACCSRF(secret string) *HMACCSRF {
	return &HMACCSRF{secret: []byte(secret)}
}

// Generate creates a deterministic CSRF token for a browser context.
func (g *HMACCSRF) Generate(contextID string) (string, error) {
	if len(g.secret) == 0 {
		return "", domain.ErrCSRFSecretMissing
	}
	if contextID == "" {
		return "", domain.ErrCSRFTokenInvalid
	}
	return base64.URLEncoding.EncodeToString(g.mac(contextID)), nil
}

// Verify checks token against the context ID in constant time.
func (g *HMACCSRF) Verify(contextID, token string) error {
	if len(g.secret) == 0 {
		return domain.ErrCSRFSecretMissing
	}
	provided, err := base64.URLEncoding.DecodeString(token)
	if err != nil || contextID == "" {
		return domain.ErrCSRFTokenInvalid
	}
	if !hmac.Equal(provided, g.mac(contextID)) {
		return domain.ErrCSRFTokenInvalid
	}
	return nil
}

func (g *HMACCSRF) mac(contextID string) []byte {
	mac := hmac.New(sha256.New, g.secret)
	mac.Write([]byte("csrf:" + contextID))
	return mac.Sum(nil)
}
