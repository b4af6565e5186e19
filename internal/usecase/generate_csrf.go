package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"church-admin-gateway/internal/domain"
)

// GenerateCSRF issues the CSRF token for a browser context.
type GenerateCSRF struct {
	csrf   domain.CSRFTokenGenerator
	logger *slog.Logger
}

// NewGenerateCSRF creates a new GenerateCSRF usecase.
func NewGenerateCSRF(csrf domain.CSRFTokenGenerator, l *slog.Logger) *GenerateCSRF {
	return &GenerateCSRF{csrf: csrf, logger: l}
}

// Execute generates a CSRF token bound to contextID.
func (uc *GenerateCSRF) Execute(ctx context.Context, contextID string) (string, error) {
	if contextID == "" {
		return "", domain.ErrCSRFTokenInvalid
	}

	token, err := uc.csrf.Generate(contextID)
	if err != nil {
		uc.logger.ErrorContext(ctx, "failed to generate CSRF token", "error", err)
		return "", fmt.Errorf("%w: %w", domain.ErrCSRFSecretMissing, err)
	}

	return token, nil
}
