package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/gofiber/fiber/v3"
)

// SubjectKey is the Locals key holding the verified token subject.
const SubjectKey = "subject"

// TokenVerifier verifies a raw bearer token. *oidc.IDTokenVerifier satisfies it.
type TokenVerifier interface {
	Verify(ctx context.Context, rawToken string) (*oidc.IDToken, error)
}

// BearerAuth authenticates API callers with OIDC-issued bearer tokens.
// With no verifier every request passes through.
type BearerAuth struct {
	verifier TokenVerifier
}

// NewBearerAuth discovers the issuer and builds a verifier for audience.
// An empty issuer disables authentication.
func NewBearerAuth(ctx context.Context, issuer, audience string) (*BearerAuth, error) {
	if issuer == "" {
		slog.Warn("API authentication disabled (OIDC_ISSUER not set)")
		return &BearerAuth{}, nil
	}

	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc discovery: %w", err)
	}

	verifier := provider.Verifier(&oidc.Config{
		ClientID:          audience,
		SkipClientIDCheck: audience == "",
	})
	return NewBearerAuthWithVerifier(verifier), nil
}

// NewBearerAuthWithVerifier creates the middleware around an existing verifier.
func NewBearerAuthWithVerifier(v TokenVerifier) *BearerAuth {
	return &BearerAuth{verifier: v}
}

// Enabled reports whether requests are authenticated.
func (m *BearerAuth) Enabled() bool {
	return m.verifier != nil
}

// Require rejects requests without a valid bearer token.
func (m *BearerAuth) Require(c fiber.Ctx) error {
	if m.verifier == nil {
		return c.Next()
	}

	raw, ok := bearerToken(c.Get(fiber.HeaderAuthorization))
	if !ok {
		return unauthorized(c, "missing bearer token")
	}

	token, err := m.verifier.Verify(c.Context(), raw)
	if err != nil {
		slog.Debug("bearer token rejected", "error", err, "path", c.Path())
		return unauthorized(c, "invalid bearer token")
	}

	c.Locals(SubjectKey, token.Subject)
	return c.Next()
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func unauthorized(c fiber.Ctx, msg string) error {
	c.Set(fiber.HeaderWWWAuthenticate, `Bearer realm="carealert"`)
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"status": "error",
		"error":  msg,
	})
}
