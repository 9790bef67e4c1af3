package auth

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/spec-kit/helpdesk-workflow/internal/domain"
	apperrors "github.com/spec-kit/helpdesk-workflow/pkg/util"
)

type actorLocal struct{}

// AuthMiddleware resolves the bearer token into the calling actor.
type AuthMiddleware struct {
	tokens *TokenManager
}

func NewAuthMiddleware(tokens *TokenManager) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	raw, err := bearerToken(c.Get(fiber.HeaderAuthorization))
	if err != nil {
		return err
	}

	claims, err := m.tokens.ParseToken(raw)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return apperrors.NewUnauthorized("token expired")
	case err != nil:
		return apperrors.NewUnauthorized("invalid token")
	}

	actor := claims.Actor()
	c.Locals(actorLocal{}, &actor)
	return c.Next()
}

func bearerToken(header string) (string, error) {
	if header == "" {
		return "", apperrors.NewUnauthorized("missing authorization header")
	}
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	token = strings.TrimSpace(token)
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", apperrors.NewUnauthorized("invalid authorization header")
	}
	return token, nil
}

// ActorFromContext returns the caller stored by Handle.
func ActorFromContext(c *fiber.Ctx) (*domain.Actor, bool) {
	actor, ok := c.Locals(actorLocal{}).(*domain.Actor)
	return actor, ok && actor != nil
}
