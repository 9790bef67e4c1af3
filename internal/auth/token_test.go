package auth

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-workflow/internal/config"
	"github.com/spec-kit/helpdesk-workflow/internal/domain"
	apperrors "github.com/spec-kit/helpdesk-workflow/pkg/util"
)

func newManager(secret string) *TokenManager {
	return NewTokenManager(config.AuthConfig{JWTSecret: secret, Issuer: "helpdesk", TokenTTLMinutes: 5})
}

func TestTokenManager_RoundTrip(t *testing.T) {
	tm := newManager("secret")
	token, expiresAt, err := tm.GenerateToken(domain.Actor{UserID: 7, TenantID: 3, IsAdmin: true})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), expiresAt, 2*time.Second)

	claims, err := tm.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, domain.Actor{UserID: 7, TenantID: 3, IsAdmin: true}, claims.Actor())
	assert.Equal(t, "7", claims.Subject)
	assert.Equal(t, "helpdesk", claims.Issuer)
}

func TestTokenManager_RejectsWrongSecret(t *testing.T) {
	token, _, err := newManager("one").GenerateToken(domain.Actor{UserID: 1, TenantID: 1})
	require.NoError(t, err)

	_, err = newManager("two").ParseToken(token)
	assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)
}

func TestTokenManager_RejectsOtherIssuer(t *testing.T) {
	other := NewTokenManager(config.AuthConfig{JWTSecret: "secret", Issuer: "elsewhere"})
	token, _, err := other.GenerateToken(domain.Actor{UserID: 1, TenantID: 1})
	require.NoError(t, err)

	_, err = newManager("secret").ParseToken(token)
	assert.ErrorIs(t, err, jwt.ErrTokenInvalidIssuer)
}

func TestTokenManager_RejectsMissingTenant(t *testing.T) {
	tm := newManager("secret")
	token, _, err := tm.GenerateToken(domain.Actor{UserID: 1})
	require.NoError(t, err)

	_, err = tm.ParseToken(token)
	assert.ErrorIs(t, err, ErrIncompleteClaims)
}

func TestTokenManager_RejectsOtherAlgorithm(t *testing.T) {
	claims := &Claims{UserID: 1, TenantID: 1, RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    "helpdesk",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = newManager("secret").ParseToken(token)
	assert.Error(t, err)
}

func TestTokenManager_Expiry(t *testing.T) {
	tm := newManager("secret")
	issued := time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC)
	tm.now = func() time.Time { return issued }
	token, _, err := tm.GenerateToken(domain.Actor{UserID: 1, TenantID: 1})
	require.NoError(t, err)

	// inside the skew allowance
	tm.now = func() time.Time { return issued.Add(5*time.Minute + 10*time.Second) }
	_, err = tm.ParseToken(token)
	require.NoError(t, err)

	tm.now = func() time.Time { return issued.Add(6 * time.Minute) }
	_, err = tm.ParseToken(token)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestBearerToken(t *testing.T) {
	cases := map[string]struct {
		header string
		token  string
		ok     bool
	}{
		"valid":       {header: "Bearer abc", token: "abc", ok: true},
		"lowercase":   {header: "bearer abc", token: "abc", ok: true},
		"empty":       {header: ""},
		"basic":       {header: "Basic abc"},
		"scheme only": {header: "Bearer"},
		"blank token": {header: "Bearer   "},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			token, err := bearerToken(tc.header)
			if !tc.ok {
				require.Error(t, err)
				assert.Equal(t, apperrors.CodeUnauthorized, apperrors.ToDomainError(err).Code)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.token, token)
		})
	}
}

func TestAuthMiddleware_ExpiredToken(t *testing.T) {
	tm := newManager("secret")
	tm.now = func() time.Time { return time.Now().Add(-time.Hour) }
	token, _, err := tm.GenerateToken(domain.Actor{UserID: 1, TenantID: 1})
	require.NoError(t, err)
	tm.now = time.Now

	var message string
	app := fiber.New(fiber.Config{ErrorHandler: func(c *fiber.Ctx, err error) error {
		de := apperrors.ToDomainError(err)
		message = de.Message
		return c.SendStatus(de.HTTPStatus)
	}})
	app.Get("/me", NewAuthMiddleware(tm).Handle, RequireActor(), func(c *fiber.Ctx) error {
		actor, _ := ActorFromContext(c)
		return c.JSON(actor)
	})

	req := httptest.NewRequest(fiber.MethodGet, "/me", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	resp, err := app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "token expired", message)
}

func TestRequireAdmin(t *testing.T) {
	tm := newManager("secret")
	app := fiber.New(fiber.Config{ErrorHandler: func(c *fiber.Ctx, err error) error {
		return c.SendStatus(apperrors.ToDomainError(err).HTTPStatus)
	}})
	app.Post("/seed", NewAuthMiddleware(tm).Handle, RequireAdmin(), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})

	for _, tc := range []struct {
		admin bool
		want  int
	}{{false, fiber.StatusForbidden}, {true, fiber.StatusNoContent}} {
		token, _, err := tm.GenerateToken(domain.Actor{UserID: 1, TenantID: 1, IsAdmin: tc.admin})
		require.NoError(t, err)
		req := httptest.NewRequest(fiber.MethodPost, "/seed", nil)
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, tc.want, resp.StatusCode)
	}
}
