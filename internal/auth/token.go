package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/spec-kit/helpdesk-workflow/internal/config"
	"github.com/spec-kit/helpdesk-workflow/internal/domain"
)

// ErrIncompleteClaims is returned for a validly signed token that does not
// name both a tenant and a user.
var ErrIncompleteClaims = errors.New("token lacks tenant or user")

const clockSkew = 30 * time.Second

// Claims is the JWT payload. The workflow reads only the caller identity;
// tokens are normally minted by the identity provider.
type Claims struct {
	UserID   int64 `json:"user_id"`
	TenantID int64 `json:"tenant_id"`
	Admin    bool  `json:"admin,omitempty"`
	jwt.RegisteredClaims
}

func (c *Claims) Actor() domain.Actor {
	return domain.Actor{UserID: c.UserID, TenantID: c.TenantID, IsAdmin: c.Admin}
}

// TokenManager signs and verifies HS256 tokens for one issuer.
type TokenManager struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenManager(cfg config.AuthConfig) *TokenManager {
	ttl := time.Duration(cfg.TokenTTLMinutes) * time.Minute
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &TokenManager{secret: []byte(cfg.JWTSecret), issuer: cfg.Issuer, ttl: ttl, now: time.Now}
}

// GenerateToken signs a token for actor and returns its expiry.
func (tm *TokenManager) GenerateToken(actor domain.Actor) (string, time.Time, error) {
	issuedAt := tm.now().UTC().Truncate(time.Second)
	expiresAt := issuedAt.Add(tm.ttl)
	claims := &Claims{
		UserID:   actor.UserID,
		TenantID: actor.TenantID,
		Admin:    actor.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tm.issuer,
			Subject:   strconv.FormatInt(actor.UserID, 10),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// ParseToken verifies signature, algorithm, issuer and expiry. Expired tokens
// yield an error matching jwt.ErrTokenExpired.
func (tm *TokenManager) ParseToken(raw string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(clockSkew),
		jwt.WithTimeFunc(tm.now),
	}
	if tm.issuer != "" {
		opts = append(opts, jwt.WithIssuer(tm.issuer))
	}

	claims := &Claims{}
	if _, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return tm.secret, nil
	}, opts...); err != nil {
		return nil, err
	}
	if claims.TenantID <= 0 || claims.UserID <= 0 {
		return nil, ErrIncompleteClaims
	}
	return claims, nil
}
