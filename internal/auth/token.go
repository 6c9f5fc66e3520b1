// Package auth issues and verifies the bearer tokens that identify callers.
package auth

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jogardn/storefront/internal/apperr"
	"github.com/jogardn/storefront/pkg/models"
)

type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Principal is the verified caller attached to a request context.
type Principal struct {
	UserID int
	Role   string
}

type TokenIssuer struct {
	secret  []byte
	ttl     time.Duration
	nowFunc func() time.Time
}

func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{
		secret:  []byte(secret),
		ttl:     ttl,
		nowFunc: time.Now,
	}
}

// Issue signs an HS256 token whose subject is the user id.
func (i *TokenIssuer) Issue(user *models.User) (string, error) {
	now := i.nowFunc()
	claims := Claims{
		Role: user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.Itoa(user.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses a token and returns its principal. Every failure is reported
// as apperr.ErrUnauthorized.
func (i *TokenIssuer) Verify(token string) (*Principal, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.nowFunc),
	)
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: %v", apperr.ErrUnauthorized, err)
	}

	userID, err := strconv.Atoi(claims.Subject)
	if err != nil || userID <= 0 {
		return nil, fmt.Errorf("%w: invalid subject", apperr.ErrUnauthorized)
	}
	return &Principal{UserID: userID, Role: claims.Role}, nil
}

type ctxKey struct{}

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// SubjectFrom returns the authenticated user id carried by ctx.
func SubjectFrom(ctx context.Context) (int, error) {
	p, ok := ctx.Value(ctxKey{}).(*Principal)
	if !ok || p == nil {
		return 0, fmt.Errorf("%w: no principal in context", apperr.ErrUnauthorized)
	}
	return p.UserID, nil
}
