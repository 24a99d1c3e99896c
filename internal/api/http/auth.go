package http

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/atelierhq/atelier/internal/contract/service"
)

// tokenLeeway absorbs clock drift between the issuing service and this one.
const tokenLeeway = 30 * time.Second

type actorClaims struct {
	UserID string `json:"user_id"`
	Admin  bool   `json:"admin,omitempty"`
	jwt.RegisteredClaims
}

// TokenVerifier parses HMAC-signed bearer tokens into actors. Token
// issuance lives with the identity service; this side only verifies.
type TokenVerifier struct {
	secret []byte
}

// NewTokenVerifier builds a verifier from the shared HMAC secret.
func NewTokenVerifier(secret string) (*TokenVerifier, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	return &TokenVerifier{secret: []byte(secret)}, nil
}

// Verify validates the raw token and extracts the acting identity.
func (v *TokenVerifier) Verify(raw string) (service.Actor, error) {
	parsed, err := jwt.ParseWithClaims(raw, &actorClaims{}, func(token *jwt.Token) (any, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %s", token.Method.Alg())
		}
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithLeeway(tokenLeeway))
	if err != nil {
		return service.Actor{}, err
	}
	claims, ok := parsed.Claims.(*actorClaims)
	if !ok || claims.UserID == "" {
		return service.Actor{}, errors.New("token carries no user id")
	}
	return service.Actor{UserID: claims.UserID, Admin: claims.Admin}, nil
}

// SignToken mints a token for the given actor. Production tokens come from
// the identity service; this helper backs local development and tests.
func SignToken(secret string, actor service.Actor, ttl time.Duration, now time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, actorClaims{
		UserID: actor.UserID,
		Admin:  actor.Admin,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	return token.SignedString([]byte(secret))
}
