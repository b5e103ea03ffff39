package jwtauth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"myrhythm/internal/ports/auth"

	"github.com/golang-jwt/jwt/v4"
)

var (
	ErrNoSecret      = errors.New("jwt secret is empty")
	ErrInvalidToken  = errors.New("invalid token")
	ErrMissingUserID = errors.New("token missing user id")
)

// Verifier valida tokens HS256 firmados con un secreto compartido.
// El user id sale de "sub" o, si no viene, de "user_id".
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) (*Verifier, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, ErrNoSecret
	}
	return &Verifier{secret: []byte(secret)}, nil
}

func (v *Verifier) Verify(ctx context.Context, token string) (auth.Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return auth.Claims{}, ErrInvalidToken
	}

	tok, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !tok.Valid {
		return auth.Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return auth.Claims{}, ErrInvalidToken
	}

	uid := strClaim(claims, "sub")
	if uid == "" {
		uid = strClaim(claims, "user_id")
	}
	if uid == "" {
		return auth.Claims{}, ErrMissingUserID
	}

	return auth.Claims{
		UserID:   uid,
		Email:    strClaim(claims, "email"),
		TenantID: strClaim(claims, "tenant_id"),
	}, nil
}

func strClaim(m jwt.MapClaims, key string) string {
	if s, ok := m[key].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}
