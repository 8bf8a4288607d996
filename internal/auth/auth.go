// Package auth issues and verifies bearer tokens and resolves the caller's role.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cleancity/backend/internal/config"
	"cleancity/backend/internal/models"
	"cleancity/backend/internal/storage"

	jwt "github.com/golang-jwt/jwt/v5"
)

// ErrUnauthenticated is returned for a missing, malformed or expired token.
var ErrUnauthenticated = errors.New("unauthenticated")

// Tokens signs and verifies HS256 tokens carrying a subject and a role.
type Tokens struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewTokens(cfg config.AuthConfig) *Tokens {
	return &Tokens{secret: []byte(cfg.JWTSecret), issuer: cfg.Issuer, ttl: cfg.TokenTTL, now: time.Now}
}

// Issue generates a token for userID with the given role claim.
func (t *Tokens) Issue(userID string, role models.Role) (string, error) {
	now := t.now()
	claims := jwt.MapClaims{
		"sub":     userID,
		"user_id": userID,
		"role":    string(role),
		"iat":     now.Unix(),
		"exp":     now.Add(t.ttl).Unix(),
		"iss":     t.issuer,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Verify validates tokenString and returns the actor it names. A missing or
// unknown role claim means citizen.
func (t *Tokens) Verify(tokenString string) (models.Actor, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return t.secret, nil
	}, jwt.WithIssuer(t.issuer), jwt.WithExpirationRequired(), jwt.WithTimeFunc(t.now))
	if err != nil || !token.Valid {
		return models.Actor{}, fmt.Errorf("%w: invalid token", ErrUnauthenticated)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return models.Actor{}, fmt.Errorf("%w: invalid token claims", ErrUnauthenticated)
	}
	userID, _ := claims["sub"].(string)
	if userID == "" {
		userID, _ = claims["user_id"].(string)
	}
	if userID == "" {
		return models.Actor{}, fmt.Errorf("%w: token has no subject", ErrUnauthenticated)
	}

	role := models.RoleCitizen
	if s, ok := claims["role"].(string); ok {
		if r, ok := models.ParseRole(s); ok {
			role = r
		}
	}
	return models.Actor{ID: userID, Role: role}, nil
}

// UserLookup reads the role registry.
type UserLookup interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

// Authenticator verifies a token and applies the registry role, which takes
// precedence over the token claim.
type Authenticator struct {
	Tokens *Tokens
	Users  UserLookup
}

func (a *Authenticator) Authenticate(ctx context.Context, tokenString string) (models.Actor, error) {
	actor, err := a.Tokens.Verify(tokenString)
	if err != nil {
		return models.Actor{}, err
	}
	if a.Users == nil {
		return actor, nil
	}
	u, err := a.Users.GetUserByID(ctx, actor.ID)
	if errors.Is(err, storage.ErrNotFound) {
		return actor, nil
	}
	if err != nil {
		return models.Actor{}, fmt.Errorf("resolve role for %s: %w", actor.ID, err)
	}
	actor.Role = u.Role
	return actor, nil
}
