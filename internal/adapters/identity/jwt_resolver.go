package identity

import (
	"context"
	"fmt"
	"time"

	"stitchd-marketplace-service/internal/domain/shared"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type contextKey struct{}

var tokenKey contextKey

// WithToken stores a raw bearer token on the context for later
// resolution.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey, token)
}

// TokenFromContext retrieves the raw token stored by WithToken.
func TokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(tokenKey).(string)
	return token, ok && token != ""
}

// Claims carries the authenticated user's identity.
type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// JWTResolver resolves the acting user from a signed token carried on
// the context. The token is minted by the authentication subsystem; this
// core only verifies and reads it.
type JWTResolver struct {
	secret []byte
}

// NewJWTResolver creates a resolver for tokens signed with the given
// HMAC secret
func NewJWTResolver(secret string) *JWTResolver {
	return &JWTResolver{secret: []byte(secret)}
}

// CurrentUser returns the acting user's ID, or ErrUnauthenticated if the
// context carries no valid token.
func (r *JWTResolver) CurrentUser(ctx context.Context) (uuid.UUID, error) {
	tokenStr, ok := TokenFromContext(ctx)
	if !ok {
		return uuid.Nil, shared.ErrUnauthenticated
	}

	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return r.secret, nil
	})
	if err != nil {
		return uuid.Nil, shared.ErrUnauthenticated
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return uuid.Nil, shared.ErrUnauthenticated
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return uuid.Nil, shared.ErrUnauthenticated
	}

	return userID, nil
}

// MintToken signs a token for a user. Used by tests and local tooling;
// production tokens come from the authentication subsystem.
func (r *JWTResolver) MintToken(userID uuid.UUID, ttl time.Duration) (string, error) {
	claims := Claims{
		UserID: userID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(r.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}
