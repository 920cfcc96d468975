package identity

import (
	"context"
	"testing"
	"time"

	"stitchd-marketplace-service/internal/domain/shared"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCurrentUserRoundTrip(t *testing.T) {
	resolver := NewJWTResolver("test-secret")
	userID := uuid.New()

	token, err := resolver.MintToken(userID, time.Hour)
	require.NoError(t, err)

	ctx := WithToken(context.Background(), token)
	resolved, err := resolver.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, userID, resolved)
}

func TestCurrentUserWithoutToken(t *testing.T) {
	resolver := NewJWTResolver("test-secret")

	_, err := resolver.CurrentUser(context.Background())
	assert.ErrorIs(t, err, shared.ErrUnauthenticated)
}

func TestCurrentUserWithWrongSecret(t *testing.T) {
	minter := NewJWTResolver("secret-a")
	resolver := NewJWTResolver("secret-b")

	token, err := minter.MintToken(uuid.New(), time.Hour)
	require.NoError(t, err)

	ctx := WithToken(context.Background(), token)
	_, err = resolver.CurrentUser(ctx)
	assert.ErrorIs(t, err, shared.ErrUnauthenticated)
}

func TestCurrentUserWithExpiredToken(t *testing.T) {
	resolver := NewJWTResolver("test-secret")

	token, err := resolver.MintToken(uuid.New(), -time.Minute)
	require.NoError(t, err)

	ctx := WithToken(context.Background(), token)
	_, err = resolver.CurrentUser(ctx)
	assert.ErrorIs(t, err, shared.ErrUnauthenticated)
}

func TestCurrentUserWithGarbageToken(t *testing.T) {
	resolver := NewJWTResolver("test-secret")

	ctx := WithToken(context.Background(), "not.a.jwt")
	_, err := resolver.CurrentUser(ctx)
	assert.ErrorIs(t, err, shared.ErrUnauthenticated)
}
