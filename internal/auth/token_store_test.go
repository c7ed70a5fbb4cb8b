package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"userdirectory/internal/cache"
)

func newTestStore(t *testing.T) (*TokenStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := cache.New(cache.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = c.Close() })
	return NewTokenStore(c), mr
}

func TestTokenStore_RefreshToken(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()
	userID := uuid.New()

	require.NoError(t, store.StoreRefreshToken(ctx, "tid", userID, "ada", time.Hour))

	gotID, gotName, err := store.GetRefreshToken(ctx, "tid")
	require.NoError(t, err)
	assert.Equal(t, userID, gotID)
	assert.Equal(t, "ada", gotName)

	require.NoError(t, store.DeleteRefreshToken(ctx, "tid"))
	_, _, err = store.GetRefreshToken(ctx, "tid")
	assert.ErrorIs(t, err, ErrRefreshTokenNotFound)

	require.NoError(t, store.StoreRefreshToken(ctx, "short", userID, "ada", time.Second))
	mr.FastForward(2 * time.Second)
	_, _, err = store.GetRefreshToken(ctx, "short")
	assert.ErrorIs(t, err, ErrRefreshTokenNotFound)
}

func TestTokenStore_Blacklist(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	blocked, err := store.IsAccessTokenBlacklisted(ctx, "jti")
	require.NoError(t, err)
	assert.False(t, blocked)

	require.NoError(t, store.BlacklistAccessToken(ctx, "jti", time.Minute))
	blocked, err = store.IsAccessTokenBlacklisted(ctx, "jti")
	require.NoError(t, err)
	assert.True(t, blocked)

	require.NoError(t, store.BlacklistAccessToken(ctx, "expired", -time.Second))
	blocked, err = store.IsAccessTokenBlacklisted(ctx, "expired")
	require.NoError(t, err)
	assert.False(t, blocked)
}
