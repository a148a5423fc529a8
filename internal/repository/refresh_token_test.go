// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository_test

import (
	"context"
	"testing"
	"time"

	"codeberg.org/oliverandrich/game-meta-api/internal/repository"
	"codeberg.org/oliverandrich/game-meta-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateRefreshToken(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, repo, "a@x.com")
	expiresAt := time.Now().Add(24 * time.Hour)

	created, err := repo.CreateRefreshToken(ctx, user.ID, "hash-1", expiresAt)
	require.NoError(t, err)

	token, err := repo.GetRefreshTokenByHash(ctx, "hash-1")

	require.NoError(t, err)
	assert.Equal(t, created.ID, token.ID)
	assert.Equal(t, user.ID, token.UserID)
	assert.False(t, token.Revoked)
	assert.Nil(t, token.ReplacedBy)
	assert.WithinDuration(t, expiresAt, token.ExpiresAt, time.Second)
}

func TestCreateRefreshToken_UnknownUser(t *testing.T) {
	_, repo := testutil.NewTestDB(t)

	_, err := repo.CreateRefreshToken(context.Background(), "missing", "hash-1", time.Now().Add(time.Hour))

	assert.Error(t, err)
}

func TestGetRefreshTokenByHash_NotFound(t *testing.T) {
	_, repo := testutil.NewTestDB(t)

	_, err := repo.GetRefreshTokenByHash(context.Background(), "nosuch")

	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestRevokeRefreshToken(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, repo, "a@x.com")
	created, err := repo.CreateRefreshToken(ctx, user.ID, "hash-1", time.Now().Add(time.Hour))
	require.NoError(t, err)

	require.NoError(t, repo.RevokeRefreshToken(ctx, created.ID))

	token, err := repo.GetRefreshTokenByHash(ctx, "hash-1")
	require.NoError(t, err)
	assert.True(t, token.Revoked)
	assert.False(t, token.IsActive(time.Now()))
}

func TestRotateRefreshToken(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, repo, "a@x.com")
	old, err := repo.CreateRefreshToken(ctx, user.ID, "hash-1", time.Now().Add(time.Hour))
	require.NoError(t, err)

	next, err := repo.RotateRefreshToken(ctx, old.ID, "hash-2", time.Now().Add(time.Hour))

	require.NoError(t, err)
	assert.Equal(t, user.ID, next.UserID)

	rotated, err := repo.GetRefreshTokenByHash(ctx, "hash-1")
	require.NoError(t, err)
	assert.True(t, rotated.Revoked)
	require.NotNil(t, rotated.ReplacedBy)
	assert.Equal(t, next.ID, *rotated.ReplacedBy)

	stored, err := repo.GetRefreshTokenByHash(ctx, "hash-2")
	require.NoError(t, err)
	assert.True(t, stored.IsActive(time.Now()))
}

func TestRotateRefreshToken_AlreadyRevoked(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, repo, "a@x.com")
	old, err := repo.CreateRefreshToken(ctx, user.ID, "hash-1", time.Now().Add(time.Hour))
	require.NoError(t, err)
	_, err = repo.RotateRefreshToken(ctx, old.ID, "hash-2", time.Now().Add(time.Hour))
	require.NoError(t, err)

	_, err = repo.RotateRefreshToken(ctx, old.ID, "hash-3", time.Now().Add(time.Hour))

	assert.ErrorIs(t, err, repository.ErrStale)
	_, err = repo.GetRefreshTokenByHash(ctx, "hash-3")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestRevokeUserRefreshTokens(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, repo, "a@x.com")
	other := testutil.NewTestUser(t, repo, "b@x.com")
	for _, hash := range []string{"hash-1", "hash-2"} {
		_, err := repo.CreateRefreshToken(ctx, user.ID, hash, time.Now().Add(time.Hour))
		require.NoError(t, err)
	}
	_, err := repo.CreateRefreshToken(ctx, other.ID, "hash-3", time.Now().Add(time.Hour))
	require.NoError(t, err)

	n, err := repo.RevokeUserRefreshTokens(ctx, user.ID)

	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	token, err := repo.GetRefreshTokenByHash(ctx, "hash-3")
	require.NoError(t, err)
	assert.False(t, token.Revoked)
}

func TestDeleteExpiredRefreshTokens(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, repo, "a@x.com")
	_, err := repo.CreateRefreshToken(ctx, user.ID, "expired", time.Now().Add(-time.Hour))
	require.NoError(t, err)
	_, err = repo.CreateRefreshToken(ctx, user.ID, "active", time.Now().Add(time.Hour))
	require.NoError(t, err)

	n, err := repo.DeleteExpiredRefreshTokens(ctx, time.Now())

	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	_, err = repo.GetRefreshTokenByHash(ctx, "expired")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = repo.GetRefreshTokenByHash(ctx, "active")
	assert.NoError(t, err)
}
