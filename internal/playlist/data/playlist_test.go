package data

import (
	"context"
	"testing"

	"github.com/lk2023060901/signage-backend/internal/pkg/database/dbtest"
	apperrors "github.com/lk2023060901/signage-backend/internal/pkg/errors"
	"github.com/lk2023060901/signage-backend/internal/playlist/biz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinkRepoUniquePair(t *testing.T) {
	repo := NewLinkRepo(dbtest.New(t, Models()...))
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &biz.PlaylistLink{AssetID: 1, LocationID: 2}))
	err := repo.Create(ctx, &biz.PlaylistLink{AssetID: 1, LocationID: 2, Order: 4})
	assert.True(t, apperrors.Is(err, apperrors.ErrLinkExists))

	exists, err := repo.Exists(ctx, 1, 2)
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = repo.Exists(ctx, 1, 3)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestLinkRepoAssetIndex(t *testing.T) {
	repo := NewLinkRepo(dbtest.New(t, Models()...))
	ctx := context.Background()

	for _, loc := range []int64{12, 3, 8} {
		require.NoError(t, repo.Create(ctx, &biz.PlaylistLink{AssetID: 5, LocationID: loc}))
	}
	require.NoError(t, repo.Create(ctx, &biz.PlaylistLink{AssetID: 6, LocationID: 3}))

	ids, err := repo.LocationIDsForAsset(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 8, 12}, ids)

	require.NoError(t, repo.DeleteByAsset(ctx, 5))
	ids, err = repo.LocationIDsForAsset(ctx, 5)
	require.NoError(t, err)
	assert.Empty(t, ids)

	remaining, err := repo.ListByLocation(ctx, 3)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, int64(6), remaining[0].AssetID)
}

func TestLinkRepoUpdateOrderAndDelete(t *testing.T) {
	repo := NewLinkRepo(dbtest.New(t, Models()...))
	ctx := context.Background()

	link := &biz.PlaylistLink{AssetID: 1, LocationID: 2, Order: 0}
	require.NoError(t, repo.Create(ctx, link))

	updated, err := repo.UpdateOrder(ctx, link.ID, 7)
	require.NoError(t, err)
	assert.Equal(t, 7, updated.Order)
	assert.Equal(t, link.CreatedAt.Unix(), updated.CreatedAt.Unix())

	_, err = repo.UpdateOrder(ctx, 999, 1)
	assert.True(t, apperrors.Is(err, apperrors.ErrLinkNotFound))

	require.NoError(t, repo.Delete(ctx, link.ID))
	assert.True(t, apperrors.Is(repo.Delete(ctx, link.ID), apperrors.ErrLinkNotFound))
}
