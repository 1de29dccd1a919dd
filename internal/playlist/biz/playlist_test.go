package biz_test

import (
	"context"
	"sync"
	"testing"
	"time"

	assetbiz "github.com/lk2023060901/signage-backend/internal/asset/biz"
	assetdata "github.com/lk2023060901/signage-backend/internal/asset/data"
	directorybiz "github.com/lk2023060901/signage-backend/internal/directory/biz"
	directorydata "github.com/lk2023060901/signage-backend/internal/directory/data"
	"github.com/lk2023060901/signage-backend/internal/notify"
	"github.com/lk2023060901/signage-backend/internal/pkg/database"
	"github.com/lk2023060901/signage-backend/internal/pkg/database/dbtest"
	apperrors "github.com/lk2023060901/signage-backend/internal/pkg/errors"
	"github.com/lk2023060901/signage-backend/internal/pkg/keylock"
	"github.com/lk2023060901/signage-backend/internal/pkg/logger"
	"github.com/lk2023060901/signage-backend/internal/playlist/biz"
	"github.com/lk2023060901/signage-backend/internal/playlist/data"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	uc        *biz.PlaylistUseCase
	db        *database.DB
	links     *data.LinkRepo
	assets    *assetdata.AssetRepo
	directory *directorydata.DirectoryRepo
	recorder  *notify.Recorder
	tenant    *directorybiz.Tenant
	other     *directorybiz.Tenant
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	models := append(data.Models(), assetdata.Models()...)
	models = append(models, directorydata.Models()...)
	db := dbtest.New(t, models...)

	f := &fixture{
		db:        db,
		links:     data.NewLinkRepo(db),
		assets:    assetdata.NewAssetRepo(db),
		directory: directorydata.NewDirectoryRepo(db),
		recorder:  &notify.Recorder{},
	}
	catalog := assetbiz.NewAssetCatalogUseCase(f.assets, f.directory)
	f.uc = biz.NewPlaylistUseCase(f.links, catalog, f.directory, f.db, keylock.NewLocal(), f.recorder, logger.NewNop())

	ctx := context.Background()
	f.tenant = &directorybiz.Tenant{Name: "Acme", Active: true}
	require.NoError(t, f.directory.CreateTenant(ctx, f.tenant))
	f.other = &directorybiz.Tenant{Name: "Globex", Active: true}
	require.NoError(t, f.directory.CreateTenant(ctx, f.other))
	return f
}

func (f *fixture) location(t *testing.T, tenantID int64, name string) int64 {
	t.Helper()
	loc := &directorybiz.Location{TenantID: tenantID, Name: name, Active: true}
	require.NoError(t, f.directory.CreateLocation(context.Background(), loc))
	return loc.ID
}

func (f *fixture) asset(t *testing.T, tenantID int64, name string, active bool) int64 {
	t.Helper()
	a := &assetbiz.VideoAsset{TenantID: tenantID, Name: name, Active: active}
	require.NoError(t, f.assets.Create(context.Background(), a))
	return a.ID
}

func TestLink(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	loc := f.location(t, f.tenant.ID, "Lobby")
	asset := f.asset(t, f.tenant.ID, "Promo", true)

	link, err := f.uc.Link(ctx, asset, loc, 3, 9)
	require.NoError(t, err)
	assert.Equal(t, 3, link.Order)
	assert.NotZero(t, link.ID)

	events := f.recorder.Events()
	require.Len(t, events, 1)
	assert.Equal(t, loc, events[0].LocationID)
	assert.Equal(t, notify.CauseLinkCreated, events[0].Cause)
	assert.Equal(t, int64(9), events[0].ActorID)

	_, err = f.uc.Link(ctx, asset, loc, 1, 9)
	assert.True(t, apperrors.Is(err, apperrors.ErrLinkExists))
	assert.True(t, apperrors.IsConflict(err))
	assert.Len(t, f.recorder.Events(), 1)
}

func TestLinkValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	loc := f.location(t, f.tenant.ID, "Lobby")
	asset := f.asset(t, f.tenant.ID, "Promo", true)
	foreign := f.asset(t, f.other.ID, "Foreign", true)

	_, err := f.uc.Link(ctx, asset, loc, -1, 1)
	assert.True(t, apperrors.Is(err, apperrors.ErrLinkInvalidOrder))

	_, err = f.uc.Link(ctx, 999, loc, 0, 1)
	assert.True(t, apperrors.Is(err, apperrors.ErrAssetNotFound))

	_, err = f.uc.Link(ctx, asset, 999, 0, 1)
	assert.True(t, apperrors.Is(err, apperrors.ErrLocationNotFound))

	_, err = f.uc.Link(ctx, foreign, loc, 0, 1)
	assert.True(t, apperrors.Is(err, apperrors.ErrLinkTenantMismatch))
	assert.True(t, apperrors.IsValidation(err))

	entries, err := f.uc.ListForLocation(ctx, loc)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Empty(t, f.recorder.Events())
}

// vanishingLookup 首次查询后删除资产行, 模拟删除在校验与写入之间提交
type vanishingLookup struct {
	biz.AssetLookup
	assets *assetdata.AssetRepo
	once   sync.Once
}

func (l *vanishingLookup) Get(ctx context.Context, id int64) (*assetbiz.VideoAsset, error) {
	asset, err := l.AssetLookup.Get(ctx, id)
	if err == nil {
		l.once.Do(func() { err = l.assets.Delete(ctx, id) })
	}
	return asset, err
}

func TestLinkRejectsAssetDeletedAfterLookup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	loc := f.location(t, f.tenant.ID, "Lobby")
	asset := f.asset(t, f.tenant.ID, "Promo", true)

	lookup := &vanishingLookup{AssetLookup: assetbiz.NewAssetCatalogUseCase(f.assets, f.directory), assets: f.assets}
	uc := biz.NewPlaylistUseCase(f.links, lookup, f.directory, f.db, keylock.NewLocal(), f.recorder, logger.NewNop())

	_, err := uc.Link(ctx, asset, loc, 0, 1)
	assert.True(t, apperrors.Is(err, apperrors.ErrAssetNotFound))

	ids, err := f.links.LocationIDsForAsset(ctx, asset)
	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.Empty(t, f.recorder.Events())
}

func TestLinkWaitsForAssetLock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	loc := f.location(t, f.tenant.ID, "Lobby")
	asset := f.asset(t, f.tenant.ID, "Promo", true)

	locker := keylock.NewLocal()
	uc := biz.NewPlaylistUseCase(f.links, assetbiz.NewAssetCatalogUseCase(f.assets, f.directory),
		f.directory, f.db, locker, f.recorder, logger.NewNop())

	release, err := locker.Acquire(ctx, assetbiz.AssetLockKey(asset))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := uc.Link(ctx, asset, loc, 0, 1)
		done <- err
	}()

	select {
	case err := <-done:
		t.Fatalf("link finished while asset lock was held: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, f.assets.Delete(ctx, asset))
	release()

	select {
	case err := <-done:
		assert.True(t, apperrors.Is(err, apperrors.ErrAssetNotFound))
	case <-time.After(5 * time.Second):
		t.Fatal("link did not finish after lock release")
	}

	ids, err := f.links.LocationIDsForAsset(ctx, asset)
	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.Empty(t, f.recorder.Events())
}

func TestReorderOnlyChangesTarget(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	loc := f.location(t, f.tenant.ID, "Lobby")

	a, err := f.uc.Link(ctx, f.asset(t, f.tenant.ID, "A", true), loc, 0, 1)
	require.NoError(t, err)
	b, err := f.uc.Link(ctx, f.asset(t, f.tenant.ID, "B", true), loc, 1, 1)
	require.NoError(t, err)
	f.recorder.Reset()

	updated, err := f.uc.Reorder(ctx, a.ID, 5, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, updated.Order)
	assert.Equal(t, a.AssetID, updated.AssetID)

	other, err := f.uc.GetLink(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, other.Order)

	events := f.recorder.Events()
	require.Len(t, events, 1)
	assert.Equal(t, notify.CauseLinkReordered, events[0].Cause)

	_, err = f.uc.Reorder(ctx, a.ID, -2, 2)
	assert.True(t, apperrors.Is(err, apperrors.ErrLinkInvalidOrder))
	_, err = f.uc.Reorder(ctx, 999, 1, 2)
	assert.True(t, apperrors.Is(err, apperrors.ErrLinkNotFound))
}

func TestUnlink(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	loc := f.location(t, f.tenant.ID, "Lobby")
	link, err := f.uc.Link(ctx, f.asset(t, f.tenant.ID, "A", true), loc, 0, 1)
	require.NoError(t, err)

	require.NoError(t, f.uc.Unlink(ctx, link.ID, 4))
	events := f.recorder.Events()
	require.Len(t, events, 2)
	assert.Equal(t, notify.CauseLinkDeleted, events[1].Cause)

	err = f.uc.Unlink(ctx, link.ID, 4)
	assert.True(t, apperrors.Is(err, apperrors.ErrLinkNotFound))
}

func TestListForLocationSortedAndEnriched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	loc := f.location(t, f.tenant.ID, "Lobby")

	first, err := f.uc.Link(ctx, f.asset(t, f.tenant.ID, "Tie A", true), loc, 1, 1)
	require.NoError(t, err)
	second, err := f.uc.Link(ctx, f.asset(t, f.tenant.ID, "Tie B", false), loc, 1, 1)
	require.NoError(t, err)
	head, err := f.uc.Link(ctx, f.asset(t, f.tenant.ID, "Head", true), loc, 0, 1)
	require.NoError(t, err)

	entries, err := f.uc.ListForLocation(ctx, loc)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, []int64{head.ID, first.ID, second.ID}, []int64{entries[0].ID, entries[1].ID, entries[2].ID})
	assert.Equal(t, "Head", entries[0].AssetName)
	assert.Equal(t, "Lobby", entries[0].LocationName)
	assert.Equal(t, f.tenant.ID, entries[0].TenantID)
	assert.False(t, entries[2].AssetActive)

	active, err := f.uc.ActiveForLocation(ctx, loc)
	require.NoError(t, err)
	assert.Len(t, active, 2)

	_, err = f.uc.ListForLocation(ctx, 999)
	assert.True(t, apperrors.Is(err, apperrors.ErrLocationNotFound))
}

func TestConcurrentLinkSamePair(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	loc := f.location(t, f.tenant.ID, "Lobby")
	asset := f.asset(t, f.tenant.ID, "A", true)

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.uc.Link(ctx, asset, loc, i, 1)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, apperrors.IsConflict(err), "unexpected error %v", err)
	}
	assert.Equal(t, 1, succeeded)
	assert.Len(t, f.recorder.Events(), 1)
}
