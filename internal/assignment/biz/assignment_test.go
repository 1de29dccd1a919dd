package biz_test

import (
	"context"
	"sync"
	"testing"

	assetbiz "github.com/lk2023060901/signage-backend/internal/asset/biz"
	assetdata "github.com/lk2023060901/signage-backend/internal/asset/data"
	"github.com/lk2023060901/signage-backend/internal/assignment/biz"
	"github.com/lk2023060901/signage-backend/internal/assignment/data"
	directorybiz "github.com/lk2023060901/signage-backend/internal/directory/biz"
	directorydata "github.com/lk2023060901/signage-backend/internal/directory/data"
	"github.com/lk2023060901/signage-backend/internal/notify"
	"github.com/lk2023060901/signage-backend/internal/pkg/database/dbtest"
	apperrors "github.com/lk2023060901/signage-backend/internal/pkg/errors"
	"github.com/lk2023060901/signage-backend/internal/pkg/keylock"
	"github.com/lk2023060901/signage-backend/internal/pkg/logger"
	playlistbiz "github.com/lk2023060901/signage-backend/internal/playlist/biz"
	playlistdata "github.com/lk2023060901/signage-backend/internal/playlist/data"
	"github.com/lk2023060901/signage-backend/internal/settings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	ledger    *biz.LedgerUseCase
	playlists *playlistbiz.PlaylistUseCase
	repo      *data.AssignmentRepo
	directory *directorydata.DirectoryRepo
	assets    *assetdata.AssetRepo
	recorder  *notify.Recorder
	settings  settings.MapSource
	tenant    *directorybiz.Tenant
	device    *directorybiz.Device
	lobby     *directorybiz.Location
	cafe      *directorybiz.Location
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	models := append(data.Models(), directorydata.Models()...)
	models = append(models, assetdata.Models()...)
	models = append(models, playlistdata.Models()...)
	db := dbtest.New(t, models...)

	f := &fixture{
		repo:      data.NewAssignmentRepo(db),
		directory: directorydata.NewDirectoryRepo(db),
		assets:    assetdata.NewAssetRepo(db),
		recorder:  &notify.Recorder{},
		settings:  settings.MapSource{},
	}
	locker := keylock.NewLocal()
	f.playlists = playlistbiz.NewPlaylistUseCase(playlistdata.NewLinkRepo(db),
		assetbiz.NewAssetCatalogUseCase(f.assets, f.directory), f.directory, db, locker, f.recorder, logger.NewNop())
	f.ledger = biz.NewLedgerUseCase(f.repo, f.directory, f.playlists, db, locker, f.recorder, f.settings, logger.NewNop())

	ctx := context.Background()
	f.tenant = &directorybiz.Tenant{Name: "Acme", Active: true}
	require.NoError(t, f.directory.CreateTenant(ctx, f.tenant))
	f.lobby = &directorybiz.Location{TenantID: f.tenant.ID, Name: "Lobby", Active: true}
	require.NoError(t, f.directory.CreateLocation(ctx, f.lobby))
	f.cafe = &directorybiz.Location{TenantID: f.tenant.ID, Name: "Cafe", Active: true}
	require.NoError(t, f.directory.CreateLocation(ctx, f.cafe))
	f.device = &directorybiz.Device{TenantID: f.tenant.ID, Name: "Screen 1", Serial: "SN-1", Active: true}
	require.NoError(t, f.directory.CreateDevice(ctx, f.device))
	return f
}

func TestAssignThenReassign(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.ledger.Assign(ctx, f.device.ID, f.lobby.ID, 3, "install")
	require.NoError(t, err)
	assert.True(t, first.Open())

	second, err := f.ledger.Assign(ctx, f.device.ID, f.cafe.ID, 4, "")
	require.NoError(t, err)

	history, err := f.ledger.History(ctx, f.device.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, second.ID, history[0].ID)
	assert.True(t, history[0].Open())
	assert.False(t, history[1].Open())
	require.NotNil(t, history[1].RemovedBy)
	assert.Equal(t, int64(4), *history[1].RemovedBy)
	assert.Equal(t, "install", history[1].Notes)

	current, err := f.ledger.CurrentFor(ctx, f.device.ID)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, f.cafe.ID, current.LocationID)
	assert.Equal(t, "Cafe", current.LocationName)

	events := f.recorder.Events()
	require.Len(t, events, 3)
	assert.Equal(t, notify.CauseDeviceAssigned, events[0].Cause)
	assert.Equal(t, f.lobby.ID, events[0].LocationID)
	assert.Equal(t, notify.Event{LocationID: f.cafe.ID, ActorID: 4, Cause: notify.CauseDeviceAssigned, DeviceID: f.device.ID},
		events[1])
	assert.Equal(t, notify.CauseDeviceUnassigned, events[2].Cause)
	assert.Equal(t, f.lobby.ID, events[2].LocationID)
}

func TestAssignSameLocationNotifiesOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledger.Assign(ctx, f.device.ID, f.lobby.ID, 1, "")
	require.NoError(t, err)
	_, err = f.ledger.Assign(ctx, f.device.ID, f.lobby.ID, 1, "")
	require.NoError(t, err)

	assert.Equal(t, []int64{f.lobby.ID, f.lobby.ID}, f.recorder.LocationIDs())
	history, err := f.ledger.History(ctx, f.device.ID)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestAssignNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledger.Assign(ctx, 999, f.lobby.ID, 1, "")
	assert.True(t, apperrors.Is(err, apperrors.ErrDeviceNotFound))

	_, err = f.ledger.Assign(ctx, f.device.ID, 999, 1, "")
	assert.True(t, apperrors.Is(err, apperrors.ErrLocationNotFound))

	_, err = f.ledger.CurrentFor(ctx, 999)
	assert.True(t, apperrors.Is(err, apperrors.ErrDeviceNotFound))

	current, err := f.ledger.CurrentFor(ctx, f.device.ID)
	require.NoError(t, err)
	assert.Nil(t, current)
	assert.Empty(t, f.recorder.Events())
}

func TestConcurrentAssignLeavesOneOpenRow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	locations := []int64{f.lobby.ID, f.cafe.ID}

	const workers = 10
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.ledger.Assign(ctx, f.device.ID, locations[i%2], int64(i), "")
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	history, err := f.ledger.History(ctx, f.device.ID)
	require.NoError(t, err)
	require.Len(t, history, workers)

	open := 0
	for _, a := range history {
		if a.Open() {
			open++
		}
	}
	assert.Equal(t, 1, open)
}

func TestFeed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledger.Feed(ctx, f.device.ID, "10.1.2.3")
	assert.True(t, apperrors.Is(err, apperrors.ErrDeviceNotAssigned))
	assert.True(t, apperrors.IsNotFound(err))

	active := &assetbiz.VideoAsset{TenantID: f.tenant.ID, Name: "On air", Active: true}
	require.NoError(t, f.assets.Create(ctx, active))
	inactive := &assetbiz.VideoAsset{TenantID: f.tenant.ID, Name: "Retired", Active: false}
	require.NoError(t, f.assets.Create(ctx, inactive))
	_, err = f.playlists.Link(ctx, active.ID, f.lobby.ID, 0, 1)
	require.NoError(t, err)
	_, err = f.playlists.Link(ctx, inactive.ID, f.lobby.ID, 1, 1)
	require.NoError(t, err)

	assignment, err := f.ledger.Assign(ctx, f.device.ID, f.lobby.ID, 1, "")
	require.NoError(t, err)

	f.settings[settings.KeyVolume] = "150"
	feed, err := f.ledger.Feed(ctx, f.device.ID, "fe80::1%eth0")
	require.NoError(t, err)
	assert.Equal(t, assignment.ID, feed.AssignmentID)
	assert.Equal(t, "Lobby", feed.LocationName)
	require.Len(t, feed.Playlist, 1)
	assert.Equal(t, "On air", feed.Playlist[0].AssetName)
	assert.Equal(t, settings.DefaultAutoSyncInterval, feed.Settings.AutoSyncInterval)
	assert.True(t, feed.Settings.AutoPlay)
	assert.True(t, feed.Settings.Loop)
	assert.Equal(t, 100, feed.Settings.Volume)

	device, err := f.directory.GetDevice(ctx, f.device.ID)
	require.NoError(t, err)
	require.NotNil(t, device.LastSyncAt)
	assert.Equal(t, "fe80::1", device.LastSyncIP)
}
