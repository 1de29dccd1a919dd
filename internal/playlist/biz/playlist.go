package biz

import (
	"context"
	"time"

	assetbiz "github.com/lk2023060901/signage-backend/internal/asset/biz"
	directorybiz "github.com/lk2023060901/signage-backend/internal/directory/biz"
	"github.com/lk2023060901/signage-backend/internal/notify"
	apperrors "github.com/lk2023060901/signage-backend/internal/pkg/errors"
	"github.com/lk2023060901/signage-backend/internal/pkg/keylock"
	"github.com/lk2023060901/signage-backend/internal/pkg/logger"
	"go.uber.org/zap"
)

var (
	// ErrLinkNotFound 播放列表条目不存在
	ErrLinkNotFound = apperrors.New(apperrors.ErrLinkNotFound)
	// ErrLinkExists 资产已在该位置的播放列表中
	ErrLinkExists = apperrors.New(apperrors.ErrLinkExists)
	// ErrLinkTenantMismatch 资产与位置不属于同一租户
	ErrLinkTenantMismatch = apperrors.New(apperrors.ErrLinkTenantMismatch)
	// ErrLinkInvalidOrder 顺序值为负
	ErrLinkInvalidOrder = apperrors.New(apperrors.ErrLinkInvalidOrder)
)

// PlaylistLink 资产与位置的有序关联
type PlaylistLink struct {
	ID         int64     `json:"id"`
	AssetID    int64     `json:"asset_id"`
	LocationID int64     `json:"location_id"`
	Order      int       `json:"order"`
	CreatedAt  time.Time `json:"created_at"`
}

// PlaylistEntry 带资产与位置摘要的播放列表条目
type PlaylistEntry struct {
	PlaylistLink
	AssetName       string  `json:"asset_name"`
	DurationSeconds int     `json:"duration_seconds"`
	ThumbnailURL    *string `json:"thumbnail_url"`
	StreamURL       string  `json:"stream_url"`
	AssetActive     bool    `json:"asset_active"`
	Extension       string  `json:"extension"`
	LocationName    string  `json:"location_name"`
	TenantID        int64   `json:"tenant_id"`
}

// LinkRepo 播放列表仓储
type LinkRepo interface {
	// Create 重复的 (asset, location) 返回 ErrLinkExists
	Create(ctx context.Context, link *PlaylistLink) error
	Get(ctx context.Context, id int64) (*PlaylistLink, error)
	Exists(ctx context.Context, assetID, locationID int64) (bool, error)
	UpdateOrder(ctx context.Context, id int64, order int) (*PlaylistLink, error)
	Delete(ctx context.Context, id int64) error
	// ListByLocation 按 order, id 升序
	ListByLocation(ctx context.Context, locationID int64) ([]*PlaylistLink, error)
}

// AssetLookup 资产查询
type AssetLookup interface {
	Get(ctx context.Context, id int64) (*assetbiz.VideoAsset, error)
	GetMany(ctx context.Context, ids []int64) (map[int64]*assetbiz.VideoAsset, error)
}

// Transaction 在 ctx 中开启事务
type Transaction interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// PlaylistUseCase 位置播放列表维护
type PlaylistUseCase struct {
	repo      LinkRepo
	assets    AssetLookup
	directory directorybiz.DirectoryRepo
	tx        Transaction
	locker    keylock.Locker
	publisher notify.Publisher
	logger    *logger.Logger
}

// NewPlaylistUseCase creates a new playlist use case
func NewPlaylistUseCase(repo LinkRepo, assets AssetLookup, directory directorybiz.DirectoryRepo,
	tx Transaction, locker keylock.Locker, publisher notify.Publisher, log *logger.Logger) *PlaylistUseCase {
	if locker == nil {
		locker = keylock.NewLocal()
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &PlaylistUseCase{
		repo:      repo,
		assets:    assets,
		directory: directory,
		tx:        tx,
		locker:    locker,
		publisher: publisher,
		logger:    log,
	}
}

// Link 将资产加入位置播放列表
func (uc *PlaylistUseCase) Link(ctx context.Context, assetID, locationID int64, order int, actorID int64) (*PlaylistLink, error) {
	if order < 0 {
		return nil, ErrLinkInvalidOrder
	}

	asset, err := uc.assets.Get(ctx, assetID)
	if err != nil {
		return nil, err
	}
	location, err := uc.directory.GetLocation(ctx, locationID)
	if err != nil {
		return nil, err
	}
	if !directorybiz.SameTenant(asset.TenantID, location) {
		return nil, ErrLinkTenantMismatch
	}

	// 资产锁与删除互斥, 锁内重新读取资产
	keys := []string{assetbiz.AssetLockKey(assetID), directorybiz.LocationLockKey(locationID)}
	var link *PlaylistLink
	err = keylock.WithLocks(ctx, uc.locker, keys, func(ctx context.Context) error {
		err := uc.tx.InTx(ctx, func(ctx context.Context) error {
			if _, err := uc.assets.Get(ctx, assetID); err != nil {
				return err
			}
			exists, err := uc.repo.Exists(ctx, assetID, locationID)
			if err != nil {
				return err
			}
			if exists {
				return ErrLinkExists
			}

			link = &PlaylistLink{AssetID: assetID, LocationID: locationID, Order: order}
			return uc.repo.Create(ctx, link)
		})
		if err != nil {
			return err
		}

		uc.publish(ctx, link, actorID, notify.CauseLinkCreated)
		return nil
	})
	if err != nil {
		return nil, err
	}

	uc.logger.WithContext(ctx).Info("asset linked to location",
		zap.Int64("asset_id", assetID),
		zap.Int64("location_id", locationID),
		zap.Int("order", order),
	)
	return link, nil
}

// GetLocation 校验位置存在
func (uc *PlaylistUseCase) GetLocation(ctx context.Context, locationID int64) (*directorybiz.Location, error) {
	return uc.directory.GetLocation(ctx, locationID)
}

// GetLink 获取单个条目
func (uc *PlaylistUseCase) GetLink(ctx context.Context, linkID int64) (*PlaylistLink, error) {
	return uc.repo.Get(ctx, linkID)
}

// Reorder 只修改顺序值, 其余条目不重新编号
func (uc *PlaylistUseCase) Reorder(ctx context.Context, linkID int64, newOrder int, actorID int64) (*PlaylistLink, error) {
	if newOrder < 0 {
		return nil, ErrLinkInvalidOrder
	}

	link, err := uc.repo.Get(ctx, linkID)
	if err != nil {
		return nil, err
	}

	var updated *PlaylistLink
	err = keylock.WithLocks(ctx, uc.locker, []string{directorybiz.LocationLockKey(link.LocationID)}, func(ctx context.Context) error {
		l, err := uc.repo.UpdateOrder(ctx, linkID, newOrder)
		if err != nil {
			return err
		}
		updated = l
		uc.publish(ctx, updated, actorID, notify.CauseLinkReordered)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Unlink 移除条目
func (uc *PlaylistUseCase) Unlink(ctx context.Context, linkID, actorID int64) error {
	link, err := uc.repo.Get(ctx, linkID)
	if err != nil {
		return err
	}

	return keylock.WithLocks(ctx, uc.locker, []string{directorybiz.LocationLockKey(link.LocationID)}, func(ctx context.Context) error {
		if err := uc.repo.Delete(ctx, linkID); err != nil {
			return err
		}
		uc.publish(ctx, link, actorID, notify.CauseLinkDeleted)
		return nil
	})
}

// ListForLocation 位置的播放列表, 带资产与位置摘要
func (uc *PlaylistUseCase) ListForLocation(ctx context.Context, locationID int64) ([]*PlaylistEntry, error) {
	location, err := uc.directory.GetLocation(ctx, locationID)
	if err != nil {
		return nil, err
	}

	links, err := uc.repo.ListByLocation(ctx, locationID)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(links))
	for _, l := range links {
		ids = append(ids, l.AssetID)
	}
	assets, err := uc.assets.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}

	entries := make([]*PlaylistEntry, 0, len(links))
	for _, l := range links {
		asset, ok := assets[l.AssetID]
		if !ok {
			uc.logger.WithContext(ctx).Warn("playlist link references missing asset",
				zap.Int64("link_id", l.ID), zap.Int64("asset_id", l.AssetID))
			continue
		}
		entries = append(entries, &PlaylistEntry{
			PlaylistLink:    *l,
			AssetName:       asset.Name,
			DurationSeconds: asset.DurationSeconds,
			ThumbnailURL:    asset.ThumbnailURL,
			StreamURL:       asset.StreamURL,
			AssetActive:     asset.Active,
			Extension:       asset.Extension,
			LocationName:    location.Name,
			TenantID:        location.TenantID,
		})
	}
	return entries, nil
}

// ActiveForLocation 仅包含启用资产的播放列表, 供设备拉取
func (uc *PlaylistUseCase) ActiveForLocation(ctx context.Context, locationID int64) ([]*PlaylistEntry, error) {
	entries, err := uc.ListForLocation(ctx, locationID)
	if err != nil {
		return nil, err
	}

	active := entries[:0]
	for _, e := range entries {
		if e.AssetActive {
			active = append(active, e)
		}
	}
	return active, nil
}

func (uc *PlaylistUseCase) publish(ctx context.Context, link *PlaylistLink, actorID int64, cause notify.Cause) {
	uc.publisher.Publish(ctx, notify.Event{
		LocationID: link.LocationID,
		ActorID:    actorID,
		Cause:      cause,
		AssetID:    link.AssetID,
	})
}
