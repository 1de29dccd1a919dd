package data

import (
	"context"
	"time"

	assetbiz "github.com/lk2023060901/signage-backend/internal/asset/biz"
	"github.com/lk2023060901/signage-backend/internal/pkg/database"
	"github.com/lk2023060901/signage-backend/internal/playlist/biz"
)

// LinkPO 播放列表关联表
type LinkPO struct {
	ID         int64     `gorm:"primaryKey;autoIncrement"`
	AssetID    int64     `gorm:"not null;uniqueIndex:idx_playlist_links_asset_location,priority:1"`
	LocationID int64     `gorm:"not null;uniqueIndex:idx_playlist_links_asset_location,priority:2;index:idx_playlist_links_location_id"`
	Order      int       `gorm:"column:sort_order;not null"`
	CreatedAt  time.Time `gorm:"not null"`
}

func (LinkPO) TableName() string {
	return "playlist_links"
}

// Models 需要迁移的表
func Models() []interface{} {
	return []interface{}{&LinkPO{}}
}

// LinkRepo 播放列表仓储实现, 同时为资产删除提供引用查询
type LinkRepo struct {
	db *database.DB
}

// NewLinkRepo 创建播放列表仓储
func NewLinkRepo(db *database.DB) *LinkRepo {
	return &LinkRepo{db: db}
}

var (
	_ biz.LinkRepo           = (*LinkRepo)(nil)
	_ assetbiz.PlaylistIndex = (*LinkRepo)(nil)
)

// Create 创建关联, 唯一索引冲突返回 ErrLinkExists
func (r *LinkRepo) Create(ctx context.Context, link *biz.PlaylistLink) error {
	po := &LinkPO{
		AssetID:    link.AssetID,
		LocationID: link.LocationID,
		Order:      link.Order,
	}
	if err := r.db.GetDBFromContext(ctx).Create(po).Error; err != nil {
		if database.IsDuplicateKeyError(err) {
			return biz.ErrLinkExists
		}
		return err
	}
	link.ID = po.ID
	link.CreatedAt = po.CreatedAt
	return nil
}

// Get 根据ID获取
func (r *LinkRepo) Get(ctx context.Context, id int64) (*biz.PlaylistLink, error) {
	var po LinkPO
	if err := r.db.GetDBFromContext(ctx).First(&po, id).Error; err != nil {
		if database.IsRecordNotFoundError(err) {
			return nil, biz.ErrLinkNotFound
		}
		return nil, err
	}
	return toLink(&po), nil
}

// Exists 关联是否已存在
func (r *LinkRepo) Exists(ctx context.Context, assetID, locationID int64) (bool, error) {
	var count int64
	err := r.db.GetDBFromContext(ctx).Model(&LinkPO{}).
		Where("asset_id = ? AND location_id = ?", assetID, locationID).
		Count(&count).Error
	return count > 0, err
}

// UpdateOrder 只更新 sort_order
func (r *LinkRepo) UpdateOrder(ctx context.Context, id int64, order int) (*biz.PlaylistLink, error) {
	result := r.db.GetDBFromContext(ctx).Model(&LinkPO{}).
		Where("id = ?", id).
		Update("sort_order", order)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, biz.ErrLinkNotFound
	}
	return r.Get(ctx, id)
}

// Delete 删除关联
func (r *LinkRepo) Delete(ctx context.Context, id int64) error {
	result := r.db.GetDBFromContext(ctx).Delete(&LinkPO{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return biz.ErrLinkNotFound
	}
	return nil
}

// ListByLocation 按 sort_order, id 升序
func (r *LinkRepo) ListByLocation(ctx context.Context, locationID int64) ([]*biz.PlaylistLink, error) {
	var pos []LinkPO
	if err := r.db.GetDBFromContext(ctx).
		Where("location_id = ?", locationID).
		Order("sort_order ASC, id ASC").
		Find(&pos).Error; err != nil {
		return nil, err
	}

	links := make([]*biz.PlaylistLink, 0, len(pos))
	for i := range pos {
		links = append(links, toLink(&pos[i]))
	}
	return links, nil
}

// LocationIDsForAsset 引用该资产的位置, 升序去重
func (r *LinkRepo) LocationIDsForAsset(ctx context.Context, assetID int64) ([]int64, error) {
	var ids []int64
	err := r.db.GetDBFromContext(ctx).Model(&LinkPO{}).
		Where("asset_id = ?", assetID).
		Distinct().
		Order("location_id ASC").
		Pluck("location_id", &ids).Error
	return ids, err
}

// DeleteByAsset 删除资产的全部关联
func (r *LinkRepo) DeleteByAsset(ctx context.Context, assetID int64) error {
	return r.db.GetDBFromContext(ctx).Where("asset_id = ?", assetID).Delete(&LinkPO{}).Error
}

func toLink(po *LinkPO) *biz.PlaylistLink {
	return &biz.PlaylistLink{
		ID:         po.ID,
		AssetID:    po.AssetID,
		LocationID: po.LocationID,
		Order:      po.Order,
		CreatedAt:  po.CreatedAt,
	}
}
