package data

import (
	"context"
	"time"

	"github.com/lk2023060901/signage-backend/internal/asset/biz"
	"github.com/lk2023060901/signage-backend/internal/pkg/database"
)

// AssetPO 视频资产表
type AssetPO struct {
	ID               int64     `gorm:"primaryKey;autoIncrement"`
	TenantID         int64     `gorm:"not null;index:idx_video_assets_tenant_id"`
	Name             string    `gorm:"size:255;not null"`
	StoragePath      string    `gorm:"size:1024;not null;default:''"`
	OriginalFilename string    `gorm:"size:255;not null;default:''"`
	SizeBytes        int64     `gorm:"not null;default:0"`
	Extension        string    `gorm:"size:16;not null;default:''"`
	Checksum         string    `gorm:"size:64;not null;default:''"`
	DurationSeconds  int       `gorm:"not null;default:0"`
	ThumbnailURL     *string   `gorm:"size:512"`
	StreamURL        string    `gorm:"size:512;not null;default:''"`
	Active           bool      `gorm:"not null;index:idx_video_assets_active"`
	CreatedAt        time.Time `gorm:"not null;index:idx_video_assets_created_at"`
	UpdatedAt        time.Time `gorm:"not null"`
}

func (AssetPO) TableName() string {
	return "video_assets"
}

// Models 需要迁移的表
func Models() []interface{} {
	return []interface{}{&AssetPO{}}
}

// AssetRepo 资产仓储实现
type AssetRepo struct {
	db *database.DB
}

// NewAssetRepo 创建资产仓储
func NewAssetRepo(db *database.DB) *AssetRepo {
	return &AssetRepo{db: db}
}

var _ biz.AssetRepo = (*AssetRepo)(nil)

// Create 创建占位记录
func (r *AssetRepo) Create(ctx context.Context, asset *biz.VideoAsset) error {
	po := &AssetPO{
		TenantID: asset.TenantID,
		Name:     asset.Name,
		Active:   asset.Active,
	}
	if err := r.db.GetDBFromContext(ctx).Create(po).Error; err != nil {
		return err
	}
	asset.ID = po.ID
	asset.CreatedAt = po.CreatedAt
	asset.UpdatedAt = po.UpdatedAt
	return nil
}

// Finalize 写入文件信息
func (r *AssetRepo) Finalize(ctx context.Context, asset *biz.VideoAsset) error {
	result := r.db.GetDBFromContext(ctx).Model(&AssetPO{}).
		Where("id = ?", asset.ID).
		Updates(map[string]interface{}{
			"storage_path":      asset.StoragePath,
			"original_filename": asset.OriginalFilename,
			"size_bytes":        asset.SizeBytes,
			"extension":         asset.Extension,
			"checksum":          asset.Checksum,
			"duration_seconds":  asset.DurationSeconds,
			"thumbnail_url":     asset.ThumbnailURL,
			"stream_url":        asset.StreamURL,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return biz.ErrAssetNotFound
	}

	updated, err := r.Get(ctx, asset.ID)
	if err != nil {
		return err
	}
	asset.UpdatedAt = updated.UpdatedAt
	return nil
}

// Get 根据ID获取资产
func (r *AssetRepo) Get(ctx context.Context, id int64) (*biz.VideoAsset, error) {
	var po AssetPO
	if err := r.db.GetDBFromContext(ctx).First(&po, id).Error; err != nil {
		if database.IsRecordNotFoundError(err) {
			return nil, biz.ErrAssetNotFound
		}
		return nil, err
	}
	return toAsset(&po), nil
}

// GetMany 批量获取
func (r *AssetRepo) GetMany(ctx context.Context, ids []int64) (map[int64]*biz.VideoAsset, error) {
	out := make(map[int64]*biz.VideoAsset, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var pos []AssetPO
	if err := r.db.GetDBFromContext(ctx).Where("id IN ?", ids).Find(&pos).Error; err != nil {
		return nil, err
	}
	for i := range pos {
		out[pos[i].ID] = toAsset(&pos[i])
	}
	return out, nil
}

// List 全部资产, 新的在前
func (r *AssetRepo) List(ctx context.Context) ([]*biz.VideoAsset, error) {
	var pos []AssetPO
	if err := r.db.GetDBFromContext(ctx).Order("created_at DESC, id DESC").Find(&pos).Error; err != nil {
		return nil, err
	}
	return toAssets(pos), nil
}

// ListByTenant 租户下的资产
func (r *AssetRepo) ListByTenant(ctx context.Context, tenantID int64) ([]*biz.VideoAsset, error) {
	var pos []AssetPO
	if err := r.db.GetDBFromContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at DESC, id DESC").
		Find(&pos).Error; err != nil {
		return nil, err
	}
	return toAssets(pos), nil
}

// UpdateMeta 修改名称和启用状态
func (r *AssetRepo) UpdateMeta(ctx context.Context, id int64, name *string, active *bool) (*biz.VideoAsset, error) {
	updates := map[string]interface{}{"updated_at": time.Now().UTC()}
	if name != nil {
		updates["name"] = *name
	}
	if active != nil {
		updates["active"] = *active
	}

	result := r.db.GetDBFromContext(ctx).Model(&AssetPO{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, biz.ErrAssetNotFound
	}
	return r.Get(ctx, id)
}

// Delete 删除资产记录
func (r *AssetRepo) Delete(ctx context.Context, id int64) error {
	result := r.db.GetDBFromContext(ctx).Delete(&AssetPO{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return biz.ErrAssetNotFound
	}
	return nil
}

func toAssets(pos []AssetPO) []*biz.VideoAsset {
	assets := make([]*biz.VideoAsset, 0, len(pos))
	for i := range pos {
		assets = append(assets, toAsset(&pos[i]))
	}
	return assets
}

func toAsset(po *AssetPO) *biz.VideoAsset {
	return &biz.VideoAsset{
		ID:               po.ID,
		TenantID:         po.TenantID,
		Name:             po.Name,
		StoragePath:      po.StoragePath,
		OriginalFilename: po.OriginalFilename,
		SizeBytes:        po.SizeBytes,
		Extension:        po.Extension,
		Checksum:         po.Checksum,
		DurationSeconds:  po.DurationSeconds,
		ThumbnailURL:     po.ThumbnailURL,
		StreamURL:        po.StreamURL,
		Active:           po.Active,
		CreatedAt:        po.CreatedAt,
		UpdatedAt:        po.UpdatedAt,
	}
}
