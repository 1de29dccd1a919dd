package biz

import (
	"context"
	"strings"

	directorybiz "github.com/lk2023060901/signage-backend/internal/directory/biz"
	apperrors "github.com/lk2023060901/signage-backend/internal/pkg/errors"
)

// UpdateAssetInput 可修改的元数据, nil 表示不变
type UpdateAssetInput struct {
	Name   *string
	Active *bool
}

// AssetCatalogUseCase 资产元数据查询与修改
type AssetCatalogUseCase struct {
	repo      AssetRepo
	directory directorybiz.DirectoryRepo
}

// NewAssetCatalogUseCase creates a new asset catalog use case
func NewAssetCatalogUseCase(repo AssetRepo, directory directorybiz.DirectoryRepo) *AssetCatalogUseCase {
	return &AssetCatalogUseCase{
		repo:      repo,
		directory: directory,
	}
}

// List 全部资产, 新的在前
func (uc *AssetCatalogUseCase) List(ctx context.Context) ([]*VideoAsset, error) {
	return uc.repo.List(ctx)
}

// ListByTenant 租户下的资产
func (uc *AssetCatalogUseCase) ListByTenant(ctx context.Context, tenantID int64) ([]*VideoAsset, error) {
	if _, err := uc.directory.GetTenant(ctx, tenantID); err != nil {
		return nil, err
	}
	return uc.repo.ListByTenant(ctx, tenantID)
}

// Get 获取单个资产
func (uc *AssetCatalogUseCase) Get(ctx context.Context, id int64) (*VideoAsset, error) {
	return uc.repo.Get(ctx, id)
}

// GetMany 批量获取, 不存在的 id 不出现在结果中
func (uc *AssetCatalogUseCase) GetMany(ctx context.Context, ids []int64) (map[int64]*VideoAsset, error) {
	if len(ids) == 0 {
		return map[int64]*VideoAsset{}, nil
	}
	return uc.repo.GetMany(ctx, ids)
}

// Update 修改名称或启用状态
func (uc *AssetCatalogUseCase) Update(ctx context.Context, id int64, in UpdateAssetInput) (*VideoAsset, error) {
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, apperrors.New(apperrors.ErrAssetInvalidInput, "name must not be blank")
		}
		in.Name = &name
	}
	if in.Name == nil && in.Active == nil {
		return uc.repo.Get(ctx, id)
	}
	return uc.repo.UpdateMeta(ctx, id, in.Name, in.Active)
}

// Activate 启用
func (uc *AssetCatalogUseCase) Activate(ctx context.Context, id int64) (*VideoAsset, error) {
	active := true
	return uc.repo.UpdateMeta(ctx, id, nil, &active)
}

// Deactivate 停用, 设备播放列表会过滤停用资产
func (uc *AssetCatalogUseCase) Deactivate(ctx context.Context, id int64) (*VideoAsset, error) {
	active := false
	return uc.repo.UpdateMeta(ctx, id, nil, &active)
}
