package service

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/lk2023060901/signage-backend/internal/asset/biz"
	"github.com/lk2023060901/signage-backend/internal/pkg/response"
)

// UploadAssetRequest 上传表单, 文件字段为 file 与可选的 thumbnail
type UploadAssetRequest struct {
	TenantID int64  `form:"tenant_id" binding:"required,gt=0"`
	Name     string `form:"name"`
}

// UpdateAssetRequest 更新资产请求
type UpdateAssetRequest struct {
	Name   *string `json:"name"`
	Active *bool   `json:"active"`
}

// AssetListResponse 资产列表
type AssetListResponse struct {
	Items []*biz.VideoAsset `json:"items"`
	Total int               `json:"total"`
}

func toListResponse(assets []*biz.VideoAsset) *AssetListResponse {
	if assets == nil {
		assets = []*biz.VideoAsset{}
	}
	return &AssetListResponse{Items: assets, Total: len(assets)}
}

// paramID 解析路径中的正整数 ID, 失败时已写入 400
func paramID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, "invalid "+name)
		return 0, false
	}
	return id, true
}
