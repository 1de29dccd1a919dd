package service

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/lk2023060901/signage-backend/internal/asset/biz"
	"github.com/lk2023060901/signage-backend/internal/auth/middleware"
	"github.com/lk2023060901/signage-backend/internal/pkg/logger"
	"github.com/lk2023060901/signage-backend/internal/pkg/response"
	"go.uber.org/zap"
)

// 缩略图上传上限
const maxThumbnailBytes = 5 << 20

// AssetService 资产 HTTP 服务
type AssetService struct {
	store   *biz.AssetStoreUseCase
	catalog *biz.AssetCatalogUseCase
	logger  *logger.Logger
}

// NewAssetService 创建资产服务
func NewAssetService(store *biz.AssetStoreUseCase, catalog *biz.AssetCatalogUseCase, logger *logger.Logger) *AssetService {
	return &AssetService{
		store:   store,
		catalog: catalog,
		logger:  logger,
	}
}

// Upload 上传视频
func (s *AssetService) Upload(c *gin.Context) {
	var req UploadAssetRequest
	if err := c.ShouldBind(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	fh, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "file is required")
		return
	}
	file, err := fh.Open()
	if err != nil {
		s.logger.WithContext(c.Request.Context()).Error("failed to open uploaded file", zap.Error(err))
		response.InternalError(c, "failed to read upload")
		return
	}
	defer file.Close()

	var thumbnail []byte
	if th, err := c.FormFile("thumbnail"); err == nil {
		if th.Size > maxThumbnailBytes {
			response.BadRequest(c, "thumbnail too large")
			return
		}
		f, err := th.Open()
		if err != nil {
			response.BadRequest(c, "failed to read thumbnail")
			return
		}
		thumbnail, err = io.ReadAll(io.LimitReader(f, maxThumbnailBytes))
		f.Close()
		if err != nil {
			response.BadRequest(c, "failed to read thumbnail")
			return
		}
	}

	asset, err := s.store.Ingest(c.Request.Context(), &biz.IngestRequest{
		Content:     file,
		Size:        fh.Size,
		Filename:    fh.Filename,
		TenantID:    req.TenantID,
		DisplayName: req.Name,
		Thumbnail:   thumbnail,
	})
	if err != nil {
		s.handleError(c, err)
		return
	}

	response.Created(c, asset)
}

// List 资产列表
func (s *AssetService) List(c *gin.Context) {
	assets, err := s.catalog.List(c.Request.Context())
	if err != nil {
		s.handleError(c, err)
		return
	}
	response.Success(c, toListResponse(assets))
}

// ListByTenant 租户资产列表
func (s *AssetService) ListByTenant(c *gin.Context) {
	tenantID, ok := paramID(c, "tenant_id")
	if !ok {
		return
	}

	assets, err := s.catalog.ListByTenant(c.Request.Context(), tenantID)
	if err != nil {
		s.handleError(c, err)
		return
	}
	response.Success(c, toListResponse(assets))
}

// Get 资产详情
func (s *AssetService) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	asset, err := s.catalog.Get(c.Request.Context(), id)
	if err != nil {
		s.handleError(c, err)
		return
	}
	response.Success(c, asset)
}

// Update 更新名称或启用状态
func (s *AssetService) Update(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req UpdateAssetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	asset, err := s.catalog.Update(c.Request.Context(), id, biz.UpdateAssetInput{Name: req.Name, Active: req.Active})
	if err != nil {
		s.handleError(c, err)
		return
	}
	response.Success(c, asset)
}

// Activate 启用
func (s *AssetService) Activate(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	asset, err := s.catalog.Activate(c.Request.Context(), id)
	if err != nil {
		s.handleError(c, err)
		return
	}
	response.Success(c, asset)
}

// Deactivate 停用
func (s *AssetService) Deactivate(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	asset, err := s.catalog.Deactivate(c.Request.Context(), id)
	if err != nil {
		s.handleError(c, err)
		return
	}
	response.Success(c, asset)
}

// Delete 删除资产
func (s *AssetService) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	actorID, _ := middleware.GetUserID(c)
	locations, err := s.store.Delete(c.Request.Context(), id, actorID)
	if err != nil {
		s.handleError(c, err)
		return
	}

	s.logger.WithContext(c.Request.Context()).Info("asset removed from locations",
		zap.Int64("asset_id", id), zap.Int64s("locations", locations))
	response.NoContent(c)
}

// Stream 输出视频字节
func (s *AssetService) Stream(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	res, err := s.store.Stream(c.Request.Context(), id)
	if err != nil {
		s.handleError(c, err)
		return
	}
	defer res.Content.Close()

	c.DataFromReader(http.StatusOK, res.Size, res.ContentType, res.Content, map[string]string{
		"Content-Disposition": fmt.Sprintf(`inline; filename="%s"`, quoteFilename(res.Filename)),
	})
}

// Thumbnail 输出缩略图, 不存在时返回空 404
func (s *AssetService) Thumbnail(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	rc, size, found, err := s.store.Thumbnail(c.Request.Context(), id)
	if err != nil {
		s.handleError(c, err)
		return
	}
	if !found {
		c.Status(http.StatusNotFound)
		return
	}
	defer rc.Close()

	c.DataFromReader(http.StatusOK, size, "image/jpeg", rc, map[string]string{
		"Cache-Control": "max-age=86400",
	})
}

func quoteFilename(name string) string {
	return strings.NewReplacer(`"`, `'`, "\r", "", "\n", "").Replace(name)
}

func (s *AssetService) handleError(c *gin.Context, err error) {
	s.logger.WithContext(c.Request.Context()).Warn("asset request failed",
		zap.String("path", c.FullPath()), zap.Error(err))
	response.HandleError(c, err)
}
