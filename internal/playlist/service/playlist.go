package service

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lk2023060901/signage-backend/internal/auth"
	"github.com/lk2023060901/signage-backend/internal/auth/middleware"
	"github.com/lk2023060901/signage-backend/internal/notify"
	"github.com/lk2023060901/signage-backend/internal/pkg/logger"
	"github.com/lk2023060901/signage-backend/internal/pkg/response"
	"github.com/lk2023060901/signage-backend/internal/pkg/sse"
	"github.com/lk2023060901/signage-backend/internal/playlist/biz"
	"go.uber.org/zap"
)

// LinkAssetRequest 加入播放列表
type LinkAssetRequest struct {
	AssetID int64 `json:"asset_id" binding:"required,gt=0"`
	Order   int   `json:"order"`
}

// ReorderRequest 修改顺序
type ReorderRequest struct {
	Order *int `json:"order" binding:"required"`
}

// PlaylistResponse 播放列表
type PlaylistResponse struct {
	LocationID int64                `json:"location_id"`
	Items      []*biz.PlaylistEntry `json:"items"`
}

// PlaylistService 播放列表 HTTP 服务
type PlaylistService struct {
	uc        *biz.PlaylistUseCase
	hub       *sse.Hub
	keepAlive time.Duration
	logger    *logger.Logger
}

// NewPlaylistService 创建播放列表服务, hub 为 nil 时不提供事件流
func NewPlaylistService(uc *biz.PlaylistUseCase, hub *sse.Hub, keepAlive time.Duration, logger *logger.Logger) *PlaylistService {
	if keepAlive <= 0 {
		keepAlive = 30 * time.Second
	}
	return &PlaylistService{
		uc:        uc,
		hub:       hub,
		keepAlive: keepAlive,
		logger:    logger,
	}
}

// RegisterRoutes 注册播放列表路由
func (s *PlaylistService) RegisterRoutes(rg *gin.RouterGroup) {
	admin := middleware.RequireRole(auth.RoleSuperAdmin, auth.RoleTenantAdmin)

	playlist := rg.Group("/locations/:location_id")
	{
		playlist.GET("/playlist", s.List)
		playlist.POST("/playlist", admin, s.Link)
		playlist.PUT("/playlist/:link_id", admin, s.Reorder)
		playlist.DELETE("/playlist/:link_id", admin, s.Unlink)
		if s.hub != nil {
			playlist.GET("/events", s.Events)
		}
	}
}

// List 位置播放列表
func (s *PlaylistService) List(c *gin.Context) {
	locationID, ok := paramID(c, "location_id")
	if !ok {
		return
	}

	entries, err := s.uc.ListForLocation(c.Request.Context(), locationID)
	if err != nil {
		s.handleError(c, err)
		return
	}
	response.Success(c, &PlaylistResponse{LocationID: locationID, Items: entries})
}

// Link 加入播放列表
func (s *PlaylistService) Link(c *gin.Context) {
	locationID, ok := paramID(c, "location_id")
	if !ok {
		return
	}

	var req LinkAssetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	actorID, _ := middleware.GetUserID(c)
	link, err := s.uc.Link(c.Request.Context(), req.AssetID, locationID, req.Order, actorID)
	if err != nil {
		s.handleError(c, err)
		return
	}
	response.Created(c, link)
}

// Reorder 修改顺序
func (s *PlaylistService) Reorder(c *gin.Context) {
	linkID, ok := s.linkInLocation(c)
	if !ok {
		return
	}

	var req ReorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	actorID, _ := middleware.GetUserID(c)
	link, err := s.uc.Reorder(c.Request.Context(), linkID, *req.Order, actorID)
	if err != nil {
		s.handleError(c, err)
		return
	}
	response.Success(c, link)
}

// Unlink 移出播放列表
func (s *PlaylistService) Unlink(c *gin.Context) {
	linkID, ok := s.linkInLocation(c)
	if !ok {
		return
	}

	actorID, _ := middleware.GetUserID(c)
	if err := s.uc.Unlink(c.Request.Context(), linkID, actorID); err != nil {
		s.handleError(c, err)
		return
	}
	response.NoContent(c)
}

// Events 推送该位置的播放列表变更
func (s *PlaylistService) Events(c *gin.Context) {
	locationID, ok := paramID(c, "location_id")
	if !ok {
		return
	}
	if _, err := s.uc.GetLocation(c.Request.Context(), locationID); err != nil {
		s.handleError(c, err)
		return
	}

	client := sse.NewClient(notify.LocationResource(locationID), 0)
	s.logger.WithContext(c.Request.Context()).Debug("sse client connected",
		zap.String("client_id", client.ID), zap.Int64("location_id", locationID))
	sse.StreamResponse(c, client, s.hub, s.keepAlive)
}

// linkInLocation 条目必须属于路径中的位置, 否则按不存在处理
func (s *PlaylistService) linkInLocation(c *gin.Context) (int64, bool) {
	locationID, ok := paramID(c, "location_id")
	if !ok {
		return 0, false
	}
	linkID, ok := paramID(c, "link_id")
	if !ok {
		return 0, false
	}

	link, err := s.uc.GetLink(c.Request.Context(), linkID)
	if err != nil {
		s.handleError(c, err)
		return 0, false
	}
	if link.LocationID != locationID {
		s.handleError(c, biz.ErrLinkNotFound)
		return 0, false
	}
	return linkID, true
}

func paramID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, "invalid "+name)
		return 0, false
	}
	return id, true
}

func (s *PlaylistService) handleError(c *gin.Context, err error) {
	s.logger.WithContext(c.Request.Context()).Warn("playlist request failed",
		zap.String("path", c.FullPath()), zap.Error(err))
	response.HandleError(c, err)
}
