package service

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/lk2023060901/signage-backend/internal/assignment/biz"
	"github.com/lk2023060901/signage-backend/internal/auth"
	"github.com/lk2023060901/signage-backend/internal/auth/middleware"
	"github.com/lk2023060901/signage-backend/internal/pkg/logger"
	"github.com/lk2023060901/signage-backend/internal/pkg/response"
	"go.uber.org/zap"
)

// AssignRequest 分配请求
type AssignRequest struct {
	LocationID int64  `json:"location_id" binding:"required,gt=0"`
	Notes      string `json:"notes" binding:"max=2000"`
}

// AssignmentService 设备分配 HTTP 服务
type AssignmentService struct {
	uc     *biz.LedgerUseCase
	logger *logger.Logger
}

// NewAssignmentService 创建设备分配服务
func NewAssignmentService(uc *biz.LedgerUseCase, logger *logger.Logger) *AssignmentService {
	return &AssignmentService{
		uc:     uc,
		logger: logger,
	}
}

// RegisterRoutes 注册设备分配路由
func (s *AssignmentService) RegisterRoutes(rg *gin.RouterGroup) {
	assigners := middleware.RequireRole(auth.RoleSuperAdmin, auth.RoleTenantAdmin, auth.RoleOperator)

	devices := rg.Group("/devices/:device_id")
	{
		devices.PUT("/assignment", assigners, s.Assign)
		devices.GET("/assignment", s.Current)
		devices.GET("/assignments", s.History)
		devices.GET("/feed", s.Feed)
	}
}

// Assign 分配到位置
func (s *AssignmentService) Assign(c *gin.Context) {
	deviceID, ok := paramID(c, "device_id")
	if !ok {
		return
	}

	var req AssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	actorID, _ := middleware.GetUserID(c)
	assignment, err := s.uc.Assign(c.Request.Context(), deviceID, req.LocationID, actorID, req.Notes)
	if err != nil {
		s.handleError(c, err)
		return
	}
	response.Success(c, assignment)
}

// Current 当前分配, 未分配返回 204
func (s *AssignmentService) Current(c *gin.Context) {
	deviceID, ok := paramID(c, "device_id")
	if !ok {
		return
	}

	current, err := s.uc.CurrentFor(c.Request.Context(), deviceID)
	if err != nil {
		s.handleError(c, err)
		return
	}
	if current == nil {
		response.NoContent(c)
		return
	}
	response.Success(c, current)
}

// History 分配历史
func (s *AssignmentService) History(c *gin.Context) {
	deviceID, ok := paramID(c, "device_id")
	if !ok {
		return
	}

	history, err := s.uc.History(c.Request.Context(), deviceID)
	if err != nil {
		s.handleError(c, err)
		return
	}
	response.Success(c, gin.H{"items": history, "total": len(history)})
}

// Feed 设备拉取播放列表
func (s *AssignmentService) Feed(c *gin.Context) {
	deviceID, ok := paramID(c, "device_id")
	if !ok {
		return
	}

	feed, err := s.uc.Feed(c.Request.Context(), deviceID, c.ClientIP())
	if err != nil {
		s.handleError(c, err)
		return
	}
	response.Success(c, feed)
}

func paramID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, "invalid "+name)
		return 0, false
	}
	return id, true
}

func (s *AssignmentService) handleError(c *gin.Context, err error) {
	s.logger.WithContext(c.Request.Context()).Warn("assignment request failed",
		zap.String("path", c.FullPath()), zap.Error(err))
	response.HandleError(c, err)
}
