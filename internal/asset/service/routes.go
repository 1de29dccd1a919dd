package service

import (
	"github.com/gin-gonic/gin"
	"github.com/lk2023060901/signage-backend/internal/auth"
	"github.com/lk2023060901/signage-backend/internal/auth/middleware"
)

// RegisterRoutes 注册资产路由, rg 需已挂载认证中间件
func (s *AssetService) RegisterRoutes(rg *gin.RouterGroup) {
	admin := middleware.RequireRole(auth.RoleSuperAdmin, auth.RoleTenantAdmin)

	assets := rg.Group("/assets")
	{
		assets.GET("", s.List)
		assets.GET("/:id", s.Get)
		assets.GET("/:id/stream", s.Stream)
		assets.GET("/:id/thumbnail", s.Thumbnail)

		assets.POST("", admin, s.Upload)
		assets.PUT("/:id", admin, s.Update)
		assets.DELETE("/:id", admin, s.Delete)
		assets.PUT("/:id/activate", admin, s.Activate)
		assets.PUT("/:id/deactivate", admin, s.Deactivate)
	}

	rg.GET("/tenants/:tenant_id/assets", s.ListByTenant)
}
