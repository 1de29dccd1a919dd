package service

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	assetbiz "github.com/lk2023060901/signage-backend/internal/asset/biz"
	assetdata "github.com/lk2023060901/signage-backend/internal/asset/data"
	"github.com/lk2023060901/signage-backend/internal/auth"
	"github.com/lk2023060901/signage-backend/internal/auth/middleware"
	directorybiz "github.com/lk2023060901/signage-backend/internal/directory/biz"
	directorydata "github.com/lk2023060901/signage-backend/internal/directory/data"
	"github.com/lk2023060901/signage-backend/internal/notify"
	"github.com/lk2023060901/signage-backend/internal/pkg/database/dbtest"
	"github.com/lk2023060901/signage-backend/internal/pkg/keylock"
	"github.com/lk2023060901/signage-backend/internal/pkg/logger"
	"github.com/lk2023060901/signage-backend/internal/pkg/sse"
	"github.com/lk2023060901/signage-backend/internal/playlist/biz"
	"github.com/lk2023060901/signage-backend/internal/playlist/data"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlaylistRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	models := append(data.Models(), assetdata.Models()...)
	models = append(models, directorydata.Models()...)
	db := dbtest.New(t, models...)

	directory := directorydata.NewDirectoryRepo(db)
	assets := assetdata.NewAssetRepo(db)
	tenant := &directorybiz.Tenant{Name: "Acme", Active: true}
	require.NoError(t, directory.CreateTenant(ctx, tenant))
	lobby := &directorybiz.Location{TenantID: tenant.ID, Name: "Lobby", Active: true}
	require.NoError(t, directory.CreateLocation(ctx, lobby))
	cafe := &directorybiz.Location{TenantID: tenant.ID, Name: "Cafe", Active: true}
	require.NoError(t, directory.CreateLocation(ctx, cafe))
	asset := &assetbiz.VideoAsset{TenantID: tenant.ID, Name: "Promo", Active: true}
	require.NoError(t, assets.Create(ctx, asset))

	uc := biz.NewPlaylistUseCase(data.NewLinkRepo(db), assetbiz.NewAssetCatalogUseCase(assets, directory),
		directory, db, keylock.NewLocal(), &notify.Recorder{}, logger.NewNop())
	svc := NewPlaylistService(uc, sse.NewHub(), time.Second, logger.NewNop())

	jwt := auth.NewJWTManager("secret", "", time.Hour)
	router := gin.New()
	svc.RegisterRoutes(router.Group("/api/v1", middleware.JWTAuth(jwt, logger.NewNop())))

	call := func(role, method, path, body string) *httptest.ResponseRecorder {
		token, err := jwt.GenerateToken(1, tenant.ID, role)
		require.NoError(t, err)
		req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	lobbyPath := fmt.Sprintf("/api/v1/locations/%d/playlist", lobby.ID)
	cafePath := fmt.Sprintf("/api/v1/locations/%d/playlist", cafe.ID)

	w := call(auth.RoleOperator, http.MethodPost, lobbyPath, fmt.Sprintf(`{"asset_id":%d,"order":0}`, asset.ID))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = call(auth.RoleTenantAdmin, http.MethodPost, lobbyPath, fmt.Sprintf(`{"asset_id":%d,"order":0}`, asset.ID))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = call(auth.RoleTenantAdmin, http.MethodPost, lobbyPath, fmt.Sprintf(`{"asset_id":%d,"order":1}`, asset.ID))
	assert.Equal(t, http.StatusConflict, w.Code)

	w = call(auth.RoleTenantAdmin, http.MethodPost, lobbyPath, fmt.Sprintf(`{"asset_id":%d,"order":-1}`, asset.ID))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	links, err := data.NewLinkRepo(db).ListByLocation(ctx, lobby.ID)
	require.NoError(t, err)
	require.Len(t, links, 1)
	linkID := links[0].ID

	// 通过其他位置访问条目视为不存在
	w = call(auth.RoleTenantAdmin, http.MethodPut, fmt.Sprintf("%s/%d", cafePath, linkID), `{"order":3}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = call(auth.RoleTenantAdmin, http.MethodDelete, fmt.Sprintf("%s/%d", cafePath, linkID), "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = call(auth.RoleTenantAdmin, http.MethodPut, fmt.Sprintf("%s/%d", lobbyPath, linkID), `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = call(auth.RoleTenantAdmin, http.MethodPut, fmt.Sprintf("%s/%d", lobbyPath, linkID), `{"order":3}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"order":3`)

	w = call(auth.RoleDevice, http.MethodGet, lobbyPath, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"asset_name":"Promo"`)
	assert.Contains(t, w.Body.String(), `"location_name":"Lobby"`)

	w = call(auth.RoleTenantAdmin, http.MethodDelete, fmt.Sprintf("%s/%d", lobbyPath, linkID), "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = call(auth.RoleDevice, http.MethodGet, "/api/v1/locations/999/playlist", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = call(auth.RoleDevice, http.MethodGet, "/api/v1/locations/999/events", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
