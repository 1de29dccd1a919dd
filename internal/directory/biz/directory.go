package biz

import (
	"context"
	"strconv"
	"time"

	apperrors "github.com/lk2023060901/signage-backend/internal/pkg/errors"
)

var (
	// ErrTenantNotFound 租户不存在
	ErrTenantNotFound = apperrors.New(apperrors.ErrTenantNotFound)
	// ErrLocationNotFound 位置不存在
	ErrLocationNotFound = apperrors.New(apperrors.ErrLocationNotFound)
	// ErrDeviceNotFound 设备不存在
	ErrDeviceNotFound = apperrors.New(apperrors.ErrDeviceNotFound)
)

// Tenant 租户
type Tenant struct {
	ID     int64
	Name   string
	Active bool
}

// Location 播放位置, 归属某个租户
type Location struct {
	ID       int64
	TenantID int64
	Name     string
	Active   bool
}

// Device 播放设备
type Device struct {
	ID         int64
	TenantID   int64
	Name       string
	Serial     string
	Active     bool
	LastSyncAt *time.Time
	LastSyncIP string
}

// DirectoryRepo 租户/位置/设备只读查询, 由设备管理系统维护
type DirectoryRepo interface {
	GetTenant(ctx context.Context, id int64) (*Tenant, error)
	ListTenants(ctx context.Context) ([]*Tenant, error)
	GetLocation(ctx context.Context, id int64) (*Location, error)
	GetLocations(ctx context.Context, ids []int64) (map[int64]*Location, error)
	GetDevice(ctx context.Context, id int64) (*Device, error)
	TouchDevice(ctx context.Context, id int64, at time.Time, ip string) error
}

// SameTenant 资产与位置是否属于同一租户
func SameTenant(assetTenantID int64, loc *Location) bool {
	return loc != nil && assetTenantID == loc.TenantID
}

// LocationLockKey 位置级别的互斥键, 播放列表变更与设备分配共用
func LocationLockKey(locationID int64) string {
	return "playlist:location:" + strconv.FormatInt(locationID, 10)
}

// DeviceLockKey 设备分配互斥键
func DeviceLockKey(deviceID int64) string {
	return "assignment:device:" + strconv.FormatInt(deviceID, 10)
}
