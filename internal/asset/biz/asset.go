package biz

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/lk2023060901/signage-backend/internal/pkg/errors"
)

var (
	// ErrAssetNotFound 资产不存在
	ErrAssetNotFound = apperrors.New(apperrors.ErrAssetNotFound)
	// ErrAssetFileMissing 资产文件缺失
	ErrAssetFileMissing = apperrors.New(apperrors.ErrAssetFileMissing)
	// ErrAssetEmptyFile 上传内容为空
	ErrAssetEmptyFile = apperrors.New(apperrors.ErrAssetEmptyFile)
	// ErrAssetFileTooLarge 超过大小限制
	ErrAssetFileTooLarge = apperrors.New(apperrors.ErrAssetFileTooLarge)
)

const (
	// VideoBaseName 视频文件名, 扩展名沿用上传文件
	VideoBaseName = "video"
	// ThumbnailFileName 缩略图文件名
	ThumbnailFileName = "thumbnail.jpg"
	// StreamURLFormat 播放地址
	StreamURLFormat = "/api/v1/assets/%d/stream"
	// ThumbnailURLFormat 缩略图地址
	ThumbnailURLFormat = "/api/v1/assets/%d/thumbnail"
)

// VideoAsset 视频资产
type VideoAsset struct {
	ID               int64     `json:"id"`
	TenantID         int64     `json:"tenant_id"`
	Name             string    `json:"name"`
	StoragePath      string    `json:"storage_path"`
	OriginalFilename string    `json:"original_filename"`
	SizeBytes        int64     `json:"size_bytes"`
	Extension        string    `json:"extension"`
	Checksum         string    `json:"checksum"`
	DurationSeconds  int       `json:"duration_seconds"`
	ThumbnailURL     *string   `json:"thumbnail_url"`
	StreamURL        string    `json:"stream_url"`
	Active           bool      `json:"active"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// AssetRepo 资产仓储
type AssetRepo interface {
	// Create 写入占位记录, 回填 ID 与时间戳
	Create(ctx context.Context, asset *VideoAsset) error
	// Finalize 写入入库流程产生的文件信息
	Finalize(ctx context.Context, asset *VideoAsset) error
	Get(ctx context.Context, id int64) (*VideoAsset, error)
	GetMany(ctx context.Context, ids []int64) (map[int64]*VideoAsset, error)
	// List 按创建时间倒序
	List(ctx context.Context) ([]*VideoAsset, error)
	ListByTenant(ctx context.Context, tenantID int64) ([]*VideoAsset, error)
	UpdateMeta(ctx context.Context, id int64, name *string, active *bool) (*VideoAsset, error)
	Delete(ctx context.Context, id int64) error
}

// PlaylistIndex 资产被哪些位置引用, 由播放列表模块实现
type PlaylistIndex interface {
	LocationIDsForAsset(ctx context.Context, assetID int64) ([]int64, error)
	DeleteByAsset(ctx context.Context, assetID int64) error
}

// Transaction 在 ctx 中开启事务, 仓储通过 ctx 加入
type Transaction interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// SanitizeName 将租户名转换为目录名片段
func SanitizeName(name string) string {
	s := nonAlnum.ReplaceAllString(strings.ToLower(name), "_")
	s = strings.Trim(s, "_")
	if s == "" {
		return "unnamed"
	}
	return s
}

// TenantDir 租户目录 <tenantId>_<sanitizedName>
func TenantDir(tenantID int64, tenantName string) string {
	return fmt.Sprintf("%d_%s", tenantID, SanitizeName(tenantName))
}

// AssetLockKey 资产级别的互斥键, 删除与新建播放列表引用共用
func AssetLockKey(assetID int64) string {
	return "asset:" + strconv.FormatInt(assetID, 10)
}

// AssetDir 资产目录, 相对存储卷根
func AssetDir(tenantID int64, tenantName string, assetID int64) string {
	return fmt.Sprintf("%s/%d", TenantDir(tenantID, tenantName), assetID)
}

// SplitExtension 返回最后一个点之后的小写扩展名和去掉扩展名的文件名
func SplitExtension(filename string) (base, ext string) {
	i := strings.LastIndex(filename, ".")
	if i < 0 || i == len(filename)-1 {
		return filename, ""
	}
	return filename[:i], strings.ToLower(filename[i+1:])
}
