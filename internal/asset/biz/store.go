package biz

import (
	"bufio"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"slices"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/lk2023060901/signage-backend/internal/asset/storage"
	directorybiz "github.com/lk2023060901/signage-backend/internal/directory/biz"
	"github.com/lk2023060901/signage-backend/internal/media"
	"github.com/lk2023060901/signage-backend/internal/notify"
	apperrors "github.com/lk2023060901/signage-backend/internal/pkg/errors"
	"github.com/lk2023060901/signage-backend/internal/pkg/keylock"
	"github.com/lk2023060901/signage-backend/internal/pkg/logger"
	"github.com/lk2023060901/signage-backend/internal/pkg/workerpool"
	"github.com/lk2023060901/signage-backend/internal/settings"
)

const (
	sniffLen          = 3072
	maxDeleteAttempts = 8
)

// IngestRequest 上传请求
type IngestRequest struct {
	Content     io.Reader
	Size        int64
	Filename    string
	TenantID    int64
	DisplayName string
	Thumbnail   []byte // 调用方提供的缩略图, 原样保存
}

// StreamResult 播放流
type StreamResult struct {
	Content     io.ReadCloser
	ContentType string
	Size        int64
	Filename    string
}

// StoreDeps AssetStoreUseCase 依赖
type StoreDeps struct {
	Repo      AssetRepo
	Links     PlaylistIndex
	Directory directorybiz.DirectoryRepo
	Tx        Transaction
	Volume    storage.Volume
	Settings  settings.Source
	Prober    media.Prober
	Extractor media.FrameExtractor
	Pool      *workerpool.Pool // nil 时在当前 goroutine 执行
	Locker    keylock.Locker
	Publisher notify.Publisher
	Logger    *logger.Logger
}

// AssetStoreUseCase 资产文件入库, 读取与删除
type AssetStoreUseCase struct {
	StoreDeps
}

// NewAssetStoreUseCase creates a new asset store use case
func NewAssetStoreUseCase(deps StoreDeps) *AssetStoreUseCase {
	if deps.Logger == nil {
		deps.Logger = logger.NewNop()
	}
	if deps.Locker == nil {
		deps.Locker = keylock.NewLocal()
	}
	return &AssetStoreUseCase{StoreDeps: deps}
}

// Ingest 校验并保存上传的视频, 一旦开始不受请求取消影响
func (uc *AssetStoreUseCase) Ingest(ctx context.Context, req *IngestRequest) (*VideoAsset, error) {
	log := uc.Logger.WithContext(ctx)
	if ctx.Err() != nil {
		log.Warn("request context already done, ingestion continues", zap.String("filename", req.Filename))
	}
	ctx = context.WithoutCancel(ctx)

	limits, err := settings.LoadMediaLimits(ctx, uc.Settings)
	if err != nil {
		return nil, fmt.Errorf("failed to load media limits: %w", err)
	}

	base, ext, err := validateUpload(req, limits)
	if err != nil {
		return nil, err
	}

	tenant, err := uc.Directory.GetTenant(ctx, req.TenantID)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.DisplayName)
	if name == "" {
		name = base
	}

	asset := &VideoAsset{
		TenantID: tenant.ID,
		Name:     name,
		Active:   true,
	}
	if err := uc.Repo.Create(ctx, asset); err != nil {
		return nil, fmt.Errorf("failed to create asset: %w", err)
	}

	dir := AssetDir(tenant.ID, tenant.Name, asset.ID)
	log = log.With(zap.Int64("asset_id", asset.ID), zap.String("dir", uc.Volume.Describe(dir)))

	if err := uc.store(ctx, log, asset, dir, ext, req, limits); err != nil {
		// 占位记录连同可能已建立的播放列表引用一起移除, 目录保留
		if _, delErr := uc.remove(ctx, &VideoAsset{ID: asset.ID}, 0); delErr != nil {
			log.Error("failed to remove placeholder asset", zap.Error(delErr))
		}
		log.Error("asset ingestion failed, directory left in place", zap.Error(err))

		if apperrors.Is(err, apperrors.ErrAssetFileTooLarge) || apperrors.Is(err, apperrors.ErrAssetEmptyFile) {
			return nil, err
		}
		return nil, apperrors.Wrap(err, apperrors.ErrAssetStorageFailed)
	}

	log.Info("asset ingested",
		zap.Int64("size", asset.SizeBytes),
		zap.Int("duration", asset.DurationSeconds),
		zap.Bool("thumbnail", asset.ThumbnailURL != nil),
	)
	return asset, nil
}

func validateUpload(req *IngestRequest, limits settings.MediaLimits) (base, ext string, err error) {
	if req.Content == nil || req.Size == 0 {
		return "", "", ErrAssetEmptyFile
	}

	base, ext = SplitExtension(req.Filename)
	if ext == "" {
		return "", "", apperrors.New(apperrors.ErrAssetInvalidExtension, "file has no extension")
	}
	if !limits.Allows(ext) {
		return "", "", apperrors.Newf(apperrors.ErrAssetInvalidExtension,
			"extension %q not allowed, allowed: %s", ext, strings.Join(limits.AllowedExtensions, ", "))
	}
	if req.Size > limits.MaxBytes() {
		return "", "", apperrors.Newf(apperrors.ErrAssetFileTooLarge, "max %d MB", limits.MaxSizeMB)
	}
	return base, ext, nil
}

func (uc *AssetStoreUseCase) store(ctx context.Context, log *logger.Logger, asset *VideoAsset, dir, ext string,
	req *IngestRequest, limits settings.MediaLimits) error {
	if err := uc.Volume.MkdirAll(ctx, dir); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	videoPath := path.Join(dir, VideoBaseName+"."+ext)
	// 多读一个字节用于判断是否超限
	written, err := uc.Volume.Write(ctx, videoPath, io.LimitReader(req.Content, limits.MaxBytes()+1))
	if err != nil {
		return fmt.Errorf("write video: %w", err)
	}
	if written == 0 {
		return ErrAssetEmptyFile
	}
	if written > limits.MaxBytes() {
		return apperrors.Newf(apperrors.ErrAssetFileTooLarge, "max %d MB", limits.MaxSizeMB)
	}

	checksum, err := uc.checksum(ctx, videoPath)
	if err != nil {
		return fmt.Errorf("checksum: %w", err)
	}

	src, err := uc.Volume.Locate(ctx, videoPath)
	if err != nil {
		return fmt.Errorf("locate video: %w", err)
	}

	probeCh := uc.run(func() (interface{}, error) {
		return uc.Prober.DurationSeconds(ctx, src)
	})
	thumbCh := uc.run(func() (interface{}, error) {
		return uc.thumbnail(ctx, log, dir, src, req.Thumbnail)
	})

	duration := 0
	if res := workerpool.Wait(ctx, probeCh); res.Error != nil {
		log.Warn("duration probe failed", zap.Error(res.Error))
	} else {
		duration = res.Data.(int)
	}

	res := workerpool.Wait(ctx, thumbCh)
	if res.Error != nil {
		return fmt.Errorf("write thumbnail: %w", res.Error)
	}

	asset.StoragePath = videoPath
	asset.OriginalFilename = req.Filename
	asset.SizeBytes = written
	asset.Extension = ext
	asset.Checksum = checksum
	asset.DurationSeconds = duration
	asset.StreamURL = fmt.Sprintf(StreamURLFormat, asset.ID)
	if res.Data.(bool) {
		u := fmt.Sprintf(ThumbnailURLFormat, asset.ID)
		asset.ThumbnailURL = &u
	}

	if err := uc.Repo.Finalize(ctx, asset); err != nil {
		return fmt.Errorf("finalize asset: %w", err)
	}
	return nil
}

// run 提交到 worker pool, 没有 pool 时同步执行
func (uc *AssetStoreUseCase) run(task func() (interface{}, error)) <-chan workerpool.TaskResult {
	if uc.Pool != nil {
		return uc.Pool.SubmitWithResult(task)
	}

	ch := make(chan workerpool.TaskResult, 1)
	data, err := task()
	ch <- workerpool.TaskResult{Data: data, Error: err}
	close(ch)
	return ch
}

func (uc *AssetStoreUseCase) checksum(ctx context.Context, p string) (string, error) {
	rc, _, err := uc.Volume.Open(ctx, p)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	h := sha256.New()
	if _, err := io.Copy(h, rc); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// thumbnail 返回是否生成了缩略图; 只有保存调用方提供的图片失败才返回错误
func (uc *AssetStoreUseCase) thumbnail(ctx context.Context, log *logger.Logger, dir, src string, provided []byte) (bool, error) {
	thumbPath := path.Join(dir, ThumbnailFileName)

	if len(provided) > 0 {
		if _, err := uc.Volume.Write(ctx, thumbPath, bytes.NewReader(provided)); err != nil {
			return false, err
		}
		return true, nil
	}

	if uc.Extractor == nil {
		return false, nil
	}
	frame, err := uc.Extractor.ExtractFrame(ctx, src)
	if err != nil {
		log.Warn("thumbnail extraction failed", zap.Error(err))
		return false, nil
	}
	if _, err := uc.Volume.Write(ctx, thumbPath, bytes.NewReader(frame)); err != nil {
		log.Warn("failed to save extracted thumbnail", zap.Error(err))
		return false, nil
	}
	return true, nil
}

// Stream 打开资产视频
func (uc *AssetStoreUseCase) Stream(ctx context.Context, id int64) (*StreamResult, error) {
	asset, err := uc.Repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if asset.StoragePath == "" {
		return nil, ErrAssetFileMissing
	}

	rc, _, err := uc.Volume.Open(ctx, asset.StoragePath)
	if err != nil {
		if errors.Is(err, storage.ErrNotExist) {
			return nil, ErrAssetFileMissing
		}
		uc.Logger.WithContext(ctx).Warn("failed to open asset file",
			zap.Int64("asset_id", id), zap.Error(err))
		return nil, apperrors.Wrap(err, apperrors.ErrAssetFileMissing)
	}

	content, contentType := detectContentType(rc, asset.Extension)
	return &StreamResult{
		Content:     content,
		ContentType: contentType,
		Size:        asset.SizeBytes,
		Filename:    asset.OriginalFilename,
	}, nil
}

type readCloser struct {
	io.Reader
	io.Closer
}

// detectContentType 先按扩展名, 再按文件头, 最后 application/octet-stream
func detectContentType(rc io.ReadCloser, ext string) (io.ReadCloser, string) {
	if ext != "" {
		if ct := mime.TypeByExtension("." + ext); ct != "" {
			return rc, ct
		}
	}

	br := bufio.NewReaderSize(rc, sniffLen)
	head, _ := br.Peek(sniffLen)
	content := readCloser{Reader: br, Closer: rc}
	if len(head) == 0 {
		return content, "application/octet-stream"
	}
	return content, mimetype.Detect(head).String()
}

// Thumbnail 打开缩略图, 不存在时 found 为 false
func (uc *AssetStoreUseCase) Thumbnail(ctx context.Context, id int64) (io.ReadCloser, int64, bool, error) {
	asset, err := uc.Repo.Get(ctx, id)
	if err != nil {
		return nil, 0, false, err
	}
	if asset.StoragePath == "" {
		return nil, 0, false, nil
	}

	rc, size, err := uc.Volume.Open(ctx, path.Join(path.Dir(asset.StoragePath), ThumbnailFileName))
	if err != nil {
		if errors.Is(err, storage.ErrNotExist) {
			return nil, 0, false, nil
		}
		return nil, 0, false, err
	}
	return rc, size, true, nil
}

// Delete 删除资产文件, 播放列表引用与目录记录, 返回受影响的位置
func (uc *AssetStoreUseCase) Delete(ctx context.Context, id, actorID int64) ([]int64, error) {
	asset, err := uc.Repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	return uc.remove(ctx, asset, actorID)
}

// remove 在资产锁与全部引用位置锁下删除记录, StoragePath 为空时不动文件
func (uc *AssetStoreUseCase) remove(ctx context.Context, asset *VideoAsset, actorID int64) ([]int64, error) {
	for attempt := 0; attempt < maxDeleteAttempts; attempt++ {
		ids, err := uc.Links.LocationIDsForAsset(ctx, asset.ID)
		if err != nil {
			return nil, err
		}

		stale := false
		keys := append(locationKeys(ids), AssetLockKey(asset.ID))
		err = keylock.WithLocks(ctx, uc.Locker, keys, func(ctx context.Context) error {
			current, err := uc.Links.LocationIDsForAsset(ctx, asset.ID)
			if err != nil {
				return err
			}
			// 加锁前后引用集合发生变化, 重新加锁
			if !slices.Equal(current, ids) {
				stale = true
				return nil
			}
			return uc.deleteLocked(ctx, asset, ids, actorID)
		})
		if err != nil {
			return nil, err
		}
		if !stale {
			return ids, nil
		}
	}

	return nil, apperrors.New(apperrors.ErrConflict, "asset links kept changing during delete")
}

func (uc *AssetStoreUseCase) deleteLocked(ctx context.Context, asset *VideoAsset, locationIDs []int64, actorID int64) error {
	log := uc.Logger.WithContext(ctx).With(zap.Int64("asset_id", asset.ID))

	if asset.StoragePath != "" {
		dir := path.Dir(asset.StoragePath)
		for _, f := range uc.Volume.RemoveAll(ctx, dir) {
			log.Warn("failed to remove asset file", zap.String("path", f.Path), zap.Error(f.Err))
		}
	}

	err := uc.Tx.InTx(ctx, func(ctx context.Context) error {
		if err := uc.Links.DeleteByAsset(ctx, asset.ID); err != nil {
			return err
		}
		return uc.Repo.Delete(ctx, asset.ID)
	})
	if err != nil {
		return err
	}

	for _, locationID := range locationIDs {
		uc.Publisher.Publish(ctx, notify.Event{
			LocationID: locationID,
			ActorID:    actorID,
			Cause:      notify.CauseAssetDeleted,
			AssetID:    asset.ID,
		})
	}

	log.Info("asset deleted", zap.Int64s("locations", locationIDs))
	return nil
}

func locationKeys(ids []int64) []string {
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, directorybiz.LocationLockKey(id))
	}
	return keys
}
