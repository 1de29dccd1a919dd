package biz

import (
	"context"
	"time"

	directorybiz "github.com/lk2023060901/signage-backend/internal/directory/biz"
	"github.com/lk2023060901/signage-backend/internal/notify"
	apperrors "github.com/lk2023060901/signage-backend/internal/pkg/errors"
	"github.com/lk2023060901/signage-backend/internal/pkg/keylock"
	"github.com/lk2023060901/signage-backend/internal/pkg/logger"
	"github.com/lk2023060901/signage-backend/internal/pkg/validator"
	playlistbiz "github.com/lk2023060901/signage-backend/internal/playlist/biz"
	"github.com/lk2023060901/signage-backend/internal/settings"
	"go.uber.org/zap"
)

// 关闭旧分配与创建新分配在序列化冲突时的重试次数
const assignTxRetries = 3

var (
	// ErrDeviceNotAssigned 设备未分配到任何位置
	ErrDeviceNotAssigned = apperrors.New(apperrors.ErrDeviceNotAssigned)
	// ErrAssignmentConflict 设备已存在未关闭的分配
	ErrAssignmentConflict = apperrors.New(apperrors.ErrAssignmentConflict)
)

// DeviceAssignment 设备与位置的一段绑定, 只关闭不删除
type DeviceAssignment struct {
	ID         int64      `json:"id"`
	DeviceID   int64      `json:"device_id"`
	LocationID int64      `json:"location_id"`
	AssignedAt time.Time  `json:"assigned_at"`
	RemovedAt  *time.Time `json:"removed_at"`
	AssignedBy int64      `json:"assigned_by"`
	RemovedBy  *int64     `json:"removed_by"`
	Notes      string     `json:"notes"`
}

// Open 是否为当前分配
func (a *DeviceAssignment) Open() bool {
	return a.RemovedAt == nil
}

// CurrentAssignment 当前分配及位置摘要
type CurrentAssignment struct {
	DeviceAssignment
	LocationName string `json:"location_name"`
	TenantID     int64  `json:"tenant_id"`
}

// DeviceFeed 设备启动时拉取的播放数据
type DeviceFeed struct {
	DeviceID     int64                        `json:"device_id"`
	DeviceName   string                       `json:"device_name"`
	LocationID   int64                        `json:"location_id"`
	LocationName string                       `json:"location_name"`
	AssignmentID int64                        `json:"assignment_id"`
	Playlist     []*playlistbiz.PlaylistEntry `json:"playlist"`
	Settings     settings.PlayerSettings      `json:"settings"`
	GeneratedAt  time.Time                    `json:"generated_at"`
}

// AssignmentRepo 分配记录仓储
type AssignmentRepo interface {
	// Open 当前未关闭的分配, 没有时返回 nil, nil
	Open(ctx context.Context, deviceID int64) (*DeviceAssignment, error)
	Close(ctx context.Context, id int64, at time.Time, by int64) error
	// Create 已有未关闭分配时返回 ErrAssignmentConflict
	Create(ctx context.Context, a *DeviceAssignment) error
	// History 按 assigned_at, id 倒序
	History(ctx context.Context, deviceID int64) ([]*DeviceAssignment, error)
}

// PlaylistReader 设备拉取播放列表
type PlaylistReader interface {
	ActiveForLocation(ctx context.Context, locationID int64) ([]*playlistbiz.PlaylistEntry, error)
}

// Transaction 带重试的事务
type Transaction interface {
	InTxWithRetry(ctx context.Context, maxRetries int, fn func(ctx context.Context) error) error
}

// LedgerUseCase 设备分配台账
type LedgerUseCase struct {
	repo      AssignmentRepo
	directory directorybiz.DirectoryRepo
	playlists PlaylistReader
	tx        Transaction
	locker    keylock.Locker
	publisher notify.Publisher
	settings  settings.Source
	logger    *logger.Logger
	now       func() time.Time
}

// NewLedgerUseCase creates a new ledger use case
func NewLedgerUseCase(repo AssignmentRepo, directory directorybiz.DirectoryRepo, playlists PlaylistReader,
	tx Transaction, locker keylock.Locker, publisher notify.Publisher, src settings.Source, log *logger.Logger) *LedgerUseCase {
	if locker == nil {
		locker = keylock.NewLocal()
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &LedgerUseCase{
		repo:      repo,
		directory: directory,
		playlists: playlists,
		tx:        tx,
		locker:    locker,
		publisher: publisher,
		settings:  src,
		logger:    log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Assign 将设备分配到位置, 关闭之前的分配
func (uc *LedgerUseCase) Assign(ctx context.Context, deviceID, locationID, actorID int64, notes string) (*DeviceAssignment, error) {
	if _, err := uc.directory.GetDevice(ctx, deviceID); err != nil {
		return nil, err
	}
	if _, err := uc.directory.GetLocation(ctx, locationID); err != nil {
		return nil, err
	}

	var created *DeviceAssignment
	err := keylock.WithLocks(ctx, uc.locker, []string{directorybiz.DeviceLockKey(deviceID)}, func(ctx context.Context) error {
		previous, err := uc.repo.Open(ctx, deviceID)
		if err != nil {
			return err
		}

		keys := []string{directorybiz.LocationLockKey(locationID)}
		if previous != nil && previous.LocationID != locationID {
			keys = append(keys, directorybiz.LocationLockKey(previous.LocationID))
		}

		// 设备锁之后再取位置锁, 事件在位置锁内发出
		return keylock.WithLocks(ctx, uc.locker, keys, func(ctx context.Context) error {
			err := uc.tx.InTxWithRetry(ctx, assignTxRetries, func(ctx context.Context) error {
				now := uc.now()
				if previous != nil {
					if err := uc.repo.Close(ctx, previous.ID, now, actorID); err != nil {
						return err
					}
				}

				created = &DeviceAssignment{
					DeviceID:   deviceID,
					LocationID: locationID,
					AssignedAt: now,
					AssignedBy: actorID,
					Notes:      notes,
				}
				return uc.repo.Create(ctx, created)
			})
			if err != nil {
				return err
			}

			uc.publisher.Publish(ctx, notify.Event{
				LocationID: locationID,
				ActorID:    actorID,
				Cause:      notify.CauseDeviceAssigned,
				DeviceID:   deviceID,
			})
			if previous != nil && previous.LocationID != locationID {
				uc.publisher.Publish(ctx, notify.Event{
					LocationID: previous.LocationID,
					ActorID:    actorID,
					Cause:      notify.CauseDeviceUnassigned,
					DeviceID:   deviceID,
				})
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	uc.logger.WithContext(ctx).Info("device assigned",
		zap.Int64("device_id", deviceID),
		zap.Int64("location_id", locationID),
		zap.Int64("assignment_id", created.ID),
	)
	return created, nil
}

// CurrentFor 当前分配, 未分配时返回 nil
func (uc *LedgerUseCase) CurrentFor(ctx context.Context, deviceID int64) (*CurrentAssignment, error) {
	if _, err := uc.directory.GetDevice(ctx, deviceID); err != nil {
		return nil, err
	}

	open, err := uc.repo.Open(ctx, deviceID)
	if err != nil || open == nil {
		return nil, err
	}

	current := &CurrentAssignment{DeviceAssignment: *open}
	location, err := uc.directory.GetLocation(ctx, open.LocationID)
	switch {
	case err == nil:
		current.LocationName = location.Name
		current.TenantID = location.TenantID
	case apperrors.Is(err, apperrors.ErrLocationNotFound):
		uc.logger.WithContext(ctx).Warn("open assignment references missing location",
			zap.Int64("assignment_id", open.ID), zap.Int64("location_id", open.LocationID))
	default:
		return nil, err
	}
	return current, nil
}

// History 全部分配记录, 新的在前
func (uc *LedgerUseCase) History(ctx context.Context, deviceID int64) ([]*DeviceAssignment, error) {
	if _, err := uc.directory.GetDevice(ctx, deviceID); err != nil {
		return nil, err
	}
	return uc.repo.History(ctx, deviceID)
}

// Feed 设备拉取播放列表与播放配置, 同时记录同步时间
func (uc *LedgerUseCase) Feed(ctx context.Context, deviceID int64, remoteIP string) (*DeviceFeed, error) {
	device, err := uc.directory.GetDevice(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	open, err := uc.repo.Open(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if open == nil {
		return nil, ErrDeviceNotAssigned
	}

	location, err := uc.directory.GetLocation(ctx, open.LocationID)
	if err != nil {
		return nil, err
	}
	entries, err := uc.playlists.ActiveForLocation(ctx, open.LocationID)
	if err != nil {
		return nil, err
	}
	player, err := settings.LoadPlayerSettings(ctx, uc.settings)
	if err != nil {
		return nil, err
	}

	now := uc.now()
	if err := uc.directory.TouchDevice(ctx, deviceID, now, validator.DeviceIP(remoteIP)); err != nil {
		uc.logger.WithContext(ctx).Warn("failed to record device sync",
			zap.Int64("device_id", deviceID), zap.Error(err))
	}

	return &DeviceFeed{
		DeviceID:     device.ID,
		DeviceName:   device.Name,
		LocationID:   location.ID,
		LocationName: location.Name,
		AssignmentID: open.ID,
		Playlist:     entries,
		Settings:     player,
		GeneratedAt:  now,
	}, nil
}
