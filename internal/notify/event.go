// Package notify delivers playlist-changed signals after the causing mutation has committed.
package notify

import (
	"context"
	"strconv"
	"time"
)

// Cause 触发变更的操作
type Cause string

const (
	CauseLinkCreated      Cause = "link_created"
	CauseLinkReordered    Cause = "link_reordered"
	CauseLinkDeleted      Cause = "link_deleted"
	CauseAssetDeleted     Cause = "asset_deleted"
	CauseDeviceAssigned   Cause = "device_assigned"
	CauseDeviceUnassigned Cause = "device_unassigned"
)

// Event 播放列表变更事件
type Event struct {
	LocationID int64     `json:"location_id"`
	ActorID    int64     `json:"actor_id"`
	Cause      Cause     `json:"cause"`
	DeviceID   int64     `json:"device_id,omitempty"`
	AssetID    int64     `json:"asset_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher 用例依赖的发布接口, 必须在提交之后调用且不得阻塞
type Publisher interface {
	Publish(ctx context.Context, ev Event)
}

// Sink 事件投递目标
type Sink interface {
	Name() string
	Deliver(ctx context.Context, ev Event) error
}

// LocationResource SSE 订阅资源名
func LocationResource(locationID int64) string {
	return "location:" + strconv.FormatInt(locationID, 10)
}
