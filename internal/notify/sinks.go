package notify

import (
	"context"
	"strconv"

	"github.com/lk2023060901/signage-backend/internal/pkg/redis"
	"github.com/lk2023060901/signage-backend/internal/pkg/sse"
)

// EventTypePlaylistChanged SSE 事件类型
const EventTypePlaylistChanged = "playlist.changed"

// RedisSink 通过 Redis PUBLISH 通知设备同步服务
type RedisSink struct {
	client *redis.Client
	prefix string
}

// NewRedisSink 创建 Redis 投递目标
func NewRedisSink(client *redis.Client, prefix string) *RedisSink {
	if prefix == "" {
		prefix = DefaultConfig().RedisPrefix
	}
	return &RedisSink{client: client, prefix: prefix}
}

// Name implements Sink
func (s *RedisSink) Name() string { return "redis" }

// Channel location 对应的频道
func (s *RedisSink) Channel(locationID int64) string {
	return s.prefix + strconv.FormatInt(locationID, 10)
}

// Deliver implements Sink
func (s *RedisSink) Deliver(ctx context.Context, ev Event) error {
	_, err := s.client.Publish(ctx, s.Channel(ev.LocationID), ev)
	return err
}

// HubSink 推送给订阅该 location 的 SSE 连接
type HubSink struct {
	hub *sse.Hub
}

// NewHubSink 创建 SSE 投递目标
func NewHubSink(hub *sse.Hub) *HubSink {
	return &HubSink{hub: hub}
}

// Name implements Sink
func (s *HubSink) Name() string { return "sse" }

// Deliver implements Sink, 没有订阅者不算失败
func (s *HubSink) Deliver(_ context.Context, ev Event) error {
	s.hub.Broadcast(LocationResource(ev.LocationID), sse.Event{
		Type: EventTypePlaylistChanged,
		Data: ev,
	})
	return nil
}
