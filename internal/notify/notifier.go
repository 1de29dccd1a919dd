package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/lk2023060901/signage-backend/internal/pkg/logger"
	"go.uber.org/zap"
)

// ErrStopped 通知器已停止
var ErrStopped = errors.New("notify: notifier stopped")

// Config 通知器配置
type Config struct {
	Shards      int           `mapstructure:"shards"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	Backoff     time.Duration `mapstructure:"backoff"`
	RedisPrefix string        `mapstructure:"redis_prefix"`
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		Shards:      16,
		MaxAttempts: 3,
		Backoff:     200 * time.Millisecond,
		RedisPrefix: "signage:playlist:",
	}
}

// shard 无界 FIFO, 一个投递 goroutine
type shard struct {
	mu     sync.Mutex
	queue  []Event
	signal chan struct{}
}

func (s *shard) push(ev Event) {
	s.mu.Lock()
	s.queue = append(s.queue, ev)
	s.mu.Unlock()

	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *shard) pop() (Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return Event{}, false
	}
	ev := s.queue[0]
	s.queue[0] = Event{}
	s.queue = s.queue[1:]
	return ev, true
}

func (s *shard) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Notifier 按 location 分片的异步通知器
// 同一 location 的事件落在同一分片, 投递顺序等于 Publish 顺序
type Notifier struct {
	cfg    *Config
	sinks  []Sink
	shards []*shard
	logger *logger.Logger

	mu      sync.Mutex
	started bool
	stopped bool

	quit   chan struct{}
	ctx    context.Context // 投递用, Stop 超时时取消
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewNotifier 创建通知器
func NewNotifier(cfg *Config, log *logger.Logger, sinks ...Sink) *Notifier {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Shards <= 0 {
		cfg.Shards = 16
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	n := &Notifier{
		cfg:    cfg,
		sinks:  sinks,
		shards: make([]*shard, cfg.Shards),
		logger: log.Named("notify"),
		quit:   make(chan struct{}),
		ctx:    ctx,
		cancel: cancel,
	}
	for i := range n.shards {
		n.shards[i] = &shard{signal: make(chan struct{}, 1)}
	}
	return n
}

// Start 启动投递 goroutine
func (n *Notifier) Start() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.started || n.stopped {
		return
	}
	n.started = true

	for _, s := range n.shards {
		n.wg.Add(1)
		go n.run(s)
	}
	n.logger.Info("notifier started", zap.Int("shards", len(n.shards)), zap.Int("sinks", len(n.sinks)))
}

// Publish implements Publisher, 只入队不等待投递
func (n *Notifier) Publish(ctx context.Context, ev Event) {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}

	n.mu.Lock()
	stopped := n.stopped
	n.mu.Unlock()
	if stopped {
		n.logger.WithContext(ctx).Warn("event dropped, notifier stopped",
			zap.Int64("location_id", ev.LocationID),
			zap.String("cause", string(ev.Cause)),
		)
		return
	}

	n.shardFor(ev.LocationID).push(ev)
}

// Pending 队列中尚未投递的事件数
func (n *Notifier) Pending() int {
	total := 0
	for _, s := range n.shards {
		total += s.len()
	}
	return total
}

// Stop 停止接收新事件并投递剩余事件, ctx 到期时放弃剩余事件
func (n *Notifier) Stop(ctx context.Context) error {
	n.mu.Lock()
	if n.stopped {
		n.mu.Unlock()
		return nil
	}
	n.stopped = true
	started := n.started
	n.mu.Unlock()

	close(n.quit)
	if !started {
		n.cancel()
		return nil
	}

	done := make(chan struct{})
	go func() {
		n.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		n.cancel()
		n.logger.Info("notifier stopped")
		return nil
	case <-ctx.Done():
		n.cancel()
		n.logger.Warn("notifier stop timed out, pending events dropped", zap.Int("pending", n.Pending()))
		return ctx.Err()
	}
}

func (n *Notifier) shardFor(locationID int64) *shard {
	idx := locationID % int64(len(n.shards))
	if idx < 0 {
		idx = -idx
	}
	return n.shards[idx]
}

func (n *Notifier) run(s *shard) {
	defer n.wg.Done()

	for {
		for {
			if n.ctx.Err() != nil {
				return
			}
			ev, ok := s.pop()
			if !ok {
				break
			}
			n.dispatch(ev)
		}

		select {
		case <-s.signal:
		case <-n.quit:
			// 退出前再排空一次
			for {
				if n.ctx.Err() != nil {
					return
				}
				ev, ok := s.pop()
				if !ok {
					return
				}
				n.dispatch(ev)
			}
		}
	}
}

func (n *Notifier) dispatch(ev Event) {
	for _, sink := range n.sinks {
		n.deliver(sink, ev)
	}
}

// deliver 指数退避重试, 最终失败只记录日志
func (n *Notifier) deliver(sink Sink, ev Event) {
	backoff := n.cfg.Backoff
	var err error

retry:
	for attempt := 1; attempt <= n.cfg.MaxAttempts; attempt++ {
		if err = sink.Deliver(n.ctx, ev); err == nil {
			return
		}
		if attempt == n.cfg.MaxAttempts {
			break
		}

		n.logger.Debug("delivery failed, retrying",
			zap.String("sink", sink.Name()),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)

		timer := time.NewTimer(backoff)
		select {
		case <-timer.C:
		case <-n.ctx.Done():
			timer.Stop()
			err = n.ctx.Err()
			break retry
		}
		backoff *= 2
	}

	n.logger.Error("event dropped after retries",
		zap.String("sink", sink.Name()),
		zap.Int64("location_id", ev.LocationID),
		zap.String("cause", string(ev.Cause)),
		zap.Int("attempts", n.cfg.MaxAttempts),
		zap.Error(err),
	)
}
