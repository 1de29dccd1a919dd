package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lk2023060901/signage-backend/internal/pkg/logger"
	"github.com/lk2023060901/signage-backend/internal/pkg/sse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu     sync.Mutex
	events []Event
	calls  int
	failN  int // 前 failN 次调用失败
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) Deliver(_ context.Context, ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls <= s.failN {
		return errors.New("transient")
	}
	s.events = append(s.events, ev)
	return nil
}

func (s *recordingSink) snapshot() ([]Event, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...), s.calls
}

type stalledSink struct {
	release chan struct{}
}

func (s *stalledSink) Name() string { return "stalled" }

func (s *stalledSink) Deliver(ctx context.Context, _ Event) error {
	select {
	case <-s.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type failingSink struct {
	mu    sync.Mutex
	calls int
}

func (s *failingSink) Name() string { return "failing" }

func (s *failingSink) Deliver(context.Context, Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return errors.New("down")
}

func testConfig() *Config {
	return &Config{Shards: 4, MaxAttempts: 3, Backoff: time.Millisecond}
}

func TestPublishDoesNotBlockOnStalledSink(t *testing.T) {
	sink := &stalledSink{release: make(chan struct{})}
	n := NewNotifier(testConfig(), logger.NewNop(), sink)
	n.Start()

	start := time.Now()
	for i := 0; i < 1000; i++ {
		n.Publish(context.Background(), Event{LocationID: 1, Cause: CauseLinkCreated})
	}
	assert.Less(t, time.Since(start), time.Second)
	assert.Greater(t, n.Pending(), 0)

	close(sink.release)
	require.NoError(t, n.Stop(context.Background()))
	assert.Equal(t, 0, n.Pending())
}

func TestPerLocationOrderPreserved(t *testing.T) {
	sink := &recordingSink{}
	n := NewNotifier(testConfig(), logger.NewNop(), sink)
	n.Start()

	// 1 和 5 落在同一分片, 2 在另一个分片
	for i := int64(1); i <= 200; i++ {
		n.Publish(context.Background(), Event{LocationID: 1, ActorID: i})
		n.Publish(context.Background(), Event{LocationID: 5, ActorID: i})
		n.Publish(context.Background(), Event{LocationID: 2, ActorID: i})
	}
	require.NoError(t, n.Stop(context.Background()))

	events, _ := sink.snapshot()
	require.Len(t, events, 600)

	last := map[int64]int64{}
	for _, ev := range events {
		assert.Greater(t, ev.ActorID, last[ev.LocationID], "location %d out of order", ev.LocationID)
		last[ev.LocationID] = ev.ActorID
		assert.False(t, ev.OccurredAt.IsZero())
	}
}

func TestDeliveryRetriedWithBackoff(t *testing.T) {
	sink := &recordingSink{failN: 2}
	n := NewNotifier(testConfig(), logger.NewNop(), sink)
	n.Start()

	n.Publish(context.Background(), Event{LocationID: 3, Cause: CauseLinkDeleted})
	require.NoError(t, n.Stop(context.Background()))

	events, calls := sink.snapshot()
	assert.Len(t, events, 1)
	assert.Equal(t, 3, calls)
}

func TestFailingSinkDoesNotStarveOthers(t *testing.T) {
	bad := &failingSink{}
	good := &recordingSink{}
	n := NewNotifier(testConfig(), logger.NewNop(), bad, good)
	n.Start()

	n.Publish(context.Background(), Event{LocationID: 8})
	n.Publish(context.Background(), Event{LocationID: 8})
	require.NoError(t, n.Stop(context.Background()))

	events, _ := good.snapshot()
	assert.Len(t, events, 2)
	assert.Equal(t, 6, bad.calls)
}

func TestPublishBeforeStartIsDeliveredAfterStart(t *testing.T) {
	sink := &recordingSink{}
	n := NewNotifier(testConfig(), logger.NewNop(), sink)

	n.Publish(context.Background(), Event{LocationID: 4})
	assert.Equal(t, 1, n.Pending())

	n.Start()
	require.NoError(t, n.Stop(context.Background()))
	events, _ := sink.snapshot()
	assert.Len(t, events, 1)
}

func TestPublishAfterStopIsDropped(t *testing.T) {
	sink := &recordingSink{}
	n := NewNotifier(testConfig(), logger.NewNop(), sink)
	n.Start()
	require.NoError(t, n.Stop(context.Background()))
	require.NoError(t, n.Stop(context.Background()))

	n.Publish(context.Background(), Event{LocationID: 4})
	assert.Equal(t, 0, n.Pending())
}

func TestStopTimesOutOnStalledSink(t *testing.T) {
	sink := &stalledSink{release: make(chan struct{})}
	n := NewNotifier(testConfig(), logger.NewNop(), sink)
	n.Start()
	n.Publish(context.Background(), Event{LocationID: 1})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, n.Stop(ctx), context.DeadlineExceeded)
}

func TestHubSinkBroadcastsToLocation(t *testing.T) {
	hub := sse.NewHub()
	client := sse.NewClient(LocationResource(12), 4)
	hub.Register(client)

	sink := NewHubSink(hub)
	require.NoError(t, sink.Deliver(context.Background(), Event{LocationID: 12, Cause: CauseDeviceAssigned}))
	require.NoError(t, sink.Deliver(context.Background(), Event{LocationID: 13}))

	require.Len(t, client.Channel, 1)
	ev := <-client.Channel
	assert.Equal(t, EventTypePlaylistChanged, ev.Type)
	assert.Equal(t, int64(12), ev.Data.(Event).LocationID)
}

func TestRedisSinkChannel(t *testing.T) {
	sink := NewRedisSink(nil, "")
	assert.Equal(t, "signage:playlist:42", sink.Channel(42))
}

func TestRecorder(t *testing.T) {
	var r Recorder
	r.Publish(context.Background(), Event{LocationID: 3})
	r.Publish(context.Background(), Event{LocationID: 8})
	assert.Equal(t, []int64{3, 8}, r.LocationIDs())
	r.Reset()
	assert.Empty(t, r.Events())
}
