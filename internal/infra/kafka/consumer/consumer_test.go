package consumer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/retry"

	"github.com/aliskhannn/bg-remover/internal/config"
)

type fakeClient struct {
	mu      sync.Mutex
	queue   []kafka.Message
	fetched []int64
	commits []int64
}

func (f *fakeClient) Fetch(ctx context.Context) (kafka.Message, error) {
	f.mu.Lock()
	if len(f.queue) > 0 {
		msg := f.queue[0]
		f.queue = f.queue[1:]
		f.fetched = append(f.fetched, msg.Offset)
		f.mu.Unlock()
		return msg, nil
	}
	f.mu.Unlock()

	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (f *fakeClient) Commit(_ context.Context, msg kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commits = append(f.commits, msg.Offset)
	return nil
}

func (f *fakeClient) Close() error { return nil }

func (f *fakeClient) snapshot() (fetched, commits []int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.fetched...), append([]int64(nil), f.commits...)
}

// flakyHandler fails each offset listed in failing until it has failed
// failures times.
type flakyHandler struct {
	mu       sync.Mutex
	failing  map[int64]int
	failures int
	handled  []int64
}

func (h *flakyHandler) Handle(_ context.Context, msg kafka.Message) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handled = append(h.handled, msg.Offset)
	if _, ok := h.failing[msg.Offset]; ok && h.failing[msg.Offset] < h.failures {
		h.failing[msg.Offset]++
		return errors.New("terminal write failed")
	}
	return nil
}

func (h *flakyHandler) calls() []int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]int64(nil), h.handled...)
}

func run(t *testing.T, cl *fakeClient, h *flakyHandler) (stop func()) {
	t.Helper()

	c := newConsumer(cl, &config.Kafka{Topic: "orders.created"}, retry.Strategy{Attempts: 1, Delay: time.Millisecond, Backoff: 1}, h)
	c.failureDelay = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go c.Consume(ctx, &wg)

	return func() {
		cancel()
		wg.Wait()
	}
}

func TestConsumeCommitsHandledMessages(t *testing.T) {
	cl := &fakeClient{queue: []kafka.Message{{Offset: 0}, {Offset: 1}}}
	h := &flakyHandler{failing: map[int64]int{}}

	stop := run(t, cl, h)
	require.Eventually(t, func() bool {
		_, commits := cl.snapshot()
		return len(commits) == 2
	}, time.Second, 5*time.Millisecond)
	stop()

	_, commits := cl.snapshot()
	assert.Equal(t, []int64{0, 1}, commits)
	assert.Equal(t, []int64{0, 1}, h.calls())
}

func TestConsumeDoesNotFetchPastFailedMessage(t *testing.T) {
	cl := &fakeClient{queue: []kafka.Message{{Offset: 0}, {Offset: 1}}}
	h := &flakyHandler{failing: map[int64]int{0: 0}, failures: 2}

	stop := run(t, cl, h)
	require.Eventually(t, func() bool {
		_, commits := cl.snapshot()
		return len(commits) == 2
	}, time.Second, 5*time.Millisecond)
	stop()

	fetched, commits := cl.snapshot()
	assert.Equal(t, []int64{0, 1}, fetched)
	assert.Equal(t, []int64{0, 1}, commits)
	assert.Equal(t, []int64{0, 0, 0, 1}, h.calls())
}

func TestConsumeStopsRetryingOnShutdown(t *testing.T) {
	cl := &fakeClient{queue: []kafka.Message{{Offset: 0}, {Offset: 1}}}
	h := &flakyHandler{failing: map[int64]int{0: 0}, failures: 1 << 30}

	stop := run(t, cl, h)
	require.Eventually(t, func() bool { return len(h.calls()) >= 2 }, time.Second, 5*time.Millisecond)
	stop()

	fetched, commits := cl.snapshot()
	assert.Equal(t, []int64{0}, fetched)
	assert.Empty(t, commits)
}
