package scheduler_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/profitflip/internal/application/scheduler"
	"github.com/alejandrodnm/profitflip/internal/domain"
)

type fakeGame struct {
	calls     atomic.Int32
	cancelled atomic.Int32
	block     bool
	err       error
}

func (f *fakeGame) Refresh(ctx context.Context) error {
	f.calls.Add(1)
	if f.block {
		<-ctx.Done()
		f.cancelled.Add(1)
		return ctx.Err()
	}
	return f.err
}

func (f *fakeGame) View() domain.View {
	return domain.View{Epoch: int64(f.calls.Load())}
}

type fakePresenter struct {
	mu    sync.Mutex
	views []domain.View
}

func (p *fakePresenter) Render(_ context.Context, v domain.View) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.views = append(p.views, v)
	return nil
}

func TestTick_RendersAfterRefresh(t *testing.T) {
	g := &fakeGame{}
	p := &fakePresenter{}
	s := scheduler.New(scheduler.Config{Interval: time.Second}, g, p)

	require.NoError(t, s.Tick(context.Background()))
	require.Len(t, p.views, 1)
	assert.Equal(t, int64(1), p.views[0].Epoch)
}

func TestTick_RendersEvenWhenRefreshFails(t *testing.T) {
	g := &fakeGame{err: errors.New("feed down")}
	p := &fakePresenter{}
	s := scheduler.New(scheduler.Config{Interval: time.Second}, g, p)

	assert.Error(t, s.Tick(context.Background()))
	assert.Len(t, p.views, 1, "last known state is still shown")
}

func TestRun_TicksUntilCancelled(t *testing.T) {
	g := &fakeGame{}
	s := scheduler.New(scheduler.Config{Interval: 10 * time.Millisecond}, g, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return g.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRun_NewTickSupersedesSlowRefresh(t *testing.T) {
	g := &fakeGame{block: true}
	s := scheduler.New(scheduler.Config{Interval: 20 * time.Millisecond}, g, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return g.cancelled.Load() >= 1 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	// Every started refresh has been cancelled once Run returns.
	assert.Equal(t, g.calls.Load(), g.cancelled.Load())
}
