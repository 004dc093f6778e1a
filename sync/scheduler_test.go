package sync

import (
	"context"
	gosync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teranos/punchclock/errors"
)

type fakeSyncer struct {
	mu      gosync.Mutex
	calls   int
	users   []string
	err     error
	started chan struct{}
	release chan struct{}
}

func (f *fakeSyncer) FullSync(ctx context.Context, userID string) (PushResult, PullResult, error) {
	f.mu.Lock()
	f.calls++
	f.users = append(f.users, userID)
	started, release, err := f.started, f.release, f.err
	f.mu.Unlock()

	if started != nil {
		close(started)
	}
	if release != nil {
		<-release
	}
	return PushResult{}, PullResult{}, err
}

func (f *fakeSyncer) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeClock struct {
	mu gosync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newScheduler(t *testing.T, connected bool) (*Scheduler, *fakeSyncer, *Network, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: monday}
	network := NewNetwork()
	if connected {
		network.Set(true, TransportWiFi, clock.Now())
	}
	syncer := &fakeSyncer{}
	s := NewScheduler(syncer, network, SchedulerConfig{UserID: "user-1", Now: clock.Now}, zaptest.NewLogger(t).Sugar())
	return s, syncer, network, clock
}

func TestScheduler_NoUser(t *testing.T) {
	s, syncer, _, _ := newScheduler(t, true)
	s.SetUserID("")
	ctx := context.Background()

	out, err := s.OnForeground(ctx)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoUser, out)

	out, err = s.PullToRefresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoUser, out)
	assert.Zero(t, syncer.Calls())
}

func TestScheduler_Offline(t *testing.T) {
	s, syncer, _, _ := newScheduler(t, false)
	ctx := context.Background()

	out, err := s.OnForeground(ctx)
	require.NoError(t, err)
	assert.Equal(t, OutcomeOffline, out)

	out, err = s.PullToRefresh(ctx)
	assert.Equal(t, OutcomeOffline, out)
	assert.True(t, errors.Is(err, errors.ErrOffline), "pull-to-refresh reports offline")
	assert.Zero(t, syncer.Calls())
}

func TestScheduler_Gates(t *testing.T) {
	tests := []struct {
		name string
		fire func(*Scheduler, context.Context) (Outcome, error)
		gate time.Duration
	}{
		{"foreground", func(s *Scheduler, ctx context.Context) (Outcome, error) { return s.OnForeground(ctx) }, 10 * time.Second},
		{"remote change", func(s *Scheduler, ctx context.Context) (Outcome, error) { return s.OnRemoteChange(ctx) }, 10 * time.Second},
		{"active tick", func(s *Scheduler, ctx context.Context) (Outcome, error) { return s.OnTick(ctx, TickActive) }, 5 * time.Minute},
		{"background tick", func(s *Scheduler, ctx context.Context) (Outcome, error) { return s.OnTick(ctx, TickBackground) }, 2 * time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, syncer, _, clock := newScheduler(t, true)
			ctx := context.Background()

			out, err := tt.fire(s, ctx)
			require.NoError(t, err)
			assert.Equal(t, OutcomeSynced, out, "first trigger runs")

			clock.Advance(tt.gate / 2)
			out, _ = tt.fire(s, ctx)
			assert.Equal(t, OutcomeGated, out)

			clock.Advance(tt.gate/2 + time.Second)
			out, _ = tt.fire(s, ctx)
			assert.Equal(t, OutcomeSynced, out, "runs again once the gate has passed")
			assert.Equal(t, 2, syncer.Calls())
		})
	}
}

func TestScheduler_GatesAreIndependent(t *testing.T) {
	s, syncer, _, _ := newScheduler(t, true)
	ctx := context.Background()

	out, _ := s.OnForeground(ctx)
	assert.Equal(t, OutcomeSynced, out)
	out, _ = s.OnRemoteChange(ctx)
	assert.Equal(t, OutcomeSynced, out)
	out, _ = s.OnTick(ctx, TickActive)
	assert.Equal(t, OutcomeSynced, out)
	assert.Equal(t, 3, syncer.Calls())
}

func TestScheduler_PullToRefreshUngated(t *testing.T) {
	s, syncer, _, _ := newScheduler(t, true)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		out, err := s.PullToRefresh(ctx)
		require.NoError(t, err)
		assert.Equal(t, OutcomeSynced, out)
	}
	assert.Equal(t, 3, syncer.Calls())
	assert.Equal(t, []string{"user-1", "user-1", "user-1"}, syncer.users)
}

func TestScheduler_NetworkReconnect(t *testing.T) {
	s, syncer, network, clock := newScheduler(t, false)
	ctx := context.Background()

	_, info := network.Set(true, TransportWiFi, clock.Now())
	out, err := s.OnNetworkChange(ctx, info)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSynced, out)

	_, info = network.Set(true, TransportCellular, clock.Now())
	out, _ = s.OnNetworkChange(ctx, info)
	assert.Equal(t, OutcomeIgnored, out, "connected to connected is not a reconnect")

	clock.Advance(10 * time.Second)
	_, info = network.Set(false, TransportNone, clock.Now())
	out, _ = s.OnNetworkChange(ctx, info)
	assert.Equal(t, OutcomeIgnored, out)
	_, info = network.Set(true, TransportWiFi, clock.Now())
	out, _ = s.OnNetworkChange(ctx, info)
	assert.Equal(t, OutcomeGated, out, "reconnect within 30s of the last one")

	clock.Advance(25 * time.Second)
	_, info = network.Set(false, TransportNone, clock.Now())
	_, _ = s.OnNetworkChange(ctx, info)
	_, info = network.Set(true, TransportWiFi, clock.Now())
	out, _ = s.OnNetworkChange(ctx, info)
	assert.Equal(t, OutcomeSynced, out)
	assert.Equal(t, 2, syncer.Calls())
}

func TestScheduler_InFlightGuard(t *testing.T) {
	s, syncer, _, _ := newScheduler(t, true)
	syncer.started = make(chan struct{})
	syncer.release = make(chan struct{})
	ctx := context.Background()

	done := make(chan Outcome)
	go func() {
		out, _ := s.RunSyncCycle(ctx)
		done <- out
	}()
	<-syncer.started

	assert.True(t, s.Status().InFlight)
	out, err := s.OnForeground(ctx)
	require.NoError(t, err)
	assert.Equal(t, OutcomeInFlight, out)
	out, _ = s.PullToRefresh(ctx)
	assert.Equal(t, OutcomeInFlight, out)

	close(syncer.release)
	assert.Equal(t, OutcomeSynced, <-done)
	assert.Equal(t, 1, syncer.Calls())
	assert.False(t, s.Status().InFlight)
}

func TestScheduler_FailureRecorded(t *testing.T) {
	s, syncer, _, _ := newScheduler(t, true)
	syncer.err = errors.WrapSync(errors.New("dial tcp: i/o timeout"), "push job")

	out, err := s.RunSyncCycle(context.Background())
	assert.Equal(t, OutcomeFailed, out)
	assert.True(t, errors.IsSyncError(err))

	st := s.Status()
	assert.Contains(t, st.LastError, "i/o timeout")
	assert.True(t, st.LastSync.IsZero())
	assert.True(t, st.Network.IsConnected)
}

func TestScheduler_StartStop(t *testing.T) {
	clock := &fakeClock{t: monday}
	network := NewNetwork()
	network.Set(true, TransportEthernet, clock.Now())
	syncer := &fakeSyncer{}
	s := NewScheduler(syncer, network, SchedulerConfig{
		UserID:             "user-1",
		ActiveInterval:     5 * time.Millisecond,
		BackgroundInterval: time.Hour,
		Now:                clock.Now,
	}, zaptest.NewLogger(t).Sugar())

	s.Start(context.Background())
	require.Eventually(t, func() bool { return syncer.Calls() >= 1 }, time.Second, 5*time.Millisecond)
	s.Stop()

	assert.Equal(t, 1, syncer.Calls(), "the frozen clock keeps later ticks gated")
}
