package sync

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/teranos/punchclock/db"
	"github.com/teranos/punchclock/errors"
	"github.com/teranos/punchclock/logger"
)

// Trigger names what asked for a sync cycle
type Trigger string

const (
	TriggerNetwork        Trigger = "network"
	TriggerForeground     Trigger = "foreground"
	TriggerActiveTick     Trigger = "tick_active"
	TriggerBackgroundTick Trigger = "tick_background"
	TriggerRemoteChange   Trigger = "remote_change"
	TriggerPullToRefresh  Trigger = "pull_to_refresh"
	TriggerManual         Trigger = "manual"
)

// TickKind selects the periodic trigger
type TickKind int

const (
	TickActive TickKind = iota
	TickBackground
)

// Outcome is what a trigger did
type Outcome string

const (
	OutcomeSynced   Outcome = "synced"
	OutcomeFailed   Outcome = "failed"
	OutcomeGated    Outcome = "gated"     // too soon after the last cycle of the same trigger
	OutcomeInFlight Outcome = "in_flight" // a cycle was already running
	OutcomeNoUser   Outcome = "no_user"
	OutcomeOffline  Outcome = "offline"
	OutcomeIgnored  Outcome = "ignored" // network change that was not a reconnect
)

// DefaultGates is the minimum spacing between cycles per trigger
var DefaultGates = map[Trigger]time.Duration{
	TriggerNetwork:        30 * time.Second,
	TriggerForeground:     10 * time.Second,
	TriggerActiveTick:     5 * time.Minute,
	TriggerBackgroundTick: 2 * time.Hour,
	TriggerRemoteChange:   10 * time.Second,
}

// Syncer runs one push+pull cycle
type Syncer interface {
	FullSync(ctx context.Context, userID string) (PushResult, PullResult, error)
}

// SchedulerConfig configures a Scheduler
type SchedulerConfig struct {
	UserID             string
	ActiveInterval     time.Duration // active tick loop period (default 1m)
	BackgroundInterval time.Duration // background tick loop period (default 15m)
	Gates              map[Trigger]time.Duration
	Now                func() time.Time
}

// Status is a snapshot of the scheduler
type Status struct {
	UserID    string      `json:"user_id"`
	InFlight  bool        `json:"in_flight"`
	LastSync  time.Time   `json:"last_sync"`
	LastError string      `json:"last_error,omitempty"`
	Network   NetworkInfo `json:"network"`
}

// Scheduler turns app events into gated sync cycles. At most one cycle
// runs at a time; a trigger arriving during a cycle is dropped.
type Scheduler struct {
	syncer   Syncer
	network  *Network
	limiters map[Trigger]*rate.Limiter
	now      func() time.Time
	inFlight atomic.Bool

	mu           sync.Mutex
	userID       string
	wasConnected bool
	lastSync     time.Time
	lastErr      error

	activeInterval     time.Duration
	backgroundInterval time.Duration
	ctx                context.Context
	cancel             context.CancelFunc
	wg                 sync.WaitGroup
	logger             *zap.SugaredLogger
}

// NewScheduler creates a scheduler driving syncer. network is read, never written.
func NewScheduler(syncer Syncer, network *Network, cfg SchedulerConfig, log *zap.SugaredLogger) *Scheduler {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.ActiveInterval <= 0 {
		cfg.ActiveInterval = time.Minute
	}
	if cfg.BackgroundInterval <= 0 {
		cfg.BackgroundInterval = 15 * time.Minute
	}
	if log == nil {
		log = logger.Logger
	}

	limiters := make(map[Trigger]*rate.Limiter, len(DefaultGates))
	for trig, gate := range DefaultGates {
		if g, ok := cfg.Gates[trig]; ok {
			gate = g
		}
		limiters[trig] = rate.NewLimiter(rate.Every(gate), 1)
	}

	return &Scheduler{
		syncer:             syncer,
		network:            network,
		limiters:           limiters,
		now:                cfg.Now,
		userID:             cfg.UserID,
		wasConnected:       network.IsConnected(),
		activeInterval:     cfg.ActiveInterval,
		backgroundInterval: cfg.BackgroundInterval,
		logger:             log.With(logger.FieldComponent, "sync_scheduler"),
	}
}

// SetUserID changes the authenticated user; "" signs out
func (s *Scheduler) SetUserID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userID = id
}

// UserID returns the authenticated user
func (s *Scheduler) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

// Status returns a snapshot for display
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		UserID:   s.userID,
		InFlight: s.inFlight.Load(),
		LastSync: s.lastSync,
		Network:  s.network.Current(),
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	return st
}

// OnNetworkChange syncs when the device goes from disconnected to connected
func (s *Scheduler) OnNetworkChange(ctx context.Context, info NetworkInfo) (Outcome, error) {
	s.mu.Lock()
	was := s.wasConnected
	s.wasConnected = info.IsConnected
	s.mu.Unlock()

	if was || !info.IsConnected {
		return OutcomeIgnored, nil
	}
	return s.trigger(ctx, TriggerNetwork)
}

// OnForeground syncs when the app returns to the foreground
func (s *Scheduler) OnForeground(ctx context.Context) (Outcome, error) {
	return s.trigger(ctx, TriggerForeground)
}

// OnTick syncs on a periodic active or background tick
func (s *Scheduler) OnTick(ctx context.Context, kind TickKind) (Outcome, error) {
	if kind == TickBackground {
		return s.trigger(ctx, TriggerBackgroundTick)
	}
	return s.trigger(ctx, TriggerActiveTick)
}

// OnRemoteChange syncs when another device reports a write
func (s *Scheduler) OnRemoteChange(ctx context.Context) (Outcome, error) {
	return s.trigger(ctx, TriggerRemoteChange)
}

// PullToRefresh syncs immediately, without gating. Offline is reported as
// an error since a user is waiting on the result.
func (s *Scheduler) PullToRefresh(ctx context.Context) (Outcome, error) {
	if s.UserID() == "" {
		return OutcomeNoUser, nil
	}
	if !s.network.IsConnected() {
		return OutcomeOffline, errors.WithHint(errors.ErrOffline, "changes are saved locally and sync when the connection returns")
	}
	return s.run(ctx, TriggerPullToRefresh)
}

// RunSyncCycle runs a cycle now, bypassing gating and the network check
func (s *Scheduler) RunSyncCycle(ctx context.Context) (Outcome, error) {
	return s.run(ctx, TriggerManual)
}

func (s *Scheduler) trigger(ctx context.Context, trig Trigger) (Outcome, error) {
	if s.UserID() == "" {
		return OutcomeNoUser, nil
	}
	if !s.network.IsConnected() {
		return OutcomeOffline, nil
	}
	if s.inFlight.Load() {
		return OutcomeInFlight, nil
	}
	if l := s.limiters[trig]; l != nil && !l.AllowN(s.now(), 1) {
		s.logger.Debugw("Sync trigger gated", logger.FieldTrigger, trig)
		return OutcomeGated, nil
	}
	return s.run(ctx, trig)
}

func (s *Scheduler) run(ctx context.Context, trig Trigger) (Outcome, error) {
	userID := s.UserID()
	if userID == "" {
		return OutcomeNoUser, nil
	}
	if !s.inFlight.CompareAndSwap(false, true) {
		return OutcomeInFlight, nil
	}
	defer s.inFlight.Store(false)

	start := s.now()
	pushed, pulled, err := s.syncer.FullSync(ctx, userID)

	s.mu.Lock()
	s.lastErr = err
	if err == nil {
		s.lastSync = s.now()
	}
	s.mu.Unlock()

	if err != nil && (db.IsDatabaseClosed(err) || errors.Is(err, context.Canceled)) {
		// the daemon is shutting down underneath the cycle
		s.logger.Debugw("Sync cycle interrupted",
			logger.FieldTrigger, trig,
			logger.FieldError, err)
		return OutcomeFailed, err
	}
	if err != nil {
		s.logger.Warnw("Sync cycle failed",
			logger.FieldTrigger, trig,
			logger.FieldPushed, pushed.Pushed,
			logger.FieldError, err)
		return OutcomeFailed, err
	}

	s.logger.Infow("Sync cycle complete",
		logger.FieldTrigger, trig,
		logger.FieldPushed, pushed.Pushed,
		logger.FieldPulled, pulled.Total(),
		logger.FieldDurationMS, s.now().Sub(start).Milliseconds())
	return OutcomeSynced, nil
}

// Start runs the active and background tick loops
func (s *Scheduler) Start(ctx context.Context) {
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(2)
	go s.loop(s.activeInterval, TickActive)
	go s.loop(s.backgroundInterval, TickBackground)
	s.logger.Infow("Sync scheduler started",
		"active_interval", s.activeInterval,
		"background_interval", s.backgroundInterval)
}

// Stop ends the tick loops and waits for a running cycle to return
func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	s.wg.Wait()
	s.logger.Infow("Sync scheduler stopped")
}

func (s *Scheduler) loop(interval time.Duration, kind TickKind) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			// failures are logged by run and retried on the next trigger
			_, _ = s.OnTick(s.ctx, kind)
		}
	}
}
