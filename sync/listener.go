package sync

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/punchclock/logger"
)

// ChangeListener feeds remote change notifications into the scheduler,
// resubscribing after the feed drops
type ChangeListener struct {
	source    ChangeSource
	scheduler *Scheduler
	retry     time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger *zap.SugaredLogger
}

// NewChangeListener creates a listener. retry is the pause before
// resubscribing (default 30s).
func NewChangeListener(source ChangeSource, scheduler *Scheduler, retry time.Duration, log *zap.SugaredLogger) *ChangeListener {
	if retry <= 0 {
		retry = 30 * time.Second
	}
	if log == nil {
		log = logger.Logger
	}
	return &ChangeListener{
		source:    source,
		scheduler: scheduler,
		retry:     retry,
		logger:    log.With(logger.FieldComponent, "change_listener"),
	}
}

// Start subscribes in the background
func (l *ChangeListener) Start(ctx context.Context) {
	l.ctx, l.cancel = context.WithCancel(ctx)
	l.wg.Add(1)
	go l.run()
}

// Stop cancels the subscription and waits
func (l *ChangeListener) Stop() {
	if l.cancel == nil {
		return
	}
	l.cancel()
	l.wg.Wait()
}

func (l *ChangeListener) run() {
	defer l.wg.Done()

	for {
		l.consume()

		select {
		case <-l.ctx.Done():
			return
		case <-time.After(l.retry):
		}
	}
}

func (l *ChangeListener) consume() {
	changes, err := l.source.Subscribe(l.ctx)
	if err != nil {
		l.logger.Debugw("Change feed unavailable", logger.FieldError, err)
		return
	}

	for c := range changes {
		if c.Type != ChangeTypeChanged {
			continue
		}
		outcome, _ := l.scheduler.OnRemoteChange(l.ctx)
		l.logger.Debugw("Remote change",
			logger.FieldEntityType, c.EntityType,
			"outcome", outcome)
	}
}
