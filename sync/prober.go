package sync

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/punchclock/logger"
)

// Prober derives connectivity from periodic health checks of the remote and
// is the only writer of its Network
type Prober struct {
	checker  HealthChecker
	network  *Network
	interval time.Duration
	timeout  time.Duration
	now      func() time.Time
	onChange func(context.Context, NetworkInfo)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger *zap.SugaredLogger
}

// ProberConfig configures a Prober
type ProberConfig struct {
	Interval time.Duration // between probes (default 15s)
	Timeout  time.Duration // per probe (default 5s)
	Now      func() time.Time
	// OnChange is called after connectivity changes, typically
	// Scheduler.OnNetworkChange
	OnChange func(context.Context, NetworkInfo)
}

// NewProber creates a prober writing to network
func NewProber(checker HealthChecker, network *Network, cfg ProberConfig, log *zap.SugaredLogger) *Prober {
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if log == nil {
		log = logger.Logger
	}
	return &Prober{
		checker:  checker,
		network:  network,
		interval: cfg.Interval,
		timeout:  cfg.Timeout,
		now:      cfg.Now,
		onChange: cfg.OnChange,
		logger:   log.With(logger.FieldComponent, "prober"),
	}
}

// Probe checks the remote once and updates the network state
func (p *Prober) Probe(ctx context.Context) NetworkInfo {
	probeCtx, cancel := context.WithTimeout(ctx, p.timeout)
	err := p.checker.Health(probeCtx)
	cancel()

	connected, transport := true, TransportUnknown
	if err != nil {
		connected, transport = false, TransportNone
	}

	prev, cur := p.network.Set(connected, transport, p.now())
	if prev.IsConnected != cur.IsConnected {
		if err != nil {
			p.logger.Infow("Remote unreachable", logger.FieldConnected, false, logger.FieldError, err)
		} else {
			p.logger.Infow("Remote reachable", logger.FieldConnected, true)
		}
		if p.onChange != nil {
			p.onChange(ctx, cur)
		}
	}
	return cur
}

// Start probes immediately and then every interval
func (p *Prober) Start(ctx context.Context) {
	p.ctx, p.cancel = context.WithCancel(ctx)
	p.wg.Add(1)
	go p.run()
}

// Stop ends the probe loop and waits for it
func (p *Prober) Stop() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	p.wg.Wait()
}

func (p *Prober) run() {
	defer p.wg.Done()

	p.Probe(p.ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.Probe(p.ctx)
		}
	}
}
