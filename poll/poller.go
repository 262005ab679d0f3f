package poll

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/graintech/modbus"
)

// OnDataFunc receives one poll cycle's successfully decoded registers.
type OnDataFunc func([]DeviceRegister)

// OnErrorFunc receives the errors a poll cycle produced, one per failed group.
type OnErrorFunc func([]error)

// Poller ticks a client's registers on an interval and reports results on
// callbacks, combining scheduling and dispatch into one poll unit.
type Poller struct {
	client    *modbus.Client
	interval  time.Duration
	sequential bool
	logger    *zap.Logger

	mu     sync.Mutex
	groups []Group

	onData  atomic.Value // OnDataFunc
	onError atomic.Value // OnErrorFunc

	cancel context.CancelFunc
	done   chan struct{}
}

// NewPoller builds a Poller for client, reading the given registers every
// interval. sequential should be true for a half-duplex serial line
// (true for anything other than a TCP-style transport) and false for a
// transport that tolerates pipelined requests.
func NewPoller(client *modbus.Client, registers []DeviceRegister, interval time.Duration, sequential bool, logger *zap.Logger) *Poller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{
		client:     client,
		interval:   interval,
		sequential: sequential,
		logger:     logger,
		groups:     GroupByContinuity(registers),
	}
}

// OnData sets the callback invoked with each cycle's decoded registers.
func (p *Poller) OnData(fn OnDataFunc) { p.onData.Store(fn) }

// OnError sets the callback invoked with each cycle's read errors.
func (p *Poller) OnError(fn OnErrorFunc) { p.onError.Store(fn) }

// LoadRegisters replaces the register set being polled, regrouping it.
func (p *Poller) LoadRegisters(registers []DeviceRegister) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.groups = GroupByContinuity(registers)
}

// Start begins ticking until Stop is called or ctx is canceled.
func (p *Poller) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})

	go func() {
		defer close(p.done)
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.cycle(ctx)
			}
		}
	}()
}

// Stop cancels the poll loop and waits for the running cycle to finish.
func (p *Poller) Stop() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	<-p.done
}

func (p *Poller) cycle(ctx context.Context) {
	p.mu.Lock()
	groups := p.groups
	p.mu.Unlock()

	var regs []DeviceRegister
	var errs []error
	if p.sequential {
		regs, errs = ReadGroupsSequential(ctx, p.client, groups)
	} else {
		regs, errs = ReadGroupsConcurrently(ctx, p.client, groups)
	}

	if len(errs) > 0 {
		p.logger.Debug("poll cycle errors", zap.Int("count", len(errs)))
		if fn, ok := p.onError.Load().(OnErrorFunc); ok && fn != nil {
			fn(errs)
		}
	}
	if len(regs) > 0 {
		if fn, ok := p.onData.Load().(OnDataFunc); ok && fn != nil {
			fn(regs)
		}
	}
}
