package resource

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type scheduleResult int

const (
	scheduleAdded scheduleResult = iota
	scheduleNeutralized
	scheduleDuplicate
	scheduleRejected
)

// Processor is the single background worker of an async manager. It owns the
// operation queue and the post-sync queue and ticks the generation table.
type Processor struct {
	table   *GenerationTable
	logger  *zap.Logger
	cfg     Config
	limiter *rate.Limiter
	onLoad  func(Resource)
	onDrop  func(Resource)

	mu     sync.Mutex
	idle   *sync.Cond
	queue  opRing
	busy   bool
	closed bool

	psMu     sync.Mutex
	postSync []*postSyncItem
	// psRun serializes goroutines advancing post-sync items.
	psRun sync.Mutex

	wake  chan struct{}
	maint chan chan struct{}
	done  chan struct{}
	ctx   context.Context
	stop  context.CancelFunc
	wg    sync.WaitGroup
	once  sync.Once
}

func newProcessor(table *GenerationTable, cfg Config, logger *zap.Logger, onLoad, onDrop func(Resource)) *Processor {
	ctx, cancel := context.WithCancel(context.Background())
	p := &Processor{
		table:  table,
		logger: logger,
		cfg:    cfg,
		onLoad: onLoad,
		onDrop: onDrop,
		wake:   make(chan struct{}, 1),
		maint:  make(chan chan struct{}),
		done:   make(chan struct{}),
		ctx:    ctx,
		stop:   cancel,
	}
	p.idle = sync.NewCond(&p.mu)
	if cfg.MaxOpsPerSecond > 0 {
		burst := int(cfg.MaxOpsPerSecond)
		if burst < 1 {
			burst = 1
		}
		p.limiter = rate.NewLimiter(rate.Limit(cfg.MaxOpsPerSecond), burst)
	}
	p.wg.Add(1)
	go p.run()
	return p
}

// AddTask appends op to the queue.
func (p *Processor) AddTask(op Operation) {
	p.mu.Lock()
	p.queue.push(op)
	p.mu.Unlock()
	p.signal()
}

// NeutralizeTask cancels the newest queued operation of the opposite kind for
// the same independent resource. It reports whether a cancellation happened;
// if so the caller must not enqueue op.
func (p *Processor) NeutralizeTask(op Operation) bool {
	if !op.Resource.IsIndependent() {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.neutralizeLocked(op)
}

func (p *Processor) neutralizeLocked(op Operation) bool {
	if !op.Resource.IsIndependent() {
		return false
	}
	i := p.queue.lastLive(op.Resource)
	if i < 0 || p.queue.at(i).op.Kind != op.Kind.opposite() {
		return false
	}
	p.queue.invalidate(i)
	p.broadcastIfIdleLocked()
	return true
}

// Schedule neutralizes, deduplicates and enqueues op under one lock. With
// afterPending set, op is only accepted when it cancels or follows a queued
// operation of the opposite kind.
func (p *Processor) Schedule(op Operation, afterPending bool) scheduleResult {
	p.mu.Lock()
	if p.neutralizeLocked(op) {
		p.mu.Unlock()
		return scheduleNeutralized
	}
	i := p.queue.lastLive(op.Resource)
	switch {
	case i >= 0 && p.queue.at(i).op.Kind == op.Kind:
		p.mu.Unlock()
		return scheduleDuplicate
	case afterPending && i < 0:
		p.mu.Unlock()
		return scheduleRejected
	}
	p.queue.push(op)
	p.mu.Unlock()
	p.signal()
	return scheduleAdded
}

// RemoveTask invalidates every queued copy of op.
func (p *Processor) RemoveTask(op Operation) {
	p.mu.Lock()
	for i := 0; i < p.queue.len(); i++ {
		e := p.queue.at(i)
		if e.tag == tagValid && e.op == op {
			p.queue.invalidate(i)
		}
	}
	p.broadcastIfIdleLocked()
	p.mu.Unlock()
}

// RemoveResource invalidates every queued operation targeting r, including
// pending post-sync work.
func (p *Processor) RemoveResource(r Resource) {
	p.mu.Lock()
	for i := 0; i < p.queue.len(); i++ {
		e := p.queue.at(i)
		if e.tag == tagValid && e.op.Resource == r {
			p.queue.invalidate(i)
		}
	}
	p.broadcastIfIdleLocked()
	p.mu.Unlock()

	p.psMu.Lock()
	for _, it := range p.postSync {
		if it.op.Resource == r {
			it.cancelled = true
		}
	}
	p.psMu.Unlock()
}

// TaskCompleted reports whether no valid operation is queued or running.
func (p *Processor) TaskCompleted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queue.live == 0 && !p.busy
}

// OperationCount returns the number of valid queued operations.
func (p *Processor) OperationCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queue.live
}

// WaitForCompletion blocks until the queue drains, ctx is done or the
// processor shuts down.
func (p *Processor) WaitForCompletion(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		p.mu.Lock()
		p.idle.Broadcast()
		p.mu.Unlock()
	})
	defer stop()

	p.mu.Lock()
	defer p.mu.Unlock()
	for p.queue.live > 0 || p.busy {
		if p.closed {
			return ErrManagerClosed
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		p.idle.Wait()
	}
	return nil
}

// RunMaintenance asks the worker to reclassify and collect now, on its own
// goroutine, and waits until it has done so.
func (p *Processor) RunMaintenance(ctx context.Context) error {
	reply := make(chan struct{})
	select {
	case p.maint <- reply:
	case <-p.done:
		return ErrManagerClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-reply:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops the worker and waits for it to exit. Queued operations are
// left unexecuted.
func (p *Processor) Shutdown() {
	p.once.Do(func() {
		close(p.done)
		p.stop()
		p.wg.Wait()
		p.mu.Lock()
		p.closed = true
		p.idle.Broadcast()
		p.mu.Unlock()
	})
}

func (p *Processor) signal() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *Processor) broadcastIfIdleLocked() {
	if p.queue.live == 0 && !p.busy {
		p.idle.Broadcast()
	}
}

func (p *Processor) run() {
	defer p.wg.Done()

	idle := time.NewTimer(p.cfg.IdleSleep)
	defer idle.Stop()

	last := time.Now()
	var sinceGen, sinceCollect time.Duration
	for {
		worked := p.step()

		now := time.Now()
		elapsed := now.Sub(last)
		if elapsed < 0 {
			elapsed = 0
		}
		last = now
		sinceGen += elapsed
		sinceCollect += elapsed

		if sinceGen > p.cfg.GenUpdateInterval {
			p.table.SubTaskGenUpdate()
			sinceGen = 0
		}
		if sinceCollect > p.cfg.CollectInterval {
			p.table.SubTaskCollect()
			sinceCollect = 0
		}

		if worked {
			select {
			case <-p.done:
				return
			case reply := <-p.maint:
				p.maintain(reply)
			default:
			}
			continue
		}

		idle.Reset(p.cfg.IdleSleep)
		select {
		case <-p.done:
			return
		case reply := <-p.maint:
			p.maintain(reply)
		case <-p.wake:
		case <-idle.C:
		}
	}
}

func (p *Processor) maintain(reply chan struct{}) {
	p.table.SubTaskGenUpdate()
	p.table.SubTaskCollect()
	close(reply)
}

// step dequeues and executes at most one valid operation.
func (p *Processor) step() bool {
	p.mu.Lock()
	var op Operation
	found := false
	for !found {
		e, ok := p.queue.pop()
		if !ok {
			break
		}
		if e.tag == tagValid {
			op, found = e.op, true
		}
	}
	if !found {
		p.broadcastIfIdleLocked()
		p.mu.Unlock()
		return false
	}
	p.busy = true
	p.mu.Unlock()

	if p.limiter != nil {
		_ = p.limiter.Wait(p.ctx)
	}
	p.execute(op)

	p.mu.Lock()
	p.busy = false
	p.broadcastIfIdleLocked()
	p.mu.Unlock()
	return true
}

// execute runs the background phase of op. Operations whose resource is not in
// the required starting state are dropped.
func (p *Processor) execute(op Operation) {
	r, ok := op.Resource.(*asyncResource)
	if !ok || r.released.Load() {
		return
	}
	switch op.Kind {
	case OpLoad:
		if !p.begin(r, op, Unloaded, Loading) {
			return
		}
		if err := callHook(r.loader.Load); err != nil {
			p.logger.Error("Resource load failed", zap.String("key", r.key), zap.Error(err))
			r.setState(Unloaded)
			return
		}
		if r.postSync {
			p.pushPostSync(op)
			return
		}
		p.onLoad(r)
		r.setState(Loaded)
	case OpUnload:
		if !p.begin(r, op, Loaded, Unloading) {
			return
		}
		if err := callHook(r.loader.Unload); err != nil {
			p.logger.Error("Resource unload failed", zap.String("key", r.key), zap.Error(err))
			r.setState(Loaded)
			return
		}
		if r.postSync {
			p.pushPostSync(op)
			return
		}
		p.onDrop(r)
		r.setState(Unloaded)
	}
}

// begin moves r into the transient state of op. If r is still finishing the
// post-sync phase of the opposite operation, op is attached to it instead and
// runs once that completes.
func (p *Processor) begin(r *asyncResource, op Operation, from, to State) bool {
	if r.transition(from, to) {
		return true
	}
	if p.followPostSync(op) {
		return false
	}
	// The post-sync phase may have completed in between.
	return r.transition(from, to)
}

// loadInline runs a complete load, post-sync included, on the calling
// goroutine. The caller has already moved r to Loading.
func (p *Processor) loadInline(r *asyncResource) error {
	if err := callHook(r.loader.Load); err != nil {
		r.setState(Unloaded)
		return fmt.Errorf("load %q: %w", r.key, err)
	}
	if r.postSync {
		for _, pct := range PostSyncSteps {
			if err := callHook(func() error { return loadStep(r.loader, pct) }); err != nil {
				_ = callHook(r.loader.Unload)
				r.setState(Unloaded)
				return fmt.Errorf("load %q post-sync at %d%%: %w", r.key, pct, err)
			}
		}
	}
	p.onLoad(r)
	r.setState(Loaded)
	return nil
}
