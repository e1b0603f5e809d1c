package resource

import (
	"time"

	"go.uber.org/zap"
)

// postSyncItem is an operation whose background phase has run and whose
// post-sync phase is advanced one step at a time by the owning goroutine.
type postSyncItem struct {
	op        Operation
	step      int
	cancelled bool
	// followUp is queued once the item completes. It holds an operation that
	// reached the worker while this one was still pending.
	followUp    OpKind
	hasFollowUp bool
}

func (p *Processor) pushPostSync(op Operation) {
	p.psMu.Lock()
	p.postSync = append(p.postSync, &postSyncItem{op: op})
	p.psMu.Unlock()
	// UseSync callers may be waiting on this resource and can finish it.
	if r, ok := op.Resource.(*asyncResource); ok {
		r.wake()
	}
}

// PostSyncCount returns the number of operations waiting for post-sync work.
func (p *Processor) PostSyncCount() int {
	p.psMu.Lock()
	defer p.psMu.Unlock()
	n := 0
	for _, it := range p.postSync {
		if !it.cancelled {
			n++
		}
	}
	return n
}

func (p *Processor) hasPostSync(r *asyncResource) bool {
	p.psMu.Lock()
	defer p.psMu.Unlock()
	for _, it := range p.postSync {
		if !it.cancelled && it.op.Resource == r {
			return true
		}
	}
	return false
}

// front returns the oldest live item, dropping cancelled ones.
func (p *Processor) front() *postSyncItem {
	p.psMu.Lock()
	defer p.psMu.Unlock()
	for len(p.postSync) > 0 {
		it := p.postSync[0]
		if !it.cancelled {
			return it
		}
		p.postSync[0] = nil
		p.postSync = p.postSync[1:]
	}
	return nil
}

func (p *Processor) removeLocked(it *postSyncItem) {
	for i, other := range p.postSync {
		if other == it {
			copy(p.postSync[i:], p.postSync[i+1:])
			p.postSync[len(p.postSync)-1] = nil
			p.postSync = p.postSync[:len(p.postSync)-1]
			return
		}
	}
}

// complete removes it and queues its follow-up operation, if any.
func (p *Processor) complete(it *postSyncItem) {
	p.psMu.Lock()
	p.removeLocked(it)
	next, queue := it.followUp, it.hasFollowUp && !it.cancelled
	p.psMu.Unlock()
	if queue {
		p.AddTask(Operation{Resource: it.op.Resource, Kind: next})
	}
}

// followPostSync attaches op to the pending post-sync item of the opposite
// kind for the same resource. It reports whether there was one.
func (p *Processor) followPostSync(op Operation) bool {
	p.psMu.Lock()
	defer p.psMu.Unlock()
	for _, it := range p.postSync {
		if !it.cancelled && it.op.Resource == op.Resource && it.op.Kind == op.Kind.opposite() {
			it.followUp, it.hasFollowUp = op.Kind, true
			return true
		}
	}
	return false
}

// ProcessPostSync advances pending post-sync work until budget is spent and
// returns what is left of it. Budget is checked between steps, so a single
// long step may overrun it. It must only be called from the goroutine owning
// the shared context.
func (p *Processor) ProcessPostSync(budget time.Duration) time.Duration {
	start := time.Now()
	p.psRun.Lock()
	defer p.psRun.Unlock()
	for {
		left := budget - time.Since(start)
		if left <= 0 {
			return 0
		}
		it := p.front()
		if it == nil {
			return left
		}
		p.advance(it)
	}
}

// finishPostSync runs every remaining step of r's pending post-sync item on the
// calling goroutine. It reports whether there was one. Hooks must not call
// UseSync, since advancing is not reentrant.
func (p *Processor) finishPostSync(r *asyncResource) bool {
	p.psRun.Lock()
	defer p.psRun.Unlock()

	p.psMu.Lock()
	var found *postSyncItem
	for _, it := range p.postSync {
		if !it.cancelled && it.op.Resource == r {
			found = it
			break
		}
	}
	p.psMu.Unlock()
	if found == nil {
		return false
	}
	for !p.advance(found) {
	}
	return true
}

// advance runs one step of it and completes the operation after the last
// step. It reports whether the item is finished. State is settled before the
// item leaves the queue so an operation arriving meanwhile is never lost.
func (p *Processor) advance(it *postSyncItem) bool {
	p.psMu.Lock()
	cancelled := it.cancelled
	p.psMu.Unlock()
	if cancelled {
		p.psMu.Lock()
		p.removeLocked(it)
		p.psMu.Unlock()
		return true
	}

	r := it.op.Resource.(*asyncResource)
	pct := PostSyncSteps[it.step]

	var err error
	if it.op.Kind == OpLoad {
		err = callHook(func() error { return loadStep(r.loader, pct) })
	} else {
		err = callHook(func() error { return unloadStep(r.loader, pct) })
	}

	if err != nil {
		if it.op.Kind == OpLoad {
			p.logger.Error("Post-sync load failed",
				zap.String("key", r.key), zap.Int("percentage", pct), zap.Error(err))
			_ = callHook(r.loader.Unload)
			r.setState(Unloaded)
		} else {
			// The background phase already released the data.
			p.logger.Error("Post-sync unload failed",
				zap.String("key", r.key), zap.Int("percentage", pct), zap.Error(err))
			p.onDrop(r)
			r.setState(Unloaded)
		}
		p.complete(it)
		return true
	}

	it.step++
	if it.step < len(PostSyncSteps) {
		return false
	}
	if it.op.Kind == OpLoad {
		p.onLoad(r)
		r.setState(Loaded)
	} else {
		p.onDrop(r)
		r.setState(Unloaded)
	}
	p.complete(it)
	return true
}
