package binbuild

import "sync"

// SlotPool caps concurrency for the bin builder's three resource kinds —
// load, compute, save (spec §4.6 "Concurrency inside the stage") — with
// a single mutex and one condition variable per kind, matching spec §5's
// "workers block on... stage-specific slot condition variables (bin
// loader / compute / saver)". A bin acquires its three slots in a fixed
// order (load, then compute, then save) and releases them in the
// reverse order; this is the standard resource-ordering discipline for
// avoiding deadlock when a single worker holds more than one kind of
// slot concurrently.
type SlotPool struct {
	mu   sync.Mutex
	cond *sync.Cond

	loadCap, computeCap, saveCap       int
	loadUsed, computeUsed, saveUsed    int
	aborted                            bool
	abortErr                           error
}

// NewSlotPool creates a pool with the given per-kind capacities.
func NewSlotPool(loadCap, computeCap, saveCap int) *SlotPool {
	p := &SlotPool{loadCap: loadCap, computeCap: computeCap, saveCap: saveCap}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Abort force-terminates every waiter in the pool (spec §5 "a
// cooperative cancellation flag terminates all waiters in a pool when
// any worker throws"). Only the first error is retained.
func (p *SlotPool) Abort(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.aborted {
		p.aborted = true
		p.abortErr = err
	}
	p.cond.Broadcast()
}

// Aborted reports whether Abort has been called, and the first error
// passed to it.
func (p *SlotPool) Aborted() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.aborted, p.abortErr
}

func (p *SlotPool) acquire(used *int, cap int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for *used >= cap && !p.aborted {
		p.cond.Wait()
	}
	if p.aborted {
		return false
	}
	*used++
	return true
}

func (p *SlotPool) release(used *int) {
	p.mu.Lock()
	*used--
	p.mu.Unlock()
	p.cond.Broadcast()
}

// AcquireLoad, AcquireCompute, AcquireSave block until a slot of that
// kind is free, returning false if the pool was aborted while waiting.
func (p *SlotPool) AcquireLoad() bool    { return p.acquire(&p.loadUsed, p.loadCap) }
func (p *SlotPool) AcquireCompute() bool { return p.acquire(&p.computeUsed, p.computeCap) }
func (p *SlotPool) AcquireSave() bool    { return p.acquire(&p.saveUsed, p.saveCap) }

// ReleaseSave, ReleaseCompute, ReleaseLoad give back a slot of that
// kind; call in this order (the reverse of acquisition).
func (p *SlotPool) ReleaseSave()    { p.release(&p.saveUsed) }
func (p *SlotPool) ReleaseCompute() { p.release(&p.computeUsed) }
func (p *SlotPool) ReleaseLoad()    { p.release(&p.loadUsed) }

// RunBin acquires all three slot kinds in order, runs load/compute/save
// in sequence while holding them, then releases in reverse order (spec
// §4.6's per-bin pipeline). It returns early with the pool's abort error
// if any acquire is interrupted by a concurrent Abort, and itself calls
// Abort on the first stage error so the rest of the pool's workers
// force-terminate (spec §7 "Workers capture the first exception and set
// a shared 'terminate requested' flag").
func (p *SlotPool) RunBin(load, compute, save func() error) error {
	if !p.AcquireLoad() {
		_, err := p.Aborted()
		return err
	}
	if !p.AcquireCompute() {
		p.ReleaseLoad()
		_, err := p.Aborted()
		return err
	}
	if !p.AcquireSave() {
		p.ReleaseCompute()
		p.ReleaseLoad()
		_, err := p.Aborted()
		return err
	}
	defer func() {
		p.ReleaseSave()
		p.ReleaseCompute()
		p.ReleaseLoad()
	}()

	if err := load(); err != nil {
		p.Abort(err)
		return err
	}
	if err := compute(); err != nil {
		p.Abort(err)
		return err
	}
	if err := save(); err != nil {
		p.Abort(err)
		return err
	}
	return nil
}
