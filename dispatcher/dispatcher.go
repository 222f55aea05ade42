// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package dispatcher implements the dispatcher fiber: the privileged
// fiber a Scheduler switches to whenever its ready queue is empty.
// It runs the default dispatch loop unless a custom algorithm has
// been installed on the owning thread registry.
package dispatcher

import (
	"time"

	"code.hybscloud.com/fiber/ctxhandle"
	"code.hybscloud.com/fiber/fcontrol"
	"code.hybscloud.com/iox"
)

// Algo is a custom dispatch algorithm: an external collaborator that
// replaces the default ready/sleep loop entirely for the lifetime of
// the scheduler. It must return only when SchedulerHandle.ShuttingDown
// reports true and no workers remain outstanding.
type Algo func(SchedulerHandle)

// SchedulerHandle is the contract the dispatcher needs from its owning
// Scheduler. Defined here rather than depending on package scheduler
// directly, so dispatcher never imports scheduler — the concrete
// scheduler.Scheduler type satisfies this structurally, and package
// scheduler is free to import dispatcher to construct one.
type SchedulerHandle interface {
	// Active returns the Control currently running on this thread. It
	// is always the dispatcher's own Control while a custom algorithm
	// is executing, since the Scheduler updates it immediately before
	// switching in — the same Control defaultDispatch already has
	// through its own field, exposed here so a custom algorithm has a
	// value to hand SwitchToReadyHead.
	Active() *fcontrol.Control
	// ShuttingDown reports whether Close has been called.
	ShuttingDown() bool
	// WorkerCount returns the number of attached, unterminated Worker
	// fibers.
	WorkerCount() int32
	// DestroyTerminated reclaims every fiber linked on the terminate
	// queue.
	DestroyTerminated()
	// ProcessSleep moves every sleeper whose wake time has passed onto
	// the ready queue.
	ProcessSleep()
	// ReadyEmpty reports whether the ready queue has no entries.
	ReadyEmpty() bool
	// SwitchToReadyHead pops the ready queue's head and switches to
	// it from active, returning once control is handed back to active.
	SwitchToReadyHead(active *fcontrol.Control) ctxhandle.Handle
	// NextWakeTime returns the earliest sleeper's wake time, if any.
	NextWakeTime() (time.Time, bool)
	// DrainRemote marks ready any fiber woken by another OS thread
	// through the lfq-backed remote wake seam.
	DrainRemote()
}

// Dispatcher owns the fiber control block backing the dispatcher role
// and the bookkeeping needed to hand control back cleanly on shutdown.
type Dispatcher struct {
	control    *fcontrol.Control
	sched      SchedulerHandle
	customAlgo func() Algo

	lastResumer ctxhandle.Handle
}

// New allocates a stack via allocator and constructs the dispatcher
// fiber's Control. customAlgo is consulted once, when the dispatcher
// fiber first runs (nil means "use the default"), so SetCustomDispatcher
// on the owning registry can install or clear it up to that point;
// later changes do not affect a dispatcher that has already started.
func New(sched SchedulerHandle, customAlgo func() Algo, allocator ctxhandle.StackAllocator) (*Dispatcher, error) {
	stack, err := allocator.Allocate()
	if err != nil {
		return nil, err
	}
	d := &Dispatcher{sched: sched, customAlgo: customAlgo}
	d.control = fcontrol.NewDispatch(stack, allocator, d.run)
	return d, nil
}

// Control returns the fiber control block backing the dispatcher.
func (d *Dispatcher) Control() *fcontrol.Control { return d.control }

// IsTerminating reports whether the dispatcher's loop has returned.
func (d *Dispatcher) IsTerminating() bool { return d.control.Terminated() }

// run is the dispatcher fiber's entry point, invoked by fcontrol the
// first time something switches to it. caller is whoever performed
// that first switch; run must wake the most recent switcher before
// returning, since returning from this function exits the
// dispatcher's goroutine for good and nothing else will unblock them.
//
// It marks the Control terminated before that final wake, not after:
// the wake's channel send happens-before the switcher's receive per
// the Go memory model, so anything sequenced before the send is
// visible once the switcher resumes — but anything sequenced after
// would not be, and IsTerminating is read immediately on the other
// side of that resume (Scheduler.Close).
func (d *Dispatcher) run(caller ctxhandle.Handle) {
	d.lastResumer = caller
	if algo := d.customAlgo(); algo != nil {
		algo(d.sched)
	} else {
		d.defaultDispatch()
	}
	d.control.MarkTerminated()
	ctxhandle.Wake(d.lastResumer)
}

// defaultDispatch is the built-in dispatch algorithm (§4.4a): drain
// terminated fibers, run anything ready, advance sleepers whose wake
// time has passed, and otherwise wait: sleep until the nearest sleep
// deadline when it is less than a millisecond away, else take one
// adaptive backoff step that does not consult the deadline — the iox.Backoff pattern
// sess.dispatchWait and sess.RunExpr use around iox.ErrWouldBlock,
// applied here to "no fiber is ready yet" instead of "no I/O is ready
// yet".
func (d *Dispatcher) defaultDispatch() {
	var bo iox.Backoff
	for {
		if d.sched.ShuttingDown() && d.sched.WorkerCount() == 0 {
			return
		}
		d.sched.DestroyTerminated()
		d.sched.DrainRemote()

		if !d.sched.ReadyEmpty() {
			d.lastResumer = d.sched.SwitchToReadyHead(d.control)
			bo.Reset()
			continue
		}

		d.sched.ProcessSleep()
		if !d.sched.ReadyEmpty() {
			continue
		}

		if wake, ok := d.sched.NextWakeTime(); ok {
			if until := time.Until(wake); until > 0 && until < time.Millisecond {
				time.Sleep(until)
				continue
			}
		}
		bo.Wait()
	}
}
