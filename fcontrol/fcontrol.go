// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package fcontrol provides FiberControl: the reference-counted,
// intrusively-linkable state backing a single fiber, and the minimal
// Scheduler contract it needs to switch, park, and terminate.
package fcontrol

import (
	"time"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/fiber/ctxhandle"
)

// Kind distinguishes a fiber's role in the scheduler.
type Kind uint8

const (
	// Worker is an ordinary user fiber, counted in Scheduler.workerCount.
	Worker Kind = iota
	// Dispatch is the dispatcher fiber: runs when nothing is ready.
	Dispatch
	// Main is the privileged stub representing the OS thread's own stack.
	Main
)

// Scheduler is the minimal contract Control needs from whatever owns
// its ready/sleep/terminate queues. Defined here rather than depending
// on package scheduler directly, so fcontrol never imports scheduler —
// the concrete scheduler.Scheduler type satisfies this structurally.
type Scheduler interface {
	// Active returns the Control currently running on this scheduler's
	// OS thread.
	Active() *Control
	// Attach records c as belonging to this scheduler and, for Worker
	// kind, increments the outstanding worker count.
	Attach(c *Control)
	// MarkReady appends c to the ready queue.
	MarkReady(c *Control)
	// Preempt switches away from the active fiber to the ready-queue
	// head, or to the dispatcher if the ready queue is empty, and
	// returns once control is handed back.
	Preempt() ctxhandle.Handle
	// ScheduleTermination links c onto the terminate queue and, for
	// Worker kind, decrements the outstanding worker count. It is
	// idempotent: a Control already linked is left alone.
	ScheduleTermination(c *Control)
}

// Control is the per-fiber control block: reference count, kind,
// queue linkage, and the machine-context handle backing it. It is
// embedded analogously to boost::intrusive's hook-bearing base, so it
// can sit on all four queues (never more than one at a time) without
// a separate allocation per link.
type Control struct {
	kind      Kind
	name      string
	entry     ctxhandle.Handle
	scheduler Scheduler
	stack     ctxhandle.Stack
	allocator ctxhandle.StackAllocator

	useCount   atomix.Int32
	terminated atomix.Bool
	started    bool

	wakeTime time.Time

	readyHook     hook
	sleepHook     hook
	terminateHook hook
	waitHook      hook

	waitQueue Queue // fibers parked in Join on this Control
}

// NewWorker constructs a Control for an ordinary user fiber. fn runs
// on the fiber's goroutine once the fiber is first resumed; when fn
// returns, the fiber terminates itself exactly as if it had called
// Terminate explicitly.
func NewWorker(name string, stack ctxhandle.Stack, allocator ctxhandle.StackAllocator, fn func()) *Control {
	c := &Control{kind: Worker, name: name, stack: stack, allocator: allocator}
	c.useCount.Store(1)
	c.waitQueue = NewQueue(WaitHook)
	c.entry = ctxhandle.New(func(ctxhandle.Handle) {
		fn()
		c.Terminate()
		// Reached only once destroy() wakes this goroutine so it can
		// unwind; there is nothing left to run.
	})
	return c
}

// NewDispatch constructs a Control for the dispatcher fiber. run is
// invoked the first time the dispatcher is switched to, and receives
// the Handle of whoever switched into it; it owns the default dispatch
// loop or a custom algorithm for the lifetime of the scheduler and is
// expected to return only when the scheduler is shutting down. run is
// responsible for marking the Control terminated (via MarkTerminated)
// and for waking whoever last switched into the dispatcher — in that
// order — before returning, since nothing else will unblock that
// caller or update Terminated after it does.
func NewDispatch(stack ctxhandle.Stack, allocator ctxhandle.StackAllocator, run func(caller ctxhandle.Handle)) *Control {
	c := &Control{kind: Dispatch, name: "_dispatch", stack: stack, allocator: allocator}
	c.useCount.Store(1)
	c.waitQueue = NewQueue(WaitHook)
	c.entry = ctxhandle.New(func(caller ctxhandle.Handle) {
		run(caller)
	})
	return c
}

// NewMainStub constructs the Control representing the calling OS
// thread's own stack. It owns no goroutine of its own (NewStub): the
// thread that calls registry functions already is its entry point.
func NewMainStub() *Control {
	c := &Control{kind: Main, name: "_main", started: true}
	c.useCount.Store(1)
	c.waitQueue = NewQueue(WaitHook)
	c.entry = ctxhandle.NewStub()
	return c
}

// Kind returns the fiber's role.
func (c *Control) Kind() Kind { return c.kind }

// Name returns the fiber's diagnostic name.
func (c *Control) Name() string { return c.name }

// Handle returns the machine-context handle backing this Control.
func (c *Control) Handle() ctxhandle.Handle { return c.entry }

// Terminated reports whether the fiber has run to completion (or been
// force-terminated) and is no longer switchable to.
func (c *Control) Terminated() bool { return c.terminated.Load() }

// MarkTerminated marks c as terminated directly, without going through
// Terminate. Main and Dispatch kind Controls never call Terminate (it
// panics for Main, and a Dispatch fiber's run loop just returns), so
// the dispatcher fiber uses this to flip the flag itself — and must do
// so before waking whoever switched into it, not after, so that
// IsTerminating is already true by the time that switch returns.
func (c *Control) MarkTerminated() { c.terminated.Store(true) }

// WakeTime returns the time this Control is scheduled to wake, valid
// only while it is linked into a Scheduler's sleep queue.
func (c *Control) WakeTime() time.Time { return c.wakeTime }

// SetWakeTime records the time this Control should next become ready.
func (c *Control) SetWakeTime(t time.Time) { c.wakeTime = t }

// SetScheduler attaches s as the owning scheduler. It panics if a
// scheduler is already attached — a Control belongs to exactly one
// Scheduler for its lifetime.
func (c *Control) SetScheduler(s Scheduler) {
	if c.scheduler != nil {
		panic("fcontrol: scheduler already attached")
	}
	c.scheduler = s
}

// LinkedForTermination reports whether c is currently linked onto a
// terminate queue, used by scheduler.Scheduler.ScheduleTermination so
// that a Release-from-self does not double-link a fiber whose
// Terminate already scheduled it.
func (c *Control) LinkedForTermination() bool { return c.terminateHook.inUse }

// LinkedForSleep reports whether c is currently linked onto a sleep
// queue.
func (c *Control) LinkedForSleep() bool { return c.sleepHook.inUse }

// LinkedForReady reports whether c is currently linked onto a ready
// queue.
func (c *Control) LinkedForReady() bool { return c.readyHook.inUse }

// Start attaches c to sched and marks it ready to run. It panics if
// called more than once on the same Control.
func (c *Control) Start(sched Scheduler) {
	if c.started {
		panic("fcontrol: fiber already started")
	}
	c.started = true
	sched.Attach(c)
	sched.MarkReady(c)
}

// SwitchTo transfers control from prev to c, blocking until some
// other switch resumes prev. The caller (typically Scheduler.Preempt)
// is responsible for updating whatever tracks the currently active
// fiber before or as part of this call.
func (c *Control) SwitchTo(prev *Control) ctxhandle.Handle {
	if c.terminated.Load() {
		panic("fcontrol: switch to terminated fiber")
	}
	return ctxhandle.Resume(c.entry, prev.entry)
}

// Join blocks the calling fiber (the scheduler's current Active)
// until c terminates. It is a no-op if c has already terminated.
// Join panics if a fiber tries to join itself, or if the two fibers
// do not share a scheduler — joins do not cross OS threads.
func (c *Control) Join() {
	active := c.scheduler.Active()
	if active == c {
		panic("fcontrol: fiber cannot join itself")
	}
	if active.scheduler != c.scheduler {
		panic("fcontrol: join across schedulers is not supported")
	}
	if c.terminated.Load() {
		return
	}
	c.waitQueue.PushBack(active)
	c.scheduler.Preempt()
}

// Terminate marks the calling fiber (which must be c itself) as
// terminated, wakes every fiber parked in Join on it, schedules it
// for reclamation via the terminate queue, and switches away. It
// never returns to its caller in the ordinary case — the fiber's
// stack is reclaimed once DestroyTerminated resumes it to unwind.
func (c *Control) Terminate() ctxhandle.Handle {
	if c.kind == Main {
		panic("fcontrol: main fiber cannot terminate")
	}
	if c.terminated.Swap(true) {
		panic("fcontrol: fiber terminated twice")
	}
	c.scheduler.ScheduleTermination(c)
	for {
		w := c.waitQueue.PopFront()
		if w == nil {
			break
		}
		w.scheduler.MarkReady(w)
	}
	return c.scheduler.Preempt()
}

// AddRef increments the reference count, for external collaborators
// (e.g. a join handle) that need the Control to outlive the
// scheduler's own reference to it.
func (c *Control) AddRef() { c.useCount.Add(1) }

// Release drops one strong reference. When the count reaches zero,
// the underlying stack and machine context must be destroyed — but a
// fiber cannot destroy its own stack while still running on it.
// Release-from-another-fiber (or from main/dispatcher) destroys
// immediately; release-from-self instead schedules the Control for
// later reclamation via the terminate queue, the same split
// intrusive_ptr_release policy the original scheduler uses.
func (c *Control) Release() {
	if c.useCount.Add(-1) > 0 {
		return
	}
	if c.scheduler != nil && c.scheduler.Active() == c {
		c.scheduler.ScheduleTermination(c)
		return
	}
	c.destroy()
}

// destroy wakes the fiber's goroutine one last time so it can unwind
// and exit, then returns its stack to the allocator. It must never be
// called from the fiber being destroyed — exactly the split policy
// Release implements.
//
// Only a Worker needs waking here: Terminate leaves it parked forever
// inside its own final Preempt call, waiting on exactly the channel
// Wake delivers to. A Dispatch fiber's run loop wakes its own last
// resumer and returns on its own the moment it observes shutdown with
// no workers left (see package dispatcher), so by the time Release
// reaches here its goroutine has already exited on its own; Waking it
// would send to a channel nothing is left to receive on and block
// forever. Main owns no goroutine at all.
func (c *Control) destroy() {
	if c.kind == Worker {
		ctxhandle.Wake(c.entry)
	}
	if c.allocator != nil {
		c.allocator.Deallocate(c.stack)
	}
}
