// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package scheduler implements the per-OS-thread Scheduler: ready,
// sleep and terminate queues over fcontrol.Control, the active-fiber
// pointer, and the glue that drives the dispatcher fiber.
package scheduler

import (
	"sync"
	"time"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/fiber/ctxhandle"
	"code.hybscloud.com/fiber/dispatcher"
	"code.hybscloud.com/fiber/fcontrol"
)

// Scheduler owns one OS thread's fiber state: the ready/sleep/
// terminate queues, the dispatcher fiber, and which Control is
// currently running. A Scheduler must not be shared across OS
// threads — cross-thread wakeups go through RemoteHandle instead.
type Scheduler struct {
	main     *fcontrol.Control
	active   *fcontrol.Control
	dispatch *dispatcher.Dispatcher

	ready     fcontrol.Queue
	sleep     fcontrol.Queue
	terminate fcontrol.Queue

	workerCount atomix.Int32
	shutdown    atomix.Bool

	remote    *RemoteHandle
	allocator ctxhandle.StackAllocator

	now func() time.Time

	algoMu     sync.RWMutex
	customAlgo dispatcher.Algo
}

// Option configures a Scheduler at construction time, modeled on the
// builder pattern lfq.Build documents for its own queue construction.
type Option func(*config)

type config struct {
	allocator      ctxhandle.StackAllocator
	customAlgo     dispatcher.Algo
	remoteCapacity int
	now            func() time.Time
}

// WithStackAllocator overrides the default unbounded stack allocator
// used for the dispatcher fiber and returned by Allocator, which
// package fiber's Go uses for worker stacks.
func WithStackAllocator(a ctxhandle.StackAllocator) Option {
	return func(c *config) { c.allocator = a }
}

// WithCustomDispatcher installs a custom dispatch algorithm in place
// of the default ready/sleep loop.
func WithCustomDispatcher(algo dispatcher.Algo) Option {
	return func(c *config) { c.customAlgo = algo }
}

// WithRemoteCapacity sets the bounded capacity of the lfq-backed
// cross-thread wake queue. Zero disables the remote wake seam.
func WithRemoteCapacity(n int) Option {
	return func(c *config) { c.remoteCapacity = n }
}

// withClock overrides the time source ProcessSleep compares against;
// exposed only to tests in this package.
func withClock(now func() time.Time) Option {
	return func(c *config) { c.now = now }
}

// New constructs a Scheduler bound to mainStub, which represents the
// calling OS thread's own stack. It eagerly constructs the dispatcher
// fiber, matching the FiberInitializer construction order the
// original scheduler documents: main stub first, then Scheduler
// (which in turn builds its dispatcher).
func New(mainStub *fcontrol.Control, opts ...Option) (*Scheduler, error) {
	cfg := config{
		allocator:      ctxhandle.UnboundedAllocator{},
		remoteCapacity: 256,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	s := &Scheduler{
		main:      mainStub,
		active:    mainStub,
		ready:     fcontrol.NewQueue(fcontrol.ReadyHook),
		sleep:     fcontrol.NewQueue(fcontrol.SleepHook),
		terminate: fcontrol.NewQueue(fcontrol.TerminateHook),
		now:       cfg.now,
	}
	mainStub.SetScheduler(s)
	s.allocator = cfg.allocator

	if cfg.remoteCapacity > 0 {
		s.remote = newRemoteHandle(cfg.remoteCapacity)
	}
	s.customAlgo = cfg.customAlgo

	d, err := dispatcher.New(s, s.getCustomAlgo, cfg.allocator)
	if err != nil {
		return nil, err
	}
	s.dispatch = d
	return s, nil
}

// SetCustomDispatcher installs algo as this Scheduler's dispatch
// algorithm, replacing the default ready/sleep loop. Passing nil
// restores the default. The dispatcher reads it once, when its fiber
// first runs; a change made after that has no effect on this
// Scheduler, and it never preempts a currently running algorithm.
func (s *Scheduler) SetCustomDispatcher(algo dispatcher.Algo) {
	s.algoMu.Lock()
	s.customAlgo = algo
	s.algoMu.Unlock()
}

func (s *Scheduler) getCustomAlgo() dispatcher.Algo {
	s.algoMu.RLock()
	defer s.algoMu.RUnlock()
	return s.customAlgo
}

// Active returns the Control currently running on this Scheduler.
// Implements both fcontrol.Scheduler and dispatcher.SchedulerHandle.
func (s *Scheduler) Active() *fcontrol.Control { return s.active }

// Main returns the Control representing this Scheduler's OS thread.
func (s *Scheduler) Main() *fcontrol.Control { return s.main }

// Allocator returns the StackAllocator this Scheduler was configured
// with, for callers that start worker fibers directly against it.
func (s *Scheduler) Allocator() ctxhandle.StackAllocator { return s.allocator }

// Attach implements fcontrol.Scheduler.
func (s *Scheduler) Attach(c *fcontrol.Control) {
	c.SetScheduler(s)
	if c.Kind() == fcontrol.Worker {
		s.workerCount.Add(1)
	}
}

// MarkReady implements fcontrol.Scheduler.
func (s *Scheduler) MarkReady(c *fcontrol.Control) {
	s.ready.PushBack(c)
}

// Preempt implements fcontrol.Scheduler: switches from the active
// fiber to the ready queue's head, or to the dispatcher if the ready
// queue is empty.
//
// A voluntary yield (MarkReady(self) then Preempt, §5) can pop self
// right back off an otherwise-empty ready queue: nothing else is
// runnable, so the "next" fiber is the one already running. Switching
// to yourself would send a handoff to a channel nothing is left to
// receive on — the running fiber's own goroutine is the one trying to
// send it — so that case is a deliberate no-op instead.
func (s *Scheduler) Preempt() ctxhandle.Handle {
	var target *fcontrol.Control
	if s.ready.Empty() {
		target = s.dispatch.Control()
	} else {
		target = s.ready.PopFront()
	}
	if target == s.active {
		return ctxhandle.Handle{}
	}
	prev := s.active
	s.active = target
	return target.SwitchTo(prev)
}

// ScheduleTermination implements fcontrol.Scheduler. It is idempotent:
// a Control already linked onto the terminate queue (typically because
// Terminate already called this directly) is left alone, so a later
// self-Release does not double-link it or double-decrement
// workerCount.
func (s *Scheduler) ScheduleTermination(c *fcontrol.Control) {
	if c.LinkedForTermination() {
		return
	}
	s.terminate.PushBack(c)
	if c.Kind() == fcontrol.Worker {
		s.workerCount.Add(-1)
	}
}

// DestroyTerminated implements dispatcher.SchedulerHandle: reclaims
// every fiber linked onto the terminate queue by dropping one strong
// reference each. Must be called from main or the dispatcher, never
// from the fiber being destroyed.
func (s *Scheduler) DestroyTerminated() {
	for {
		c := s.terminate.PopFront()
		if c == nil {
			return
		}
		c.Release()
	}
}

// ShuttingDown implements dispatcher.SchedulerHandle.
func (s *Scheduler) ShuttingDown() bool { return s.shutdown.Load() }

// WorkerCount implements dispatcher.SchedulerHandle.
func (s *Scheduler) WorkerCount() int32 { return s.workerCount.Load() }

// ReadyEmpty implements dispatcher.SchedulerHandle.
func (s *Scheduler) ReadyEmpty() bool { return s.ready.Empty() }

// SwitchToReadyHead implements dispatcher.SchedulerHandle.
func (s *Scheduler) SwitchToReadyHead(active *fcontrol.Control) ctxhandle.Handle {
	target := s.ready.PopFront()
	if target == nil {
		panic("scheduler: SwitchToReadyHead called on empty ready queue")
	}
	s.active = target
	return target.SwitchTo(active)
}

// NextWakeTime implements dispatcher.SchedulerHandle.
func (s *Scheduler) NextWakeTime() (time.Time, bool) {
	head := s.sleep.Front()
	if head == nil {
		return time.Time{}, false
	}
	return head.WakeTime(), true
}

// DrainRemote implements dispatcher.SchedulerHandle.
func (s *Scheduler) DrainRemote() {
	if s.remote == nil {
		return
	}
	s.remote.drain(s.MarkReady)
}

// WaitUntil parks self on the sleep queue until tp, ordered by wake
// time with ties broken by insertion order, then preempts. self
// must be the Scheduler's currently active fiber.
func (s *Scheduler) WaitUntil(tp time.Time, self *fcontrol.Control) {
	if self != s.active {
		panic("scheduler: WaitUntil called with a fiber other than the active one")
	}
	if self.LinkedForSleep() {
		panic("scheduler: fiber already sleeping")
	}
	self.SetWakeTime(tp)
	s.sleep.InsertSorted(self, func(existing, c *fcontrol.Control) bool {
		return !existing.WakeTime().After(c.WakeTime())
	})
	s.Preempt()
}

// ProcessSleep moves every sleeper whose wake time has passed onto
// the ready queue, earliest first (Q3).
func (s *Scheduler) ProcessSleep() {
	now := s.now()
	for {
		head := s.sleep.Front()
		if head == nil || head.WakeTime().After(now) {
			return
		}
		s.sleep.Remove(head)
		s.MarkReady(head)
	}
}

// RemoteHandle returns the cross-thread wake seam for this Scheduler,
// or nil if it was disabled via WithRemoteCapacity(0).
func (s *Scheduler) RemoteHandle() *RemoteHandle { return s.remote }

// Close shuts the Scheduler down: drives the dispatcher to its
// terminating switch back to main (unless a custom algorithm already
// returned on its own), asserts no workers remain outstanding, then
// releases the dispatcher's own reference and reclaims it. Mirrors
// the original Scheduler destructor's teardown order.
func (s *Scheduler) Close() {
	if s.active != s.main {
		panic("scheduler: Close called from a fiber other than main")
	}
	s.shutdown.Store(true)

	if !s.dispatch.IsTerminating() {
		prev := s.active
		s.active = s.dispatch.Control()
		s.dispatch.Control().SwitchTo(prev)
		s.active = prev
		if !s.dispatch.IsTerminating() {
			panic("scheduler: dispatcher failed to terminate on shutdown")
		}
	}
	if s.workerCount.Load() != 0 {
		panic("scheduler: workers still outstanding after dispatcher terminated")
	}
	s.dispatch.Control().Release()
	s.DestroyTerminated()
}
