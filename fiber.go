// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fiber

import (
	"time"

	"code.hybscloud.com/fiber/ctxhandle"
	"code.hybscloud.com/fiber/dispatcher"
	"code.hybscloud.com/fiber/fcontrol"
	"code.hybscloud.com/fiber/registry"
	"code.hybscloud.com/fiber/scheduler"
)

// Control is a fiber's control block. See [code.hybscloud.com/fiber/fcontrol.Control].
type Control = fcontrol.Control

// Scheduler owns one goroutine's ready/sleep/terminate queues. See
// [code.hybscloud.com/fiber/scheduler.Scheduler].
type Scheduler = scheduler.Scheduler

// Algo is a custom dispatch algorithm. See
// [code.hybscloud.com/fiber/dispatcher.Algo].
type Algo = dispatcher.Algo

// StackAllocator allocates the memory backing a fiber's stack. See
// [code.hybscloud.com/fiber/ctxhandle.StackAllocator].
type StackAllocator = ctxhandle.StackAllocator

// Worker and Dispatch and Main re-export fcontrol.Kind's values for
// callers that need to branch on a Control's role.
const (
	Worker   = fcontrol.Worker
	Dispatch = fcontrol.Dispatch
	Main     = fcontrol.Main
)

// Active returns the fiber currently running on the calling
// goroutine — the main stub if nothing else is active. Constructs the
// calling goroutine's registry state on first call.
func Active() *Control {
	return registry.Active()
}

// CurrentScheduler returns the calling goroutine's Scheduler,
// constructing it (with any opts, on first call only) if needed.
func CurrentScheduler(opts ...registry.Options) *Scheduler {
	return registry.Scheduler(opts...)
}

// SetCustomDispatcher installs algo as the calling goroutine's
// dispatch algorithm in place of the default adaptive backoff loop.
// Passing nil restores the default.
func SetCustomDispatcher(algo Algo) {
	registry.SetCustomDispatcher(algo)
}

// Close tears down the calling goroutine's registry state. It panics
// if any worker fiber is still outstanding, or if called from
// anywhere other than the main fiber.
func Close() {
	registry.Close()
}

// Go starts a new worker fiber on the calling goroutine's Scheduler,
// running fn on a dedicated machine context. The fiber becomes ready
// immediately; it first actually runs the next time its Scheduler
// preempts into it.
func Go(name string, fn func()) (*Control, error) {
	sched := CurrentScheduler()
	return goOn(sched, name, fn)
}

func goOn(sched *Scheduler, name string, fn func()) (*Control, error) {
	allocator := sched.Allocator()
	stack, err := allocator.Allocate()
	if err != nil {
		return nil, err
	}
	// A worker fiber's body runs on its own dedicated goroutine (see
	// package ctxhandle), so Active/CurrentScheduler calls made from
	// inside fn must not fall through to the lazy per-goroutine
	// construction in package registry — that would key a brand new,
	// unrelated Scheduler off this goroutine's identity instead of
	// resolving to sched, the one actually driving this fiber.
	c := fcontrol.NewWorker(name, stack, allocator, func() {
		registry.Adopt(sched)
		fn()
	})
	c.Start(sched)
	return c, nil
}

// WaitUntil parks the calling fiber — which must be the active fiber
// on its Scheduler — until tp, then preempts. It is a lower-level
// counterpart to time.Sleep for code already running inside a fiber.
func WaitUntil(tp time.Time) {
	sched := CurrentScheduler()
	sched.WaitUntil(tp, sched.Active())
}

// Yield voluntarily hands control to the next ready fiber, if any,
// re-enqueueing the calling fiber at the tail of the ready queue
// first — §5's "voluntary yield: MarkReady(self) followed by
// Preempt".
func Yield() {
	sched := CurrentScheduler()
	sched.MarkReady(sched.Active())
	sched.Preempt()
}
