// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package registry provides the per-OS-thread state FiberInitializer
// owns in the original scheduler: a main fiber stub, its Scheduler,
// and an optional custom dispatch algorithm, all constructed lazily on
// first access from the calling goroutine.
//
// Go exposes no thread-local storage and does not pin a goroutine to
// an OS thread, so "per-OS-thread" here is read as "per calling
// goroutine", keyed through package gls rather than a linkname'd g
// pointer or runtime.LockOSThread. A fiber scheduler whose fibers are
// themselves goroutines (see package ctxhandle) is already giving up
// the original's single-OS-thread-per-scheduler invariant in exchange
// for portability; this is the same trade applied one level up.
package registry

import (
	"code.hybscloud.com/fiber/dispatcher"
	"code.hybscloud.com/fiber/fcontrol"
	"code.hybscloud.com/fiber/internal/gls"
	"code.hybscloud.com/fiber/scheduler"
)

type state struct {
	main  *fcontrol.Control
	sched *scheduler.Scheduler
}

// Options configure the lazily-constructed Scheduler for the calling
// goroutine. Passing Options is only meaningful on the very first
// call from a given goroutine — later calls from the same goroutine
// reuse the already-constructed state and ignore them.
type Options = scheduler.Option

// current loads this goroutine's state out of gls, constructing and
// storing it on first access. Only the calling goroutine ever reads
// or writes its own gls.G key, so the lazy construction below race
// against nothing else despite gls's map being shared across all
// goroutines.
func current(opts ...Options) *state {
	g := gls.Current()
	if v := g.Load(); v != nil {
		return v.(*state)
	}

	st := &state{main: fcontrol.NewMainStub()}
	sched, err := scheduler.New(st.main, opts...)
	if err != nil {
		panic("registry: failed to construct scheduler: " + err.Error())
	}
	st.sched = sched
	g.Store(st)
	return st
}

// Scheduler returns the calling goroutine's Scheduler, constructing it
// (along with its main stub and dispatcher) on first access.
func Scheduler(opts ...Options) *scheduler.Scheduler {
	return current(opts...).sched
}

// Adopt binds the calling goroutine directly to sched, bypassing the
// lazy per-goroutine construction in current. It is a no-op if this
// goroutine already has registry state.
//
// A worker fiber's body runs on its own dedicated goroutine (package
// ctxhandle spawns one per Handle), distinct from the goroutine that
// started it. Without Adopt, an Active or Scheduler call made from
// inside a running fiber's own body would key off that fiber's private
// goroutine identity and lazily construct an unrelated Scheduler rather
// than resolving to the one actually driving the fiber. Package fiber
// calls Adopt as the first thing a worker's body runs.
func Adopt(sched *scheduler.Scheduler) {
	g := gls.Current()
	if g.Load() != nil {
		return
	}
	g.Store(&state{sched: sched})
}

// Active returns the fiber currently running on the calling
// goroutine's Scheduler — the main stub if nothing else is active.
func Active() *fcontrol.Control {
	return current().sched.Active()
}

// SetCustomDispatcher installs algo as the calling goroutine's
// dispatch algorithm, constructing the registry state (with the
// default algorithm first, briefly) if this is the first call from
// this goroutine.
func SetCustomDispatcher(algo dispatcher.Algo) {
	current().sched.SetCustomDispatcher(algo)
}

// Close tears down the calling goroutine's registry state: it removes
// the state from this goroutine, then closes the Scheduler (driving its
// dispatcher to terminate and draining its queues). The main stub has
// no teardown of its own; it is dropped along with the state. It
// panics if called from any fiber other than main, or if no state
// exists for this goroutine.
func Close() {
	g := gls.Current()
	v := g.Load()
	if v == nil {
		panic("registry: Close called with no registry state for this goroutine")
	}
	g.Clear()
	v.(*state).sched.Close()
}
