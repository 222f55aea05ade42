// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package ctxhandle provides the machine-context primitive: a resumable
// continuation that transfers control between two call stacks exactly
// once per handoff, one at a time.
//
// Go gives no portable way to switch a user-mode register context the
// way boost::context or the runtime's own (unexported) coroutine
// primitive does. Rather than reach for go:linkname into
// runtime.newcoro/coroswitch/coroexit — fragile across Go versions and
// unavailable outside the runtime's own build — each Handle is backed
// by a dedicated goroutine parked on a single unbuffered channel.
// Resume hands the channel a Handle naming who to wake next and blocks
// until it is handed one back; the effect, from the caller's point of
// view, is indistinguishable from a stack switch: exactly one side of
// the ping-pong runs at a time.
package ctxhandle

type Handle struct {
	c *context
}

type context struct {
	ch chan Handle
}

// IsEmpty reports whether h is the zero Handle.
func (h Handle) IsEmpty() bool {
	return h.c == nil
}

// New creates a Handle backed by a fresh goroutine that runs entry the
// first time it is resumed. entry receives the Handle of whoever
// resumed it, and must eventually call Resume (directly or by way of
// a higher-level SwitchTo) to hand control back; entry's return value
// is implicit — the goroutine exits silently once entry returns,
// exactly like a fiber whose Terminate unwound its call stack.
func New(entry func(caller Handle)) Handle {
	h := Handle{c: &context{ch: make(chan Handle)}}
	go func() {
		caller := <-h.c.ch
		entry(caller)
	}()
	return h
}

// NewStub creates a Handle with no backing goroutine. It is used for
// the main fiber, which is the calling OS thread's own stack rather
// than a context the scheduler spawns: "switching to main" simply
// delivers the continuation to wherever that goroutine last blocked
// inside Resume.
func NewStub() Handle {
	return Handle{c: &context{ch: make(chan Handle)}}
}

// Resume transfers control to target, naming from as the handle that
// should be woken when target next switches away. It blocks until
// some other Resume call names the calling handle (from) as its
// target, and returns the Handle of whoever resumed it back.
//
// Resume is affine in the sense that each handoff is consumed exactly
// once: calling Resume on a target that is not currently parked on
// its channel blocks forever, the same way resuming an already-running
// fiber would be a programming error in the spec this primitive backs.
func Resume(target, from Handle) Handle {
	target.c.ch <- from
	return <-from.c.ch
}

// Wake delivers a final, fire-and-forget continuation to target and
// returns immediately without waiting for any reply. It exists only
// for the destruction path: once a fiber has terminated, nothing will
// ever switch back to it in the ordinary sense, so unblocking its
// parked Resume call with the empty Handle is enough to let its
// goroutine unwind and exit.
func Wake(target Handle) {
	target.c.ch <- Handle{}
}
