// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package scheduler

import (
	"code.hybscloud.com/fiber/fcontrol"
	"code.hybscloud.com/lfq"
)

// RemoteHandle is the external-collaborator seam named in the spec's
// concurrency model: "cross-thread operations require external
// collaborators that synchronise on the Scheduler's mpsc entry
// points." It wraps a bounded lfq.MPSC so any number of other OS
// threads can request that a fiber owned by this Scheduler be marked
// ready, without ever touching the ready queue directly — only the
// owning thread's dispatcher drains it, inside its own loop.
type RemoteHandle struct {
	q lfq.MPSC[*fcontrol.Control]
}

func newRemoteHandle(capacity int) *RemoteHandle {
	r := &RemoteHandle{}
	r.q.Init(capacity)
	return r
}

// Wake requests that c be marked ready on its owning Scheduler's
// thread. Safe to call from any goroutine, including ones not running
// any fiber of their own. Returns iox.ErrWouldBlock if the bounded
// queue is momentarily full; callers should retry with backoff rather
// than treat it as a hard failure.
func (r *RemoteHandle) Wake(c *fcontrol.Control) error {
	return r.q.Enqueue(&c)
}

// drain marks ready every fiber queued since the last drain. Must
// only be called from the owning OS thread (the dispatcher loop).
func (r *RemoteHandle) drain(markReady func(*fcontrol.Control)) {
	for {
		c, err := r.q.Dequeue()
		if err != nil {
			// lfq.IsWouldBlock(err) is the only error this queue
			// returns on a non-blocking Dequeue; either way, there is
			// nothing more to drain right now.
			return
		}
		markReady(c)
	}
}
