// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fcontrol

// hook is an intrusive doubly-linked-list node embedded directly in
// Control, one per queue a Control can belong to at once (ready,
// sleep, terminate, wait-on-me). Embedding avoids a heap allocation on
// every enqueue, mirroring the boost::intrusive hooks the original
// scheduler links fibers through.
type hook struct {
	prev, next *Control
	inUse      bool
}

// selector extracts the hook a Queue operates over from a Control.
// Each queue kind (ready/sleep/terminate/wait) gets its own selector
// so the same Queue type can be reused over any of Control's four
// hook slots without the queue needing to know which one.
type selector func(*Control) *hook

// ReadyHook selects the ready-queue linkage.
func ReadyHook(c *Control) *hook { return &c.readyHook }

// SleepHook selects the sleep-queue linkage.
func SleepHook(c *Control) *hook { return &c.sleepHook }

// TerminateHook selects the terminate-queue linkage.
func TerminateHook(c *Control) *hook { return &c.terminateHook }

// WaitHook selects the linkage used by a Control's own wait queue
// (the set of fibers blocked in Join on this Control).
func WaitHook(c *Control) *hook { return &c.waitHook }

// Queue is an intrusive FIFO (or, via InsertSorted, ordered) list over
// one hook slot of Control. The zero Queue is not usable; construct
// with NewQueue.
type Queue struct {
	head, tail *Control
	sel        selector
}

// NewQueue constructs an empty Queue over the hook selected by sel.
func NewQueue(sel selector) Queue {
	return Queue{sel: sel}
}

// Empty reports whether the queue has no entries.
func (q *Queue) Empty() bool {
	return q.head == nil
}

// Front returns the head of the queue without removing it, or nil if
// the queue is empty.
func (q *Queue) Front() *Control {
	return q.head
}

// PushBack appends c to the tail of the queue. It panics if c is
// already linked into this hook slot — a fiber can only be on one
// ready/sleep/terminate queue at a time.
func (q *Queue) PushBack(c *Control) {
	h := q.sel(c)
	if h.inUse {
		panic("fcontrol: control already linked into this queue")
	}
	h.inUse = true
	h.prev, h.next = q.tail, nil
	if q.tail != nil {
		q.sel(q.tail).next = c
	} else {
		q.head = c
	}
	q.tail = c
}

// PopFront removes and returns the head of the queue, or nil if empty.
func (q *Queue) PopFront() *Control {
	c := q.head
	if c == nil {
		return nil
	}
	q.Remove(c)
	return c
}

// Remove unlinks c from the queue. It is a no-op if c is not
// currently linked into this hook slot.
func (q *Queue) Remove(c *Control) {
	h := q.sel(c)
	if !h.inUse {
		return
	}
	if h.prev != nil {
		q.sel(h.prev).next = h.next
	} else {
		q.head = h.next
	}
	if h.next != nil {
		q.sel(h.next).prev = h.prev
	} else {
		q.tail = h.prev
	}
	h.prev, h.next, h.inUse = nil, nil, false
}

// Linked reports whether c is currently linked into this hook slot.
func (q *Queue) Linked(c *Control) bool {
	return q.sel(c).inUse
}

// InsertSorted inserts c in the position such that before(prior, c)
// holds for every entry prior to c's insertion point, scanning from
// the head. c goes in front of the first entry for which before
// reports false relative to c; entries for which it reports true are
// kept ahead of it, so with a before that is true for equal keys,
// entries that compare equal keep insertion (FIFO) order — required
// for the sleep queue's wake-time tie break.
func (q *Queue) InsertSorted(c *Control, before func(existing, c *Control) bool) {
	h := q.sel(c)
	if h.inUse {
		panic("fcontrol: control already linked into this queue")
	}
	h.inUse = true

	cur := q.head
	for cur != nil && before(cur, c) {
		cur = q.sel(cur).next
	}
	if cur == nil {
		// append at tail
		h.prev, h.next = q.tail, nil
		if q.tail != nil {
			q.sel(q.tail).next = c
		} else {
			q.head = c
		}
		q.tail = c
		return
	}
	prev := q.sel(cur).prev
	h.prev, h.next = prev, cur
	q.sel(cur).prev = c
	if prev != nil {
		q.sel(prev).next = c
	} else {
		q.head = c
	}
}
