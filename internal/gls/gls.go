// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package gls provides goroutine-local storage keyed by a portable
// goroutine identity, used to back the per-OS-thread registry exposed
// by package registry.
//
// Unlike a linkname-derived g pointer, the identity here is parsed out
// of runtime.Stack's header line. It is slower per lookup but needs no
// unsafe or go:linkname, which matters more for a library than the
// lookup cost: registry access is already amortized behind a
// lazily-initialized, goroutine-pinned Scheduler.
package gls

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"
)

// G identifies the calling goroutine for the lifetime of its call stack.
type G uint64

// Current returns the identity of the calling goroutine.
func Current() G {
	return G(goroutineID())
}

func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	b := buf[:n]
	b = bytes.TrimPrefix(b, []byte("goroutine "))
	i := bytes.IndexByte(b, ' ')
	if i < 0 {
		panic("gls: unexpected runtime.Stack header")
	}
	id, err := strconv.ParseUint(string(b[:i]), 10, 64)
	if err != nil {
		panic("gls: " + err.Error())
	}
	return id
}

var (
	mu    sync.RWMutex
	state map[G]any
)

// Load loads the goroutine-local value, or nil if none is stored.
func (g G) Load() any {
	mu.RLock()
	v := state[g]
	mu.RUnlock()
	return v
}

// Store stores v as the goroutine-local value.
func (g G) Store(v any) {
	mu.Lock()
	if state == nil {
		state = make(map[G]any)
	}
	state[g] = v
	mu.Unlock()
}

// Clear removes the goroutine-local value.
func (g G) Clear() {
	mu.Lock()
	delete(state, g)
	mu.Unlock()
}
