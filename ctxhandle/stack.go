// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ctxhandle

import "code.hybscloud.com/iox"

// Stack is an opaque token naming the memory a fiber's goroutine runs
// on. Go goroutines grow and shrink their own stacks, so Stack carries
// no bytes of its own; it exists so a custom StackAllocator has
// something concrete to hand back and reclaim, matching the external
// collaborator contract a boost::context-style allocator would satisfy.
type Stack struct {
	size int
}

// Size returns the stack's requested size in bytes.
func (s Stack) Size() int {
	return s.size
}

// StackAllocator allocates and deallocates Stack values for worker and
// dispatcher fibers. Allocate must return iox.ErrWouldBlock (or a
// wrapping error satisfying iox.IsWouldBlock) when it is transiently
// out of capacity, so callers can retry with backoff instead of
// treating exhaustion as fatal.
type StackAllocator interface {
	Allocate() (Stack, error)
	Deallocate(Stack)
}

// UnboundedAllocator is the default StackAllocator: it always succeeds
// and tracks nothing, appropriate because the underlying resource is a
// goroutine's own growable stack rather than a fixed arena. Requested
// size is advisory only; it is recorded on the Stack for diagnostics.
type UnboundedAllocator struct {
	StackSize int
}

// Allocate implements StackAllocator.
func (a UnboundedAllocator) Allocate() (Stack, error) {
	sz := a.StackSize
	if sz == 0 {
		sz = 8192
	}
	return Stack{size: sz}, nil
}

// Deallocate implements StackAllocator. It is a no-op: there is
// nothing to return to a pool.
func (a UnboundedAllocator) Deallocate(Stack) {}

// FixedPoolAllocator is a StackAllocator with a bounded number of
// slots, useful for exercising the stack-allocation-failure contract
// in tests without needing a real fixed-size arena.
type FixedPoolAllocator struct {
	StackSize int
	Capacity  int

	outstanding int
}

// Allocate implements StackAllocator, returning iox.ErrWouldBlock once
// Capacity slots are outstanding.
func (a *FixedPoolAllocator) Allocate() (Stack, error) {
	if a.outstanding >= a.Capacity {
		return Stack{}, iox.ErrWouldBlock
	}
	a.outstanding++
	sz := a.StackSize
	if sz == 0 {
		sz = 8192
	}
	return Stack{size: sz}, nil
}

// Deallocate implements StackAllocator, returning a slot to the pool.
func (a *FixedPoolAllocator) Deallocate(Stack) {
	if a.outstanding > 0 {
		a.outstanding--
	}
}
