// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package registry_test

import (
	"testing"

	"code.hybscloud.com/fiber"
	"code.hybscloud.com/fiber/registry"
)

// TestSchedulerLazyConstructionSameGoroutine exercises the one-state-
// per-goroutine contract: repeated calls from the same goroutine return
// the identical Scheduler instance.
func TestSchedulerLazyConstructionSameGoroutine(t *testing.T) {
	defer registry.Close()

	s1 := registry.Scheduler()
	s2 := registry.Scheduler()
	if s1 != s2 {
		t.Fatal("Scheduler() returned different instances on the same goroutine")
	}
}

// TestActiveDefaultsToMain exercises Active's documented fallback: the
// main stub, before anything else has run.
func TestActiveDefaultsToMain(t *testing.T) {
	defer registry.Close()

	sched := registry.Scheduler()
	if got := registry.Active(); got != sched.Main() {
		t.Fatalf("Active() = %v, want the main stub", got)
	}
}

// TestCloseThenCloseAgainPanics exercises the documented contract that
// Close panics when no registry state exists for the calling goroutine.
func TestCloseThenCloseAgainPanics(t *testing.T) {
	registry.Scheduler()
	registry.Close()

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic closing an already-closed goroutine's registry state")
		}
	}()
	registry.Close()
}

// TestGoFromInsideFiberResolvesSameScheduler exercises the adoption
// seam: fiber.Active() and fiber.Go() called from a running worker's
// own body must resolve to the exact Scheduler driving that worker,
// not a freshly, lazily constructed and unrelated one keyed off the
// worker's private goroutine identity.
func TestGoFromInsideFiberResolvesSameScheduler(t *testing.T) {
	defer fiber.Close()

	outer := fiber.CurrentScheduler()

	var innerScheduler *fiber.Scheduler
	var innerActive *fiber.Control
	var childRan bool

	parent, err := fiber.Go("parent", func() {
		innerScheduler = fiber.CurrentScheduler()
		innerActive = fiber.Active()

		child, err := fiber.Go("child", func() {
			childRan = true
		})
		if err != nil {
			t.Errorf("nested fiber.Go: %v", err)
			return
		}
		child.Join()
	})
	if err != nil {
		t.Fatalf("fiber.Go: %v", err)
	}

	parent.Join()

	if innerScheduler != outer {
		t.Fatal("fiber.CurrentScheduler() inside the fiber body resolved to a different Scheduler")
	}
	if innerActive != parent {
		t.Fatal("fiber.Active() inside the fiber body did not return the fiber's own Control")
	}
	if !childRan {
		t.Fatal("nested fiber.Go did not run its child")
	}
}
