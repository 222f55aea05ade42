// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fiber_test

import (
	"testing"
	"time"

	"code.hybscloud.com/fiber"
)

// TestNoDeadlockUnderMixedWorkload runs a scenario mixing spawns,
// yields, sleeps and joins on a background goroutine and asserts it
// completes within a bounded window. It guards against a regression
// reintroducing a self-switch or wake-ordering deadlock: if Preempt,
// Terminate or Close ever block on a channel nothing is left to
// signal, this test hangs instead of failing a plain assertion, and
// the deadline below turns that hang into a reported failure.
func TestNoDeadlockUnderMixedWorkload(t *testing.T) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer fiber.Close()

		const n = 20
		workers := make([]*fiber.Control, 0, n)
		var order []int
		past := time.Unix(0, 0)

		for i := 0; i < n; i++ {
			i := i
			w, err := fiber.Go("w", func() {
				fiber.Yield()
				fiber.WaitUntil(past)
				order = append(order, i)
			})
			if err != nil {
				t.Errorf("fiber.Go: %v", err)
				return
			}
			workers = append(workers, w)
		}

		for _, w := range workers {
			w.Join()
		}

		if len(order) != n {
			t.Errorf("order has %d entries, want %d", len(order), n)
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("mixed workload did not complete within the deadline — likely deadlock")
	}
}
