// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ctxhandle_test

import (
	"testing"
	"time"

	"code.hybscloud.com/fiber/ctxhandle"
)

func TestResumeRoundTrip(t *testing.T) {
	main := ctxhandle.NewStub()

	var ran bool
	var worker ctxhandle.Handle
	worker = ctxhandle.New(func(caller ctxhandle.Handle) {
		ran = true
		ctxhandle.Resume(caller, worker)
	})

	ctxhandle.Resume(worker, main)

	if !ran {
		t.Fatal("worker entry did not run")
	}
}

func TestMultipleSwitches(t *testing.T) {
	main := ctxhandle.NewStub()
	order := make([]string, 0, 4)

	var w ctxhandle.Handle
	w = ctxhandle.New(func(caller ctxhandle.Handle) {
		order = append(order, "w1")
		ctxhandle.Resume(caller, w)
		order = append(order, "w2")
		ctxhandle.Resume(caller, w)
	})

	order = append(order, "m1")
	ctxhandle.Resume(w, main)
	order = append(order, "m2")
	ctxhandle.Resume(w, main)

	want := []string{"m1", "w1", "m2", "w2"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

// TestWakeUnblocksParkedResume exercises the destruction contract: a
// fiber that has switched away for the last time is sitting blocked
// inside Resume, and only Wake — never another Resume — will ever
// reach it again.
func TestWakeUnblocksParkedResume(t *testing.T) {
	main := ctxhandle.NewStub()
	finished := make(chan struct{})

	var w ctxhandle.Handle
	w = ctxhandle.New(func(caller ctxhandle.Handle) {
		ctxhandle.Resume(caller, w)
		close(finished)
	})

	go func() {
		ctxhandle.Resume(w, main)
	}()

	time.Sleep(10 * time.Millisecond) // let the goroutine park inside Resume

	ctxhandle.Wake(w)
	<-finished
}

func TestIsEmpty(t *testing.T) {
	var h ctxhandle.Handle
	if !h.IsEmpty() {
		t.Fatal("zero Handle should be empty")
	}
	if ctxhandle.NewStub().IsEmpty() {
		t.Fatal("NewStub should not be empty")
	}
}
