// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package fiber provides a user-space, stackful, cooperatively
// scheduled fiber runtime: many fibers multiplexed onto one OS thread
// (one goroutine, in this port — see package registry), switching via
// an explicit machine-context primitive rather than the Go scheduler's
// own preemption.
//
// # Architecture
//
//   - Machine context: [code.hybscloud.com/fiber/ctxhandle] implements
//     the one-shot resumable handoff each switch spends.
//   - Fiber state: [code.hybscloud.com/fiber/fcontrol] is the
//     reference-counted, intrusively-queueable control block per
//     fiber, with Start/Join/Terminate/SwitchTo.
//   - Per-thread scheduling: [code.hybscloud.com/fiber/scheduler] owns
//     the ready/sleep/terminate queues and drives preemption.
//   - The dispatcher fiber: [code.hybscloud.com/fiber/dispatcher] runs
//     whenever the ready queue is empty, either the default adaptive
//     backoff loop or an installed custom algorithm.
//   - Thread registry: [code.hybscloud.com/fiber/registry] lazily
//     constructs one main stub + Scheduler + dispatcher per calling
//     goroutine.
//
// # API Topologies
//
//   - Lifecycle: [Go] starts a worker fiber; [*fcontrol.Control.Join]
//     and [*fcontrol.Control.Terminate] end its life on either side.
//   - Ambient: [Active] and [SetCustomDispatcher] operate on whichever
//     goroutine's registry state is calling them, mirroring the
//     original scheduler's thread-local fiber_active()/
//     set_custom_dispatch() surface.
//   - Sleeping: [WaitUntil] parks the calling fiber on its Scheduler's
//     sleep queue.
//   - Cross-thread: [code.hybscloud.com/fiber/scheduler.RemoteHandle]
//     lets other goroutines request a wakeup without touching a
//     foreign Scheduler's queues directly.
package fiber
