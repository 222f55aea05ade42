// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package scheduler

import "time"

// WithClockForTest exposes the package-private withClock Option to
// scheduler_test, the same export-seam pattern the teacher's own
// packages use for fields a black-box test needs but callers never
// should.
func WithClockForTest(now func() time.Time) Option {
	return withClock(now)
}
