// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

//go:build linux

package autotune

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// pinCurrentThread locks the calling goroutine to its current OS thread
// and restricts that thread to a single CPU for the duration of a timed
// benchmark loop, reducing scheduler-induced jitter in the
// micro-benchmark loop. unpin restores the thread's previous CPU set and
// unlocks it. Best effort: a sandboxed or containerized host
// may deny sched_setaffinity(2), in which case the timed loop simply
// runs unpinned rather than failing the tune.
func pinCurrentThread() (unpin func()) {
	runtime.LockOSThread()
	var prev unix.CPUSet
	havePrev := unix.SchedGetaffinity(0, &prev) == nil
	var set unix.CPUSet
	set.Zero()
	set.Set(0)
	_ = unix.SchedSetaffinity(0, &set)
	return func() {
		if havePrev {
			_ = unix.SchedSetaffinity(0, &prev)
		}
		runtime.UnlockOSThread()
	}
}
