//go:build linux

package cpu

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// pin restricts the current OS thread to a single core.
// Must be called after runtime.LockOSThread().
func pin(core int) error {
	var set unix.CPUSet
	set.Zero()
	set.Set(core)
	return unix.SchedSetaffinity(0, &set) // 0 = current thread
}

// SetupWorkerAffinity locks the calling goroutine to its OS thread and pins that
// thread to the core chosen for workerID. The returned func undoes the lock and
// should be deferred by the worker.
func SetupWorkerAffinity(workerID int) func() {
	runtime.LockOSThread()
	_ = pin(CoreFor(workerID))

	return runtime.UnlockOSThread
}
