//go:build !linux && !darwin && !windows

package cpu

import "runtime"

// SetupWorkerAffinity only locks the goroutine to an OS thread on this platform.
func SetupWorkerAffinity(workerID int) func() {
	runtime.LockOSThread()
	return runtime.UnlockOSThread
}
