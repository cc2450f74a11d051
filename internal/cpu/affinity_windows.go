//go:build windows

package cpu

import (
	"runtime"
	"syscall"
)

var (
	kernel32              = syscall.NewLazyDLL("kernel32.dll")
	setThreadAffinityMask = kernel32.NewProc("SetThreadAffinityMask")
	getCurrentThread      = kernel32.NewProc("GetCurrentThread")
)

// pin restricts the current OS thread to a single core.
// Must be called after runtime.LockOSThread().
func pin(core int) error {
	handle, _, _ := getCurrentThread.Call()

	// Bit N = CPU N
	prev, _, err := setThreadAffinityMask.Call(handle, uintptr(1)<<uint(core))
	if prev == 0 {
		return err
	}
	return nil
}

// SetupWorkerAffinity locks the calling goroutine to its OS thread and pins that
// thread to the core chosen for workerID.
func SetupWorkerAffinity(workerID int) func() {
	runtime.LockOSThread()
	_ = pin(CoreFor(workerID))

	return runtime.UnlockOSThread
}
