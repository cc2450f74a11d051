// Package cpu pins pool worker goroutines to CPU cores.
package cpu

import "runtime"

// CoreFor maps a worker id onto a core index in [0, runtime.NumCPU()).
func CoreFor(workerID int) int {
	n := runtime.NumCPU()
	if workerID < 0 {
		workerID = -workerID
	}
	return workerID % n
}
