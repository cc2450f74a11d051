package cpu

import (
	"runtime"
	"testing"
)

func TestCoreFor(t *testing.T) {
	n := runtime.NumCPU()

	tests := []struct {
		name     string
		workerID int
		want     int
	}{
		{name: "first worker", workerID: 0, want: 0},
		{name: "wraps around core count", workerID: n, want: 0},
		{name: "one past wrap", workerID: n + 1, want: 1 % n},
		{name: "negative id", workerID: -1, want: 1 % n},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CoreFor(tt.workerID); got != tt.want {
				t.Errorf("CoreFor(%d) = %d, want %d", tt.workerID, got, tt.want)
			}
		})
	}
}

func TestSetupWorkerAffinity_ReturnsCleanup(t *testing.T) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		cleanup := SetupWorkerAffinity(1)
		if cleanup == nil {
			t.Error("expected a cleanup function")
			return
		}
		cleanup()
	}()
	<-done
}
