package pool

// Task is a unit of work executed by a worker goroutine.
type Task interface {
	Run()
}

// TaskFunc adapts a plain function to the Task interface.
type TaskFunc func()

// Run calls f().
func (f TaskFunc) Run() { f() }

// Rejecter is implemented by tasks that need to know when an executor refuses them.
// Tasks that are rejected without implementing it are simply dropped after the
// pool's OnReject hook has seen them.
type Rejecter interface {
	Reject(err error)
}

// Executor runs tasks asynchronously. Execute must not block the caller: when a
// task cannot be accepted it returns an error wrapping ErrRejected instead.
//
// Both *WorkerPool and the serial queue executors implement Executor, so a named
// queue can be layered on top of any pool.
type Executor interface {
	Execute(task Task) error
}

// Reject tells task that it was refused with err, if the task cares.
func Reject(task Task, err error) {
	if r, ok := task.(Rejecter); ok {
		r.Reject(err)
	}
}
