package callback

import "fmt"

// Listener receives the terminal outcome of every request it was registered
// for. Exactly one method is called per outcome.
type Listener[D any] interface {
	OnSuccess(d D, value any)
	OnError(d D, err error)
	OnCancel(d D)
}

// Funcs adapts plain functions to Listener. Nil fields are skipped.
// Register it by pointer so Remove can find the same registration.
type Funcs[D any] struct {
	Success func(d D, value any)
	Error   func(d D, err error)
	Cancel  func(d D)
}

func (f *Funcs[D]) OnSuccess(d D, value any) {
	if f.Success != nil {
		f.Success(d, value)
	}
}

func (f *Funcs[D]) OnError(d D, err error) {
	if f.Error != nil {
		f.Error(d, err)
	}
}

func (f *Funcs[D]) OnCancel(d D) {
	if f.Cancel != nil {
		f.Cancel(d)
	}
}

// Deliver calls the one method of l matching o. An outcome of unknown kind is
// delivered as an error wrapping ErrUnknownOutcome.
func Deliver[D any](l Listener[D], d D, o Outcome) {
	switch o.Kind {
	case KindSuccess:
		l.OnSuccess(d, o.Value)
	case KindError:
		l.OnError(d, o.Err)
	case KindCancel:
		l.OnCancel(d)
	default:
		l.OnError(d, fmt.Errorf("%w: %v", ErrUnknownOutcome, o.Kind))
	}
}
