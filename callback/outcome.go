// Package callback fans request outcomes out to registered listeners.
package callback

import (
	"errors"
	"fmt"
)

// ErrUnknownOutcome reports an outcome whose kind is none of success, error or cancel.
var ErrUnknownOutcome = errors.New("unknown outcome kind")

// Kind tells which terminal outcome a request reached.
type Kind int

const (
	KindSuccess Kind = iota
	KindError
	KindCancel
)

// Valid reports whether k is one of the three terminal kinds.
func (k Kind) Valid() bool { return k >= KindSuccess && k <= KindCancel }

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindError:
		return "error"
	case KindCancel:
		return "cancel"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Outcome is the terminal result of a request: a value on success, an error on
// failure, or nothing when the request was cancelled.
type Outcome struct {
	Kind  Kind
	Value any
	Err   error
}

// Succeeded returns a success outcome carrying v.
func Succeeded(v any) Outcome { return Outcome{Kind: KindSuccess, Value: v} }

// Failed returns an error outcome carrying err.
func Failed(err error) Outcome { return Outcome{Kind: KindError, Err: err} }

// Canceled returns a cancel outcome.
func Canceled() Outcome { return Outcome{Kind: KindCancel} }

func (o Outcome) String() string {
	switch o.Kind {
	case KindSuccess:
		return fmt.Sprintf("success(%v)", o.Value)
	case KindError:
		return fmt.Sprintf("error(%v)", o.Err)
	default:
		return o.Kind.String()
	}
}
