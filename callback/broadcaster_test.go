package callback

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

type recorder struct {
	name   string
	mu     *sync.Mutex
	events *[]string
}

func (r recorder) add(e string) {
	r.mu.Lock()
	*r.events = append(*r.events, r.name+":"+e)
	r.mu.Unlock()
}

func (r recorder) OnSuccess(d string, v any) { r.add(fmt.Sprintf("success:%s:%v", d, v)) }
func (r recorder) OnError(d string, err error) { r.add(fmt.Sprintf("error:%s:%v", d, err)) }
func (r recorder) OnCancel(d string) { r.add("cancel:" + d) }

func newRecorders(names ...string) ([]recorder, func() []string) {
	var mu sync.Mutex
	events := []string{}
	out := make([]recorder, len(names))
	for i, n := range names {
		out[i] = recorder{name: n, mu: &mu, events: &events}
	}
	return out, func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), events...)
	}
}

func TestBroadcaster_NewestFirst(t *testing.T) {
	rs, events := newRecorders("L1", "L2")
	var b Broadcaster[string]
	b.Register(rs[0])
	b.Register(rs[1])

	b.Broadcast("r1", Succeeded(42))

	got := events()
	want := []string{"L2:success:r1:42", "L1:success:r1:42"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestBroadcaster_ExactlyOneMethodPerOutcome(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name    string
		outcome Outcome
		want    string
	}{
		{"success", Succeeded("ok"), "L:success:r:ok"},
		{"error", Failed(boom), "L:error:r:boom"},
		{"cancel", Canceled(), "L:cancel:r"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs, events := newRecorders("L")
			var b Broadcaster[string]
			b.Register(rs[0])

			b.Broadcast("r", tt.outcome)

			got := events()
			if len(got) != 1 || got[0] != tt.want {
				t.Errorf("expected [%s], got %v", tt.want, got)
			}
		})
	}
}

func TestBroadcaster_Duplicates(t *testing.T) {
	var count int
	l := &Funcs[string]{Cancel: func(string) { count++ }}

	var b Broadcaster[string]
	b.Register(l)
	b.Register(l)
	if b.Len() != 2 {
		t.Fatalf("expected 2 registrations, got %d", b.Len())
	}

	b.Broadcast("r", Canceled())
	if count != 2 {
		t.Errorf("expected 2 notifications, got %d", count)
	}

	b.Remove(l)
	count = 0
	b.Broadcast("r", Canceled())
	if count != 1 {
		t.Errorf("expected one registration left, got %d notifications", count)
	}
}

func TestBroadcaster_Remove(t *testing.T) {
	rs, events := newRecorders("L1", "L2", "L3")
	var b Broadcaster[string]
	b.Register(rs[0])
	b.Register(rs[1])

	b.Remove(rs[2])
	if b.Len() != 2 {
		t.Fatalf("removing an unknown listener changed the set: %d", b.Len())
	}

	b.Remove(rs[0])
	b.Broadcast("r", Canceled())
	if got := events(); len(got) != 1 || got[0] != "L2:cancel:r" {
		t.Errorf("expected only L2, got %v", got)
	}

	b.Register(nil)
	b.Clear()
	if b.Len() != 0 {
		t.Errorf("expected no listeners after Clear, got %d", b.Len())
	}
}

func TestBroadcaster_PanickingListener(t *testing.T) {
	rs, events := newRecorders("L1", "L2")
	logger, hook := test.NewNullLogger()

	var b Broadcaster[string]
	b.SetLogger(logger)
	b.Register(rs[0])
	b.Register(&Funcs[string]{Success: func(string, any) { panic("listener bug") }})
	b.Register(rs[1])

	b.Broadcast("r", Succeeded(1))

	got := events()
	want := []string{"L2:success:r:1", "L1:success:r:1"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("expected %v, got %v", want, got)
	}

	entry := hook.LastEntry()
	if entry == nil || entry.Level != logrus.ErrorLevel {
		t.Fatalf("expected an error entry, got %v", entry)
	}
	if entry.Data["panic"] != "listener bug" {
		t.Errorf("unexpected panic field %v", entry.Data["panic"])
	}
}

// tagged has an uncomparable dynamic type.
type tagged []string

func (tagged) OnSuccess(string, any) {}
func (tagged) OnError(string, error) {}
func (tagged) OnCancel(string) {}

func TestBroadcaster_RemoveUncomparable(t *testing.T) {
	rs, _ := newRecorders("L1")
	var b Broadcaster[string]
	b.Register(tagged{"a"})
	b.Register(tagged{"b"})
	b.Register(rs[0])

	b.Remove(tagged{"c"})
	b.Remove(tagged{"a"})
	if b.Len() != 3 {
		t.Fatalf("uncomparable listeners never match, expected 3 registrations, got %d", b.Len())
	}

	b.Remove(rs[0])
	if b.Len() != 2 {
		t.Errorf("expected 2 registrations, got %d", b.Len())
	}
}

func TestDeliver_UnknownKind(t *testing.T) {
	var got error
	calls := 0
	l := &Funcs[string]{
		Success: func(string, any) { calls++ },
		Error: func(_ string, err error) {
			calls++
			got = err
		},
		Cancel: func(string) { calls++ },
	}

	Deliver[string](l, "r", Outcome{Kind: Kind(7)})

	if calls != 1 {
		t.Fatalf("expected exactly one callback, got %d", calls)
	}
	if !errors.Is(got, ErrUnknownOutcome) {
		t.Errorf("expected ErrUnknownOutcome, got %v", got)
	}
	if Kind(7).Valid() || !KindCancel.Valid() {
		t.Error("unexpected Valid result")
	}
}

func TestBroadcaster_Concurrent(t *testing.T) {
	var mu sync.Mutex
	total := 0
	l := &Funcs[int]{Success: func(int, any) {
		mu.Lock()
		total++
		mu.Unlock()
	}}

	var b Broadcaster[int]
	b.Register(l)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			b.Broadcast(i, Succeeded(i))
		}(i)
	}
	wg.Wait()

	if total != 20 {
		t.Errorf("expected 20 notifications, got %d", total)
	}
}

func TestFuncs_NilFieldsAreSkipped(t *testing.T) {
	var l Funcs[string]
	Deliver[string](&l, "r", Succeeded(nil))
	Deliver[string](&l, "r", Failed(errors.New("x")))
	Deliver[string](&l, "r", Canceled())
}

func TestOutcome_String(t *testing.T) {
	tests := []struct {
		o    Outcome
		want string
	}{
		{Succeeded(1), "success(1)"},
		{Failed(errors.New("bad")), "error(bad)"},
		{Canceled(), "cancel"},
	}
	for _, tt := range tests {
		if got := tt.o.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
	if got := Kind(7).String(); got != "Kind(7)" {
		t.Errorf("unexpected kind string %q", got)
	}
}
