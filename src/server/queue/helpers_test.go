package queue

import (
	"encoding/json"
	"errors"
)

// fakeTransport assigns increasing ids and records dispatch order
type fakeTransport struct {
	nextID     int
	dispatched []*Request
	failOn     string
	onDispatch func(r *Request)
}

func (f *fakeTransport) dispatch(r *Request) (int, error) {
	if f.failOn != "" && r.Command == f.failOn {
		return 0, errors.New("broken pipe")
	}
	f.nextID++
	f.dispatched = append(f.dispatched, r)
	if f.onDispatch != nil {
		f.onDispatch(r)
	}
	return f.nextID, nil
}

func (f *fakeTransport) commands() []string {
	out := make([]string, 0, len(f.dispatched))
	for _, r := range f.dispatched {
		out = append(out, r.Command)
	}
	return out
}

// recordingSink keeps every event
type recordingSink struct {
	events []Event
}

func (s *recordingSink) Emit(e Event) {
	s.events = append(s.events, e)
}

func (s *recordingSink) kinds() []EventKind {
	out := make([]EventKind, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.Kind)
	}
	return out
}

// outcome counts callback invocations for one request
type outcome struct {
	successes int
	errs      []error
	body      json.RawMessage
}

func newTrackedRequest(command string) (*Request, *outcome) {
	o := &outcome{}
	r := NewRequest(command, nil,
		func(body json.RawMessage) {
			o.successes++
			o.body = body
		},
		func(err error) {
			o.errs = append(o.errs, err)
		})
	return r, o
}
