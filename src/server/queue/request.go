// Package queue schedules requests to the analysis server.
//
// Requests are sorted into three priority classes. Each class has its own
// FIFO of pending requests and a bounded set of dispatched requests waiting
// for a response, keyed by the sequence id the transport assigned. The
// Collection drains the classes into the transport under these rules:
//
//   - a waiting Priority request blocks every class until it completes
//   - Priority work is drained alone; Normal and Deferred wait for the next pass
//   - Normal is drained before Deferred within a pass
//
// Nothing in this package is safe for concurrent use. The owner of the
// server connection serialises every call.
package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrCancelled matches every cancellation failure delivered by this package
var ErrCancelled = errors.New("request cancelled")

// CancelledError is delivered to OnError when a pending request is cancelled
type CancelledError struct {
	Command string
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("Pending request cancelled: %s", e.Command)
}

// Is lets errors.Is(err, ErrCancelled) match any CancelledError
func (e *CancelledError) Is(target error) bool {
	return target == ErrCancelled
}

// Request is one unit of work for the analysis server.
// Exactly one of OnSuccess or OnError is called, exactly once, unless the
// request is dispatched and the server never answers.
type Request struct {
	Command   string
	Data      interface{}
	OnSuccess func(body json.RawMessage)
	OnError   func(err error)

	// StartTime is stamped at dispatch, EndTime by the owner on completion
	StartTime time.Time
	EndTime   time.Time
}

// NewRequest creates a request with both callbacks set
func NewRequest(command string, data interface{}, onSuccess func(json.RawMessage), onError func(error)) *Request {
	return &Request{
		Command:   command,
		Data:      data,
		OnSuccess: onSuccess,
		OnError:   onError,
	}
}

// Succeed invokes OnSuccess if set
func (r *Request) Succeed(body json.RawMessage) {
	if r.OnSuccess != nil {
		r.OnSuccess(body)
	}
}

// Fail invokes OnError if set
func (r *Request) Fail(err error) {
	if r.OnError != nil {
		r.OnError(err)
	}
}

// Elapsed is the dispatch-to-completion time, zero until both stamps are set
func (r *Request) Elapsed() time.Duration {
	if r.StartTime.IsZero() || r.EndTime.IsZero() {
		return 0
	}
	return r.EndTime.Sub(r.StartTime)
}

// DispatchFunc hands a request to the server and returns its sequence id.
// It must not block waiting for the response.
type DispatchFunc func(r *Request) (int, error)
