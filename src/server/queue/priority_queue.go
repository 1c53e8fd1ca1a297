package queue

import "time"

// PriorityQueue holds the requests of one priority class: a FIFO of pending
// requests and at most maxConcurrency dispatched ones awaiting a response.
type PriorityQueue struct {
	name           string
	maxConcurrency int
	dispatch       DispatchFunc
	sink           EventSink
	now            func() time.Time

	pending []*Request
	waiting map[int]*Request
}

// NewPriorityQueue creates a queue. maxConcurrency below 1 is raised to 1.
func NewPriorityQueue(name string, maxConcurrency int, dispatch DispatchFunc, sink EventSink) *PriorityQueue {
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	if sink == nil {
		sink = NopSink
	}
	return &PriorityQueue{
		name:           name,
		maxConcurrency: maxConcurrency,
		dispatch:       dispatch,
		sink:           sink,
		now:            time.Now,
		waiting:        make(map[int]*Request),
	}
}

// Name returns the class label
func (q *PriorityQueue) Name() string { return q.name }

// MaxConcurrency returns the cap on waiting requests
func (q *PriorityQueue) MaxConcurrency() int { return q.maxConcurrency }

// PendingCount returns the number of undispatched requests
func (q *PriorityQueue) PendingCount() int { return len(q.pending) }

// WaitingCount returns the number of dispatched, unanswered requests
func (q *PriorityQueue) WaitingCount() int { return len(q.waiting) }

// Enqueue appends a request to the pending FIFO
func (q *PriorityQueue) Enqueue(r *Request) {
	q.sink.Emit(Event{Kind: EventEnqueue, Queue: q.name, Command: r.Command})
	q.pending = append(q.pending, r)
}

// DequeueCompleted removes and returns the waiting request with the given id.
// Unknown ids return nil; late responses for abandoned requests end up here.
func (q *PriorityQueue) DequeueCompleted(id int) *Request {
	r, ok := q.waiting[id]
	if !ok {
		return nil
	}
	delete(q.waiting, id)
	q.sink.Emit(Event{Kind: EventDequeue, Queue: q.name, Command: r.Command, ID: id})
	return r
}

// Cancel removes a pending request and fails it with a CancelledError.
// It reports whether the request was found. Requests already dispatched
// cannot be cancelled: there is no cancel message to the server, so they
// stay in waiting until their response arrives.
func (q *PriorityQueue) Cancel(r *Request) bool {
	for i, p := range q.pending {
		if p != r {
			continue
		}
		q.pending = append(q.pending[:i], q.pending[i+1:]...)
		r.Fail(&CancelledError{Command: r.Command})
		return true
	}
	return false
}

// HasPending reports whether any request awaits dispatch
func (q *PriorityQueue) HasPending() bool {
	return len(q.pending) > 0
}

// IsFull reports whether no more requests may be dispatched
func (q *PriorityQueue) IsFull() bool {
	return len(q.waiting) >= q.maxConcurrency
}

// DrainPending dispatches pending requests in FIFO order until the queue is
// full or empty. A dispatch error stops the batch: the failed request leaves
// the queue, its OnError receives the error, and the error is returned.
func (q *PriorityQueue) DrainPending() error {
	return q.drainPending(len(q.pending))
}

// drainPending dispatches at most limit requests. Requests enqueued by the
// dispatch function itself land behind the limit and wait for the next drain.
func (q *PriorityQueue) drainPending(limit int) error {
	q.sink.Emit(Event{Kind: EventDrainStart, Queue: q.name})
	defer q.sink.Emit(Event{Kind: EventDrainComplete, Queue: q.name})

	slots := q.maxConcurrency - len(q.waiting)
	for i := 0; i < slots && i < limit && len(q.pending) > 0; i++ {
		r := q.pending[0]
		q.pending[0] = nil
		q.pending = q.pending[1:]

		r.StartTime = q.now()
		id, err := q.dispatch(r)
		if err != nil {
			r.Fail(err)
			return err
		}
		q.waiting[id] = r

		if q.IsFull() {
			break
		}
	}
	return nil
}

// Clear empties the queue, returning pending requests in FIFO order followed
// by waiting requests in unspecified order. No callbacks are invoked.
func (q *PriorityQueue) Clear() []*Request {
	out := make([]*Request, 0, len(q.pending)+len(q.waiting))
	out = append(out, q.pending...)
	for id, r := range q.waiting {
		out = append(out, r)
		delete(q.waiting, id)
	}
	q.pending = nil
	return out
}
