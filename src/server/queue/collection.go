package queue

import "analysis-broker/internal/constants"

// Collection routes requests to one PriorityQueue per class and drains them
// into the transport.
type Collection struct {
	queues   [3]*PriorityQueue
	draining bool
}

// NewCollection creates the three class queues. Priority is capped at one
// in-flight request, Normal at concurrency, Deferred at max(concurrency/4, 2).
func NewCollection(concurrency int, dispatch DispatchFunc, sink EventSink) *Collection {
	if concurrency < 1 {
		concurrency = constants.DefaultConcurrency
	}
	c := &Collection{}
	c.queues[Priority] = NewPriorityQueue(Priority.String(), constants.PriorityConcurrency, dispatch, sink)
	c.queues[Normal] = NewPriorityQueue(Normal.String(), concurrency, dispatch, sink)
	c.queues[Deferred] = NewPriorityQueue(Deferred.String(), constants.DeferredConcurrency(concurrency), dispatch, sink)
	return c
}

// Queue returns the queue serving a class
func (c *Collection) Queue(class Class) *PriorityQueue {
	return c.queues[class]
}

func (c *Collection) queueFor(command string) *PriorityQueue {
	return c.queues[Classify(command)]
}

// Enqueue routes the request to its class and attempts a drain
func (c *Collection) Enqueue(r *Request) error {
	c.queueFor(r.Command).Enqueue(r)
	return c.Drain()
}

// Dequeue removes the waiting request answered by a response for command/id.
// It does not drain; the caller drains after running the request's callback.
func (c *Collection) Dequeue(command string, id int) *Request {
	return c.queueFor(command).DequeueCompleted(id)
}

// Cancel cancels a pending request, reporting whether it was found
func (c *Collection) Cancel(r *Request) bool {
	return c.queueFor(r.Command).Cancel(r)
}

// IsEmpty reports whether no class has pending work. Waiting requests are
// not considered.
func (c *Collection) IsEmpty() bool {
	for _, q := range c.queues {
		if q.HasPending() {
			return false
		}
	}
	return true
}

// Drain dispatches as much pending work as the class caps allow.
// A call made while a drain is running returns immediately; the next
// enqueue or completion retries.
func (c *Collection) Drain() error {
	if c.draining {
		return nil
	}

	priority, normal, deferred := c.queues[Priority], c.queues[Normal], c.queues[Deferred]

	// An outstanding priority request holds the server exclusively
	if priority.IsFull() {
		return nil
	}
	if normal.IsFull() && deferred.IsFull() {
		return nil
	}

	c.draining = true
	defer func() { c.draining = false }()

	// Work enqueued by dispatch during this pass waits for the next drain
	var limits [3]int
	for class, q := range c.queues {
		limits[class] = q.PendingCount()
	}

	if priority.HasPending() {
		return priority.drainPending(limits[Priority])
	}

	if normal.HasPending() {
		if err := normal.drainPending(limits[Normal]); err != nil {
			return err
		}
	}
	if deferred.HasPending() {
		if err := deferred.drainPending(limits[Deferred]); err != nil {
			return err
		}
	}
	return nil
}

// Clear removes every pending and waiting request from all classes without
// invoking callbacks. The owner uses it when the server connection goes away.
func (c *Collection) Clear() []*Request {
	var out []*Request
	for _, q := range c.queues {
		out = append(out, q.Clear()...)
	}
	return out
}

// Stats is a point-in-time view of one class
type Stats struct {
	Class          Class
	Pending        int
	Waiting        int
	MaxConcurrency int
}

// Stats reports every class in precedence order
func (c *Collection) Stats() []Stats {
	out := make([]Stats, 0, len(c.queues))
	for _, class := range Classes {
		q := c.queues[class]
		out = append(out, Stats{
			Class:          class,
			Pending:        q.PendingCount(),
			Waiting:        q.WaitingCount(),
			MaxConcurrency: q.MaxConcurrency(),
		})
	}
	return out
}
