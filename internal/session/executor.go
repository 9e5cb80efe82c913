package session

// executor runs submitted tasks one at a time, in submission order. The
// session owns two of these: a presentation executor that delivers UI-facing
// callbacks, and a worker executor that performs buffer extraction, scoring
// and file I/O. Serializing each lane keeps registry and store mutations for
// a given fragment id monotonic in event-arrival order without per-structure
// locking on the hot path.
type executor struct {
	tasks chan func()
	done  chan struct{}
}

func newExecutor(buffer int) *executor {
	e := &executor{
		tasks: make(chan func(), buffer),
		done:  make(chan struct{}),
	}
	go e.run()
	return e
}

func (e *executor) run() {
	defer close(e.done)
	for task := range e.tasks {
		task()
	}
}

// submit enqueues a task. Blocks when the queue is full; the buffer is sized
// so this only happens when a consumer has stalled outright.
func (e *executor) submit(task func()) {
	e.tasks <- task
}

// barrier blocks until every task submitted before it has run.
func (e *executor) barrier() {
	done := make(chan struct{})
	e.tasks <- func() { close(done) }
	<-done
}

// close stops accepting tasks and waits for the queue to drain.
func (e *executor) close() {
	close(e.tasks)
	<-e.done
}
