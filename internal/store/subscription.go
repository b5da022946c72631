package store

import "sync"

// queue is an unbounded, revision-ordered Subscription. Producers never
// block on a slow consumer; the consumer sees changes in the order they were
// pushed, minus any change older than one already delivered.
type queue struct {
	out    chan Change
	signal chan struct{}
	done   chan struct{}

	mu      sync.Mutex
	pending []Change

	once    sync.Once
	onClose func()
}

func newQueue(onClose func()) *queue {
	q := &queue{
		out:     make(chan Change),
		signal:  make(chan struct{}, 1),
		done:    make(chan struct{}),
		onClose: onClose,
	}
	go q.run()
	return q
}

func (q *queue) push(c Change) {
	q.mu.Lock()
	q.pending = append(q.pending, c)
	q.mu.Unlock()
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

func (q *queue) run() {
	defer close(q.out)
	var last int64
	for {
		select {
		case <-q.done:
			return
		case <-q.signal:
		}

		q.mu.Lock()
		batch := q.pending
		q.pending = nil
		q.mu.Unlock()

		for _, c := range batch {
			if c.Revision <= last {
				continue
			}
			select {
			case q.out <- c:
				last = c.Revision
			case <-q.done:
				return
			}
		}
	}
}

func (q *queue) Changes() <-chan Change { return q.out }

func (q *queue) Close() error {
	q.once.Do(func() {
		close(q.done)
		if q.onClose != nil {
			q.onClose()
		}
	})
	return nil
}
