package realtime

import "sync"

const loopQueueSize = 1024

// loop runs queued functions one at a time on a single goroutine.
type loop struct {
	q        chan func()
	done     chan struct{}
	stopOnce sync.Once
}

func newLoop(queueSize int) *loop {
	if queueSize <= 0 {
		queueSize = loopQueueSize
	}
	l := &loop{
		q:    make(chan func(), queueSize),
		done: make(chan struct{}),
	}
	go l.run()
	return l
}

func (l *loop) run() {
	for {
		select {
		case <-l.done:
			return
		case fn := <-l.q:
			select {
			case <-l.done:
				return
			default:
			}
			if fn != nil {
				fn()
			}
		}
	}
}

// do queues fn and reports whether it was accepted. Functions queued after
// stop are dropped.
func (l *loop) do(fn func()) bool {
	if fn == nil {
		return true
	}
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case <-l.done:
		return false
	case l.q <- fn:
		return true
	}
}

// call queues fn and waits for it to run. It must not be used from the loop goroutine.
func (l *loop) call(fn func()) bool {
	ran := make(chan struct{})
	if !l.do(func() { fn(); close(ran) }) {
		return false
	}
	select {
	case <-ran:
		return true
	case <-l.done:
		return false
	}
}

// stop ends the loop without waiting. Safe to call from a queued function.
func (l *loop) stop() {
	l.stopOnce.Do(func() { close(l.done) })
}
