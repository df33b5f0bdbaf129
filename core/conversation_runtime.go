package orchestration

import (
	"sync"
	"sync/atomic"
	"time"
)

type queuedEvent struct {
	event    any
	queuedAt time.Time
}

// conversationRuntime serializes everything that touches the session onto a
// single loop goroutine. Posting never blocks, so collaborators may post from
// their own callbacks and the loop may post to itself.
type conversationRuntime struct {
	mu     sync.Mutex
	queue  []queuedEvent
	notify chan struct{}

	closeCh chan struct{}
	done    chan struct{}

	startOnce sync.Once
	endOnce   sync.Once

	started atomic.Bool
}

func newConversationRuntime() *conversationRuntime {
	return &conversationRuntime{
		notify:  make(chan struct{}, 1),
		closeCh: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

func (runtime *conversationRuntime) start(handle func(queuedEvent)) (started bool) {
	if runtime.isClosed() {
		return false
	}

	runtime.startOnce.Do(func() {
		if runtime.isClosed() {
			return
		}

		started = true
		runtime.started.Store(true)
		go func() {
			defer close(runtime.done)

			for {
				select {
				case <-runtime.closeCh:
					return
				case <-runtime.notify:
					for {
						if runtime.isClosed() {
							return
						}
						item, ok := runtime.pop()
						if !ok {
							break
						}
						handle(item)
					}
				}
			}
		}()
	})

	return started
}

func (runtime *conversationRuntime) end() {
	runtime.endOnce.Do(func() {
		close(runtime.closeCh)
	})
}

func (runtime *conversationRuntime) waitUntilEnded() {
	if runtime.started.Load() {
		<-runtime.done
	}
}

// post queues an event for the loop. Events posted before the loop starts are
// handled once it does.
func (runtime *conversationRuntime) post(event any) bool {
	if runtime.isClosed() {
		return false
	}

	runtime.mu.Lock()
	runtime.queue = append(runtime.queue, queuedEvent{event: event, queuedAt: time.Now()})
	runtime.mu.Unlock()

	select {
	case runtime.notify <- struct{}{}:
	default:
	}
	return true
}

func (runtime *conversationRuntime) pop() (queuedEvent, bool) {
	runtime.mu.Lock()
	defer runtime.mu.Unlock()

	if len(runtime.queue) == 0 {
		return queuedEvent{}, false
	}
	item := runtime.queue[0]
	runtime.queue[0] = queuedEvent{}
	runtime.queue = runtime.queue[1:]
	return item, true
}

func (runtime *conversationRuntime) pending() int {
	runtime.mu.Lock()
	defer runtime.mu.Unlock()
	return len(runtime.queue)
}

func (runtime *conversationRuntime) isClosed() bool {
	select {
	case <-runtime.closeCh:
		return true
	default:
		return false
	}
}
