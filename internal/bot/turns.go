package bot

import (
	"context"
	"sync"
)

// turnQueue serializes turns per chat in the order they were reserved.
// Different chats never wait on each other.
type turnQueue struct {
	mu    sync.Mutex
	tails map[int64]*turnSlot
}

type turnSlot struct {
	prev <-chan struct{}
	done chan struct{}
}

func newTurnQueue() *turnQueue {
	return &turnQueue{tails: make(map[int64]*turnSlot)}
}

// reserve takes the next place in chatID's queue. It never blocks.
func (q *turnQueue) reserve(chatID int64) *turnSlot {
	q.mu.Lock()
	defer q.mu.Unlock()

	slot := &turnSlot{done: make(chan struct{})}
	if tail, ok := q.tails[chatID]; ok {
		slot.prev = tail.done
	}
	q.tails[chatID] = slot

	return slot
}

// release hands the chat over to the next reserved turn. A slot released
// before its predecessors finished (its wait was cancelled) only takes
// effect once they have.
func (q *turnQueue) release(chatID int64, slot *turnSlot) {
	if slot.prev != nil {
		select {
		case <-slot.prev:
		default:
			go func() {
				<-slot.prev
				q.finish(chatID, slot)
			}()
			return
		}
	}
	q.finish(chatID, slot)
}

func (q *turnQueue) finish(chatID int64, slot *turnSlot) {
	q.mu.Lock()
	if q.tails[chatID] == slot {
		delete(q.tails, chatID)
	}
	q.mu.Unlock()

	close(slot.done)
}

// wait blocks until every turn reserved before slot has been released.
func (s *turnSlot) wait(ctx context.Context) error {
	if s.prev == nil {
		return nil
	}
	select {
	case <-s.prev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *turnQueue) pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tails)
}
