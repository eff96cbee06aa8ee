package control

import (
	"context"
	"sync"
)

// mailbox is an unbounded FIFO with many senders and one receiver. Handlers
// post to their own mailbox, so push must never block.
type mailbox struct {
	mu    sync.Mutex
	queue []Message
	ready chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{ready: make(chan struct{}, 1)}
}

func (m *mailbox) push(msg Message) {
	m.mu.Lock()
	m.queue = append(m.queue, msg)
	m.mu.Unlock()

	select {
	case m.ready <- struct{}{}:
	default:
	}
}

// pop blocks until a message is queued or ctx is done.
func (m *mailbox) pop(ctx context.Context) (Message, error) {
	for {
		m.mu.Lock()
		if len(m.queue) > 0 {
			msg := m.queue[0]
			m.queue[0] = nil
			m.queue = m.queue[1:]
			m.mu.Unlock()
			return msg, nil
		}
		m.mu.Unlock()

		select {
		case <-m.ready:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (m *mailbox) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}
