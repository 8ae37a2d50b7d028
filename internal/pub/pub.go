// Package pub fans published measurement batches out to in-process
// subscribers. Delivery is non-blocking: a subscriber that cannot keep up
// with the packet rate drops batches rather than stalling the delivery path.
package pub

import (
	"sync"

	"github.com/google/uuid"

	"github.com/banshee-data/vectornav/internal/msg"
)

// Publisher distributes record batches to subscribers.
type Publisher struct {
	mu          sync.Mutex
	subscribers map[string]chan msg.Batch
	closing     bool

	published uint64
	dropped   uint64
}

// NewPublisher returns an empty publisher.
func NewPublisher() *Publisher {
	return &Publisher{subscribers: make(map[string]chan msg.Batch)}
}

// Subscribe registers a new subscriber and returns its ID and channel. The
// channel is buffered; the ID is used to unsubscribe.
func (p *Publisher) Subscribe() (string, <-chan msg.Batch) {
	id := uuid.NewString()
	ch := make(chan msg.Batch, 16)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (p *Publisher) Unsubscribe(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ch, ok := p.subscribers[id]; ok {
		close(ch)
		delete(p.subscribers, id)
	}
}

// Publish delivers a batch to every subscriber without blocking. Empty
// batches are discarded.
func (p *Publisher) Publish(b msg.Batch) {
	if b.Empty() {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closing {
		return
	}
	p.published++
	for _, ch := range p.subscribers {
		select {
		case ch <- b:
		default:
			p.dropped++
		}
	}
}

// Subscribers returns the current subscriber count.
func (p *Publisher) Subscribers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subscribers)
}

// Stats returns the published and dropped batch counts.
func (p *Publisher) Stats() (published, dropped uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.published, p.dropped
}

// Close closes every subscriber channel and rejects further publishes.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closing = true
	for id, ch := range p.subscribers {
		close(ch)
		delete(p.subscribers, id)
	}
}
