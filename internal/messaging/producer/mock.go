package producer

import (
	"context"
	"sync"

	"logshare/internal/models"
)

// MockProducer is an in-memory Producer for tests and for running the
// gateway without a Kafka deployment.
type MockProducer struct {
	mu     sync.Mutex
	events []*models.MutationEvent
	closed bool

	// FailNext makes the next Publish return this error once.
	FailNext error
}

// NewMockProducer creates a new MockProducer
func NewMockProducer() *MockProducer {
	return &MockProducer{}
}

// Publish records the event in memory
func (p *MockProducer) Publish(ctx context.Context, event *models.MutationEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.FailNext; err != nil {
		p.FailNext = nil
		return err
	}
	p.events = append(p.events, event)
	return nil
}

// Events returns a copy of everything published so far
func (p *MockProducer) Events() []*models.MutationEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*models.MutationEvent, len(p.events))
	copy(out, p.events)
	return out
}

// Close marks the producer closed
func (p *MockProducer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

var _ Producer = (*MockProducer)(nil)
