package testutil

import (
	"context"
	"sync"

	"dp-canteen-service/internal/events"
)

// RecordingPublisher keeps every published event in memory.
type RecordingPublisher struct {
	mu     sync.Mutex
	events []events.OrderEvent
}

func (p *RecordingPublisher) Publish(_ context.Context, event events.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *RecordingPublisher) Close() error { return nil }

// Types returns the event types in publish order.
func (p *RecordingPublisher) Types() []events.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()

	types := make([]events.EventType, len(p.events))
	for i, e := range p.events {
		types[i] = e.Type
	}
	return types
}
