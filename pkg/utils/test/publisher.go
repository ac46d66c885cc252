package testutils

import (
	"context"
	"sync"

	"github.com/papercomputeco/shelf/pkg/eventstream"
)

// RecordingPublisher keeps every published event in memory.
type RecordingPublisher struct {
	mu     sync.Mutex
	events []*eventstream.DocumentEvent

	// FailWith, when set, is returned from PublishDocument.
	FailWith error
}

func (p *RecordingPublisher) PublishDocument(_ context.Context, event *eventstream.DocumentEvent) error {
	if p.FailWith != nil {
		return p.FailWith
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *RecordingPublisher) Close() error {
	return nil
}

// Events returns a copy of the recorded events.
func (p *RecordingPublisher) Events() []*eventstream.DocumentEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*eventstream.DocumentEvent, len(p.events))
	copy(out, p.events)
	return out
}

// Types returns the event types in publish order.
func (p *RecordingPublisher) Types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType)
	}
	return out
}
