// Package events fans sequencer progress out to other processes.
package events

import (
	"context"
	"strings"
	"sync"

	"github.com/dusk-indust/elicit/internal/sequencer"
)

// Publisher delivers sequencer events to an external sink.
type Publisher interface {
	Publish(ctx context.Context, ev sequencer.Event) error
	Close() error
}

var (
	_ Publisher = Noop{}
	_ Publisher = (*MemPublisher)(nil)
)

// Noop discards every event.
type Noop struct{}

func (Noop) Publish(context.Context, sequencer.Event) error { return nil }
func (Noop) Close() error                                   { return nil }

// MemPublisher keeps published events in memory.
type MemPublisher struct {
	mu     sync.Mutex
	events []sequencer.Event
}

// Publish appends ev.
func (m *MemPublisher) Publish(_ context.Context, ev sequencer.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

// Events returns a copy of everything published so far.
func (m *MemPublisher) Events() []sequencer.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sequencer.Event(nil), m.events...)
}

func (m *MemPublisher) Close() error { return nil }

// Subject returns the subject an event is published on:
// "<prefix>.<project>.<pipeline>". Tokens are sanitized so a project ID can
// never introduce wildcards or extra levels.
func Subject(prefix string, ev sequencer.Event) string {
	return prefix + "." + token(ev.ProjectID) + "." + token(ev.Pipeline)
}

func token(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\n', '\r':
			return '_'
		}
		return r
	}, s)
}
