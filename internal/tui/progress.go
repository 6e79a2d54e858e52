package tui

import (
	"sync"

	"github.com/zpdzap/drydock/internal/compose"
	"github.com/zpdzap/drydock/internal/parser"
)

// progressBoard collects progress callbacks from running operations. The
// runtime calls record from its own goroutine; the view reads on each frame.
type progressBoard struct {
	mu     sync.Mutex
	events map[string][]parser.Event
	verbs  map[string]compose.Verb
}

func newProgressBoard() *progressBoard {
	return &progressBoard{
		events: make(map[string][]parser.Event),
		verbs:  make(map[string]compose.Verb),
	}
}

func (b *progressBoard) record(id string, events []parser.Event, verb compose.Verb) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events[id] = append([]parser.Event(nil), events...)
	b.verbs[id] = verb
}

// get returns the latest events and verb for id.
func (b *progressBoard) get(id string) ([]parser.Event, compose.Verb, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	verb, ok := b.verbs[id]
	return b.events[id], verb, ok
}

func (b *progressBoard) clear(ids ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, id := range ids {
		delete(b.events, id)
		delete(b.verbs, id)
	}
}
