// Package memory implements the publisher against process memory. It is
// the default when no Pub/Sub project is configured: menu announcements
// still flow, they just never leave the process.
package memory

import (
	"context"
	"fmt"
	"sync"
)

// Publisher keeps the announcements of each topic in publish order.
type Publisher struct {
	mu     sync.RWMutex
	seq    int
	topics map[string][]Announcement
}

// Announcement is one recorded publish.
type Announcement struct {
	ID      string
	Topic   string
	Payload any
}

// New returns an empty Publisher.
func New() *Publisher {
	return &Publisher{topics: make(map[string][]Announcement)}
}

// Publish records the payload under its topic and returns a
// process-local ID. The sequence is shared across topics so IDs stay
// comparable in logs.
func (p *Publisher) Publish(_ context.Context, topic string, payload any) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seq++
	id := fmt.Sprintf("local-%d", p.seq)
	p.topics[topic] = append(p.topics[topic], Announcement{ID: id, Topic: topic, Payload: payload})
	return id, nil
}

// Announcements returns the publishes recorded for a topic, oldest
// first. The slice is a copy.
func (p *Publisher) Announcements(topic string) []Announcement {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Announcement, len(p.topics[topic]))
	copy(out, p.topics[topic])
	return out
}

// Last returns the newest announcement on the topic, if any.
func (p *Publisher) Last(topic string) (Announcement, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	list := p.topics[topic]
	if len(list) == 0 {
		return Announcement{}, false
	}
	return list[len(list)-1], true
}
