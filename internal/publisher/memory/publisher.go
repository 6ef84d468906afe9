// Package memory provides an in-process Publisher that retains every
// report handed to it, so tests can assert on exactly what a scheduler
// fanned out and where.
package memory

import (
	"context"
	"fmt"
	"sync"
)

// Message is one retained publish: the destination topic, the payload
// as handed over, and the ID returned to the caller.
type Message struct {
	ID      string
	Topic   string
	Payload any
}

// Publisher retains messages in arrival order and indexes them by topic.
type Publisher struct {
	mu      sync.Mutex
	seq     int
	order   []Message
	byTopic map[string][]Message
}

// New returns an empty Publisher.
func New() *Publisher {
	return &Publisher{byTopic: make(map[string][]Message)}
}

// Publish retains the message and returns its sequence-derived ID.
func (p *Publisher) Publish(_ context.Context, topic string, payload any) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seq++
	msg := Message{
		ID:      fmt.Sprintf("mem-%04d", p.seq),
		Topic:   topic,
		Payload: payload,
	}
	p.order = append(p.order, msg)
	if p.byTopic == nil {
		p.byTopic = make(map[string][]Message)
	}
	p.byTopic[topic] = append(p.byTopic[topic], msg)
	return msg.ID, nil
}

// Messages returns every retained message in arrival order.
func (p *Publisher) Messages() []Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Message, len(p.order))
	copy(out, p.order)
	return out
}

// Topic returns the retained messages published to one topic.
func (p *Publisher) Topic(topic string) []Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	msgs := p.byTopic[topic]
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out
}
