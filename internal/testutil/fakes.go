package testutil

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/dmehra2102/prod-golang-projects/carelink/internal/delivery"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/notification"
)

// Tx runs fn directly; the in-memory repositories have no rollback.
type Tx struct{}

func (Tx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// Sender records outbound messages. Fail makes every send return the error.
type Sender struct {
	Ch   notification.Channel
	Fail error

	mu   sync.Mutex
	sent []delivery.Message
}

func NewSender(ch notification.Channel) *Sender {
	return &Sender{Ch: ch}
}

func (s *Sender) Channel() notification.Channel { return s.Ch }

func (s *Sender) Send(_ context.Context, msg delivery.Message) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		return "", s.Fail
	}
	s.sent = append(s.sent, msg)
	return fmt.Sprintf("%s-%d", s.Ch, len(s.sent)), nil
}

func (s *Sender) Sent() []delivery.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.sent)
}

// Events records published events without dispatching them.
type Events struct {
	mu     sync.Mutex
	events []notification.Event
}

func (e *Events) Publish(_ context.Context, ev notification.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
}

func (e *Events) All() []notification.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.events)
}

// OfType returns the recorded events of type t.
func (e *Events) OfType(t notification.Type) []notification.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []notification.Event
	for _, ev := range e.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

// Pusher counts realtime pushes per user.
type Pusher struct {
	mu     sync.Mutex
	pushes map[uuid.UUID]int
}

func (p *Pusher) SendToUser(userID uuid.UUID, _ string, _ any) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pushes == nil {
		p.pushes = make(map[uuid.UUID]int)
	}
	p.pushes[userID]++
	return 1
}

func (p *Pusher) Count(userID uuid.UUID) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pushes[userID]
}
