package dispatch

import (
	"context"
	"sync"

	"github.com/zeusync/scenesync/internal/core/models"
)

// Message is one payload recorded by a MemorySink.
type Message struct {
	User     models.UserID
	Reliable bool
	Payload  []byte
}

// MemorySink records every payload instead of sending it.
type MemorySink struct {
	mu       sync.Mutex
	messages []Message
	failures map[models.UserID]error
}

func NewMemorySink() *MemorySink {
	return &MemorySink{failures: make(map[models.UserID]error)}
}

func (s *MemorySink) Send(ctx context.Context, user models.UserID, reliable bool, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failures[user]; err != nil {
		return err
	}
	s.messages = append(s.messages, Message{User: user, Reliable: reliable, Payload: payload})
	return nil
}

// FailFor makes every later send to user return err. A nil err clears it.
func (s *MemorySink) FailFor(user models.UserID, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, user)
		return
	}
	s.failures[user] = err
}

// Messages returns the payloads sent to user, oldest first.
func (s *MemorySink) Messages(user models.UserID) []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Message
	for _, m := range s.messages {
		if m.User == user {
			out = append(out, m)
		}
	}
	return out
}

func (s *MemorySink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

func (s *MemorySink) Reset() {
	s.mu.Lock()
	s.messages = nil
	s.mu.Unlock()
}
