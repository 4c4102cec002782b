package repository

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/Purplemerit/notion-realtime/internal/models"

	"github.com/google/uuid"
)

// ErrNotFound is returned by point lookups when no message has the given id.
var ErrNotFound = errors.New("message not found")

// MemoryStore is an in-process MessageStore with the same contract as the
// Postgres repository. It backs the package tests and local development
// without a database.
type MemoryStore struct {
	mu       sync.RWMutex
	messages map[uuid.UUID]*models.Message
	order    []uuid.UUID
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{messages: make(map[uuid.UUID]*models.Message)}
}

func (s *MemoryStore) Save(_ context.Context, m *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.messages[m.ID]; exists {
		return nil
	}
	cp := *m
	s.messages[m.ID] = &cp
	s.order = append(s.order, m.ID)
	return nil
}

func (s *MemoryStore) GetByID(_ context.Context, id uuid.UUID) (*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.messages[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (s *MemoryStore) FetchUndelivered(_ context.Context, receiver string) ([]*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Message
	for _, id := range s.order {
		m := s.messages[id]
		if m.Mode == models.ModePrivate && m.Receiver == receiver && !m.Delivered {
			cp := *m
			out = append(out, &cp)
		}
	}
	sortByCreation(out)
	return out, nil
}

func (s *MemoryStore) FetchChannelBacklog(_ context.Context, channels []string, since time.Time, excludeSender string) ([]*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Message
	for _, id := range s.order {
		m := s.messages[id]
		if m.Mode != models.ModeGroup || m.Sender == excludeSender || !m.CreatedAt.After(since) {
			continue
		}
		if slices.Contains(channels, m.Channel) {
			cp := *m
			out = append(out, &cp)
		}
	}
	sortByCreation(out)
	return out, nil
}

func (s *MemoryStore) ChannelsFor(_ context.Context, sender string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var channels []string
	for _, id := range s.order {
		m := s.messages[id]
		if m.Mode == models.ModeGroup && m.Sender == sender && m.Channel != "" && !slices.Contains(channels, m.Channel) {
			channels = append(channels, m.Channel)
		}
	}
	return channels, nil
}

func (s *MemoryStore) MarkDelivered(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok {
		return ErrNotFound
	}
	if !m.Delivered {
		now := time.Now()
		m.Delivered = true
		m.DeliveredAt = &now
	}
	return nil
}

func (s *MemoryStore) MarkRead(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok {
		return ErrNotFound
	}
	if !m.Read {
		now := time.Now()
		m.Read = true
		m.ReadAt = &now
	}
	return nil
}

func (s *MemoryStore) CountUndelivered(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, m := range s.messages {
		if m.Mode == models.ModePrivate && !m.Delivered {
			n++
		}
	}
	return n, nil
}

func sortByCreation(msgs []*models.Message) {
	slices.SortStableFunc(msgs, func(a, b *models.Message) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
}
