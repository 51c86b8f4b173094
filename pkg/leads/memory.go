package leads

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore keeps leads in process memory, in insertion order.
type MemoryStore struct {
	mu    sync.RWMutex
	leads []Lead
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) find(phone string) int {
	for i, l := range s.leads {
		if SamePhone(l.Phone, phone) {
			return i
		}
	}
	return -1
}

func (s *MemoryStore) Get(_ context.Context, phone string) (*Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.find(phone)
	if i < 0 {
		return nil, nil
	}
	l := s.leads[i]
	return &l, nil
}

func (s *MemoryStore) Create(_ context.Context, lead Lead) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.find(lead.Phone) >= 0 {
		return fmt.Errorf("lead %s already exists", lead.Phone)
	}
	s.leads = append(s.leads, lead)
	return nil
}

func (s *MemoryStore) Update(_ context.Context, phone string, fields Fields) error {
	if err := fields.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.find(phone)
	if i < 0 {
		return fmt.Errorf("lead %s not found", phone)
	}
	s.leads[i].Apply(fields)
	return nil
}

// RowIndex mirrors the sheet layout: the header is row 1.
func (s *MemoryStore) RowIndex(_ context.Context, phone string) (int, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.find(phone)
	if i < 0 {
		return 0, false, nil
	}
	return i + 2, true, nil
}

func (s *MemoryStore) List(_ context.Context) ([]Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Lead(nil), s.leads...), nil
}

func (s *MemoryStore) Close() error { return nil }
