package memory

import (
	"context"
	"sync"
)

// FlagStore keeps per-device boolean flags in memory.
type FlagStore struct {
	mu    sync.RWMutex
	flags map[string]bool
}

func NewFlagStore() *FlagStore {
	return &FlagStore{flags: make(map[string]bool)}
}

func (s *FlagStore) Get(_ context.Context, clientID, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.flags[clientID+"/"+key], nil
}

func (s *FlagStore) Set(_ context.Context, clientID, key string, value bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flags[clientID+"/"+key] = value
	return nil
}
