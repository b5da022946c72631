package identity

import (
	"context"
	"sync"
)

type bindingKey struct {
	client, session string
}

// MemoryBindings keeps bindings in process memory.
type MemoryBindings struct {
	mu sync.RWMutex
	m  map[bindingKey]string
}

func NewMemoryBindings() *MemoryBindings {
	return &MemoryBindings{m: make(map[bindingKey]string)}
}

func (b *MemoryBindings) Get(_ context.Context, clientID, sessionID string) (string, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	id, ok := b.m[bindingKey{clientID, sessionID}]
	return id, ok, nil
}

func (b *MemoryBindings) Set(_ context.Context, clientID, sessionID, playerID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.m[bindingKey{clientID, sessionID}] = playerID
	return nil
}

func (b *MemoryBindings) Clear(_ context.Context, clientID, sessionID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.m, bindingKey{clientID, sessionID})
	return nil
}
