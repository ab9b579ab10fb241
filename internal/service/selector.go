package service

import (
	"sync"

	"github.com/elderquery/elderquery/internal/store"
)

// StoreSelector binds the active store to the current identity. The binding
// changes only on identity change; everything downstream asks the selector
// instead of branching on identity itself.
type StoreSelector struct {
	mu     sync.RWMutex
	local  store.Store
	remote store.Store
	userID string
}

// NewStoreSelector starts unauthenticated, bound to the local store. remote
// may be nil when no remote store is configured.
func NewStoreSelector(local, remote store.Store) *StoreSelector {
	return &StoreSelector{local: local, remote: remote}
}

// Bind switches the active store. An empty userID selects the local store.
func (s *StoreSelector) Bind(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userID = userID
}

// Active returns the store for the current identity and the owner id to pass
// to it.
func (s *StoreSelector) Active() (store.Store, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.userID != "" && s.remote != nil {
		return s.remote, s.userID
	}
	return s.local, ""
}

func (s *StoreSelector) Local() store.Store {
	return s.local
}

func (s *StoreSelector) Remote() store.Store {
	return s.remote
}

func (s *StoreSelector) HasRemote() bool {
	return s.remote != nil
}
