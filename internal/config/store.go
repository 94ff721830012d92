package config

import (
	"fmt"
	"sync/atomic"
)

// Store holds the active configuration snapshot. Readers get an immutable
// *Config; Reload swaps in a new one without affecting holders of the old one.
type Store struct {
	current atomic.Pointer[Config]
	load    func() (*Config, error)
}

// NewStore creates a Store seeded with cfg. The loader is used by Reload and
// defaults to Load.
func NewStore(cfg *Config, loader func() (*Config, error)) *Store {
	if loader == nil {
		loader = Load
	}
	s := &Store{load: loader}
	s.current.Store(cfg)
	return s
}

// Get returns the current snapshot.
func (s *Store) Get() *Config {
	return s.current.Load()
}

// Reload loads a fresh configuration and makes it current. On error the
// previous snapshot stays active.
func (s *Store) Reload() (*Config, error) {
	cfg, err := s.load()
	if err != nil {
		return nil, fmt.Errorf("config.Store.Reload: %w", err)
	}
	s.current.Store(cfg)
	return cfg, nil
}
