/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package rules

import (
	"errors"
	"io/fs"
	"sync"
)

// Manager holds the active rule configuration and supports hot reload from
// the backing file. Readers get a consistent *Config snapshot; a reload swaps
// the snapshot atomically and never leaves a half-applied document behind.
type Manager struct {
	path string

	mu      sync.RWMutex
	current *Config
}

// NewManager loads the rule file at path. A missing file yields a usable
// manager on default rules alongside the error so callers can warn and
// continue. A file that exists but fails to parse returns a nil manager:
// running on defaults would silently drop every configured rule, so a
// malformed document must stop the caller.
func NewManager(path string) (*Manager, error) {
	cfg, err := Load(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &Manager{path: path, current: &Config{}}, err
		}
		return nil, err
	}
	return &Manager{path: path, current: cfg}, nil
}

// Path returns the backing rule file path.
func (m *Manager) Path() string {
	return m.path
}

// Current returns the active configuration snapshot.
func (m *Manager) Current() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Reload re-reads the rule file. On parse failure the previous configuration
// stays active and the error is returned.
func (m *Manager) Reload() (*Config, error) {
	cfg, err := Load(m.path)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.current = cfg
	m.mu.Unlock()
	return cfg, nil
}
