// Package store keeps the engine's durable preferences: the installed addon list and the
// torrent helper override.
package store

import (
	"errors"
	"sync"
)

const (
	KeyAddons           = "addons"
	KeyTorrentHelperURL = "torrent_helper_url"
)

var ErrClosed = errors.New("store: closed")

// Store is a process-durable key/value preference store.
type Store interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
}

// Memory is a Store that lives as long as the process.
type Memory struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemory() *Memory {
	return &Memory{values: map[string]string{}}
}

func (m *Memory) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *Memory) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}
