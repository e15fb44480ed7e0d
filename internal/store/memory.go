package store

import (
	"context"
	"errors"
	"sync"
)

// Memory is an in-process Client backed by a map. It is used by tests and
// by dry runs of the resolve command.
type Memory struct {
	mu       sync.RWMutex
	docs     map[string][]byte
	failures map[string]error
}

func NewMemory() *Memory {
	return &Memory{
		docs:     make(map[string][]byte),
		failures: make(map[string]error),
	}
}

// Put stores a copy of doc under key.
func (m *Memory) Put(key string, doc []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.docs[key] = append([]byte(nil), doc...)
}

// Fail makes every Get of key fail with status st.
func (m *Memory) Fail(key string, st Status) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.failures[key] = statusError(st, "", errors.New("injected failure"))
}

func (m *Memory) Get(ctx context.Context, key []byte) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, statusError(ConnectionError, "", err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if err, ok := m.failures[string(key)]; ok {
		return nil, err
	}

	doc, ok := m.docs[string(key)]
	if !ok {
		return nil, statusError(NotFound, "", errors.New("no such key"))
	}
	return NewDocument(doc), nil
}

func (m *Memory) Close() error {
	return nil
}
