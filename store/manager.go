/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FormatJSONL and FormatSQLite are the supported on-disk formats
const (
	FormatJSONL  = "jsonl"
	FormatSQLite = "sqlite"
)

// Manager implements SessionStore over a base directory with one
// subdirectory per session
type Manager struct {
	baseDir string
	mux     sync.RWMutex
}

// NewManager returns a Manager rooted at baseDir, creating it if needed
func NewManager(baseDir string) (*Manager, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("creating base directory: %w", err)
	}
	return &Manager{baseDir: baseDir}, nil
}

// sessionDir resolves a session id to its directory. Ids come from HTTP
// and CLI arguments, anything that could escape the base dir is rejected.
func (m *Manager) sessionDir(id string) (string, error) {
	if id == "" || id == "." || id == ".." || id != filepath.Base(id) {
		return "", fmt.Errorf("invalid session id %q", id)
	}
	return filepath.Join(m.baseDir, id), nil
}

// ListSessions returns metadata of all sessions under the base dir.
// Directories without readable metadata are skipped.
func (m *Manager) ListSessions(_ context.Context) ([]*Session, error) {
	m.mux.RLock()
	defer m.mux.RUnlock()

	entries, err := os.ReadDir(m.baseDir)
	if err != nil {
		return nil, fmt.Errorf("reading base directory: %w", err)
	}
	var sessions []*Session
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		session, err := loadSessionMetadata(filepath.Join(m.baseDir, entry.Name()))
		if err != nil {
			continue
		}
		sessions = append(sessions, session)
	}
	return sessions, nil
}

// GetSession returns metadata of a single session
func (m *Manager) GetSession(_ context.Context, id string) (*Session, error) {
	m.mux.RLock()
	defer m.mux.RUnlock()
	sessionDir, err := m.sessionDir(id)
	if err != nil {
		return nil, err
	}
	return loadSessionMetadata(sessionDir)
}

// OpenSession opens an existing session, picking the backend by what's on disk
func (m *Manager) OpenSession(_ context.Context, id string) (SampleStore, error) {
	m.mux.RLock()
	defer m.mux.RUnlock()

	sessionDir, err := m.sessionDir(id)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(filepath.Join(sessionDir, "samples.db")); err == nil {
		return OpenSQLiteStore(m.baseDir, id)
	}
	if _, err := os.Stat(filepath.Join(sessionDir, "samples.jsonl")); err == nil {
		return OpenJSONLStore(m.baseDir, id)
	}
	return nil, fmt.Errorf("no sample store found for session %s", id)
}

// CreateSession creates a new session in the requested format
func (m *Manager) CreateSession(_ context.Context, session *Session, format string) (SampleStore, error) {
	m.mux.Lock()
	defer m.mux.Unlock()

	sessionDir, err := m.sessionDir(session.ID)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(sessionDir, 0755); err != nil {
		return nil, fmt.Errorf("creating session directory: %w", err)
	}
	if err := saveSessionMetadata(sessionDir, session); err != nil {
		return nil, err
	}
	switch strings.ToLower(format) {
	case FormatJSONL, "json", "":
		return NewJSONLStore(m.baseDir, session)
	case FormatSQLite, "sqlite3", "db":
		return NewSQLiteStore(m.baseDir, session)
	default:
		return nil, fmt.Errorf("unknown format %q (supported: %s, %s)", format, FormatJSONL, FormatSQLite)
	}
}

// DeleteSession removes a session and all its samples
func (m *Manager) DeleteSession(_ context.Context, id string) error {
	m.mux.Lock()
	defer m.mux.Unlock()
	sessionDir, err := m.sessionDir(id)
	if err != nil {
		return err
	}
	return os.RemoveAll(sessionDir)
}

// Close implements SessionStore
func (m *Manager) Close() error {
	return nil
}
