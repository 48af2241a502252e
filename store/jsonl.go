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
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// JSONLStore keeps samples as JSON Lines, one object per line
type JSONLStore struct {
	file    *os.File
	writer  *bufio.Writer
	session *Session
	baseDir string
	mux     sync.RWMutex
}

// NewJSONLStore creates a JSONL sample store for a new session
func NewJSONLStore(baseDir string, session *Session) (*JSONLStore, error) {
	sessionDir := filepath.Join(baseDir, session.ID)
	if err := os.MkdirAll(sessionDir, 0755); err != nil {
		return nil, fmt.Errorf("creating session directory: %w", err)
	}
	file, err := os.OpenFile(filepath.Join(sessionDir, "samples.jsonl"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening jsonl file: %w", err)
	}
	return &JSONLStore{
		file:    file,
		writer:  bufio.NewWriter(file),
		session: session,
		baseDir: baseDir,
	}, nil
}

// OpenJSONLStore opens an existing JSONL store for reading
func OpenJSONLStore(baseDir string, sessionID string) (*JSONLStore, error) {
	sessionDir := filepath.Join(baseDir, sessionID)
	file, err := os.Open(filepath.Join(sessionDir, "samples.jsonl"))
	if err != nil {
		return nil, fmt.Errorf("opening jsonl file: %w", err)
	}
	session, err := loadSessionMetadata(sessionDir)
	if err != nil {
		file.Close()
		return nil, err
	}
	return &JSONLStore{
		file:    file,
		session: session,
		baseDir: baseDir,
	}, nil
}

func (s *JSONLStore) writeLocked(sample *Sample) error {
	data, err := json.Marshal(sample)
	if err != nil {
		return fmt.Errorf("marshalling sample: %w", err)
	}
	if _, err := s.writer.Write(data); err != nil {
		return fmt.Errorf("writing sample: %w", err)
	}
	if err := s.writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("writing newline: %w", err)
	}
	s.session.SampleCount++
	return nil
}

// WriteSample appends one sample
func (s *JSONLStore) WriteSample(sample *Sample) error {
	s.mux.Lock()
	defer s.mux.Unlock()
	if err := s.writeLocked(sample); err != nil {
		return err
	}
	return s.writer.Flush()
}

// WriteBatch appends samples with a single flush
func (s *JSONLStore) WriteBatch(samples []*Sample) error {
	s.mux.Lock()
	defer s.mux.Unlock()
	for _, sample := range samples {
		if err := s.writeLocked(sample); err != nil {
			return err
		}
	}
	return s.writer.Flush()
}

// ReadSamples returns samples matching the filter
func (s *JSONLStore) ReadSamples(ctx context.Context, filter *Filter) ([]*Sample, error) {
	s.mux.RLock()
	defer s.mux.RUnlock()

	if _, err := s.file.Seek(0, 0); err != nil {
		return nil, fmt.Errorf("seeking to start: %w", err)
	}
	scanner := bufio.NewScanner(s.file)
	var samples []*Sample
	skipped := 0
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return samples, ctx.Err()
		default:
		}
		sample := &Sample{}
		if err := json.Unmarshal(scanner.Bytes(), sample); err != nil {
			return nil, fmt.Errorf("unmarshalling sample: %w", err)
		}
		if !matchFilter(filter, sample, &skipped) {
			continue
		}
		samples = append(samples, sample)
		if filter != nil && filter.Limit > 0 && len(samples) >= filter.Limit {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning jsonl file: %w", err)
	}
	return samples, nil
}

// GetSession returns the session this store belongs to
func (s *JSONLStore) GetSession() *Session {
	s.mux.RLock()
	defer s.mux.RUnlock()
	return s.session
}

// UpdateSession persists updated session metadata
func (s *JSONLStore) UpdateSession(session *Session) error {
	s.mux.Lock()
	defer s.mux.Unlock()
	s.session = session
	return saveSessionMetadata(filepath.Join(s.baseDir, session.ID), session)
}

// Close flushes and closes the underlying file
func (s *JSONLStore) Close() error {
	s.mux.Lock()
	defer s.mux.Unlock()
	if s.writer != nil {
		if err := s.writer.Flush(); err != nil {
			return err
		}
	}
	return s.file.Close()
}
