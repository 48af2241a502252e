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
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore keeps samples in a per-session SQLite database
type SQLiteStore struct {
	db      *sql.DB
	session *Session
	baseDir string
	mux     sync.RWMutex
}

const schema = `
CREATE TABLE IF NOT EXISTS samples (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	mono_us INTEGER NOT NULL,
	wall_ns INTEGER NOT NULL,
	drift_ppm REAL NOT NULL,
	jitter_ppm REAL NOT NULL,
	read_latency_ns INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_wall_ns ON samples(wall_ns);
`

// NewSQLiteStore creates a SQLite sample store for a new session
func NewSQLiteStore(baseDir string, session *Session) (*SQLiteStore, error) {
	sessionDir := filepath.Join(baseDir, session.ID)
	if err := os.MkdirAll(sessionDir, 0755); err != nil {
		return nil, fmt.Errorf("creating session directory: %w", err)
	}
	db, err := sql.Open("sqlite3", filepath.Join(sessionDir, "samples.db"))
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &SQLiteStore{
		db:      db,
		session: session,
		baseDir: baseDir,
	}, nil
}

// OpenSQLiteStore opens an existing SQLite store
func OpenSQLiteStore(baseDir string, sessionID string) (*SQLiteStore, error) {
	sessionDir := filepath.Join(baseDir, sessionID)
	db, err := sql.Open("sqlite3", filepath.Join(sessionDir, "samples.db"))
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	session, err := loadSessionMetadata(sessionDir)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{
		db:      db,
		session: session,
		baseDir: baseDir,
	}, nil
}

const insertQuery = `INSERT INTO samples (mono_us, wall_ns, drift_ppm, jitter_ppm, read_latency_ns)
	VALUES (?, ?, ?, ?, ?)`

// WriteSample inserts one sample
func (s *SQLiteStore) WriteSample(sample *Sample) error {
	s.mux.Lock()
	defer s.mux.Unlock()
	if _, err := s.db.Exec(insertQuery,
		sample.MonoUS, sample.WallNS, sample.DriftPPM, sample.JitterPPM, sample.ReadLatencyNS,
	); err != nil {
		return fmt.Errorf("inserting sample: %w", err)
	}
	s.session.SampleCount++
	return nil
}

// WriteBatch inserts samples in a single transaction
func (s *SQLiteStore) WriteBatch(samples []*Sample) error {
	s.mux.Lock()
	defer s.mux.Unlock()
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	stmt, err := tx.Prepare(insertQuery)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()
	for _, sample := range samples {
		if _, err := stmt.Exec(
			sample.MonoUS, sample.WallNS, sample.DriftPPM, sample.JitterPPM, sample.ReadLatencyNS,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("inserting sample: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	s.session.SampleCount += int64(len(samples))
	return nil
}

// ReadSamples returns samples matching the filter, ordered by wall clock
func (s *SQLiteStore) ReadSamples(ctx context.Context, filter *Filter) ([]*Sample, error) {
	s.mux.RLock()
	defer s.mux.RUnlock()

	query := "SELECT mono_us, wall_ns, drift_ppm, jitter_ppm, read_latency_ns FROM samples"
	var conditions []string
	var args []interface{}
	if filter != nil {
		if filter.Since != nil {
			conditions = append(conditions, "wall_ns >= ?")
			args = append(args, *filter.Since)
		}
		if filter.Until != nil {
			conditions = append(conditions, "wall_ns <= ?")
			args = append(args, *filter.Until)
		}
	}
	for i, cond := range conditions {
		if i == 0 {
			query += " WHERE " + cond
		} else {
			query += " AND " + cond
		}
	}
	query += " ORDER BY wall_ns"
	if filter != nil && (filter.Limit > 0 || filter.Offset > 0) {
		limit := filter.Limit
		if limit <= 0 {
			// sqlite needs a LIMIT clause to accept OFFSET, negative means unbounded
			limit = -1
		}
		query += " LIMIT ?"
		args = append(args, limit)
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying samples: %w", err)
	}
	defer rows.Close()

	var samples []*Sample
	for rows.Next() {
		sample := &Sample{}
		if err := rows.Scan(
			&sample.MonoUS, &sample.WallNS, &sample.DriftPPM, &sample.JitterPPM, &sample.ReadLatencyNS,
		); err != nil {
			return nil, fmt.Errorf("scanning sample: %w", err)
		}
		samples = append(samples, sample)
	}
	return samples, rows.Err()
}

// GetSession returns the session this store belongs to
func (s *SQLiteStore) GetSession() *Session {
	s.mux.RLock()
	defer s.mux.RUnlock()
	return s.session
}

// UpdateSession persists updated session metadata
func (s *SQLiteStore) UpdateSession(session *Session) error {
	s.mux.Lock()
	defer s.mux.Unlock()
	s.session = session
	return saveSessionMetadata(filepath.Join(s.baseDir, session.ID), session)
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	s.mux.Lock()
	defer s.mux.Unlock()
	return s.db.Close()
}
