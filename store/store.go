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

// Package store persists recorded clock drift sessions for offline analysis.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Sample is one observation of the monotonic clock against the realtime clock
type Sample struct {
	MonoUS        int64   `json:"mono_us"`
	WallNS        int64   `json:"wall_ns"`
	DriftPPM      float64 `json:"drift_ppm"`
	JitterPPM     float64 `json:"jitter_ppm"`
	ReadLatencyNS int64   `json:"read_latency_ns"`
}

// Session describes one recording run
type Session struct {
	ID          string     `json:"id"`
	StartTime   time.Time  `json:"start_time"`
	EndTime     *time.Time `json:"end_time,omitempty"`
	Hostname    string     `json:"hostname"`
	Source      string     `json:"source"`
	SampleCount int64      `json:"sample_count"`
}

// Filter narrows down what ReadSamples returns. Since/Until are wall
// clock nanoseconds, nil means unbounded.
type Filter struct {
	Since  *int64
	Until  *int64
	Limit  int
	Offset int
}

// SampleStore reads and writes samples of a single session
type SampleStore interface {
	WriteSample(sample *Sample) error
	WriteBatch(samples []*Sample) error
	ReadSamples(ctx context.Context, filter *Filter) ([]*Sample, error)
	GetSession() *Session
	UpdateSession(session *Session) error
	Close() error
}

// SessionStore manages sessions across a base directory
type SessionStore interface {
	ListSessions(ctx context.Context) ([]*Session, error)
	GetSession(ctx context.Context, id string) (*Session, error)
	OpenSession(ctx context.Context, id string) (SampleStore, error)
	CreateSession(ctx context.Context, session *Session, format string) (SampleStore, error)
	DeleteSession(ctx context.Context, id string) error
	io.Closer
}

func saveSessionMetadata(sessionDir string, session *Session) error {
	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling session metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(sessionDir, "metadata.json"), data, 0644); err != nil {
		return fmt.Errorf("writing session metadata: %w", err)
	}
	return nil
}

func loadSessionMetadata(sessionDir string) (*Session, error) {
	data, err := os.ReadFile(filepath.Join(sessionDir, "metadata.json"))
	if err != nil {
		return nil, fmt.Errorf("reading session metadata: %w", err)
	}
	session := &Session{}
	if err := json.Unmarshal(data, session); err != nil {
		return nil, fmt.Errorf("unmarshalling session metadata: %w", err)
	}
	return session, nil
}

func matchFilter(filter *Filter, sample *Sample, skipped *int) bool {
	if filter == nil {
		return true
	}
	if filter.Since != nil && sample.WallNS < *filter.Since {
		return false
	}
	if filter.Until != nil && sample.WallNS > *filter.Until {
		return false
	}
	if filter.Offset > 0 && *skipped < filter.Offset {
		*skipped++
		return false
	}
	return true
}
