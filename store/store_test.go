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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func testSession() *Session {
	return &Session{
		ID:        uuid.New().String(),
		StartTime: time.Now(),
		Hostname:  "host01.example.com",
		Source:    "clock_gettime(CLOCK_MONOTONIC_RAW)",
	}
}

func testSamples() []*Sample {
	return []*Sample{
		{MonoUS: 1000, WallNS: 1000000, DriftPPM: 0.5, JitterPPM: 0.1, ReadLatencyNS: 40},
		{MonoUS: 2000, WallNS: 2000000, DriftPPM: 0.6, JitterPPM: 0.2, ReadLatencyNS: 38},
		{MonoUS: 3000, WallNS: 3000000, DriftPPM: 0.4, JitterPPM: 0.1, ReadLatencyNS: 41},
	}
}

func checkRoundTrip(t *testing.T, format string) {
	ctx := context.Background()
	m, err := NewManager(t.TempDir())
	require.NoError(t, err)
	session := testSession()

	s, err := m.CreateSession(ctx, session, format)
	require.NoError(t, err)
	samples := testSamples()
	require.NoError(t, s.WriteSample(samples[0]))
	require.NoError(t, s.WriteBatch(samples[1:]))
	require.NoError(t, s.UpdateSession(s.GetSession()))
	require.NoError(t, s.Close())

	// reopen, format must be detected from what's on disk
	reopened, err := m.OpenSession(ctx, session.ID)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.ReadSamples(ctx, nil)
	require.NoError(t, err)
	require.Equal(t, samples, got)
	require.Equal(t, int64(3), reopened.GetSession().SampleCount)

	// filters
	since := int64(2000000)
	got, err = reopened.ReadSamples(ctx, &Filter{Since: &since})
	require.NoError(t, err)
	require.Equal(t, samples[1:], got)

	got, err = reopened.ReadSamples(ctx, &Filter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Equal(t, []*Sample{samples[1]}, got)

	// offset alone skips without capping
	got, err = reopened.ReadSamples(ctx, &Filter{Offset: 1})
	require.NoError(t, err)
	require.Equal(t, samples[1:], got)
}

func TestJSONLRoundTrip(t *testing.T) {
	checkRoundTrip(t, FormatJSONL)
}

func TestSQLiteRoundTrip(t *testing.T) {
	checkRoundTrip(t, FormatSQLite)
}

func TestManagerSessions(t *testing.T) {
	ctx := context.Background()
	m, err := NewManager(t.TempDir())
	require.NoError(t, err)

	first := testSession()
	second := testSession()
	s1, err := m.CreateSession(ctx, first, FormatJSONL)
	require.NoError(t, err)
	require.NoError(t, s1.Close())
	s2, err := m.CreateSession(ctx, second, FormatSQLite)
	require.NoError(t, err)
	require.NoError(t, s2.Close())

	sessions, err := m.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 2)

	got, err := m.GetSession(ctx, first.ID)
	require.NoError(t, err)
	require.Equal(t, first.ID, got.ID)
	require.Equal(t, first.Hostname, got.Hostname)

	require.NoError(t, m.DeleteSession(ctx, first.ID))
	sessions, err = m.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	require.Equal(t, second.ID, sessions[0].ID)

	_, err = m.OpenSession(ctx, first.ID)
	require.Error(t, err)
}

func TestManagerRejectsPathTraversal(t *testing.T) {
	ctx := context.Background()
	baseDir := t.TempDir()
	m, err := NewManager(baseDir)
	require.NoError(t, err)

	// a victim directory next to the base dir must be unreachable via ids
	victim := filepath.Join(filepath.Dir(baseDir), "victim")
	require.NoError(t, os.MkdirAll(victim, 0755))

	for _, id := range []string{"", ".", "..", "../victim", "a/b", "/etc"} {
		require.Error(t, m.DeleteSession(ctx, id), "id %q", id)
		_, err := m.GetSession(ctx, id)
		require.Error(t, err, "id %q", id)
		_, err = m.OpenSession(ctx, id)
		require.Error(t, err, "id %q", id)
		session := testSession()
		session.ID = id
		_, err = m.CreateSession(ctx, session, FormatJSONL)
		require.Error(t, err, "id %q", id)
	}
	_, err = os.Stat(victim)
	require.NoError(t, err)
}

func TestCreateSessionUnknownFormat(t *testing.T) {
	m, err := NewManager(t.TempDir())
	require.NoError(t, err)
	_, err = m.CreateSession(context.Background(), testSession(), "parquet")
	require.Error(t, err)
}
