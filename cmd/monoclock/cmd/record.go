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

package cmd

import (
	"context"
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"

	"github.com/facebook/monoclock/store"
	"github.com/facebook/monoclock/timebase"
)

var recordDirFlag string
var recordFormatFlag string
var recordDurationFlag time.Duration
var recordIntervalFlag time.Duration

func init() {
	RootCmd.AddCommand(recordCmd)
	recordCmd.Flags().StringVarP(&recordDirFlag, "dir", "o", "", "directory to record sessions into")
	recordCmd.Flags().StringVarP(&recordFormatFlag, "format", "f", store.FormatJSONL, "session format, jsonl or sqlite")
	recordCmd.Flags().DurationVarP(&recordDurationFlag, "duration", "d", time.Minute, "how long to record for, 0 means until interrupted")
	recordCmd.Flags().DurationVarP(&recordIntervalFlag, "interval", "i", time.Second, "interval between samples")
	if err := recordCmd.MarkFlagRequired("dir"); err != nil {
		log.Fatal(err)
	}
}

func recordSession(ctx context.Context, manager *store.Manager, format string, duration, interval time.Duration) error {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	session := &store.Session{
		ID:        uuid.New().String(),
		StartTime: time.Now(),
		Hostname:  hostname,
		Source:    timebase.SourceName(),
	}
	st, err := manager.CreateSession(ctx, session, format)
	if err != nil {
		return err
	}
	defer func() {
		end := time.Now()
		session.EndTime = &end
		if err := st.UpdateSession(session); err != nil {
			log.Errorf("failed to finalize session: %v", err)
		}
		st.Close()
	}()
	log.Infof("recording session %s", session.ID)

	if duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	prevMono := timebase.Now()
	prevWall := time.Now()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		t0 := time.Now()
		mono := timebase.Now()
		latency := time.Since(t0).Nanoseconds()
		sample := &store.Sample{
			MonoUS:        mono,
			WallNS:        t0.UnixNano(),
			ReadLatencyNS: latency,
		}
		wallDeltaNS := t0.Sub(prevWall).Nanoseconds()
		monoDeltaNS := (mono - prevMono) * 1000
		if wallDeltaNS > 0 {
			sample.DriftPPM = float64(monoDeltaNS-wallDeltaNS) / float64(wallDeltaNS) * 1000000.0
		}
		if err := st.WriteSample(sample); err != nil {
			return err
		}
		prevMono = mono
		prevWall = t0
	}
}

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record monotonic clock samples into a session on disk",
	Run: func(_ *cobra.Command, _ []string) {
		ConfigureVerbosity()
		manager, err := store.NewManager(recordDirFlag)
		if err != nil {
			log.Fatal(err)
		}
		defer manager.Close()
		ctx, cancel := signal.NotifyContext(context.Background(), unix.SIGINT, unix.SIGTERM)
		defer cancel()
		if err := recordSession(ctx, manager, recordFormatFlag, recordDurationFlag, recordIntervalFlag); err != nil {
			log.Fatal(err)
		}
	},
}
