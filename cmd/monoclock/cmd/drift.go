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
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/eclesh/welford"
	"github.com/olekukonko/tablewriter"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/facebook/monoclock/timebase"
)

var driftDurationFlag time.Duration
var driftIntervalFlag time.Duration

func init() {
	RootCmd.AddCommand(driftCmd)
	driftCmd.Flags().DurationVarP(&driftDurationFlag, "duration", "d", 10*time.Second, "how long to sample for")
	driftCmd.Flags().DurationVarP(&driftIntervalFlag, "interval", "i", time.Second, "interval between samples")
}

// driftSample is one comparison of the monotonic clock against the realtime clock
type driftSample struct {
	MonoUS   int64
	WallNS   int64
	DriftPPM float64
}

func sampleDrift(duration, interval time.Duration) []driftSample {
	count := int(duration / interval)
	samples := make([]driftSample, 0, count)
	prevMono := timebase.Now()
	prevWall := time.Now()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for i := 0; i < count; i++ {
		<-ticker.C
		mono := timebase.Now()
		wall := time.Now()
		wallDeltaNS := wall.Sub(prevWall).Nanoseconds()
		monoDeltaNS := (mono - prevMono) * 1000
		s := driftSample{MonoUS: mono, WallNS: wall.UnixNano()}
		if wallDeltaNS > 0 {
			s.DriftPPM = float64(monoDeltaNS-wallDeltaNS) / float64(wallDeltaNS) * 1000000.0
		}
		samples = append(samples, s)
		prevMono = mono
		prevWall = wall
	}
	return samples
}

func printDriftCSV(w io.Writer, samples []driftSample) error {
	csvw := csv.NewWriter(w)
	if err := csvw.Write([]string{"mono_us", "wall_ns", "drift_ppm"}); err != nil {
		return err
	}
	for _, s := range samples {
		record := []string{
			strconv.FormatInt(s.MonoUS, 10),
			strconv.FormatInt(s.WallNS, 10),
			strconv.FormatFloat(s.DriftPPM, 'f', -1, 64),
		}
		if err := csvw.Write(record); err != nil {
			return err
		}
	}
	csvw.Flush()
	return csvw.Error()
}

func printDriftSummary(w io.Writer, samples []driftSample) {
	stats := welford.New()
	for _, s := range samples {
		stats.Add(s.DriftPPM)
	}
	table := tablewriter.NewWriter(w)
	table.Header("samples", "mean(ppm)", "stddev(ppm)", "min(ppm)", "max(ppm)")
	table.Append([]string{
		fmt.Sprintf("%d", stats.Count()),
		fmt.Sprintf("%.3f", stats.Mean()),
		fmt.Sprintf("%.3f", stats.Stddev()),
		fmt.Sprintf("%.3f", stats.Min()),
		fmt.Sprintf("%.3f", stats.Max()),
	})
	table.Render()
}

var driftCmd = &cobra.Command{
	Use:   "drift",
	Short: "Measure monotonic clock drift against the realtime clock",
	Run: func(_ *cobra.Command, _ []string) {
		ConfigureVerbosity()
		if driftIntervalFlag <= 0 || driftDurationFlag < driftIntervalFlag {
			log.Fatal("duration must be at least one interval")
		}
		samples := sampleDrift(driftDurationFlag, driftIntervalFlag)
		// pipes get machine-readable output
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			if err := printDriftCSV(os.Stdout, samples); err != nil {
				log.Fatal(err)
			}
			return
		}
		printDriftSummary(os.Stdout, samples)
	},
}
