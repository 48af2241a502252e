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
	"fmt"
	"os"
	"time"

	"github.com/eclesh/welford"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/facebook/monoclock/timebase"
)

var benchCountFlag int

func init() {
	RootCmd.AddCommand(benchCmd)
	benchCmd.Flags().IntVarP(&benchCountFlag, "count", "c", 1000000, "number of clock reads per clock")
}

func benchClock(count int, read func() int64) *welford.Stats {
	stats := welford.New()
	for i := 0; i < count; i++ {
		start := time.Now()
		read()
		stats.Add(float64(time.Since(start).Nanoseconds()))
	}
	return stats
}

func runBench(count int) {
	// warm the calibration up so it's not part of the first measurement
	timebase.Now()

	mono := benchClock(count, timebase.Now)
	wall := benchClock(count, func() int64 { return time.Now().UnixNano() })

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("clock", "reads", "mean(ns)", "stddev(ns)", "min(ns)", "max(ns)")
	for _, row := range []struct {
		name  string
		stats *welford.Stats
	}{
		{"monotonic", mono},
		{"realtime", wall},
	} {
		table.Append([]string{
			row.name,
			fmt.Sprintf("%d", row.stats.Count()),
			fmt.Sprintf("%.1f", row.stats.Mean()),
			fmt.Sprintf("%.1f", row.stats.Stddev()),
			fmt.Sprintf("%.0f", row.stats.Min()),
			fmt.Sprintf("%.0f", row.stats.Max()),
		})
	}
	table.Render()
}

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Measure the cost of reading the monotonic clock",
	Run: func(_ *cobra.Command, _ []string) {
		ConfigureVerbosity()
		runBench(benchCountFlag)
	},
}
