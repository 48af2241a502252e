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
	"math"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/facebook/monoclock/timebase"
)

type status int

// possible check results
const (
	OK status = iota
	WARN
	FAIL
	CRITICAL
)

// diagnoser is a single check against the host monotonic clock
type diagnoser func() (status, string)

var okString = color.GreenString("[ OK ]")
var warnString = color.YellowString("[WARN]")
var failString = color.RedString("[FAIL]")

var statusToColor = []string{okString, warnString, failString}

func checkCalibration() (status, string) {
	ratio, factor := timebase.Calibration()
	if ratio.Denom == 0 {
		return CRITICAL, "Timebase ratio has zero denominator, calibration is broken"
	}
	if factor <= 0 {
		return FAIL, fmt.Sprintf("Conversion factor is %g, clock readings are unusable", factor)
	}
	return OK, fmt.Sprintf("Timebase calibrated to %s (factor %s)",
		color.BlueString("%d/%d", ratio.Numer, ratio.Denom),
		color.BlueString("%g", factor))
}

func checkMonotonic() (status, string) {
	const reads = 100000
	prev := timebase.Now()
	for i := 0; i < reads; i++ {
		cur := timebase.Now()
		if cur < prev {
			return CRITICAL, fmt.Sprintf("Clock went backwards: %d -> %d", prev, cur)
		}
		prev = cur
	}
	return OK, fmt.Sprintf("Clock was strictly non-decreasing over %d reads", reads)
}

func checkResolution() (status, string) {
	res := measureResolution()
	// a sane monotonic clock steps well below a millisecond
	const warnThreshold = int64(time.Millisecond)
	if res >= warnThreshold {
		return WARN, fmt.Sprintf("Clock resolution is %s, expected under %v",
			color.YellowString("%v", time.Duration(res)), time.Duration(warnThreshold))
	}
	return OK, fmt.Sprintf("Clock resolution is %s", color.GreenString("%v", time.Duration(res)))
}

func checkDrift() (status, string) {
	samples := sampleDrift(2*time.Second, 200*time.Millisecond)
	worst := 0.0
	for _, s := range samples {
		if math.Abs(s.DriftPPM) > worst {
			worst = math.Abs(s.DriftPPM)
		}
	}
	// NTP-disciplined realtime clock stays within ~500PPM of a healthy
	// monotonic clock, we warn way below that
	const warnThreshold = 200.0
	const failThreshold = 1000.0
	if worst > failThreshold {
		return FAIL, fmt.Sprintf("Drift against realtime clock reached %s", color.RedString("%.1fppm", worst))
	}
	if worst > warnThreshold {
		return WARN, fmt.Sprintf("Drift against realtime clock reached %s", color.YellowString("%.1fppm", worst))
	}
	return OK, fmt.Sprintf("Drift against realtime clock stayed within %s", color.GreenString("%.1fppm", worst))
}

func checkSource() (status, string) {
	name := timebase.SourceName()
	if name == "" {
		return FAIL, "No clock source reported"
	}
	return OK, fmt.Sprintf("Clock is backed by %s", color.BlueString(name))
}

var diagnosers = []diagnoser{
	checkSource,
	checkCalibration,
	checkMonotonic,
	checkResolution,
	checkDrift,
}

func runDiagnosers() {
	for _, check := range diagnosers {
		status, msg := check()
		switch status {
		case CRITICAL:
			fmt.Printf("%s %s\n", failString, msg)
			os.Exit(1)
		default:
			fmt.Printf("%s %s\n", statusToColor[status], msg)
		}
	}
}

func init() {
	RootCmd.AddCommand(diagCmd)
}

const desc = "Perform basic diagnosis of the host monotonic clock, report in human-readable form."

var diagCmd = &cobra.Command{
	Use:   "diag",
	Short: desc,
	Run: func(_ *cobra.Command, _ []string) {
		ConfigureVerbosity()
		runDiagnosers()
	},
}
