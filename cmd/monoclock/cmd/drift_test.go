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
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

var testDriftSamples = []driftSample{
	{MonoUS: 1000000, WallNS: 1672531200000000000, DriftPPM: 3.0},
	{MonoUS: 2000000, WallNS: 1672531201000000000, DriftPPM: 5.0},
	{MonoUS: 3000000, WallNS: 1672531202000000000, DriftPPM: 4.0},
}

func TestPrintDriftCSV(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, printDriftCSV(buf, testDriftSamples))
	want := "mono_us,wall_ns,drift_ppm\n" +
		"1000000,1672531200000000000,3\n" +
		"2000000,1672531201000000000,5\n" +
		"3000000,1672531202000000000,4\n"
	require.Equal(t, want, buf.String())
}

func TestPrintDriftSummary(t *testing.T) {
	buf := &bytes.Buffer{}
	printDriftSummary(buf, testDriftSamples)
	out := strings.ToLower(buf.String())
	require.Contains(t, out, "mean(ppm)")
	// mean of 3, 5, 4
	require.Contains(t, out, "4.000")
	// min and max
	require.Contains(t, out, "3.000")
	require.Contains(t, out, "5.000")
}
