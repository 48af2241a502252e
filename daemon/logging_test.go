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

package daemon

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

var testSample0 = LogSample{
	DriftPPM:        -2.5,
	DriftMeanPPM:    -2.1,
	DriftStddevPPM:  0.3,
	LatencyNS:       120,
	LatencyMeanNS:   115.5,
	LatencyStddevNS: 10.25,
	JitterPPM:       2.4,
	JitterMeanPPM:   2.2,
	JitterStddevPPM: 0.1,
	WindowPPM:       2.6,
}

var testSample1 = LogSample{
	DriftPPM:  0,
	JitterPPM: 1.5,
	WindowPPM: 1.75,
}

func TestLogSample_CSVRecords(t *testing.T) {
	got := testSample0.CSVRecords()
	require.Equal(t, len(header), len(got))
	want := []string{
		"-2.5",
		"-2.1",
		"0.3",
		"120",
		"115.5",
		"10.25",
		"2.4",
		"2.2",
		"0.1",
		"2.6",
	}
	require.Equal(t, want, got)
}

func TestCSVLogger(t *testing.T) {
	buf := &bytes.Buffer{}
	l := NewCSVLogger(buf)
	require.NoError(t, l.Log(&testSample0))
	require.NoError(t, l.Log(&testSample1))
	want := "drift,drift_mean,drift_stddev,latency,latency_mean,latency_stddev,jitter,jitter_mean,jitter_stddev,window\n" +
		"-2.5,-2.1,0.3,120,115.5,10.25,2.4,2.2,0.1,2.6\n" +
		"0,0,0,0,0,0,1.5,0,0,1.75\n"
	require.Equal(t, want, buf.String())
}

func TestDummyLogger(t *testing.T) {
	buf := &bytes.Buffer{}
	l := NewDummyLogger(buf)
	require.NoError(t, l.Log(&testSample1))
	require.Equal(t, "j = 1.5ppm, w = 1.75ppm\n", buf.String())
}
