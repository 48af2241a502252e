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
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// LogSample has all the measurements we may want to log
type LogSample struct {
	DriftPPM        float64
	DriftMeanPPM    float64
	DriftStddevPPM  float64
	LatencyNS       float64
	LatencyMeanNS   float64
	LatencyStddevNS float64
	JitterPPM       float64
	JitterMeanPPM   float64
	JitterStddevPPM float64
	WindowPPM       float64
}

var header = []string{
	"drift",
	"drift_mean",
	"drift_stddev",
	"latency",
	"latency_mean",
	"latency_stddev",
	"jitter",
	"jitter_mean",
	"jitter_stddev",
	"window",
}

// CSVRecords returns all data from this sample as CSV. Must be synced with `header` variable.
func (s *LogSample) CSVRecords() []string {
	return []string{
		strconv.FormatFloat(s.DriftPPM, 'f', -1, 64),
		strconv.FormatFloat(s.DriftMeanPPM, 'f', -1, 64),
		strconv.FormatFloat(s.DriftStddevPPM, 'f', -1, 64),
		strconv.FormatFloat(s.LatencyNS, 'f', -1, 64),
		strconv.FormatFloat(s.LatencyMeanNS, 'f', -1, 64),
		strconv.FormatFloat(s.LatencyStddevNS, 'f', -1, 64),
		strconv.FormatFloat(s.JitterPPM, 'f', -1, 64),
		strconv.FormatFloat(s.JitterMeanPPM, 'f', -1, 64),
		strconv.FormatFloat(s.JitterStddevPPM, 'f', -1, 64),
		strconv.FormatFloat(s.WindowPPM, 'f', -1, 64),
	}
}

// Logger is something that can store LogSample somewhere
type Logger interface {
	Log(*LogSample) error
}

// CSVLogger logs Sample as CSV into given writer
type CSVLogger struct {
	csvwriter     *csv.Writer
	printedHeader bool
}

// NewCSVLogger returns new CSVLogger
func NewCSVLogger(w io.Writer) *CSVLogger {
	return &CSVLogger{
		csvwriter: csv.NewWriter(w),
	}
}

// Log implements Logger interface
func (l *CSVLogger) Log(s *LogSample) error {
	if !l.printedHeader {
		if err := l.csvwriter.Write(header); err != nil {
			return err
		}
		l.printedHeader = true
	}
	csv := s.CSVRecords()
	if err := l.csvwriter.Write(csv); err != nil {
		return err
	}
	l.csvwriter.Flush()
	return nil
}

// DummyLogger logs J and W to given writer
type DummyLogger struct {
	w io.Writer
}

// NewDummyLogger returns new DummyLogger
func NewDummyLogger(w io.Writer) *DummyLogger {
	return &DummyLogger{w: w}
}

// Log implements Logger interface
func (l *DummyLogger) Log(s *LogSample) error {
	_, err := fmt.Fprintf(l.w, "j = %vppm, w = %vppm\n", s.JitterPPM, s.WindowPPM)
	return err
}
