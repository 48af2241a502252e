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

package timebase

import (
	"sync"
	"time"
)

// Ratio is the platform-supplied fraction converting one hardware tick
// into nanoseconds.
type Ratio struct {
	Numer uint32
	Denom uint32
}

// Identity reports whether ticks already are nanoseconds
func (r Ratio) Identity() bool {
	return r.Numer == 1 && r.Denom == 1
}

// IsZero reports whether the ratio was never calibrated.
// Denom == 0 is the "not yet computed" sentinel, a calibrated ratio
// always has a non-zero denominator.
func (r Ratio) IsZero() bool {
	return r.Denom == 0
}

// Reader converts raw ticks from a Source into microseconds.
// The timebase ratio is queried from the source once, on first use,
// and cached for the lifetime of the Reader. Safe for concurrent use.
type Reader struct {
	src Source

	once   sync.Once
	ratio  Ratio
	factor float64 // 0.001 * Numer / Denom, tick -> microseconds
}

// NewReader returns a Reader on top of the given tick source
func NewReader(src Source) *Reader {
	return &Reader{src: src}
}

func (r *Reader) calibrate() {
	r.once.Do(func() {
		tb := r.src.Timebase()
		if tb.IsZero() {
			// the source couldn't report a ratio, treat ticks as nanoseconds
			tb = Ratio{Numer: 1, Denom: 1}
		}
		r.ratio = tb
		r.factor = 0.001 * float64(tb.Numer) / float64(tb.Denom)
	})
}

// Now returns the current monotonic reading in microseconds.
// The result never decreases between calls within one process.
func (r *Reader) Now() int64 {
	r.calibrate()
	ticks := r.src.Ticks()
	if r.ratio.Identity() {
		// ticks are nanoseconds, exact integer division
		return int64(ticks / 1000)
	}
	// general ratio. ticks * Numer can overflow 64 bits long before
	// ticks itself does, so scale with the precomputed float factor.
	return int64(float64(ticks) * r.factor)
}

// NowDuration returns the current monotonic reading as time.Duration
func (r *Reader) NowDuration() time.Duration {
	return time.Duration(r.Now()) * time.Microsecond
}

// Since returns the time elapsed since an earlier Now() reading
func (r *Reader) Since(us int64) time.Duration {
	return time.Duration(r.Now()-us) * time.Microsecond
}

// Calibration returns the cached tick ratio and the conversion factor,
// calibrating first if no one read the clock yet.
func (r *Reader) Calibration() (Ratio, float64) {
	r.calibrate()
	return r.ratio, r.factor
}

// SourceName tells which platform capability backs this reader
func (r *Reader) SourceName() string {
	return r.src.Name()
}

// reader behind the package-level functions
var defaultReader = NewReader(newPlatformSource())

// Now returns the current monotonic reading of the platform counter in microseconds
func Now() int64 {
	return defaultReader.Now()
}

// NowDuration returns the current monotonic reading of the platform counter as time.Duration
func NowDuration() time.Duration {
	return defaultReader.NowDuration()
}

// Since returns the time elapsed since an earlier Now() reading
func Since(us int64) time.Duration {
	return defaultReader.Since(us)
}

// Calibration returns the cached tick ratio and conversion factor of the platform counter
func Calibration() (Ratio, float64) {
	return defaultReader.Calibration()
}

// SourceName tells which platform capability backs the package-level reader
func SourceName() string {
	return defaultReader.SourceName()
}
