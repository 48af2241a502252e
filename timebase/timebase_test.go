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
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type fakeSource struct {
	ticks         atomic.Uint64
	ratio         Ratio
	timebaseCalls atomic.Int32
}

func (f *fakeSource) Ticks() uint64 {
	return f.ticks.Load()
}

func (f *fakeSource) Timebase() Ratio {
	f.timebaseCalls.Add(1)
	return f.ratio
}

func (f *fakeSource) Name() string {
	return "fake"
}

func TestNowIdentityRatio(t *testing.T) {
	src := &fakeSource{ratio: Ratio{Numer: 1, Denom: 1}}
	r := NewReader(src)

	src.ticks.Store(5000000)
	require.Equal(t, int64(5000), r.Now())

	// integer division truncates
	src.ticks.Store(1999)
	require.Equal(t, int64(1), r.Now())
	src.ticks.Store(999)
	require.Equal(t, int64(0), r.Now())

	// no overflow near the top of the int64 range
	src.ticks.Store(uint64(math.MaxInt64))
	require.Equal(t, int64(math.MaxInt64/1000), r.Now())
}

func TestNowGeneralRatio(t *testing.T) {
	src := &fakeSource{ratio: Ratio{Numer: 1000, Denom: 3}}
	r := NewReader(src)

	// 3 ticks * (0.001 * 1000/3) = exactly 1us
	src.ticks.Store(3)
	require.Equal(t, int64(1), r.Now())

	// large tick counts must not overflow: 2^62 * 1000 doesn't fit in
	// int64, the float path pre-divides instead
	bigTicks := uint64(1) << 62
	src.ticks.Store(bigTicks)
	want := float64(bigTicks) * 0.001 * 1000.0 / 3.0
	assert.InEpsilon(t, want, float64(r.Now()), 1e-9)
}

func TestNowAppleSiliconRatio(t *testing.T) {
	// 24MHz counter as reported on Apple silicon
	src := &fakeSource{ratio: Ratio{Numer: 125, Denom: 3}}
	r := NewReader(src)

	// one second worth of ticks is one million microseconds
	src.ticks.Store(24000000)
	require.Equal(t, int64(1000000), r.Now())
}

func TestNowMonotonic(t *testing.T) {
	for _, ratio := range []Ratio{{1, 1}, {1000, 3}, {125, 3}, {1, 1000}} {
		src := &fakeSource{ratio: ratio}
		r := NewReader(src)
		prev := r.Now()
		for ticks := uint64(0); ticks < 10000; ticks += 97 {
			src.ticks.Store(ticks)
			cur := r.Now()
			require.GreaterOrEqual(t, cur, prev, "ratio %v ticks %d", ratio, ticks)
			prev = cur
		}
	}
}

func TestCalibrationCachedAfterFirstRead(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	src := NewMockSource(ctrl)
	src.EXPECT().Timebase().Return(Ratio{Numer: 1000, Denom: 3}).Times(1)
	src.EXPECT().Ticks().Return(uint64(3)).AnyTimes()

	r := NewReader(src)
	for i := 0; i < 100; i++ {
		require.Equal(t, int64(1), r.Now())
	}
	ratio, factor := r.Calibration()
	require.Equal(t, Ratio{Numer: 1000, Denom: 3}, ratio)
	assert.InEpsilon(t, 1.0/3.0, factor, 1e-9)
}

func TestConcurrentFirstUse(t *testing.T) {
	src := &fakeSource{ratio: Ratio{Numer: 125, Denom: 3}}
	src.ticks.Store(24000000)
	r := NewReader(src)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				assert.Equal(t, int64(1000000), r.Now())
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), src.timebaseCalls.Load())
	ratio, _ := r.Calibration()
	require.Equal(t, Ratio{Numer: 125, Denom: 3}, ratio)
}

func TestZeroRatioFallsBackToIdentity(t *testing.T) {
	// a source that can't report its timebase is treated as 1:1,
	// there is no error path
	src := &fakeSource{ratio: Ratio{}}
	src.ticks.Store(5000000)
	r := NewReader(src)
	require.Equal(t, int64(5000), r.Now())
	ratio, factor := r.Calibration()
	require.Equal(t, Ratio{Numer: 1, Denom: 1}, ratio)
	assert.InEpsilon(t, 0.001, factor, 1e-9)
}

func TestSince(t *testing.T) {
	src := &fakeSource{ratio: Ratio{Numer: 1, Denom: 1}}
	r := NewReader(src)

	src.ticks.Store(1000000)
	start := r.Now()
	src.ticks.Store(3500000)
	require.Equal(t, 2500*time.Microsecond, r.Since(start))
	require.Equal(t, 3500*time.Microsecond, r.NowDuration())
}

func TestRatioIdentity(t *testing.T) {
	require.True(t, Ratio{Numer: 1, Denom: 1}.Identity())
	require.False(t, Ratio{Numer: 1000, Denom: 3}.Identity())
	require.True(t, Ratio{}.IsZero())
	require.False(t, Ratio{Numer: 1, Denom: 1}.IsZero())
}

func TestPlatformReader(t *testing.T) {
	// whatever the platform, readings are non-decreasing and calibration sane
	first := Now()
	for i := 0; i < 1000; i++ {
		cur := Now()
		require.GreaterOrEqual(t, cur, first)
		first = cur
	}
	ratio, factor := Calibration()
	require.False(t, ratio.IsZero())
	require.Greater(t, factor, 0.0)
	require.NotEmpty(t, SourceName())
}
