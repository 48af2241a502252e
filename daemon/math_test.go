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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMean(t *testing.T) {
	input := []float64{1.0, 2.0, 3.0, 4.0, 5.0}
	assert.Equal(t, 3.0, mean(input))
	assert.Equal(t, 0.0, mean([]float64{}))
}

func TestVariance(t *testing.T) {
	input := []float64{1.0, 2.0, 3.0, 4.0, 5.0}
	assert.Equal(t, 2.5, variance(input))
}

func TestStddev(t *testing.T) {
	input := []float64{2.0, 2.0, 2.0, 2.0}
	assert.Equal(t, 0.0, stddev(input))
	input = []float64{1.0, 5.0}
	assert.InEpsilon(t, 2.8284271247461903, stddev(input), 0.00001)
}

func TestMathPrepare(t *testing.T) {
	m := &Math{
		Jitter: MathDefaultJitter,
		Window: MathDefaultWindow,
		Drift:  MathDefaultDrift,
	}
	require.NoError(t, m.Prepare())
	require.NotNil(t, m.jitterExpr)
	require.NotNil(t, m.windowExpr)
	require.NotNil(t, m.driftExpr)

	// variables we never heard of are rejected
	m = &Math{
		Jitter: "mean(magic, 10)",
		Window: MathDefaultWindow,
		Drift:  MathDefaultDrift,
	}
	require.Error(t, m.Prepare())

	// as is broken syntax
	m = &Math{
		Jitter: "mean(drift,",
		Window: MathDefaultWindow,
		Drift:  MathDefaultDrift,
	}
	require.Error(t, m.Prepare())
}

func TestMathEvaluate(t *testing.T) {
	m := &Math{
		Jitter: "abs(mean(drift, 3)) + 1.0 * stddev(drift, 3)",
		Window: "mean(j, 3)",
		Drift:  "1.5 * mean(driftchangeabs, 2)",
	}
	require.NoError(t, m.Prepare())

	params := map[string][]float64{
		"drift": {-4.0, -4.0, -4.0},
	}
	jRaw, err := m.jitterExpr.Evaluate(mapOfInterface(params))
	require.NoError(t, err)
	assert.Equal(t, 4.0, jRaw.(float64))

	wRaw, err := m.windowExpr.Evaluate(map[string]interface{}{"j": []float64{4.0, 5.0, 6.0}})
	require.NoError(t, err)
	assert.Equal(t, 5.0, wRaw.(float64))
}

func TestPrepareMathParameters(t *testing.T) {
	lastN := []*DataPoint{
		{DriftPPM: 1.0, ReadLatencyNS: 100.0},
		{DriftPPM: 3.0, ReadLatencyNS: 200.0},
		{DriftPPM: 2.0, ReadLatencyNS: 150.0},
	}
	params := prepareMathParameters(lastN)
	assert.Equal(t, []float64{1.0, 3.0, 2.0}, params["drift"])
	assert.Equal(t, []float64{100.0, 200.0, 150.0}, params["latency"])
	assert.Equal(t, []float64{2.0, -1.0}, params["driftchange"])
	assert.Equal(t, []float64{2.0, 1.0}, params["driftchangeabs"])
}
