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
	"fmt"
	"math"

	"github.com/Knetic/govaluate"
	"github.com/eclesh/welford"
)

// MathHelp is a help message used by flags in main
const MathHelp = `When composing the -jitter and -window formulas, here is what you can do:
supported operations:
  evaluation is done with govaluate, please check https://github.com/Knetic/govaluate/blob/master/MANUAL.md
supported variables:
  drift (list of last per-interval drift values against the realtime clock, in PPM)
  latency (list of last clock read latencies, in ns)
  driftchange (list of last changes in drift)
  driftchangeabs (list of last changes in drift, abs values)
  j (list of last calculated jitter values, only usable in the -window formula)
supported functions:
  abs(value) - absolute value of single float64, for example abs(-1) = 1
  mean(values, number) - mean of list of 'number' values, for example mean(drift, 10) will take 10 elements from array 'drift' and return mean for those values
  variance(values, number) - variance of list of 'number' values
  stddev(values, number) - standard deviation of list of 'number' values`

const (
	// MathDefaultHistory is a default number of samples to keep
	MathDefaultHistory = 60
	// MathDefaultJitter is a default formula to calculate the jitter value J
	MathDefaultJitter = "abs(mean(drift, 60)) + 1.0 * stddev(drift, 60)"
	// MathDefaultWindow is a default formula to calculate the drift uncertainty window W
	MathDefaultWindow = "mean(j, 60) + 4.0 * stddev(j, 60)"
	// MathDefaultDrift is a default formula to calculate aggregated drift
	MathDefaultDrift = "1.5 * mean(driftchangeabs, 59)"
)

// Math stores our math expressions for J and W values in two forms: string and parsed
type Math struct {
	Jitter     string // J, our value for clock stability over the last N samples
	jitterExpr *govaluate.EvaluableExpression
	Window     string // W, window of drift uncertainty
	windowExpr *govaluate.EvaluableExpression
	Drift      string // aggregated drift in PPM over the whole ring
	driftExpr  *govaluate.EvaluableExpression
}

// Prepare will prepare all math expressions
func (m *Math) Prepare() error {
	var err error
	m.jitterExpr, err = prepareExpression(m.Jitter)
	if err != nil {
		return fmt.Errorf("evaluating Jitter: %w", err)
	}
	m.windowExpr, err = prepareExpression(m.Window)
	if err != nil {
		return fmt.Errorf("evaluating Window: %w", err)
	}
	m.driftExpr, err = prepareExpression(m.Drift)
	if err != nil {
		return fmt.Errorf("evaluating Drift: %w", err)
	}
	return nil
}

func mean(input []float64) float64 {
	s := welford.New()
	for _, v := range input {
		s.Add(v)
	}
	return s.Mean()
}

func variance(input []float64) float64 {
	s := welford.New()
	for _, v := range input {
		s.Add(v)
	}
	return s.Variance()
}

func stddev(input []float64) float64 {
	s := welford.New()
	for _, v := range input {
		s.Add(v)
	}
	return s.Stddev()
}

var supportedVariables = []string{
	"drift",
	"latency",
	"j",
	"driftchange",
	"driftchangeabs",
}

func isSupportedVar(varName string) bool {
	for _, v := range supportedVariables {
		if v == varName {
			return true
		}
	}
	return false
}

// all the functions we support in expressions
var functions = map[string]govaluate.ExpressionFunction{
	"abs": func(args ...interface{}) (interface{}, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("abs: wrong number of arguments: want 1, got %d", len(args))
		}
		val := args[0].(float64)
		return math.Abs(val), nil
	},
	"mean": func(args ...interface{}) (interface{}, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("mean: wrong number of arguments: want 2, got %d", len(args))
		}
		vals := args[0].([]float64)
		nSamples := int(args[1].(float64))
		if len(vals) < nSamples {
			return mean(vals), nil
		}
		return mean(vals[:nSamples]), nil
	},
	"variance": func(args ...interface{}) (interface{}, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("variance: wrong number of arguments: want 2, got %d", len(args))
		}
		vals := args[0].([]float64)
		nSamples := int(args[1].(float64))
		if len(vals) < nSamples {
			return variance(vals), nil
		}
		return variance(vals[:nSamples]), nil
	},
	"stddev": func(args ...interface{}) (interface{}, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("stddev: wrong number of arguments: want 2, got %d", len(args))
		}
		vals := args[0].([]float64)
		nSamples := int(args[1].(float64))
		if len(vals) < nSamples {
			return stddev(vals), nil
		}
		return stddev(vals[:nSamples]), nil
	},
}

func prepareExpression(exprStr string) (*govaluate.EvaluableExpression, error) {
	expr, err := govaluate.NewEvaluableExpressionWithFunctions(exprStr, functions)
	if err != nil {
		return nil, err
	}
	for _, v := range expr.Vars() {
		if !isSupportedVar(v) {
			return nil, fmt.Errorf("unsupported variable %q", v)
		}
	}
	return expr, nil
}

func prepareMathParameters(lastN []*DataPoint) map[string][]float64 {
	size := len(lastN)
	drifts := make([]float64, size)
	latencies := make([]float64, size)
	driftChanges := make([]float64, size-1)
	driftChangesAbs := make([]float64, size-1)
	prev := lastN[0]
	for i := 0; i < size; i++ {
		drifts[i] = lastN[i].DriftPPM
		latencies[i] = lastN[i].ReadLatencyNS
		if i != 0 {
			driftChanges[i-1] = lastN[i].DriftPPM - prev.DriftPPM
			driftChangesAbs[i-1] = math.Abs(lastN[i].DriftPPM - prev.DriftPPM)
		}
		prev = lastN[i]
	}
	return map[string][]float64{
		"drift":          drifts,
		"latency":        latencies,
		"driftchange":    driftChanges,
		"driftchangeabs": driftChangesAbs,
	}
}

func mapOfInterface(m map[string][]float64) map[string]interface{} {
	mm := make(map[string]interface{}, len(m))
	for k, v := range m {
		mm[k] = v
	}
	return mm
}
