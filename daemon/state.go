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
	"container/ring"
	"math"
	"sync"
)

// state of the daemon, guarded by mutex
type daemonState struct {
	sync.Mutex

	dataPoints *ring.Ring // samples we collected from the clocks
	jjjs       *ring.Ring // J values we calculated

	last *DataPoint
}

func newDaemonState(ringSize int) *daemonState {
	s := &daemonState{
		dataPoints: ring.New(ringSize),
		jjjs:       ring.New(ringSize),
	}
	// init ring buffers with nils
	for i := 0; i < ringSize; i++ {
		s.dataPoints.Value = nil
		s.dataPoints = s.dataPoints.Next()

		s.jjjs.Value = nil
		s.jjjs = s.jjjs.Next()
	}
	return s
}

func (s *daemonState) pushDataPoint(data *DataPoint) {
	s.Lock()
	defer s.Unlock()
	s.dataPoints.Value = data
	s.dataPoints = s.dataPoints.Next()
	s.last = data
}

func (s *daemonState) lastDataPoint() *DataPoint {
	s.Lock()
	defer s.Unlock()
	return s.last
}

func (s *daemonState) takeDataPoint(n int) []*DataPoint {
	s.Lock()
	defer s.Unlock()
	result := []*DataPoint{}
	r := s.dataPoints.Prev()
	for j := 0; j < n; j++ {
		if r.Value == nil {
			continue
		}
		result = append(result, r.Value.(*DataPoint))
		r = r.Prev()
	}
	return result
}

func (s *daemonState) aggregateDataPointsMax(n int) *DataPoint {
	s.Lock()
	defer s.Unlock()
	d := &DataPoint{}
	r := s.dataPoints.Prev()
	for j := 0; j < n; j++ {
		if r.Value == nil {
			continue
		}
		dp := r.Value.(*DataPoint)
		if math.Abs(dp.DriftPPM) > d.DriftPPM {
			d.DriftPPM = math.Abs(dp.DriftPPM)
		}
		if dp.ReadLatencyNS > d.ReadLatencyNS {
			d.ReadLatencyNS = dp.ReadLatencyNS
		}
		r = r.Prev()
	}
	return d
}

func (s *daemonState) pushJitter(data float64) {
	s.Lock()
	defer s.Unlock()
	s.jjjs.Value = data
	s.jjjs = s.jjjs.Next()
}

func (s *daemonState) takeJitter(n int) []float64 {
	s.Lock()
	defer s.Unlock()
	result := []float64{}
	r := s.jjjs.Prev()
	for j := 0; j < n; j++ {
		if r.Value == nil {
			continue
		}
		result = append(result, r.Value.(float64))
		r = r.Prev()
	}
	return result
}
