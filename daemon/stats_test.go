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
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStatsCounters(t *testing.T) {
	stats := NewStats()
	stats.SetCounter("drift_ppb", 4000)
	stats.UpdateCounterBy("processing_error", 1)
	stats.UpdateCounterBy("processing_error", 2)

	counters := stats.Get()
	require.Equal(t, int64(4000), counters["drift_ppb"])
	require.Equal(t, int64(3), counters["processing_error"])

	// Get returns a copy
	counters["drift_ppb"] = 0
	require.Equal(t, int64(4000), stats.Get()["drift_ppb"])

	stats.Reset()
	counters = stats.Get()
	require.Equal(t, int64(0), counters["drift_ppb"])
	require.Equal(t, int64(0), counters["processing_error"])
}

func TestJSONStatsHandleRequest(t *testing.T) {
	stats := NewJSONStats()
	stats.SetCounter("mono_us", 1000000)
	stats.SetCounter("jitter_ppb", 2500)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()
	stats.handleRequest(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	require.JSONEq(t, `{"mono_us": 1000000, "jitter_ppb": 2500}`, rr.Body.String())
}
