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

package stats

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFetchCounters(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintln(w, `{"drift_ppm": 12, "jitter_ppm": 3, "mono_us": 987654321}`)
	}))
	defer ts.Close()

	counters, err := FetchCounters(ts.URL)
	require.NoError(t, err)
	want := Counters{
		"drift_ppm":  12,
		"jitter_ppm": 3,
		"mono_us":    987654321,
	}
	require.Equal(t, want, counters)
}

func TestFetchCountersBadJSON(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintln(w, "not json")
	}))
	defer ts.Close()

	_, err := FetchCounters(ts.URL)
	require.Error(t, err)
}

func TestFlattenKey(t *testing.T) {
	require.Equal(t, "drift_ppm_60_abs_max", flattenKey("drift_ppm.60.abs_max"))
	require.Equal(t, "runtime_mem_gc_count", flattenKey("runtime.mem.gc.count"))
	require.Equal(t, "a_b_c_d_e_f", flattenKey("a b.c-d=e/f"))
}
