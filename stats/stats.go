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

// Package stats consumes counters published by the monoclock daemon
// monitoring endpoint and re-exports them.
package stats

import (
	"encoding/json"
	"io"
	"net/http"
	"time"
)

// Counters is what the daemon monitoring endpoint serves
type Counters map[string]int64

// FetchCounters returns the counters map fetched from the url
func FetchCounters(url string) (Counters, error) {
	counters := make(Counters)
	c := http.Client{
		Timeout: time.Second * 2,
	}

	resp, err := c.Get(url)
	if err != nil {
		return counters, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return counters, err
	}
	err = json.Unmarshal(b, &counters)
	return counters, err
}
