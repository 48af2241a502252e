//go:build !linux && !darwin

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
	_ "unsafe" // for go:linkname
)

//go:linkname runtimeNano runtime.nanotime
func runtimeNano() int64

// runtimeSource falls back to the Go runtime's monotonic clock,
// already expressed in nanoseconds on every platform
type runtimeSource struct{}

func (runtimeSource) Ticks() uint64 {
	return uint64(runtimeNano())
}

func (runtimeSource) Timebase() Ratio {
	return Ratio{Numer: 1, Denom: 1}
}

func (runtimeSource) Name() string {
	return "runtime.nanotime"
}

func newPlatformSource() Source {
	return runtimeSource{}
}
