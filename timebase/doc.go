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

/*
Package timebase reads the hardware monotonic counter and converts it
into microseconds, regardless of the counter's native tick resolution.

The conversion ratio is queried from the platform exactly once per process
and cached. On platforms where one tick is one nanosecond (linux and
everything covered by the Go runtime clock) the conversion is an exact
integer division. On platforms with a non-unity timebase (mach on Apple
silicon reports ratios like 125/3) the conversion goes through a
precomputed float64 factor: multiplying a tick count near 2^63 by the
numerator first would overflow int64, pre-dividing avoids that at the
cost of sub-microsecond precision.

Values returned by Now are only good for measuring elapsed intervals.
They are unrelated to wall clock time and have no meaning outside of the
current process.
*/
package timebase
