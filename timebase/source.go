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

//go:generate mockgen -source source.go -destination mock_source_test.go -package timebase

// Source is a platform monotonic counter.
type Source interface {
	// Ticks returns the raw counter value. Must never decrease.
	Ticks() uint64
	// Timebase returns the tick-to-nanosecond ratio.
	// Called at most once per Reader.
	Timebase() Ratio
	// Name identifies the underlying platform capability
	Name() string
}
