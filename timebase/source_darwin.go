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

/*
#include <mach/mach_time.h>
*/
import "C"

// machSource reads mach_absolute_time, which ticks in units of the
// mach timebase. Intel reports 1/1, Apple silicon reports ratios
// like 125/3 (24MHz counter).
type machSource struct{}

func (machSource) Ticks() uint64 {
	return uint64(C.mach_absolute_time())
}

func (machSource) Timebase() Ratio {
	var tb C.mach_timebase_info_data_t
	if C.mach_timebase_info(&tb) != C.KERN_SUCCESS {
		return Ratio{}
	}
	return Ratio{Numer: uint32(tb.numer), Denom: uint32(tb.denom)}
}

func (machSource) Name() string {
	return "mach_absolute_time"
}

func newPlatformSource() Source {
	return machSource{}
}
