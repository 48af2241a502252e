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
	"bytes"
	"strings"

	version "github.com/hashicorp/go-version"
	"golang.org/x/sys/unix"
)

// CLOCK_MONOTONIC_RAW is not subject to NTP slewing, which makes it the
// honest view of the hardware counter. It only exists since 2.6.28.
var clockid = int32(unix.CLOCK_MONOTONIC_RAW)
var clockName = "clock_gettime(CLOCK_MONOTONIC_RAW)"

func init() {
	var uname unix.Utsname
	if err := unix.Uname(&uname); err != nil {
		return
	}
	release := string(bytes.TrimRight(uname.Release[:], "\x00"))
	// strip distro suffixes like "-generic" before parsing
	release = strings.SplitN(release, "-", 2)[0]
	v, err := version.NewVersion(release)
	if err != nil {
		return
	}
	minRaw := version.Must(version.NewVersion("2.6.28"))
	if v.LessThan(minRaw) {
		clockid = unix.CLOCK_MONOTONIC
		clockName = "clock_gettime(CLOCK_MONOTONIC)"
	}
}

// posixSource reads clock_gettime, ticks are nanoseconds
type posixSource struct {
	clockid int32
	name    string
}

func (s *posixSource) Ticks() uint64 {
	var ts unix.Timespec
	if err := unix.ClockGettime(s.clockid, &ts); err != nil {
		// CLOCK_MONOTONIC can't fail on any kernel we run on
		_ = unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts)
	}
	return uint64(ts.Sec)*1000000000 + uint64(ts.Nsec)
}

func (s *posixSource) Timebase() Ratio {
	return Ratio{Numer: 1, Denom: 1}
}

func (s *posixSource) Name() string {
	return s.name
}

func newPlatformSource() Source {
	return &posixSource{clockid: clockid, name: clockName}
}
