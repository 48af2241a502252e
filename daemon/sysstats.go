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
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/process"
	log "github.com/sirupsen/logrus"
)

var procStartTime = time.Now()

// how often we refresh process and runtime counters
const sysStatsInterval = 30 * time.Second

// sysStats gathers process and Go runtime counters
type sysStats struct {
	memstats *runtime.MemStats
}

// collectRuntimeStats gathers cpu, mem, gc statistics
func (s *sysStats) collectRuntimeStats(interval time.Duration) (map[string]uint64, error) {
	stats := make(map[string]uint64)
	m := &runtime.MemStats{}
	runtime.ReadMemStats(m)
	lastStats := s.memstats

	// Process metrics
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}
	stats["process.uptime"] = uint64(time.Now().Unix() - procStartTime.Unix())

	if val, err := proc.Percent(0); err == nil {
		stats[fmt.Sprintf("process.cpu_pct.avg.%d", int(interval.Seconds()))] = uint64(val * 100)
	}

	if val, err := proc.MemoryInfo(); err == nil {
		stats["process.rss"] = val.RSS
		stats["process.vms"] = val.VMS
		stats["process.swap"] = val.Swap
	}

	if val, err := proc.NumFDs(); err == nil {
		stats["process.num_fds"] = uint64(val)
	}

	if val, err := proc.NumThreads(); err == nil {
		stats["process.num_threads"] = uint64(val)
	}

	// Go Runtime metrics
	stats["runtime.cpu.goroutines"] = uint64(runtime.NumGoroutine())
	stats["runtime.cpu.cgo_calls"] = uint64(runtime.NumCgoCall())
	stats["runtime.mem.alloc"] = m.Alloc
	stats["runtime.mem.total"] = m.TotalAlloc
	stats["runtime.mem.sys"] = m.Sys
	stats["runtime.mem.heap.alloc"] = m.HeapAlloc
	stats["runtime.mem.heap.sys"] = m.HeapSys
	stats["runtime.mem.heap.inuse"] = m.HeapInuse
	stats["runtime.mem.heap.objects"] = m.HeapObjects
	stats["runtime.mem.gc.sys"] = m.GCSys
	stats["runtime.mem.gc.next"] = m.NextGC
	stats["runtime.mem.gc.pause_total"] = m.PauseTotalNs
	stats["runtime.mem.gc.count"] = uint64(m.NumGC)
	if lastStats != nil {
		if m.PauseTotalNs >= lastStats.PauseTotalNs {
			stats[fmt.Sprintf("runtime.mem.gc.pause.sum.%d", int(interval.Seconds()))] = m.PauseTotalNs - lastStats.PauseTotalNs
		}
	}
	s.memstats = m
	return stats, nil
}

// runSysStats periodically merges process counters into the stats server
func (s *Daemon) runSysStats(ctx context.Context) {
	ss := &sysStats{}
	ticker := time.NewTicker(sysStatsInterval)
	defer ticker.Stop()
	for ; true; <-ticker.C {
		select {
		case <-ctx.Done():
			return
		default:
		}
		stats, err := ss.collectRuntimeStats(sysStatsInterval)
		if err != nil {
			log.Errorf("collecting sys stats: %v", err)
			continue
		}
		for k, v := range stats {
			s.stats.SetCounter(fmt.Sprintf("sysstats.%s", k), int64(v))
		}
	}
}
