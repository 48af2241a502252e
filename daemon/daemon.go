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
	"errors"
	"fmt"
	"math"
	"os"
	"os/signal"
	"sync"
	"time"

	sd "github.com/coreos/go-systemd/daemon"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"

	"github.com/facebook/monoclock/store"
	"github.com/facebook/monoclock/timebase"
)

var errNotEnoughData = fmt.Errorf("not enough data points")

// anything past this is a broken timer, not drift
const insaneDriftPPM = 100000.0

var dcMux = sync.Mutex{}

// DataPoint is what we store in the DataPoint ring buffer
type DataPoint struct {
	// MonoUS is the monotonic clock reading in microseconds
	MonoUS int64
	// WallNS is the realtime clock reading in nanoseconds
	WallNS int64
	// ReadLatencyNS is how long the monotonic read took
	ReadLatencyNS float64
	// DriftPPM is the per-interval drift against the realtime clock
	DriftPPM float64
}

// SanityCheck checks datapoint for correctness
func (d *DataPoint) SanityCheck() error {
	if d.MonoUS <= 0 {
		return fmt.Errorf("monotonic reading is not positive")
	}
	if d.WallNS <= 0 {
		return fmt.Errorf("realtime reading is not positive")
	}
	if d.ReadLatencyNS < 0 {
		return fmt.Errorf("read latency is negative")
	}
	if math.Abs(d.DriftPPM) > insaneDriftPPM {
		return fmt.Errorf("drift of %.0fppm is not plausible", d.DriftPPM)
	}
	return nil
}

// SamplePublisher pushes live samples to subscribers
type SamplePublisher interface {
	PublishSample(sample *store.Sample)
}

// Daemon continuously audits the host monotonic clock against the
// realtime clock, does the math and publishes counters.
type Daemon struct {
	cfg     *Config
	state   *daemonState
	stats   StatsServer
	l       Logger
	manager *store.Manager
	api     *APIServer

	// injectable for tests
	readMono func() int64
	now      func() time.Time
}

// minRingSize calculates how many DataPoint we need to have in a ring buffer
// in order to provide aggregate values over 1 minute
func minRingSize(configuredRingSize int, interval time.Duration) int {
	size := configuredRingSize
	if time.Duration(size)*interval < time.Minute {
		size = int(math.Ceil(float64(time.Minute) / float64(interval)))
	}
	return size
}

// New creates new monoclock-daemon
func New(cfg *Config, stats StatsServer, l Logger) (*Daemon, error) {
	// we need at least 1m of samples for aggregate values
	effectiveRingSize := minRingSize(cfg.RingSize, cfg.Interval)
	s := &Daemon{
		stats:    stats,
		state:    newDaemonState(effectiveRingSize),
		cfg:      cfg,
		l:        l,
		readMono: timebase.Now,
		now:      time.Now,
	}
	if cfg.StoreDir != "" {
		manager, err := store.NewManager(cfg.StoreDir)
		if err != nil {
			return nil, fmt.Errorf("opening sample store in %q: %w", cfg.StoreDir, err)
		}
		s.manager = manager
	}
	if cfg.APIPort > 0 {
		s.api = NewAPIServer(s, s.manager, cfg.APIPort)
	}
	// collected values
	s.stats.SetCounter("mono_us", 0)
	s.stats.SetCounter("read_latency_ns", 0)
	s.stats.SetCounter("drift_ppb", 0)
	// calculated values
	s.stats.SetCounter("jitter_ppb", 0)
	s.stats.SetCounter("window_ppb", 0)
	s.stats.SetCounter("drift_agg_ppb", 0)
	// error counters
	s.stats.SetCounter("data_sanity_check_error", 0)
	s.stats.SetCounter("processing_error", 0)
	s.stats.SetCounter("store_error", 0)
	// threshold alarms
	s.stats.SetCounter("drift_above_threshold", 0)
	s.stats.SetCounter("jitter_above_threshold", 0)
	// aggregated values
	s.stats.SetCounter("drift_ppb.60.abs_max", 0)
	s.stats.SetCounter("read_latency_ns.60.abs_max", 0)
	return s, nil
}

// collect reads both clocks and derives per-interval drift
func (s *Daemon) collect() *DataPoint {
	t0 := s.now()
	mono := s.readMono()
	latency := float64(s.now().Sub(t0).Nanoseconds())
	dp := &DataPoint{
		MonoUS:        mono,
		WallNS:        t0.UnixNano(),
		ReadLatencyNS: latency,
	}
	if prev := s.state.lastDataPoint(); prev != nil {
		wallDeltaNS := dp.WallNS - prev.WallNS
		monoDeltaNS := (dp.MonoUS - prev.MonoUS) * 1000
		if wallDeltaNS > 0 {
			dp.DriftPPM = float64(monoDeltaNS-wallDeltaNS) / float64(wallDeltaNS) * 1000000.0
		}
	}
	return dp
}

func (s *Daemon) calcJitterWindow() (j, w float64, err error) {
	lastN := s.state.takeDataPoint(s.cfg.RingSize)
	params := prepareMathParameters(lastN)
	logSample := &LogSample{
		DriftPPM:        params["drift"][0],
		DriftMeanPPM:    mean(params["drift"]),
		DriftStddevPPM:  stddev(params["drift"]),
		LatencyNS:       params["latency"][0],
		LatencyMeanNS:   mean(params["latency"]),
		LatencyStddevNS: stddev(params["latency"]),
	}
	jRaw, err := s.cfg.Math.jitterExpr.Evaluate(mapOfInterface(params))
	if err != nil {
		return 0, 0, err
	}
	j = jRaw.(float64)
	logSample.JitterPPM = j
	s.stats.SetCounter("jitter_ppb", int64(j*1000))

	// push j to ring buffer
	s.state.pushJitter(j)

	js := s.state.takeJitter(s.cfg.RingSize)
	if len(js) != s.cfg.RingSize {
		return j, 0, fmt.Errorf("%w getting W: want %d, got %d", errNotEnoughData, s.cfg.RingSize, len(js))
	}
	logSample.JitterMeanPPM = mean(js)
	logSample.JitterStddevPPM = stddev(js)

	wRaw, err := s.cfg.Math.windowExpr.Evaluate(map[string]interface{}{"j": js})
	if err != nil {
		return j, 0, err
	}
	w = wRaw.(float64)
	logSample.WindowPPM = w
	if err := s.l.Log(logSample); err != nil {
		log.Errorf("failed to log sample: %v", err)
	}
	s.stats.SetCounter("window_ppb", int64(w*1000))
	return j, w, nil
}

func (s *Daemon) calcDriftPPM() (float64, error) {
	lastN := s.state.takeDataPoint(s.cfg.RingSize)
	if len(lastN) != s.cfg.RingSize {
		return 0, fmt.Errorf("%w calculating drift: want %d, got %d", errNotEnoughData, s.cfg.RingSize, len(lastN))
	}
	params := prepareMathParameters(lastN)
	driftRaw, err := s.cfg.Math.driftExpr.Evaluate(mapOfInterface(params))
	if err != nil {
		return 0, err
	}
	return driftRaw.(float64), nil
}

func boolToCounter(v bool) int64 {
	if v {
		return 1
	}
	return 0
}

func (s *Daemon) doWork(sampleStore store.SampleStore, dp *DataPoint) error {
	// push stats
	s.stats.SetCounter("mono_us", dp.MonoUS)
	s.stats.SetCounter("read_latency_ns", int64(dp.ReadLatencyNS))
	s.stats.SetCounter("drift_ppb", int64(dp.DriftPPM*1000))

	if err := dp.SanityCheck(); err != nil {
		s.stats.UpdateCounterBy("data_sanity_check_error", 1)
		return fmt.Errorf("sanity checking data point: %w", err)
	}
	s.stats.SetCounter("data_sanity_check_error", 0)

	// store DataPoint in ring buffer
	s.state.pushDataPoint(dp)

	dcMux.Lock()
	maxDrift := s.cfg.Dynamic.MaxDriftPPM
	maxJitter := s.cfg.Dynamic.MaxJitterPPM
	dcMux.Unlock()
	s.stats.SetCounter("drift_above_threshold", boolToCounter(math.Abs(dp.DriftPPM) > maxDrift))

	j, _, err := s.calcJitterWindow()
	if err != nil {
		if errors.Is(err, errNotEnoughData) {
			log.Warning(err)
		} else {
			return fmt.Errorf("calculating W: %w", err)
		}
	} else {
		s.stats.SetCounter("jitter_above_threshold", boolToCounter(j > maxJitter))
		driftAgg, err := s.calcDriftPPM()
		if err != nil {
			return fmt.Errorf("calculating drift: %w", err)
		}
		s.stats.SetCounter("drift_agg_ppb", int64(driftAgg*1000))
	}

	// aggregated stats over 1 minute
	maxDp := s.state.aggregateDataPointsMax(minRingSize(s.cfg.RingSize, s.cfg.Interval))
	s.stats.SetCounter("drift_ppb.60.abs_max", int64(maxDp.DriftPPM*1000))
	s.stats.SetCounter("read_latency_ns.60.abs_max", int64(maxDp.ReadLatencyNS))

	sample := &store.Sample{
		MonoUS:        dp.MonoUS,
		WallNS:        dp.WallNS,
		DriftPPM:      dp.DriftPPM,
		JitterPPM:     j,
		ReadLatencyNS: int64(dp.ReadLatencyNS),
	}
	if sampleStore != nil {
		if err := sampleStore.WriteSample(sample); err != nil {
			s.stats.UpdateCounterBy("store_error", 1)
			log.Errorf("failed to store sample: %v", err)
		}
	}
	if s.api != nil {
		s.api.PublishSample(sample)
	}
	return nil
}

// handleSighup reloads the dynamic config part on SIGHUP
func (s *Daemon) handleSighup() {
	sigchan := make(chan os.Signal, 1)
	signal.Notify(sigchan, unix.SIGHUP)
	for range sigchan {
		if s.cfg.ConfigFile == "" {
			log.Warning("SIGHUP received but no config file to reload")
			continue
		}
		log.Info("SIGHUP received, reloading config")
		dc, err := ReadDynamicConfig(s.cfg.ConfigFile)
		if err != nil {
			log.Errorf("Failed to reload config: %v. Moving on", err)
			continue
		}
		dcMux.Lock()
		s.cfg.Dynamic = *dc
		dcMux.Unlock()

		s.stats.UpdateCounterBy("reload", 1)
	}
}

func (s *Daemon) newSession() *store.Session {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return &store.Session{
		ID:        uuid.New().String(),
		StartTime: s.now(),
		Hostname:  hostname,
		Source:    timebase.SourceName(),
	}
}

func (s *Daemon) runSampler(ctx context.Context, sampleStore store.SampleStore) error {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for ; true; <-ticker.C { // first run without delay, then at interval
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		dp := s.collect()
		if err := s.doWork(sampleStore, dp); err != nil {
			log.Error(err)
			s.stats.UpdateCounterBy("processing_error", 1)
			continue
		}
		s.stats.SetCounter("processing_error", 0)
	}
	return nil
}

// Run a daemon
func (s *Daemon) Run(ctx context.Context) error {
	var sampleStore store.SampleStore
	if s.manager != nil {
		session := s.newSession()
		st, err := s.manager.CreateSession(ctx, session, s.cfg.StoreFormat)
		if err != nil {
			return fmt.Errorf("creating session: %w", err)
		}
		log.Infof("recording session %s to %s", session.ID, s.cfg.StoreDir)
		defer func() {
			end := s.now()
			session.EndTime = &end
			if err := st.UpdateSession(session); err != nil {
				log.Errorf("failed to finalize session: %v", err)
			}
			st.Close()
		}()
		sampleStore = st
	}

	go s.handleSighup()
	go s.runSysStats(ctx)

	eg, ctx := errgroup.WithContext(ctx)
	if s.api != nil {
		eg.Go(func() error {
			return s.api.Start()
		})
		// unblock api.Start when the context is done so we can finalize the session
		eg.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return s.api.Stop(shutdownCtx)
		})
	}
	eg.Go(func() error {
		return s.runSampler(ctx, sampleStore)
	})

	if ok, err := sd.SdNotify(false, sd.SdNotifyReady); err != nil {
		log.Debugf("failed to sd_notify: %v (supervised: %v)", err, ok)
	}
	return eg.Wait()
}
