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

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"time"

	_ "net/http/pprof"

	"github.com/davecgh/go-spew/spew"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/facebook/monoclock/daemon"
	"github.com/facebook/monoclock/store"
)

func main() {
	var (
		cfg            = &daemon.Config{}
		err            error
		cfgPath        string
		csvLog         bool
		csvPath        string
		verbose        bool
		monitoringPort int
		pprofAddr      string
	)

	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "monoclock daemon\n")
		fmt.Fprintf(flag.CommandLine.Output(), "%s\n\nFlags:\n", daemon.MathHelp)
		flag.PrintDefaults()
	}

	flag.IntVar(&monitoringPort, "monitoringport", 21579, "Port to run monitoring server on")
	flag.IntVar(&cfg.APIPort, "apiport", 0, "Port to run HTTP API and websocket stream on, 0 means disabled")
	flag.IntVar(&cfg.RingSize, "buffer", daemon.MathDefaultHistory, "Size of ring buffers, must be at least size of largest num of samples used in jitter and window formulas")
	flag.StringVar(&cfg.Math.Jitter, "jitter", daemon.MathDefaultJitter, "Math expression for jitter J")
	flag.StringVar(&cfg.Math.Window, "window", daemon.MathDefaultWindow, "Math expression for drift uncertainty window W")
	flag.StringVar(&cfg.Math.Drift, "drift", daemon.MathDefaultDrift, "Math expression for aggregated drift PPM")
	flag.DurationVar(&cfg.Interval, "i", time.Second, "Interval at which we sample the clocks")
	flag.StringVar(&cfg.StoreDir, "storedir", "", "Record samples as a session into this directory, empty means disabled")
	flag.StringVar(&cfg.StoreFormat, "storeformat", store.FormatJSONL, "Format of the recorded session, jsonl or sqlite")
	flag.Float64Var(&cfg.Dynamic.MaxDriftPPM, "maxdrift", 500, "Alarm threshold for drift against the realtime clock, PPM")
	flag.Float64Var(&cfg.Dynamic.MaxJitterPPM, "maxjitter", 100, "Alarm threshold for the calculated jitter value, PPM")

	flag.StringVar(&cfgPath, "cfg", "", "Path to config")
	flag.BoolVar(&csvLog, "csvlog", true, "Log all the metrics as CSV to log")
	flag.StringVar(&csvPath, "csvpath", "", "write CSV log into this file")
	flag.StringVar(&pprofAddr, "pprof", "", "Address to have the profiler listen on, disabled if empty")
	flag.BoolVar(&verbose, "verbose", false, "Verbose logging")

	flag.Parse()

	log.SetReportCaller(true)
	if verbose {
		log.SetLevel(log.DebugLevel)
	}
	if csvPath != "" && !csvLog {
		log.Fatalf("'csvpath' flag requires 'csvlog' flag")
	}
	if cfgPath != "" {
		log.Warningf("using config from %s, flag values are ignored", cfgPath)
		cfg, err = daemon.ReadConfig(cfgPath)
		if err != nil {
			log.Fatal(err)
		}
		cfg.ConfigFile = cfgPath
	}
	if err := cfg.EvalAndValidate(); err != nil {
		log.Fatal(err)
	}
	log.Debugf("Config: %s", spew.Sdump(*cfg))

	if pprofAddr != "" {
		go func() {
			err := http.ListenAndServe(pprofAddr, nil)
			if err != nil {
				log.Errorf("Failed to start pprof. Err: %v", err)
			}
		}()
	}

	// set up sample logging
	w := log.StandardLogger().Writer()
	defer w.Close()
	var l daemon.Logger = daemon.NewDummyLogger(w)
	if csvLog {
		csvW := io.Writer(w)
		// set up logging of CSV samples to file
		if csvPath != "" {
			f, err := os.Create(csvPath)
			if err != nil {
				log.Fatal(err)
			}
			defer f.Close()
			// write both to stderr and file
			csvW = io.MultiWriter(w, f)
		}
		l = daemon.NewCSVLogger(csvW)
	}
	stats := daemon.NewJSONStats()
	go stats.Start(monitoringPort)
	s, err := daemon.New(cfg, stats, l)
	if err != nil {
		log.Fatal(err)
	}
	// SIGINT/SIGTERM stop the sampler and finalize the recorded session
	ctx, cancel := signal.NotifyContext(context.Background(), unix.SIGINT, unix.SIGTERM)
	defer cancel()
	if err := s.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal(err)
	}
}
