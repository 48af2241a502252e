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
	"fmt"
	"os"
	"time"

	yaml "gopkg.in/yaml.v2"

	"github.com/facebook/monoclock/store"
)

var errInsaneThreshold = fmt.Errorf("thresholds must be positive")

// DynamicConfig is a set of options which don't need a daemon restart,
// reloaded from the config file on SIGHUP
type DynamicConfig struct {
	// MaxDriftPPM is how far the monotonic clock may drift from the
	// realtime clock before we raise the alarm counter
	MaxDriftPPM float64
	// MaxJitterPPM is the ceiling for the calculated jitter value
	MaxJitterPPM float64
}

// Sanity checks that thresholds have plausible values
func (dc *DynamicConfig) Sanity() error {
	if dc.MaxDriftPPM <= 0 || dc.MaxJitterPPM <= 0 {
		return errInsaneThreshold
	}
	return nil
}

// ReadDynamicConfig reads only the dynamic part from the config file
func ReadDynamicConfig(path string) (*DynamicConfig, error) {
	cData, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c := Config{}
	if err := yaml.Unmarshal(cData, &c); err != nil {
		return nil, err
	}
	dc := c.Dynamic
	if err := dc.Sanity(); err != nil {
		return nil, err
	}
	return &dc, nil
}

// Config represents configuration we expect to read from file
type Config struct {
	Interval    time.Duration // how often we sample the clocks
	RingSize    int           // must be at least the size of N samples we use in expressions
	Math        Math          // configuration for calculation we'll be doing
	APIPort     int           // where the HTTP API and websocket stream listen, 0 disables
	StoreDir    string        // where recorded sessions go, empty disables recording
	StoreFormat string        // jsonl or sqlite
	Dynamic     DynamicConfig // reloadable thresholds

	// path the dynamic part is reloaded from on SIGHUP, set by main
	ConfigFile string `yaml:"-"`
}

// EvalAndValidate makes sure config is valid and evaluates expressions for further use.
func (c *Config) EvalAndValidate() error {
	if c.RingSize <= 0 {
		return fmt.Errorf("bad config: 'ringsize' must be >0")
	}
	if c.Interval <= 0 {
		return fmt.Errorf("bad config: 'interval' must be >0")
	}
	if c.Interval > time.Minute {
		return fmt.Errorf("bad config: 'interval' is over a minute")
	}
	if c.StoreDir != "" {
		switch c.StoreFormat {
		case "", store.FormatJSONL, store.FormatSQLite:
		default:
			return fmt.Errorf("bad config: unknown 'storeformat' %q", c.StoreFormat)
		}
	}
	if err := c.Dynamic.Sanity(); err != nil {
		return fmt.Errorf("bad config: %w", err)
	}
	return c.Math.Prepare()
}

// ReadConfig reads config and unmarshals it from yaml into Config
func ReadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c := Config{}
	err = yaml.UnmarshalStrict(data, &c)
	return &c, err
}
