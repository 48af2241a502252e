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
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEvalAndValidate(t *testing.T) {
	c := &Config{
		Math: Math{
			Jitter: "1",
			Window: "1",
			Drift:  "1",
		},
		Dynamic: DynamicConfig{MaxDriftPPM: 500, MaxJitterPPM: 100},
	}
	require.Equal(t, fmt.Errorf("bad config: 'ringsize' must be >0"), c.EvalAndValidate())

	c.RingSize = 42
	require.Equal(t, fmt.Errorf("bad config: 'interval' must be >0"), c.EvalAndValidate())

	c.Interval = 2 * time.Minute
	require.Equal(t, fmt.Errorf("bad config: 'interval' is over a minute"), c.EvalAndValidate())

	c.Interval = time.Second
	c.StoreDir = "/tmp/somewhere"
	c.StoreFormat = "parquet"
	require.Equal(t, fmt.Errorf("bad config: unknown 'storeformat' %q", "parquet"), c.EvalAndValidate())

	c.StoreFormat = "sqlite"
	require.Nil(t, c.EvalAndValidate())

	c.Dynamic.MaxDriftPPM = 0
	require.Error(t, c.EvalAndValidate())
	c.Dynamic.MaxDriftPPM = 500

	c.Math.Window = "mean(nosuchvar, 10)"
	require.Error(t, c.EvalAndValidate())
}

func TestReadConfig(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "daemon.yaml")
	content := `interval: 1s
ringsize: 30
apiport: 8889
storedir: /var/lib/monoclock
storeformat: jsonl
math:
  jitter: "abs(mean(drift, 30)) + 1.0 * stddev(drift, 30)"
  window: "mean(j, 30) + 4.0 * stddev(j, 30)"
  drift: "1.5 * mean(driftchangeabs, 29)"
dynamic:
  maxdriftppm: 200
  maxjitterppm: 50
`
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0644))

	cfg, err := ReadConfig(cfgPath)
	require.NoError(t, err)
	require.Equal(t, time.Second, cfg.Interval)
	require.Equal(t, 30, cfg.RingSize)
	require.Equal(t, 8889, cfg.APIPort)
	require.Equal(t, "jsonl", cfg.StoreFormat)
	require.Equal(t, 200.0, cfg.Dynamic.MaxDriftPPM)
	require.NoError(t, cfg.EvalAndValidate())

	// unknown keys are rejected
	require.NoError(t, os.WriteFile(cfgPath, []byte("nosuchoption: 1\n"), 0644))
	_, err = ReadConfig(cfgPath)
	require.Error(t, err)
}

func TestReadDynamicConfig(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "daemon.yaml")
	content := `interval: 1s
ringsize: 30
dynamic:
  maxdriftppm: 300
  maxjitterppm: 60
`
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0644))

	dc, err := ReadDynamicConfig(cfgPath)
	require.NoError(t, err)
	require.Equal(t, &DynamicConfig{MaxDriftPPM: 300, MaxJitterPPM: 60}, dc)

	// thresholds must be sane
	require.NoError(t, os.WriteFile(cfgPath, []byte("dynamic:\n  maxdriftppm: -1\n"), 0644))
	_, err = ReadDynamicConfig(cfgPath)
	require.Error(t, err)
}
