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

package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/facebook/monoclock/timebase"
)

var infoJSONFlag bool

func init() {
	RootCmd.AddCommand(infoCmd)
	infoCmd.Flags().BoolVarP(&infoJSONFlag, "json", "j", false, "output in JSON format")
}

// clockInfo describes the calibrated timebase of this host
type clockInfo struct {
	Source       string  `json:"source"`
	RatioNumer   uint32  `json:"ratio_numer"`
	RatioDenom   uint32  `json:"ratio_denom"`
	Factor       float64 `json:"factor"`
	FastPath     bool    `json:"fast_path"`
	ResolutionNS int64   `json:"resolution_ns"`
}

// measureResolution finds the smallest observable step of the clock
func measureResolution() int64 {
	best := int64(time.Second)
	for i := 0; i < 100; i++ {
		a := timebase.Now()
		b := timebase.Now()
		for b == a {
			b = timebase.Now()
		}
		if d := (b - a) * 1000; d < best {
			best = d
		}
	}
	return best
}

func gatherClockInfo() *clockInfo {
	ratio, factor := timebase.Calibration()
	return &clockInfo{
		Source:       timebase.SourceName(),
		RatioNumer:   ratio.Numer,
		RatioDenom:   ratio.Denom,
		Factor:       factor,
		FastPath:     ratio.Identity(),
		ResolutionNS: measureResolution(),
	}
}

func printClockInfo(info *clockInfo, jsonOut bool) error {
	if jsonOut {
		toPrint, err := json.Marshal(info)
		if err != nil {
			return err
		}
		fmt.Println(string(toPrint))
		return nil
	}
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("property", "value")
	table.Append([]string{"source", info.Source})
	table.Append([]string{"ratio", fmt.Sprintf("%d/%d", info.RatioNumer, info.RatioDenom)})
	table.Append([]string{"factor (tick->us)", fmt.Sprintf("%g", info.Factor)})
	table.Append([]string{"fast path", fmt.Sprintf("%v", info.FastPath)})
	table.Append([]string{"resolution", fmt.Sprintf("%dns", info.ResolutionNS)})
	table.Render()
	return nil
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the monotonic clock source, timebase ratio and resolution",
	Run: func(_ *cobra.Command, _ []string) {
		ConfigureVerbosity()
		if err := printClockInfo(gatherClockInfo(), infoJSONFlag); err != nil {
			log.Fatal(err)
		}
	},
}
