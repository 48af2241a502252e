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

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/facebook/monoclock/timebase"
)

var nowJSONFlag bool
var nowHumanFlag bool

func init() {
	RootCmd.AddCommand(nowCmd)
	nowCmd.Flags().BoolVarP(&nowJSONFlag, "json", "j", false, "output in JSON format")
	nowCmd.Flags().BoolVarP(&nowHumanFlag, "human", "H", false, "output as a human-readable duration")
}

func printNow(jsonOut, human bool) error {
	us := timebase.Now()
	if jsonOut {
		v := map[string]interface{}{
			"mono_us": us,
			"source":  timebase.SourceName(),
		}
		toPrint, err := json.Marshal(v)
		if err != nil {
			return err
		}
		fmt.Println(string(toPrint))
		return nil
	}
	if human {
		fmt.Println(timebase.NowDuration())
		return nil
	}
	fmt.Println(us)
	return nil
}

var nowCmd = &cobra.Command{
	Use:   "now",
	Short: "Print the current monotonic clock reading in microseconds",
	Run: func(_ *cobra.Command, _ []string) {
		ConfigureVerbosity()
		if err := printNow(nowJSONFlag, nowHumanFlag); err != nil {
			log.Fatal(err)
		}
	},
}
