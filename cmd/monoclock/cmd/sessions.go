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
	"context"
	"fmt"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/facebook/monoclock/store"
)

var sessionsDirFlag string

func init() {
	RootCmd.AddCommand(sessionsCmd)
	sessionsCmd.PersistentFlags().StringVarP(&sessionsDirFlag, "dir", "o", "", "directory sessions were recorded into")
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsShowCmd)
	sessionsCmd.AddCommand(sessionsDeleteCmd)
}

func sessionsManager() *store.Manager {
	if sessionsDirFlag == "" {
		log.Fatal("--dir is required")
	}
	manager, err := store.NewManager(sessionsDirFlag)
	if err != nil {
		log.Fatal(err)
	}
	return manager
}

func formatEndTime(session *store.Session) string {
	if session.EndTime == nil {
		return "running"
	}
	return session.EndTime.Format(time.RFC3339)
}

func listSessions(ctx context.Context, manager *store.Manager) error {
	sessions, err := manager.ListSessions(ctx)
	if err != nil {
		return err
	}
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("id", "start", "end", "host", "source")
	for _, session := range sessions {
		table.Append([]string{
			session.ID,
			session.StartTime.Format(time.RFC3339),
			formatEndTime(session),
			session.Hostname,
			session.Source,
		})
	}
	table.Render()
	return nil
}

func showSession(ctx context.Context, manager *store.Manager, id string) error {
	st, err := manager.OpenSession(ctx, id)
	if err != nil {
		return err
	}
	defer st.Close()
	session := st.GetSession()
	samples, err := st.ReadSamples(ctx, &store.Filter{})
	if err != nil {
		return err
	}
	fmt.Printf("session %s on %s (%s), %s - %s, %d samples\n",
		session.ID, session.Hostname, session.Source,
		session.StartTime.Format(time.RFC3339), formatEndTime(session), len(samples))
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("mono(us)", "wall(ns)", "drift(ppm)", "jitter(ppm)", "latency(ns)")
	for _, s := range samples {
		table.Append([]string{
			fmt.Sprintf("%d", s.MonoUS),
			fmt.Sprintf("%d", s.WallNS),
			fmt.Sprintf("%.3f", s.DriftPPM),
			fmt.Sprintf("%.3f", s.JitterPPM),
			fmt.Sprintf("%d", s.ReadLatencyNS),
		})
	}
	table.Render()
	return nil
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage recorded monotonic clock sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded sessions",
	Run: func(_ *cobra.Command, _ []string) {
		ConfigureVerbosity()
		manager := sessionsManager()
		defer manager.Close()
		if err := listSessions(context.Background(), manager); err != nil {
			log.Fatal(err)
		}
	},
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show samples of a recorded session",
	Args:  cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		ConfigureVerbosity()
		manager := sessionsManager()
		defer manager.Close()
		if err := showSession(context.Background(), manager, args[0]); err != nil {
			log.Fatal(err)
		}
	},
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a recorded session",
	Args:  cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		ConfigureVerbosity()
		manager := sessionsManager()
		defer manager.Close()
		if err := manager.DeleteSession(context.Background(), args[0]); err != nil {
			log.Fatal(err)
		}
	},
}
