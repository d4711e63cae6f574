/*
Copyright 2020 Google LLC

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
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ademuri/outtamusic/internal/analysis"
	"github.com/ademuri/outtamusic/internal/records"
	"github.com/ademuri/outtamusic/internal/store"
)

var errNoAnalysis = errors.New("group has not been analyzed yet")

var showCmd = &cobra.Command{
	Use:   "show <group>",
	Short: "Prints a group's analysis as tables",
	Long: `Prints an overview row per member and year. With --year, also prints
the top genres, artists, albums, release decades and the least and most
popular tracks for that year. --feature adds a table of the yearly mean of
one audio feature (e.g. valence, tempo, energy).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		year, _ := cmd.Flags().GetInt("year")
		member, _ := cmd.Flags().GetString("member")
		feature, _ := cmd.Flags().GetString("feature")

		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		snap, recs, err := loadAnalysis(s, args[0])
		if err != nil {
			return err
		}
		reports, err := buildReports(snap, recs, ReportConfig{Year: year, Member: member, Feature: feature})
		if err != nil {
			return err
		}
		for _, r := range reports {
			fmt.Fprintln(cmd.OutOrStdout(), r)
		}
		return nil
	},
}

// loadAnalysis reads the latest snapshot with the records it was computed
// from.
func loadAnalysis(s *store.Store, group string) (*analysis.Snapshot, records.Records, error) {
	if _, err := s.GetGroup(group); err != nil {
		return nil, records.Records{}, err
	}
	snap, err := s.LoadSnapshot(group)
	if err != nil {
		return nil, records.Records{}, err
	}
	if snap == nil {
		return nil, records.Records{}, fmt.Errorf("%q: %w", group, errNoAnalysis)
	}
	recs, _, err := s.LoadRecords(group)
	if err != nil {
		return nil, records.Records{}, err
	}
	return snap, recs, nil
}

func init() {
	rootCmd.AddCommand(showCmd)

	showCmd.Flags().Int("year", 0, "Show details for this year")
	showCmd.Flags().String("member", "", "Only show this member")
	showCmd.Flags().String("feature", "", "Add yearly means of this audio feature")
}
