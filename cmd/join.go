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
	"fmt"

	"github.com/spf13/cobra"
)

var joinCmd = &cobra.Command{
	Use:   "join <group> <spotify_user_id>",
	Short: "Adds a member's favorites to a group and recomputes the analysis",
	Long: `Fetches the member's "Your Top Songs" playlists for the group's years,
merges them into the group's records and recomputes the analysis. Joining
again replaces the member's earlier data.

Every raw fetch is cached in the database. --replay serves the join from
that cache only, --refresh drops the member's cache first.`,
	Args: cobra.ExactArgs(2),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		replay, _ := cmd.Flags().GetBool("replay")
		refresh, _ := cmd.Flags().GetBool("refresh")
		if replay && refresh {
			return fmt.Errorf("--replay and --refresh cannot be combined")
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		group, member := args[0], args[1]
		replay, _ := cmd.Flags().GetBool("replay")
		refresh, _ := cmd.Flags().GetBool("refresh")

		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		if refresh {
			if err := s.DeleteRawFetches(member); err != nil {
				return err
			}
		}
		runner, err := newRunner(cmd.Context(), s, replay)
		if err != nil {
			return err
		}
		snap, err := runner.Join(cmd.Context(), group, member)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Joined %q to %q: %d members, %d clusters per year\n", member, group, len(snap.Members), snap.K)
		for _, year := range snap.SortedYearErrors() {
			fmt.Fprintf(out, "  %d not analyzed: %s\n", year, snap.YearErrors[year])
		}
		return nil
	},
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <group>",
	Short: "Recomputes a group's analysis from its stored records",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		runner, err := newRunner(cmd.Context(), s, true)
		if err != nil {
			return err
		}
		snap, err := runner.Reanalyze(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Analysis %d of %q: match score %.3f\n", snap.Version, args[0], snap.MatchScore)
		for _, year := range snap.SortedYearErrors() {
			fmt.Fprintf(cmd.OutOrStdout(), "  %d not analyzed: %s\n", year, snap.YearErrors[year])
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(joinCmd)
	rootCmd.AddCommand(analyzeCmd)

	joinCmd.Flags().Bool("replay", false, "Only use cached fetches")
	joinCmd.Flags().Bool("refresh", false, "Drop the member's cached fetches first")
}
