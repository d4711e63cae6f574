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
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var createGroupCmd = &cobra.Command{
	Use:   "create-group <name>",
	Short: "Creates a group covering a range of years",
	Long: `Creates an empty group. The year range is given with --years (e.g.
'2016-2022' or '2019') or with --from and --to. Without either, the group
covers the last five full years.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		years, _ := cmd.Flags().GetString("years")
		from, _ := cmd.Flags().GetInt("from")
		to, _ := cmd.Flags().GetInt("to")
		from, to, err := yearRangeFromFlags(years, from, to, time.Now())
		if err != nil {
			return err
		}

		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.CreateGroup(args[0], from, to); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created group %q for %d-%d\n", args[0], from, to)
		return nil
	},
}

var listGroupsCmd = &cobra.Command{
	Use:   "list-groups",
	Short: "Lists all groups",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		groups, err := s.ListGroups()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(groups) == 0 {
			fmt.Fprintln(out, "No groups found.")
			return nil
		}

		table := tablewriter.NewWriter(out)
		table.Header([]string{"Name", "Years", "Members", "Created"})
		for _, g := range groups {
			err := table.Append([]string{
				g.Name,
				fmt.Sprintf("%d-%d", g.FromYear, g.ToYear),
				strings.Join(g.Members, ", "),
				g.Created.Format("2006-01-02"),
			})
			if err != nil {
				return fmt.Errorf("rendering table: %w", err)
			}
		}
		return table.Render()
	},
}

var deleteGroupCmd = &cobra.Command{
	Use:   "delete-group <name>",
	Short: "Deletes a group with its records and analysis",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.DeleteGroup(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted group %q\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(createGroupCmd)
	rootCmd.AddCommand(listGroupsCmd)
	rootCmd.AddCommand(deleteGroupCmd)

	createGroupCmd.Flags().String("years", "", "Year range, e.g. 2016-2022")
	createGroupCmd.Flags().Int("from", 0, "First year")
	createGroupCmd.Flags().Int("to", 0, "Last year")
}
