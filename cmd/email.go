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

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ademuri/outtamusic/internal/analysis"
	"github.com/ademuri/outtamusic/internal/records"
)

type SendEmailConfig struct {
	Group  string
	From   string
	To     string
	DryRun bool
	APIKey string
}

var emailCmd = &cobra.Command{
	Use:   "email <group> <address>",
	Short: "Emails a summary of a group's analysis",
	Long: `Emails the overview table and the latest year's top lists for every
member to <address> via SendGrid.`,
	Args: cobra.ExactArgs(2),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if viper.GetString("from") == "" {
			return fmt.Errorf("required flag(s) \"from\" not set")
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		dryRun, _ := cmd.Flags().GetBool("dry_run")
		config := SendEmailConfig{
			Group:  args[0],
			From:   viper.GetString("from"),
			To:     args[1],
			DryRun: dryRun,
			APIKey: viper.GetString("sendgrid_api_key"),
		}

		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		snap, recs, err := loadAnalysis(s, config.Group)
		if err != nil {
			return err
		}
		subject, plain, body, err := generateEmailContent(config, snap, recs)
		if err != nil {
			return err
		}

		if config.DryRun {
			fmt.Fprintf(cmd.OutOrStdout(), "Would have sent email: \nsubject: %s\n%s\n", subject, plain)
			return nil
		}
		if config.APIKey == "" {
			return fmt.Errorf("sendgrid_api_key must be set in order to send emails")
		}
		from := mail.NewEmail("outtamusic", config.From)
		to := mail.NewEmail(config.To, config.To)
		if err := sendMail(config.APIKey, mail.NewSingleEmail(from, subject, to, plain, body)); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Sent %q to %s\n", subject, config.To)
		return nil
	},
}

var sendMail = func(apiKey string, message *mail.SGMailV3) error {
	response, err := sendgrid.NewSendClient(apiKey).Send(message)
	if err != nil {
		return fmt.Errorf("sendEmail: %w", err)
	}
	if response.StatusCode >= 300 {
		return fmt.Errorf("sendEmail: status %d: %s", response.StatusCode, response.Body)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(emailCmd)

	emailCmd.Flags().BoolP("dry_run", "n", false, "When true, just print instead of emailing")
}

// latestAnalyzedYear is the last year at least one member has tracks for.
func latestAnalyzedYear(snap *analysis.Snapshot) int {
	for yi := len(snap.Years()) - 1; yi >= 0; yi-- {
		if _, failed := snap.YearErrors[snap.FromYear+yi]; failed {
			continue
		}
		for _, row := range snap.Cells {
			if row[yi].Stats.TrackCount > 0 {
				return snap.FromYear + yi
			}
		}
	}
	return 0
}

func generateEmailContent(config SendEmailConfig, snap *analysis.Snapshot, recs records.Records) (subject string, plain string, body string, err error) {
	reports, err := buildReports(snap, recs, ReportConfig{})
	if err != nil {
		return "", "", "", err
	}
	if year := latestAnalyzedYear(snap); year != 0 {
		for _, m := range snap.Members {
			// Genres and artists only.
			details := detailReports(snap, recs, m, year)
			reports = append(reports, details[:min(2, len(details))]...)
		}
	}

	var text, out strings.Builder
	out.WriteString(`
<html>
  <head>
<style>
td {
  padding: 0.1em 0.2em;
}
table, th, td {
  border: 1px solid black;
  border-collapse: collapse;
}
</style>
  </head>
  <body>
`)
	for _, r := range reports {
		text.WriteString(r.String())
		text.WriteString("\n")
		out.WriteString(r.HTML())
	}
	out.WriteString("  </body>\n</html>\n")

	subject = fmt.Sprintf("Music taste report for %s %d to %d", config.Group, snap.FromYear, snap.ToYear)
	return subject, text.String(), out.String(), nil
}
