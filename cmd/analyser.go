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
	"bytes"
	"fmt"
	"html"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/ademuri/outtamusic/internal/analysis"
	"github.com/ademuri/outtamusic/internal/records"
)

// Report is one titled table. results[0] is the header row.
type Report struct {
	title   string
	results [][]string
	summary string
}

type ReportConfig struct {
	// Year limits the detail reports to one year. 0 means the overview only.
	Year int

	// Member limits every report to one member. Empty means all members.
	Member string

	// Feature adds a per-year mean of this track column, e.g. "valence".
	Feature string
}

func (a Report) String() string {
	out := new(bytes.Buffer)
	if a.title != "" {
		fmt.Fprintf(out, "%s\n", a.title)
	}
	if len(a.results) <= 1 {
		fmt.Fprintf(out, "No tracks found.\n")
		return out.String()
	}
	table := tablewriter.NewWriter(out)
	table.Header(a.results[0])
	for _, row := range a.results[1:] {
		if err := table.Append(row); err != nil {
			return fmt.Sprintf("Error rendering table: %v", err)
		}
	}
	if err := table.Render(); err != nil {
		return fmt.Sprintf("Error rendering table: %v", err)
	}
	if a.summary != "" {
		fmt.Fprintf(out, "%s\n", a.summary)
	}
	return out.String()
}

// HTML renders the report as a section of the summary email.
func (a Report) HTML() string {
	var out strings.Builder
	out.WriteString("<div>\n")
	fmt.Fprintf(&out, "<h2>%s</h2>\n", html.EscapeString(a.title))
	if len(a.results) <= 1 {
		out.WriteString("<div>No tracks found.</div>\n")
	} else {
		out.WriteString("<table>\n<thead>\n<tr>")
		for _, header := range a.results[0] {
			fmt.Fprintf(&out, "<th>%s</th>", html.EscapeString(header))
		}
		out.WriteString("</tr>\n</thead>\n<tbody>\n")
		for _, row := range a.results[1:] {
			out.WriteString("<tr>")
			for _, column := range row {
				fmt.Fprintf(&out, "<td>%s</td>", html.EscapeString(column))
			}
			out.WriteString("</tr>\n")
		}
		out.WriteString("</tbody>\n</table>\n")
	}
	if a.summary != "" {
		fmt.Fprintf(&out, "<div>%s</div>\n", html.EscapeString(a.summary))
	}
	out.WriteString("</div>\n")
	return out.String()
}

// buildReports turns a snapshot into tables: an overview row per member and
// year, then the top lists for config.Year when set.
func buildReports(snap *analysis.Snapshot, recs records.Records, config ReportConfig) ([]Report, error) {
	members := snap.Members
	if config.Member != "" {
		if snap.MemberIndex(config.Member) < 0 {
			return nil, fmt.Errorf("%q is not a member", config.Member)
		}
		members = []string{config.Member}
	}
	years := snap.Years()
	if config.Year != 0 {
		if snap.YearIndex(config.Year) < 0 {
			return nil, fmt.Errorf("%d is outside %d-%d", config.Year, snap.FromYear, snap.ToYear)
		}
		years = []int{config.Year}
	}

	reports := []Report{overviewReport(snap, recs, members, years)}
	if config.Feature != "" {
		col, ok := records.TrackColumnByName[strings.ToLower(config.Feature)]
		if !ok {
			return nil, fmt.Errorf("unknown feature %q", config.Feature)
		}
		reports = append(reports, featureReport(snap, recs, members, years, col))
	}
	if config.Year != 0 {
		for _, m := range members {
			reports = append(reports, detailReports(snap, recs, m, config.Year)...)
		}
	}
	return reports, nil
}

func overviewReport(snap *analysis.Snapshot, recs records.Records, members []string, years []int) Report {
	results := [][]string{{"Member", "Year", "Tracks", "Major", "Instrumental", "Live", "Popularity", "Top genre", "Top decade"}}
	for _, m := range members {
		for _, y := range years {
			s := snap.Cells[snap.MemberIndex(m)][snap.YearIndex(y)].Stats
			if s.TrackCount == 0 {
				continue
			}
			results = append(results, []string{
				m,
				fmt.Sprint(y),
				fmt.Sprint(s.TrackCount),
				percent(s.MajorRatio),
				percent(s.InstrumentalRatio),
				percent(s.LiveRatio),
				fmt.Sprintf("%.1f", s.AvgPopularity),
				first(analysis.RankedKeys(s.GenreWeighted), func(g int) string { return recs.Genres[g] }),
				first(analysis.RankedKeys(s.DecadeWeighted), func(d string) string { return d }),
			})
		}
	}

	summary := fmt.Sprintf("%d clusters per year, analysis %d computed %s", snap.K, snap.Version, snap.ComputedAt.Format("2006-01-02 15:04"))
	if len(snap.Members) > 1 {
		summary = fmt.Sprintf("Match score %.3f, %s", snap.MatchScore, summary)
	}
	if failed := snap.SortedYearErrors(); len(failed) > 0 {
		summary += fmt.Sprintf("; not clustered: %v", failed)
	}
	return Report{title: "Overview", results: results, summary: summary}
}

func featureReport(snap *analysis.Snapshot, recs records.Records, members []string, years []int, col records.TrackColumn) Report {
	header := []string{"Member"}
	for _, y := range years {
		header = append(header, fmt.Sprint(y))
	}
	results := [][]string{header}
	for _, m := range members {
		row := []string{m}
		var playlists records.MemberPlaylists
		if i := recs.MemberIndex(m); i >= 0 {
			playlists = recs.Playlists[i]
		}
		for _, y := range years {
			refs := playlists.Years[y]
			if len(refs) == 0 {
				row = append(row, "-")
				continue
			}
			var sum float64
			for _, ref := range refs {
				sum += recs.Tracks.Rows[ref.Track][col]
			}
			row = append(row, fmt.Sprintf("%.3f", sum/float64(len(refs))))
		}
		results = append(results, row)
	}
	return Report{title: fmt.Sprintf("Mean %s", col), results: results}
}

func detailReports(snap *analysis.Snapshot, recs records.Records, member string, year int) []Report {
	prefix := fmt.Sprintf("%s %d", member, year)
	s := snap.Cells[snap.MemberIndex(member)][snap.YearIndex(year)].Stats

	genres := [][]string{{"Genre", "Tracks", "Weighted"}}
	for _, g := range analysis.RankedKeys(s.GenreWeighted) {
		genres = append(genres, []string{recs.Genres[g], fmt.Sprint(s.GenreCounts[g]), fmt.Sprintf("%.1f", s.GenreWeighted[g])})
	}
	artists := [][]string{{"Artist", "Tracks"}}
	for _, a := range analysis.RankedKeys(s.ArtistCounts) {
		artists = append(artists, []string{recs.Artists.IDs[a], fmt.Sprint(s.ArtistCounts[a])})
	}
	albums := [][]string{{"Album", "Tracks", "Released"}}
	for _, a := range analysis.RankedKeys(s.AlbumCounts) {
		released := "unknown"
		if y := recs.Albums.Rows[a].ReleaseYear; y > 0 {
			released = fmt.Sprint(y)
		}
		albums = append(albums, []string{recs.Albums.IDs[a], fmt.Sprint(s.AlbumCounts[a]), released})
	}
	decades := [][]string{{"Decade", "Tracks", "Weighted"}}
	for _, d := range analysis.DecadeBuckets() {
		if n := s.DecadeCounts[d]; n > 0 {
			decades = append(decades, []string{d, fmt.Sprint(n), fmt.Sprintf("%.1f", s.DecadeWeighted[d])})
		}
	}

	return []Report{
		{title: prefix + " top genres", results: genres},
		{title: prefix + " top artists", results: artists},
		{title: prefix + " top albums", results: albums},
		{title: prefix + " release decades", results: decades},
		{title: prefix + " least popular", results: popularityRows(recs, s.LeastPopular)},
		{title: prefix + " most popular", results: popularityRows(recs, s.MostPopular)},
	}
}

func popularityRows(recs records.Records, tracks []analysis.PopularTrack) [][]string {
	results := [][]string{{"Track", "Popularity"}}
	for _, t := range tracks {
		results = append(results, []string{recs.Tracks.IDs[t.Track], fmt.Sprintf("%.0f", t.Popularity)})
	}
	return results
}

func first[K any](keys []K, name func(K) string) string {
	if len(keys) == 0 {
		return "-"
	}
	return name(keys[0])
}

func percent(ratio float64) string {
	return fmt.Sprintf("%.0f%%", 100*ratio)
}
