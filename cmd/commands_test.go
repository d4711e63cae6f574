package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ademuri/outtamusic/internal/records"
	"github.com/ademuri/outtamusic/internal/records/recordstest"
	"github.com/ademuri/outtamusic/internal/store"
)

// fakeFetcher serves two members with six tracks each for 2020 and 2021.
func fakeFetcher() *recordstest.Fetcher {
	f := recordstest.New()
	for m, member := range []string{"ann", "ben"} {
		for i := 0; i < 6; i++ {
			f.AddTrack(member, 2020+i%2,
				records.Track{
					ID:         fmt.Sprintf("%s-%d", member, i),
					Popularity: 10 * i,
					Album:      records.AlbumObject{ID: "al-" + member, ReleaseDate: fmt.Sprint(1990 + 10*m)},
				},
				records.AudioFeatures{Valence: float64(i) / 6, Tempo: float64(100 + 20*m), Energy: float64(m), Mode: i % 2},
				records.Artist{ID: "ar-" + member, Name: member, Genres: []string{"genre-" + member}})
		}
	}
	return f
}

// resetFlags puts every command flag back to its default, since cobra keeps
// values between Execute calls.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func run(t *testing.T, dbPath string, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(append(args, "--database", dbPath, "--log_level", "disabled"))
	err := rootCmd.Execute()
	return out.String(), err
}

func mustRun(t *testing.T, dbPath string, args ...string) string {
	t.Helper()
	out, err := run(t, dbPath, args...)
	if err != nil {
		t.Fatalf("%s failed: %v", strings.Join(args, " "), err)
	}
	return out
}

func useFetcher(t *testing.T, f records.Fetcher, err error) {
	t.Helper()
	old := liveFetcher
	liveFetcher = func(context.Context) (records.Fetcher, error) { return f, err }
	t.Cleanup(func() { liveFetcher = old })
}

func TestGroupLifecycle(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	useFetcher(t, fakeFetcher(), nil)

	out := mustRun(t, dbPath, "create-group", "band", "--years", "2020-2021")
	if !strings.Contains(out, `Created group "band" for 2020-2021`) {
		t.Errorf("Unexpected create-group output: %s", out)
	}
	if _, err := run(t, dbPath, "create-group", "band", "--from", "2020", "--to", "2021"); !errors.Is(err, store.ErrGroupExists) {
		t.Errorf("Expected ErrGroupExists, got %v", err)
	}

	out = mustRun(t, dbPath, "join", "band", "ann")
	if !strings.Contains(out, `Joined "ann" to "band": 1 members, 4 clusters per year`) {
		t.Errorf("Unexpected join output: %s", out)
	}
	mustRun(t, dbPath, "join", "band", "ben")

	out = mustRun(t, dbPath, "list-groups")
	if !strings.Contains(out, "band") || !strings.Contains(out, "ann, ben") || !strings.Contains(out, "2020-2021") {
		t.Errorf("Unexpected list-groups output: %s", out)
	}

	out = mustRun(t, dbPath, "analyze", "band")
	if !strings.Contains(out, `Analysis 3 of "band"`) {
		t.Errorf("Unexpected analyze output: %s", out)
	}

	out = mustRun(t, dbPath, "delete-group", "band")
	if !strings.Contains(out, `Deleted group "band"`) {
		t.Errorf("Unexpected delete-group output: %s", out)
	}
	out = mustRun(t, dbPath, "list-groups")
	if !strings.Contains(out, "No groups found.") {
		t.Errorf("Expected no groups, got: %s", out)
	}
	if _, err := run(t, dbPath, "delete-group", "band"); !errors.Is(err, store.ErrGroupNotFound) {
		t.Errorf("Expected ErrGroupNotFound, got %v", err)
	}
}

func TestShowExportAndEmail(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	useFetcher(t, fakeFetcher(), nil)
	mustRun(t, dbPath, "create-group", "band", "--years", "2020-2021")

	if _, err := run(t, dbPath, "show", "band"); !errors.Is(err, errNoAnalysis) {
		t.Errorf("Expected errNoAnalysis before any join, got %v", err)
	}

	mustRun(t, dbPath, "join", "band", "ann")
	mustRun(t, dbPath, "join", "band", "ben")

	out := mustRun(t, dbPath, "show", "band", "--year", "2021", "--feature", "tempo")
	for _, want := range []string{"Overview", "Mean tempo", "ann 2021 top genres", "ben 2021 most popular", "genre-ben", "2000s", "Match score"} {
		if !strings.Contains(out, want) {
			t.Errorf("show output missing %q:\n%s", want, out)
		}
	}

	out = mustRun(t, dbPath, "show", "band", "--member", "ben")
	if strings.Contains(out, "genre-ann") {
		t.Errorf("show --member ben printed ann's data:\n%s", out)
	}
	if _, err := run(t, dbPath, "show", "band", "--member", "cat"); err == nil {
		t.Errorf("Expected an error for a non-member")
	}
	if _, err := run(t, dbPath, "show", "band", "--year", "2019"); err == nil {
		t.Errorf("Expected an error for a year outside the group")
	}
	if _, err := run(t, dbPath, "show", "band", "--feature", "loudness-ish"); err == nil {
		t.Errorf("Expected an error for an unknown feature")
	}

	out = mustRun(t, dbPath, "export", "band")
	var doc groupExport
	if err := yaml.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("Parsing export: %v\n%s", err, out)
	}
	if doc.Group != "band" || len(doc.Members) != 2 || doc.Analysis == nil {
		t.Fatalf("Unexpected export: %+v", doc)
	}
	if doc.Analysis.K != 5 || doc.Analysis.Version != 2 {
		t.Errorf("Expected K 5 at version 2, got K %d at version %d", doc.Analysis.K, doc.Analysis.Version)
	}
	if len(doc.TrackIDs) != 12 || len(doc.Genres) != 2 {
		t.Errorf("Expected 12 tracks and 2 genres, got %d and %d", len(doc.TrackIDs), len(doc.Genres))
	}

	viper.Set("from", "reports@example.com")
	t.Cleanup(func() { viper.Set("from", "") })
	out = mustRun(t, dbPath, "email", "band", "friend@example.com", "--dry_run")
	if !strings.Contains(out, "Would have sent email") || !strings.Contains(out, "Music taste report for band 2020 to 2021") {
		t.Errorf("Unexpected email output: %s", out)
	}
	if !strings.Contains(out, "ben 2021 top artists") {
		t.Errorf("Expected the latest year's top lists in the email: %s", out)
	}
}

func TestJoinReplaysFromCache(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	useFetcher(t, fakeFetcher(), nil)
	mustRun(t, dbPath, "create-group", "band", "--years", "2020-2021")
	mustRun(t, dbPath, "join", "band", "ann")
	mustRun(t, dbPath, "delete-group", "band")

	useFetcher(t, nil, errors.New("offline"))
	mustRun(t, dbPath, "create-group", "band", "--years", "2020-2021")
	out := mustRun(t, dbPath, "join", "band", "ann", "--replay")
	if !strings.Contains(out, `Joined "ann" to "band"`) {
		t.Errorf("Unexpected replay output: %s", out)
	}

	if _, err := run(t, dbPath, "join", "band", "ben", "--replay"); !errors.Is(err, store.ErrNotCached) {
		t.Errorf("Expected ErrNotCached for a member never fetched, got %v", err)
	}
	if _, err := run(t, dbPath, "join", "band", "ben"); err == nil || !strings.Contains(err.Error(), "offline") {
		t.Errorf("Expected the live fetcher error, got %v", err)
	}
	if _, err := run(t, dbPath, "join", "band", "ann", "--refresh", "--replay"); err == nil {
		t.Errorf("Expected --refresh with --replay to fail")
	}

	// --refresh drops the cache, so the offline fetcher is hit.
	if _, err := run(t, dbPath, "join", "band", "ann", "--refresh"); err == nil {
		t.Errorf("Expected a refreshed join to need the live fetcher")
	}
	if _, err := run(t, dbPath, "join", "band", "ann", "--replay"); !errors.Is(err, store.ErrNotCached) {
		t.Errorf("Expected the cache to be empty after --refresh, got %v", err)
	}
}
