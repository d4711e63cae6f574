package lastfm

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ademuri/lastfm-go/lastfm"
	"golang.org/x/time/rate"

	"github.com/ademuri/outtamusic/internal/records"
	"github.com/ademuri/outtamusic/internal/records/recordstest"
)

// fakeTags serves canned top tags, keyed by artist name, as last.fm XML.
type fakeTags struct {
	mu       sync.Mutex
	tags     map[string]string
	failures int
	calls    []string
}

func (f *fakeTags) GetTopTags(args map[string]interface{}) (lastfm.ArtistGetTopTags, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := args["artist"].(string)
	f.calls = append(f.calls, name)

	var res lastfm.ArtistGetTopTags
	if f.failures > 0 {
		f.failures--
		return res, &lastfm.LastfmError{Code: 503, Message: "unavailable"}
	}
	body, ok := f.tags[name]
	if !ok {
		return res, &lastfm.LastfmError{Code: 6, Message: "artist not found"}
	}
	err := xml.Unmarshal([]byte(fmt.Sprintf(`<toptags artist=%q>%s</toptags>`, name, body)), &res)
	return res, err
}

func tag(name string, count int) string {
	return fmt.Sprintf("<tag><name>%s</name><count>%d</count></tag>", name, count)
}

func newFetcher(tags *fakeTags) (*Fetcher, *recordstest.Fetcher) {
	inner := recordstest.New()
	inner.ArtistInfo["ar1"] = records.Artist{ID: "ar1", Name: "Has Genres", Genres: []string{"synthpop"}}
	inner.ArtistInfo["ar2"] = records.Artist{ID: "ar2", Name: "Bare"}
	inner.ArtistInfo["ar3"] = records.Artist{ID: "ar3", Name: "Unknown"}
	f := Wrap(inner, tags, Options{
		Limiter:    rate.NewLimiter(rate.Inf, 1),
		RetryDelay: time.Millisecond,
	})
	return f, inner
}

func TestFillsOnlyMissingGenres(t *testing.T) {
	tags := &fakeTags{tags: map[string]string{
		"Bare":       tag("Post-Rock", 100) + tag("seen live", 5) + tag("post-rock", 90) + tag("Ambient", 40),
		"Has Genres": tag("ignored", 100),
	}}
	f, _ := newFetcher(tags)

	got, err := f.Artists(context.Background(), []string{"ar1", "ar2", "ar3"})
	if err != nil {
		t.Fatalf("Artists: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d artists, want 3", len(got))
	}
	if want := []string{"synthpop"}; strings.Join(got[0].Genres, ",") != strings.Join(want, ",") {
		t.Errorf("ar1 genres = %v, want %v", got[0].Genres, want)
	}
	if want := "post-rock,ambient"; strings.Join(got[1].Genres, ",") != want {
		t.Errorf("ar2 genres = %v, want %s", got[1].Genres, want)
	}
	if len(got[2].Genres) != 0 {
		t.Errorf("ar3 genres = %v, want none", got[2].Genres)
	}
	if strings.Join(tags.calls, ",") != "Bare,Unknown" {
		t.Errorf("looked up %v, want only artists without genres", tags.calls)
	}
}

func TestCapsTagCount(t *testing.T) {
	var body string
	for i := 0; i < 8; i++ {
		body += tag(fmt.Sprintf("tag%d", i), 100-i)
	}
	f, _ := newFetcher(&fakeTags{tags: map[string]string{"Bare": body}})

	got, err := f.Artists(context.Background(), []string{"ar2"})
	if err != nil {
		t.Fatalf("Artists: %v", err)
	}
	if len(got[0].Genres) != defaultMaxTags {
		t.Errorf("got %d genres, want %d", len(got[0].Genres), defaultMaxTags)
	}
}

func TestRetriesServerErrors(t *testing.T) {
	tags := &fakeTags{tags: map[string]string{"Bare": tag("krautrock", 100)}, failures: 2}
	f, _ := newFetcher(tags)

	got, err := f.Artists(context.Background(), []string{"ar2"})
	if err != nil {
		t.Fatalf("Artists: %v", err)
	}
	if strings.Join(got[0].Genres, ",") != "krautrock" {
		t.Errorf("genres = %v, want [krautrock]", got[0].Genres)
	}
	if len(tags.calls) != 3 {
		t.Errorf("made %d calls, want 3", len(tags.calls))
	}
}

func TestInnerFailurePropagates(t *testing.T) {
	f, inner := newFetcher(&fakeTags{})
	inner.ArtistErr = errors.New("platform down")

	if _, err := f.Artists(context.Background(), []string{"ar2"}); err == nil {
		t.Fatalf("Artists succeeded, want the inner error")
	}
}

// The wrapper still satisfies the whole fetch contract, so Ingest can use it
// directly.
func TestIngestThroughFallback(t *testing.T) {
	tags := &fakeTags{tags: map[string]string{"Bare": tag("Drone", 80)}}
	f, inner := newFetcher(tags)
	inner.AddTrack("alice", 2020,
		records.Track{ID: "t1", Album: records.AlbumObject{ID: "al1", ReleaseDate: "2001"}},
		records.AudioFeatures{Tempo: 90},
		inner.ArtistInfo["ar2"])

	r, err := records.New(2020, 2020)
	if err != nil {
		t.Fatalf("records.New: %v", err)
	}
	r, err = records.Ingest(context.Background(), r, "alice", f, records.IngestOptions{})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if len(r.Genres) != 1 || r.Genres[0] != "drone" {
		t.Errorf("genre dictionary = %v, want [drone]", r.Genres)
	}
}

func TestNewWrapsLastfmArtistAPI(t *testing.T) {
	inner := recordstest.New()
	f := New(inner, "key", "secret", Options{})
	if f.tags == nil {
		t.Fatalf("New left the tag client unset")
	}
	if f.Fetcher != records.Fetcher(inner) {
		t.Errorf("New did not keep the inner fetcher")
	}
}
