package records

import (
	"errors"
	"fmt"
)

var (
	ErrNoPlaylistsFound     = errors.New("no year-labeled favorite playlists found")
	ErrFeatureCountMismatch = errors.New("audio feature count does not match track count")
	// ErrArtistFetchFailed is logged by Ingest; the affected artist rows are
	// left unfetched instead of failing the ingestion.
	ErrArtistFetchFailed = errors.New("artist lookup failed")
)

type FeatureCountMismatchError struct {
	Year   int
	Tracks int
	Got    int
}

func (e *FeatureCountMismatchError) Error() string {
	return fmt.Sprintf("year %d: got %d audio features for %d tracks", e.Year, e.Got, e.Tracks)
}

func (e *FeatureCountMismatchError) Is(target error) bool {
	return target == ErrFeatureCountMismatch
}
