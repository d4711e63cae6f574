// Package pipeline runs joins and reanalyses against the store, one at a
// time per group.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ademuri/outtamusic/internal/analysis"
	"github.com/ademuri/outtamusic/internal/records"
	"github.com/ademuri/outtamusic/internal/store"
)

var ErrNoMembers = errors.New("group has no members")

type Config struct {
	// Fetchers returns the fetch capability for one member.
	Fetchers func(memberID string) records.Fetcher

	Ingest   records.IngestOptions
	Analysis analysis.Options
	Logger   *zerolog.Logger
}

type Runner struct {
	store *store.Store
	cfg   Config
	log   zerolog.Logger

	mu     sync.Mutex
	groups map[string]*sync.Mutex
}

func New(s *store.Store, cfg Config) *Runner {
	log := zerolog.Nop()
	if cfg.Logger != nil {
		log = *cfg.Logger
	}
	if cfg.Ingest.Logger == nil {
		cfg.Ingest.Logger = &log
	}
	if cfg.Analysis.Logger == nil {
		cfg.Analysis.Logger = &log
	}
	return &Runner{store: s, cfg: cfg, log: log, groups: make(map[string]*sync.Mutex)}
}

// lock serializes work on one group and returns the unlock func.
func (r *Runner) lock(group string) func() {
	r.mu.Lock()
	m, ok := r.groups[group]
	if !ok {
		m = &sync.Mutex{}
		r.groups[group] = m
	}
	r.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// Join ingests a member into the group, recomputes the analysis and saves
// both. On any error nothing is saved.
func (r *Runner) Join(ctx context.Context, group, memberID string) (*analysis.Snapshot, error) {
	if r.cfg.Fetchers == nil {
		return nil, errors.New("pipeline: no fetcher configured")
	}
	defer r.lock(group)()
	log := r.log.With().Str("group", group).Str("member", memberID).Logger()

	prev, version, err := r.store.LoadRecords(group)
	if err != nil {
		return nil, err
	}
	prior, err := r.store.LoadSnapshot(group)
	if err != nil {
		return nil, err
	}

	next, err := records.Ingest(ctx, prev, memberID, r.cfg.Fetchers(memberID), r.cfg.Ingest)
	if err != nil {
		return nil, fmt.Errorf("ingesting %q: %w", memberID, err)
	}
	snap, err := analysis.Recompute(ctx, next, prior, next.MemberIDs(), r.cfg.Analysis)
	if err != nil {
		return nil, fmt.Errorf("analyzing %q: %w", group, err)
	}

	version, err = r.store.SaveGroupState(group, next, version, snap)
	if err != nil {
		return nil, err
	}
	log.Info().Int("records_version", version).Int("tracks", len(next.Tracks.IDs)).Msg("member joined")
	return snap, nil
}

// Reanalyze recomputes the group's analysis from its stored records.
func (r *Runner) Reanalyze(ctx context.Context, group string) (*analysis.Snapshot, error) {
	defer r.lock(group)()

	g, err := r.store.GetGroup(group)
	if err != nil {
		return nil, err
	}
	recs, version, err := r.store.LoadRecords(group)
	if err != nil {
		return nil, err
	}
	if len(recs.Playlists) == 0 {
		return nil, fmt.Errorf("%q: %w", group, ErrNoMembers)
	}
	prior, err := r.store.LoadSnapshot(group)
	if err != nil {
		return nil, err
	}

	snap, err := analysis.Recompute(ctx, recs, prior, g.Members, r.cfg.Analysis)
	if err != nil {
		return nil, fmt.Errorf("analyzing %q: %w", group, err)
	}
	if err := r.store.SaveSnapshot(group, version, snap); err != nil {
		return nil, err
	}
	r.log.Info().Str("group", group).Int("version", snap.Version).Msg("reanalyzed")
	return snap, nil
}
