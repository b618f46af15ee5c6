// Package sweep finds and removes provider assets that no meme references.
// It runs only when invoked; nothing schedules it.
package sweep

import (
	"context"
	"errors"
	"fmt"

	"github.com/rcliao/memeboard/internal/asset"
	"github.com/rcliao/memeboard/internal/logging"
	"github.com/rcliao/memeboard/internal/store"
)

// ErrNoRecords is returned when a deleting pass finds assets but no records
// at all, which usually means the wrong record store was opened.
var ErrNoRecords = errors.New("sweep: record store is empty")

// Options controls a single pass.
type Options struct {
	Prefix     string // provider id prefix, usually the upload folder
	DryRun     bool
	AllowEmpty bool // delete even when no records exist
}

// Report summarises a pass.
type Report struct {
	Scanned    int      `json:"scanned"`
	Referenced int      `json:"referenced"`
	Orphans    []string `json:"orphans"`
	Deleted    int      `json:"deleted"`
	Failed     int      `json:"failed"`
}

// Sweeper compares the asset listing with every record's image URL.
type Sweeper struct {
	Records store.Store
	Lister  asset.Lister
	Deleter asset.Store // typically an asset.RetryingStore
	Logger  logging.Logger
}

// Run executes one pass. Records are loaded before assets are listed, so an
// upload whose record lands mid-pass can look orphaned; run it while uploads
// are quiet.
func (s *Sweeper) Run(ctx context.Context, opts Options) (*Report, error) {
	if s == nil || s.Records == nil || s.Lister == nil {
		return nil, errors.New("sweep: record store and asset lister are required")
	}
	if s.Deleter == nil && !opts.DryRun {
		return nil, errors.New("sweep: asset deleter is required unless dry-run")
	}
	logger := logging.OrNop(s.Logger)

	memes, err := store.ExportAll(ctx, s.Records)
	if err != nil {
		return nil, fmt.Errorf("load records: %w", err)
	}
	referencedIDs := make(map[string]bool, len(memes))
	referencedURLs := make(map[string]bool, len(memes))
	for _, m := range memes {
		referencedURLs[m.ImageURL] = true
		if id, err := asset.ExtractProviderID(m.ImageURL); err == nil {
			referencedIDs[id] = true
		}
	}

	listed, err := s.Lister.List(ctx, opts.Prefix)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}

	if len(memes) == 0 && len(listed) > 0 && !opts.DryRun && !opts.AllowEmpty {
		return nil, fmt.Errorf("%w: refusing to delete %d assets", ErrNoRecords, len(listed))
	}

	report := &Report{Scanned: len(listed), Orphans: []string{}}
	for _, a := range listed {
		if referencedIDs[a.ProviderID] || (a.URL != "" && referencedURLs[a.URL]) {
			report.Referenced++
			continue
		}
		report.Orphans = append(report.Orphans, a.ProviderID)
		if opts.DryRun {
			continue
		}
		err := s.Deleter.Delete(ctx, a.ProviderID)
		switch {
		case err == nil, errors.Is(err, asset.ErrNotFound):
			report.Deleted++
		default:
			report.Failed++
			logger.Warn("sweep: delete %s: %v", a.ProviderID, err)
		}
	}
	logger.Info("sweep: scanned=%d referenced=%d orphans=%d deleted=%d failed=%d dry_run=%t",
		report.Scanned, report.Referenced, len(report.Orphans), report.Deleted, report.Failed, opts.DryRun)
	return report, nil
}
