// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package reconcile

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/pdiddy/papers/internal/backup"
	"github.com/pdiddy/papers/internal/cache"
	"github.com/pdiddy/papers/internal/journal"
	"github.com/pdiddy/papers/pkg/types"
)

// SkipNotInZotero is the detail recorded for upload candidates whose parent
// record is missing.
const SkipNotInZotero = "not in Zotero"

// Recorder receives executed transfer outcomes.
type Recorder interface {
	Record(ctx context.Context, ev journal.Event) error
}

// Result is the outcome for one key.
type Result struct {
	Key           string            `json:"key" yaml:"key"`
	Outcome       types.SyncOutcome `json:"outcome" yaml:"outcome"`
	AttachmentKey string            `json:"attachment_key,omitempty" yaml:"attachment_key,omitempty"`
	Detail        string            `json:"detail,omitempty" yaml:"detail,omitempty"`
}

// Report summarises an upload or download run.
type Report struct {
	Direction types.SyncDirection `json:"direction" yaml:"direction"`
	DryRun    bool                `json:"dry_run" yaml:"dry_run"`
	Results   []Result            `json:"results" yaml:"results"`
}

// Count returns how many results have outcome o.
func (r Report) Count(o types.SyncOutcome) int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == o {
			n++
		}
	}
	return n
}

// Total returns the number of keys considered.
func (r Report) Total() int { return len(r.Results) }

// HasFailures reports whether any key failed.
func (r Report) HasFailures() bool { return r.Count(types.OutcomeFailed) > 0 }

// Keys returns the keys with outcome o, in report order.
func (r Report) Keys(o types.SyncOutcome) []string {
	var out []string
	for _, res := range r.Results {
		if res.Outcome == o {
			out = append(out, res.Key)
		}
	}
	return out
}

// Syncer runs listings and transfers between the cache and Zotero.
type Syncer struct {
	Lib   backup.Library
	Store *cache.Store
	// Journal, when set, receives every executed (non dry-run) outcome.
	Journal Recorder
	// Out receives one progress line per key. Nil discards.
	Out io.Writer
	Log *zap.Logger
}

func (s *Syncer) out() io.Writer {
	if s.Out == nil {
		return io.Discard
	}
	return s.Out
}

func (s *Syncer) log() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}

func (s *Syncer) snapshot(ctx context.Context) (KeySet, backup.Backups, error) {
	local, err := s.Store.ListKeys()
	if err != nil {
		return nil, nil, err
	}
	backups, err := backup.BackedUpKeys(ctx, s.Lib)
	if err != nil {
		return nil, nil, err
	}
	return KeySet(local), backups, nil
}

// List classifies every key known locally or remotely.
func (s *Syncer) List(ctx context.Context) ([]Entry, error) {
	local, backups, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	backedUp := KeySet(backups.Keys())

	union := make(KeySet, len(local)+len(backedUp))
	for k := range local {
		union[k] = struct{}{}
	}
	for k := range backedUp {
		union[k] = struct{}{}
	}
	titles, err := backup.TitleMap(ctx, s.Lib, union.Sorted())
	if err != nil {
		return nil, err
	}

	return PlanList(local, backedUp, titles, s.metaTitle), nil
}

func (s *Syncer) metaTitle(key string) string {
	meta, ok := s.Store.ReadMeta(key)
	if !ok {
		return ""
	}
	return meta.Title
}

// Upload backs up every cached key that has no backup yet and whose parent
// record exists. A dry run classifies the same candidates without any
// mutating call. Listing failures abort the run; per-key failures do not.
func (s *Syncer) Upload(ctx context.Context, dryRun bool) (Report, error) {
	report := Report{Direction: types.DirectionUpload, DryRun: dryRun}

	local, backups, err := s.snapshot(ctx)
	if err != nil {
		return report, err
	}
	candidates := PlanUpload(local, KeySet(backups.Keys()))
	if len(candidates) == 0 {
		return report, nil
	}
	exists, err := backup.ItemExists(ctx, s.Lib, candidates)
	if err != nil {
		return report, err
	}

	w := s.out()
	for _, key := range candidates {
		if !KeySet(exists).Has(key) {
			outcome := types.OutcomeSkipped
			if dryRun {
				outcome = types.OutcomeWouldSkip
			}
			fmt.Fprintf(w, "skipped: %s (%s)\n", key, SkipNotInZotero)
			s.add(ctx, &report, Result{Key: key, Outcome: outcome, Detail: SkipNotInZotero})
			continue
		}
		if dryRun {
			fmt.Fprintf(w, "would upload: %s\n", key)
			s.add(ctx, &report, Result{Key: key, Outcome: types.OutcomeWouldDo})
			continue
		}

		attKey, err := backup.Upload(ctx, s.Lib, s.Store, key)
		if err != nil {
			fmt.Fprintf(w, "failed:  %s (%v)\n", key, err)
			s.add(ctx, &report, Result{Key: key, Outcome: types.OutcomeFailed, AttachmentKey: attKey, Detail: err.Error()})
			continue
		}
		fmt.Fprintf(w, "uploaded: %s\n", key)
		s.add(ctx, &report, Result{Key: key, Outcome: types.OutcomeDone, AttachmentKey: attKey})
	}
	return report, nil
}

// Download restores every backed-up key that is not cached locally. A dry
// run issues no downloads.
func (s *Syncer) Download(ctx context.Context, dryRun bool) (Report, error) {
	report := Report{Direction: types.DirectionDownload, DryRun: dryRun}

	local, backups, err := s.snapshot(ctx)
	if err != nil {
		return report, err
	}

	w := s.out()
	for _, key := range PlanDownload(KeySet(backups.Keys()), local) {
		attKey := backups[key]
		if dryRun {
			fmt.Fprintf(w, "would download: %s\n", key)
			s.add(ctx, &report, Result{Key: key, Outcome: types.OutcomeWouldDo, AttachmentKey: attKey})
			continue
		}
		if err := backup.Download(ctx, s.Lib, s.Store, key, attKey); err != nil {
			fmt.Fprintf(w, "failed:  %s (%v)\n", key, err)
			s.add(ctx, &report, Result{Key: key, Outcome: types.OutcomeFailed, AttachmentKey: attKey, Detail: err.Error()})
			continue
		}
		fmt.Fprintf(w, "downloaded: %s\n", key)
		s.add(ctx, &report, Result{Key: key, Outcome: types.OutcomeDone, AttachmentKey: attKey})
	}
	return report, nil
}

func (s *Syncer) add(ctx context.Context, report *Report, res Result) {
	report.Results = append(report.Results, res)
	if report.DryRun || s.Journal == nil {
		return
	}
	ev := journal.Event{
		Direction:     report.Direction,
		Key:           res.Key,
		Outcome:       res.Outcome,
		AttachmentKey: res.AttachmentKey,
		Detail:        res.Detail,
	}
	if err := s.Journal.Record(ctx, ev); err != nil {
		s.log().Warn("journal write failed", zap.String("key", res.Key), zap.Error(err))
	}
}

// KeyStatus describes one key on both sides.
type KeyStatus struct {
	Key           string                `json:"key" yaml:"key"`
	Local         bool                  `json:"local" yaml:"local"`
	Meta          *types.ExtractionMeta `json:"meta,omitempty" yaml:"meta,omitempty"`
	InZotero      bool                  `json:"in_zotero" yaml:"in_zotero"`
	Remote        types.RemoteStatus    `json:"remote" yaml:"remote"`
	AttachmentKey string                `json:"attachment_key,omitempty" yaml:"attachment_key,omitempty"`
}

// Inspect reports local presence, meta, parent presence, and backup
// presence for a single key.
func (s *Syncer) Inspect(ctx context.Context, key string) (KeyStatus, error) {
	st := KeyStatus{Key: key, Local: s.Store.Has(key)}
	if meta, ok := s.Store.ReadMeta(key); ok {
		st.Meta = meta
	}

	exists, err := backup.ItemExists(ctx, s.Lib, []string{key})
	if err != nil {
		return st, err
	}
	st.InZotero = KeySet(exists).Has(key)

	if st.InZotero {
		attKey, ok, err := backup.FindBackup(ctx, s.Lib, key)
		if err != nil {
			return st, err
		}
		if ok {
			st.AttachmentKey = attKey
			st.Remote = types.RemoteOK
		} else {
			st.Remote = types.RemoteNoBackup
		}
	}
	return st, nil
}
