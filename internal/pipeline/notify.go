package pipeline

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"shelfsync/internal/catalog"
	"shelfsync/internal/liberr"
	"shelfsync/internal/logfields"
	"shelfsync/internal/mailer"
	"shelfsync/internal/selector"
	"shelfsync/internal/sentlog"
)

// candidate is one entry eligible for notification, carrying the sent-log
// key that identifies it across runs.
type candidate struct {
	entry catalog.ResolvedEntry
	key   string
}

// Notify picks one not-yet-sent entry uniformly at random across all
// configured collections, emails it, and records it in the sent log. A
// delivery failure is logged and leaves the sent log untouched so the
// entry stays eligible; only the sent log flows through the commit gate.
func (p *Pipeline) Notify(ctx context.Context) (*RunReport, error) {
	started := time.Now()
	report := &RunReport{RunID: uuid.NewString(), Kind: "notify"}
	defer func() {
		p.rec.ObserveRunDuration("notify", time.Since(started))
	}()

	slog.Info("Starting notify run",
		logfields.RunID(report.RunID),
		slog.Int("collections", len(p.cfg.Collections)))

	log := sentlog.New(filepath.Join(p.gate.Path(), p.cfg.Output.SentLog))
	sent, err := log.Sent()
	if err != nil {
		p.rec.IncRunOutcome("notify", "failed")
		return report, liberr.Wrap(err, liberr.CategoryRuntime, liberr.SeverityFatal, "load sent log")
	}

	// Build the candidate pool. Per-collection failures shrink the pool
	// but do not abort the run; they are reported like build failures.
	var pool []candidate
	unavailable := 0
	for _, col := range p.cfg.Collections {
		cr := CollectionReport{Name: col.Name, Backend: col.Backend}
		entries, err := p.enumerate(ctx, col)
		if err != nil {
			if liberr.GetCategory(err) == liberr.CategoryConfig {
				cr.Status = StatusSkipped
			} else {
				cr.Status = StatusFailed
				unavailable++
			}
			cr.Err = err
			report.Collections = append(report.Collections, cr)
			slog.Error("Collection enumeration failed",
				logfields.Collection(col.Name),
				logfields.Backend(col.Backend),
				logfields.Error(err))
			continue
		}
		resolved := p.res.ResolveAll(ctx, entries)
		cr.Status = StatusRendered
		cr.Entries = len(resolved)
		report.Collections = append(report.Collections, cr)

		for _, r := range resolved {
			key := r.Key(col.Backend, col.Name)
			if !sent[key] {
				pool = append(pool, candidate{entry: r, key: key})
			}
		}
	}

	if unavailable == len(p.cfg.Collections) && unavailable > 0 {
		p.rec.IncRunOutcome("notify", "failed")
		return report, liberr.New(liberr.CategoryRuntime, liberr.SeverityFatal,
			"notify run aborted: every configured collection was unavailable")
	}

	idx, err := selector.PickIndex(len(pool))
	if err != nil {
		p.rec.IncRunOutcome("notify", "failed")
		return report, liberr.EmptyPool("all entries were already sent or no collection yielded entries")
	}
	picked := pool[idx]
	report.Selected = &picked.entry

	slog.Info("Selected entry for notification",
		logfields.RunID(report.RunID),
		logfields.EntryID(picked.entry.ID),
		logfields.Title(picked.entry.Title),
		slog.Int("pool", len(pool)))

	msg := mailer.Compose(picked.entry, p.cfg.Mail)
	if err := p.sender.Send(ctx, msg); err != nil {
		// Non-fatal: report, keep the entry eligible, and still run the
		// gatekeeper for any incidentally updated state.
		p.rec.IncDeliveryResult(false)
		slog.Warn("Notification delivery failed",
			logfields.Title(picked.entry.Title),
			logfields.Error(err))
	} else {
		p.rec.IncDeliveryResult(true)
		report.Delivered = true
		if err := log.Record(picked.key); err != nil {
			p.rec.IncRunOutcome("notify", "failed")
			return report, liberr.Wrap(err, liberr.CategoryRuntime, liberr.SeverityFatal, "record sent entry")
		}
	}

	commit, err := p.gate.CommitIfChanged(ctx, "Record sent entry")
	if err != nil {
		p.rec.IncRunOutcome("notify", "failed")
		return report, err
	}
	report.Commit = commit
	p.rec.IncCommit(commit.Committed)
	p.rec.IncRunOutcome("notify", "success")

	slog.Info("Notify run complete",
		logfields.RunID(report.RunID),
		slog.Bool("delivered", report.Delivered),
		slog.Bool("committed", commit.Committed),
		logfields.DurationMS(float64(time.Since(started).Milliseconds())))
	return report, nil
}
