// Package pipeline orchestrates the two runs: build (enumerate -> resolve
// -> render every configured collection, then commit) and notify (pick one
// unsent entry across all collections, email it, record it, commit the
// sent log).
//
// The pipeline owns no long-lived state. Collections are resolved fresh on
// every run; the output repository's working tree is the only persisted
// artifact and is written only after all per-collection documents are
// computed, so the gatekeeper never sees a partially generated state.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"shelfsync/internal/catalog"
	"shelfsync/internal/config"
	"shelfsync/internal/gitops"
	"shelfsync/internal/liberr"
	"shelfsync/internal/logfields"
	"shelfsync/internal/mailer"
	"shelfsync/internal/metrics"
	"shelfsync/internal/render"
	"shelfsync/internal/resolver"
	"shelfsync/internal/retry"
)

// Pipeline wires the components of a run together.
type Pipeline struct {
	cfg      *config.Config
	backends map[string]catalog.Backend
	res      *resolver.Resolver
	sender   mailer.Sender
	gate     *gitops.Client
	rec      metrics.Recorder
	policy   retry.Policy
}

// New constructs a pipeline. rec may be nil; a noop recorder is used then.
func New(cfg *config.Config, backends map[string]catalog.Backend, res *resolver.Resolver,
	sender mailer.Sender, gate *gitops.Client, rec metrics.Recorder) *Pipeline {
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	return &Pipeline{
		cfg:      cfg,
		backends: backends,
		res:      res,
		sender:   sender,
		gate:     gate,
		rec:      rec,
		policy:   cfg.Retry.Policy(),
	}
}

// CollectionStatus is the per-collection outcome of a build run.
type CollectionStatus string

const (
	StatusRendered CollectionStatus = "rendered"
	StatusSkipped  CollectionStatus = "skipped" // collection not found: configuration problem
	StatusFailed   CollectionStatus = "failed"  // backend failure
)

// CollectionReport is the per-collection result surfaced to the caller.
type CollectionReport struct {
	Name    string
	Backend string
	Status  CollectionStatus
	Entries int
	Err     error
}

// RunReport is the overall result of one run.
type RunReport struct {
	RunID       string
	Kind        string
	Collections []CollectionReport
	Commit      gitops.CommitResult
	Selected    *catalog.ResolvedEntry // notify runs only
	Delivered   bool                   // notify runs only
}

// selectorFor maps a configured collection to a backend selector.
func selectorFor(col config.Collection) catalog.Selector {
	if col.ID != "" {
		return catalog.ByID(col.ID)
	}
	return catalog.ByTag(col.Tag)
}

// enumerate runs a backend enumeration with bounded retries for transient
// failures. Logical failures (collection not found) pass through untouched.
func (p *Pipeline) enumerate(ctx context.Context, col config.Collection) ([]catalog.Entry, error) {
	backend, ok := p.backends[col.Backend]
	if !ok {
		return nil, liberr.New(liberr.CategoryConfig, liberr.SeverityError,
			fmt.Sprintf("collection %q references unknown backend %q", col.Name, col.Backend))
	}
	var entries []catalog.Entry
	err := retry.Do(ctx, p.policy, func() error {
		var enumErr error
		entries, enumErr = backend.Enumerate(ctx, selectorFor(col))
		return enumErr
	})
	return entries, err
}

// Build regenerates every configured collection's listing document and
// commits the result if anything changed. Per-collection work is
// independent and runs concurrently; the working tree is only written once
// all documents are computed.
func (p *Pipeline) Build(ctx context.Context) (*RunReport, error) {
	started := time.Now()
	report := &RunReport{RunID: uuid.NewString(), Kind: "build"}
	defer func() {
		p.rec.ObserveRunDuration("build", time.Since(started))
	}()

	slog.Info("Starting build run",
		logfields.RunID(report.RunID),
		slog.Int("collections", len(p.cfg.Collections)))

	outcomes := make([]buildOutcome, len(p.cfg.Collections))

	var wg sync.WaitGroup
	for i, col := range p.cfg.Collections {
		wg.Add(1)
		go func(i int, col config.Collection) {
			defer wg.Done()
			outcomes[i] = p.buildCollection(ctx, col)
		}(i, col)
	}
	wg.Wait()

	rendered := 0
	for _, o := range outcomes {
		report.Collections = append(report.Collections, o.report)
		p.rec.IncCollectionResult(o.report.Name, resultLabel(o.report.Status))
		if o.report.Status == StatusRendered {
			rendered++
		}
	}

	if rendered == 0 {
		// Nothing was produced; the run is meaningless and the working
		// tree must stay untouched.
		p.rec.IncRunOutcome("build", "failed")
		return report, liberr.New(liberr.CategoryRuntime, liberr.SeverityFatal,
			"build run produced no listings: every collection failed or was skipped")
	}

	// All documents are computed; only now touch the working tree.
	// Collections that failed keep their previous listing file in place
	// (stale but present beats silently vanished).
	for _, o := range outcomes {
		if o.doc == nil {
			continue
		}
		path := filepath.Join(p.gate.Path(), o.doc.Filename)
		if err := os.WriteFile(path, o.doc.Content, 0644); err != nil {
			p.rec.IncRunOutcome("build", "failed")
			return report, liberr.Wrap(err, liberr.CategoryRuntime, liberr.SeverityFatal,
				"write listing "+o.doc.Filename)
		}
	}

	commit, err := p.gate.CommitIfChanged(ctx, fmt.Sprintf("Update collection listings (%d of %d)", rendered, len(p.cfg.Collections)))
	if err != nil {
		p.rec.IncRunOutcome("build", "failed")
		return report, err
	}
	report.Commit = commit
	p.rec.IncCommit(commit.Committed)
	p.rec.IncRunOutcome("build", "success")

	slog.Info("Build run complete",
		logfields.RunID(report.RunID),
		slog.Int("rendered", rendered),
		slog.Bool("committed", commit.Committed),
		logfields.DurationMS(float64(time.Since(started).Milliseconds())))
	return report, nil
}

// buildOutcome pairs a collection report with its rendered document (nil
// unless the collection rendered).
type buildOutcome struct {
	report CollectionReport
	doc    *render.ListingDocument
}

func (p *Pipeline) buildCollection(ctx context.Context, col config.Collection) (o buildOutcome) {
	o.report = CollectionReport{Name: col.Name, Backend: col.Backend}

	entries, err := p.enumerate(ctx, col)
	if err != nil {
		if liberr.GetCategory(err) == liberr.CategoryConfig {
			o.report.Status = StatusSkipped
		} else {
			o.report.Status = StatusFailed
		}
		o.report.Err = err
		slog.Error("Collection enumeration failed",
			logfields.Collection(col.Name),
			logfields.Backend(col.Backend),
			logfields.Error(err))
		return o
	}

	resolved := p.res.ResolveAll(ctx, entries)
	p.rec.ObserveEntriesResolved(col.Name, len(resolved))

	doc, err := render.Listing(render.Input{
		Collection:  col.Name,
		Description: col.Description,
		Notice:      p.cfg.Output.Notice,
		Format:      render.FormatHTML,
		Entries:     resolved,
	})
	if err != nil {
		o.report.Status = StatusFailed
		o.report.Err = err
		return o
	}

	o.report.Status = StatusRendered
	o.report.Entries = len(resolved)
	o.doc = &doc
	slog.Info("Collection rendered",
		logfields.Collection(col.Name),
		logfields.Backend(col.Backend),
		slog.Int("entries", len(resolved)))
	return o
}

func resultLabel(s CollectionStatus) metrics.ResultLabel {
	switch s {
	case StatusRendered:
		return metrics.ResultRendered
	case StatusSkipped:
		return metrics.ResultSkipped
	default:
		return metrics.ResultFailed
	}
}
