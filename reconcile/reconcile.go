// Package reconcile drives coverage toward convergence: inspect the store
// against the plan, fetch whatever is missing through a bounded worker
// pool, re-inspect, and repeat until the missing set is empty, stops
// shrinking, or the round budget runs out.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/teris-io/shortid"
	pb "gopkg.in/cheggaaa/pb.v1"

	"tileseed/cover"
	"tileseed/fetch"
	"tileseed/store"
	"tileseed/tile"
)

// Outcome is the terminal state of a reconciliation run.
type Outcome string

const (
	// Converged means every planned tile is valid in the store.
	Converged Outcome = "converged"
	// Partial means the round budget ran out while rounds were still
	// making progress; gaps remain but a re-run may close them.
	Partial Outcome = "partial"
	// Exhausted means a round recovered nothing new; retrying without
	// fixing the backend would loop forever, so the run stops.
	Exhausted Outcome = "exhausted"
	// Aborted means the run was stopped cooperatively before reaching a
	// verdict.
	Aborted Outcome = "aborted"
)

// missingSample bounds how many leftover coordinates an unconverged run
// enumerates in its log.
const missingSample = 10

// RoundStats describes one fetch round.
type RoundStats struct {
	Round        int
	Attempted    int
	Recovered    int
	Failed       int
	MissingAfter int64
	Elapsed      time.Duration
}

// RunReport is the structured result of a run. Exhaustion and partial
// coverage are reported here, never as errors.
type RunReport struct {
	RunID   string
	Outcome Outcome
	Rounds  []RoundStats
	Final   *store.ValidationReport
	Elapsed time.Duration
}

// Reconciler wires plan, store and fetcher into the round loop.
type Reconciler struct {
	Plan      *cover.Plan
	Store     *store.Store
	Inspector *store.Inspector
	Fetcher   *fetch.Fetcher

	Workers      int           // bounded fetch fan-out per round
	RoundBudget  int           // max fetch rounds
	RoundTimeout time.Duration // wall-clock ceiling per round, 0 = none
	Progress     bool          // render a progress bar per round
	Log          logrus.FieldLogger

	abort     chan struct{}
	abortOnce sync.Once
}

// New builds a reconciler with conservative defaults: 4 workers, 3 rounds.
func New(plan *cover.Plan, st *store.Store, f *fetch.Fetcher, log logrus.FieldLogger) *Reconciler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Reconciler{
		Plan:        plan,
		Store:       st,
		Inspector:   store.NewInspector(st, 4, log),
		Fetcher:     f,
		Workers:     4,
		RoundBudget: 3,
		Log:         log,
		abort:       make(chan struct{}),
	}
}

// Abort requests a cooperative stop. In-flight fetches finish or time out;
// the run reports Aborted at the next boundary. Safe to call more than
// once and from signal handlers.
func (r *Reconciler) Abort() {
	r.abortOnce.Do(func() { close(r.abort) })
}

func (r *Reconciler) aborted(ctx context.Context) bool {
	select {
	case <-r.abort:
		return true
	default:
		return ctx.Err() != nil
	}
}

// Run executes the state machine: Planning, then Fetching/Revalidating
// rounds, ending in Converged, Partial, Exhausted or Aborted. The returned
// error covers broken wiring only; every operational ending is an Outcome.
func (r *Reconciler) Run(ctx context.Context) (*RunReport, error) {
	if r.Plan == nil || r.Store == nil || r.Fetcher == nil {
		return nil, errors.New("reconciler needs a plan, a store and a fetcher")
	}
	if r.Inspector == nil {
		r.Inspector = store.NewInspector(r.Store, r.Workers, r.Log)
	}
	if r.Workers < 1 {
		r.Workers = 1
	}
	if r.RoundBudget < 1 {
		r.RoundBudget = 1
	}

	id, _ := shortid.Generate()
	report := &RunReport{RunID: id}
	start := time.Now()
	defer func() { report.Elapsed = time.Since(start) }()

	// Planning
	r.Log.Infof("run %s: planning %d tiles over zoom %s", id, r.Plan.Total(), r.Plan.ZoomRange())
	current, err := r.Inspector.Report(ctx, r.Plan)
	if err != nil {
		// keep the report printable even when planning never finished
		report.Outcome = Aborted
		report.Final = &store.ValidationReport{Zooms: map[int]store.ZoomStats{}}
		return report, nil
	}
	report.Final = current
	r.logZoomStats(current)

	missing := current.Missing
	if len(missing) == 0 {
		report.Outcome = Converged
		r.Log.Infof("run %s: store already complete, nothing to fetch", id)
		return report, nil
	}

	for round := 1; ; round++ {
		if r.aborted(ctx) {
			report.Outcome = Aborted
			r.Log.Warnf("run %s: aborted before round %d", id, round)
			return report, nil
		}

		// Fetching
		r.Log.Infof("run %s: round %d, fetching %d missing tiles", id, round, len(missing))
		stats := r.fetchRound(ctx, round, missing)

		// Revalidating against the full plan, not just the attempted
		// subset, so external changes are caught too.
		current, err = r.Inspector.Report(ctx, r.Plan)
		if err != nil {
			report.Outcome = Aborted
			return report, nil
		}
		report.Final = current
		stats.MissingAfter = current.MissingCount()
		report.Rounds = append(report.Rounds, stats)
		r.logZoomStats(current)
		r.Log.Infof("run %s: round %d done, %d attempted, %d recovered, %d failed, %d still missing",
			id, round, stats.Attempted, stats.Recovered, stats.Failed, stats.MissingAfter)

		switch {
		case len(current.Missing) == 0:
			report.Outcome = Converged
			r.Log.Infof("run %s: converged after %d round(s)", id, round)
			return report, nil
		case r.aborted(ctx):
			report.Outcome = Aborted
			r.Log.Warnf("run %s: aborted during round %d", id, round)
			return report, nil
		case len(current.Missing) >= len(missing):
			report.Outcome = Exhausted
			r.Log.Warnf("run %s: round %d made no progress, giving up", id, round)
			r.logMissingSample(current.Missing)
			return report, nil
		case round >= r.RoundBudget:
			report.Outcome = Partial
			r.Log.Warnf("run %s: round budget %d spent with %d tiles still missing",
				id, r.RoundBudget, len(current.Missing))
			r.logMissingSample(current.Missing)
			return report, nil
		}
		missing = current.Missing
	}
}

// fetchRound pushes the missing set through the bounded worker pool. Each
// coordinate is assigned to exactly one worker, so no path ever has two
// writers. Attempts within one tile stay sequential inside the fetcher.
func (r *Reconciler) fetchRound(ctx context.Context, round int, missing []tile.Coord) RoundStats {
	roundCtx := ctx
	if r.RoundTimeout > 0 {
		var cancel context.CancelFunc
		roundCtx, cancel = context.WithTimeout(ctx, r.RoundTimeout)
		defer cancel()
	}

	var bar *pb.ProgressBar
	if r.Progress {
		bar = pb.New(len(missing)).Prefix(fmt.Sprintf("Round %d : ", round))
		bar.SetRefreshRate(time.Second)
		bar.Start()
	}

	start := time.Now()
	workers := make(chan struct{}, r.Workers)
	var wg sync.WaitGroup
	var recovered, failed int64
	attempted := 0

dispatch:
	for _, c := range missing {
		select {
		case workers <- struct{}{}:
		case <-roundCtx.Done():
			break dispatch
		case <-r.abort:
			break dispatch
		}
		attempted++
		wg.Add(1)
		go func(c tile.Coord) {
			defer func() {
				wg.Done()
				<-workers
			}()
			if err := r.Fetcher.Fetch(roundCtx, c, r.Store.Path(c)); err != nil {
				atomic.AddInt64(&failed, 1)
				r.Log.Debugf("tile %s: %s", c, err)
			} else {
				atomic.AddInt64(&recovered, 1)
			}
			if bar != nil {
				bar.Increment()
			}
		}(c)
	}
	wg.Wait()
	if bar != nil {
		bar.Finish()
	}

	return RoundStats{
		Round:     round,
		Attempted: attempted,
		Recovered: int(atomic.LoadInt64(&recovered)),
		Failed:    int(atomic.LoadInt64(&failed)),
		Elapsed:   time.Since(start),
	}
}

func (r *Reconciler) logZoomStats(report *store.ValidationReport) {
	for _, z := range r.Plan.Zooms() {
		s := report.Zooms[z]
		r.Log.Infof("zoom %d: %d/%d tiles (%.1f%% complete)", z, s.Valid, s.Expected, s.CompletionRate)
	}
}

// logMissingSample enumerates up to missingSample leftover coordinates so
// an operator can request them from the backend directly.
func (r *Reconciler) logMissingSample(missing []tile.Coord) {
	for i, c := range missing {
		if i == missingSample {
			r.Log.Warnf("  ... and %d more", len(missing)-missingSample)
			return
		}
		r.Log.Warnf("  missing: %s", c)
	}
}
