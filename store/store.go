// Package store owns the on-disk tile tree and the definition of "valid":
// it maps coordinates to canonical paths, finds the planned tiles that are
// absent or structurally broken, and builds completeness reports.
package store

import (
	"context"
	"io/fs"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"tileseed/cover"
	"tileseed/tile"
)

// Store locates one project's tile artifacts under
// {root}/{project}/{z}/{x}/{y}.png.
type Store struct {
	Root    string
	Project string
}

// New returns a store rooted at root for the named project.
func New(root, project string) *Store {
	return &Store{Root: root, Project: project}
}

// Dir returns the project's tile directory.
func (s *Store) Dir() string {
	return filepath.Join(s.Root, s.Project)
}

// Path returns the canonical artifact path for a coordinate.
func (s *Store) Path(c tile.Coord) string {
	return filepath.Join(s.Dir(), strconv.Itoa(c.Z), strconv.Itoa(c.X), strconv.Itoa(c.Y)+".png")
}

// IsValid reports whether the artifact for c exists and carries the PNG
// signature.
func (s *Store) IsValid(c tile.Coord) bool {
	return tile.ValidFile(s.Path(c))
}

// ZoomStats is the per-level slice of a validation report.
type ZoomStats struct {
	Expected       int64
	Valid          int64
	Missing        int64
	CompletionRate float64
}

// ValidationReport is recomputed on demand from the plan and the
// filesystem; it is never persisted or trusted across runs. Valid counts
// every signature-valid png under the project directory, independently of
// the plan, while Missing and the per-zoom stats are plan-derived.
type ValidationReport struct {
	Expected       int64
	Valid          int64
	Missing        []tile.Coord
	CompletionRate float64
	Zooms          map[int]ZoomStats
}

// MissingCount is a convenience for len(Missing) as int64.
func (r *ValidationReport) MissingCount() int64 {
	return int64(len(r.Missing))
}

// Inspector scans a store against a plan. Scanning is read-only and
// parallelized across coordinates with a bounded semaphore; it must not run
// against a coordinate another goroutine is writing, which callers
// guarantee by never inspecting mid-fetch.
type Inspector struct {
	store   *Store
	workers int64
	log     logrus.FieldLogger
}

// NewInspector builds an inspector; workers <= 0 falls back to 1.
func NewInspector(s *Store, workers int, log logrus.FieldLogger) *Inspector {
	if workers <= 0 {
		workers = 1
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Inspector{store: s, workers: int64(workers), log: log}
}

// Missing walks the full plan, every zoom, column and row, and returns the
// coordinates whose artifacts are absent or invalid, in plan enumeration
// order (zoom, column, row).
func (in *Inspector) Missing(ctx context.Context, plan *cover.Plan) ([]tile.Coord, error) {
	coords := plan.Coords()
	invalid := make([]bool, len(coords))

	sem := semaphore.NewWeighted(in.workers)
	var wg sync.WaitGroup
	for i := range coords {
		if err := sem.Acquire(ctx, 1); err != nil {
			wg.Wait()
			return nil, err
		}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer sem.Release(1)
			invalid[i] = !in.store.IsValid(coords[i])
		}(i)
	}
	wg.Wait()

	missing := make([]tile.Coord, 0)
	for i, c := range coords {
		if invalid[i] {
			missing = append(missing, c)
		}
	}
	return missing, nil
}

// Report builds the full validation report for the plan.
func (in *Inspector) Report(ctx context.Context, plan *cover.Plan) (*ValidationReport, error) {
	missing, err := in.Missing(ctx, plan)
	if err != nil {
		return nil, err
	}

	missingPerZoom := make(map[int]int64)
	for _, c := range missing {
		missingPerZoom[c.Z]++
	}

	zooms := make(map[int]ZoomStats, len(plan.Zooms()))
	for _, z := range plan.Zooms() {
		expected := plan.CountAt(z)
		miss := missingPerZoom[z]
		valid := expected - miss
		zooms[z] = ZoomStats{
			Expected:       expected,
			Valid:          valid,
			Missing:        miss,
			CompletionRate: Rate(valid, expected),
		}
	}

	valid := in.countValidArtifacts()
	expected := plan.Total()
	report := &ValidationReport{
		Expected:       expected,
		Valid:          valid,
		Missing:        missing,
		CompletionRate: Rate(valid, expected),
		Zooms:          zooms,
	}
	in.log.Debugf("inspected %s: %d/%d valid, %d missing", in.store.Dir(), valid, expected, len(missing))
	return report, nil
}

// countValidArtifacts counts signature-valid pngs under the project
// directory regardless of whether the plan wants them. A missing directory
// counts as zero.
func (in *Inspector) countValidArtifacts() int64 {
	var valid int64
	filepath.WalkDir(in.store.Dir(), func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() || !strings.HasSuffix(path, ".png") {
			return nil
		}
		if tile.ValidFile(path) {
			valid++
		}
		return nil
	})
	return valid
}

// Rate returns valid/expected as a percentage, zero when expected is zero.
func Rate(valid, expected int64) float64 {
	if expected == 0 {
		return 0
	}
	return float64(valid) / float64(expected) * 100
}
