package main

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"tileseed/fetch"
	"tileseed/mbtiles"
	"tileseed/reconcile"
	"tileseed/store"
)

// InitRun loads the project, drives reconciliation to a verdict and prints
// the coverage report. Exit code 0 means converged.
func InitRun() {
	start := time.Now()

	project, err := LoadProject(projectPath)
	if err != nil {
		log.Fatalf("project config: %s", err)
	}
	plan, err := project.Plan()
	if err != nil {
		log.Fatalf("coverage plan: %s", err)
	}
	log.Infof("project %s: %s, zoom %s, %d tiles expected",
		project.Name, project.RenderType, project.ZoomLevels, plan.Total())

	st := store.New(conf.Output.Directory, project.Name)

	f := fetch.New(conf.Fetch.URL, log)
	f.CachePath = conf.Fetch.CachePath
	f.MaxAttempts = conf.Fetch.Attempts
	f.Timeout = time.Duration(conf.Fetch.Timeout) * time.Second
	f.BackoffBase = time.Duration(conf.Fetch.BackoffMs) * time.Millisecond
	f.BackoffJitter = time.Duration(conf.Fetch.JitterMs) * time.Millisecond

	rec := reconcile.New(plan, st, f, log)
	rec.Workers = conf.Task.Workers
	rec.RoundBudget = conf.Task.Rounds
	rec.RoundTimeout = time.Duration(conf.Task.RoundTimeout) * time.Second
	rec.Progress = conf.Output.OutputTerminal

	// 注册安全退出: request the abort, then hold the exit until Run has
	// drained its in-flight fetches, so no write is killed mid-tile.
	runDone := make(chan struct{})
	SafeExitInst.Register(func() {
		rec.Abort()
		<-runDone
	})

	report, err := rec.Run(context.Background())
	close(runDone)
	if err != nil {
		log.Fatalf("reconciliation: %s", err)
	}
	printReport(project, report)

	if conf.Output.Mbtiles && report.Outcome == reconcile.Converged {
		dest := filepath.Join(conf.Output.Directory, project.Name+".mbtiles")
		meta := mbtiles.Metadata{Name: project.Name, Zoom: project.ZoomLevels}
		if project.RenderType == "bbox" {
			meta.Bounds = mbtiles.BoundsString(project.BBox)
		}
		if _, err := mbtiles.Export(dest, st, plan, meta, log); err != nil {
			log.Errorf("mbtiles export: %s", err)
		}
	}

	secs := time.Since(start).Seconds()
	log.Printf("\n%.3fs finished...", secs)

	if report.Outcome != reconcile.Converged {
		os.Exit(1)
	}
}
