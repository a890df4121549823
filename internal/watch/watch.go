// Package watch re-cooks a job whenever its input files change. One
// instance.Operation and one output document live for the whole session,
// and reloaded inputs are merged into the documents already in memory, so
// an edit that only touches attribute values keeps topology cached.
package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"copytopoints/internal/geo"
	"copytopoints/internal/geoio"
	"copytopoints/internal/instance"
	"copytopoints/internal/logging"
)

const DefaultDebounce = 100 * time.Millisecond

type Job struct {
	Source string
	Target string
	Output string
	Params instance.Params
}

// Report describes one cook.
type Report struct {
	// Trigger is the changed file, or empty for the initial cook.
	Trigger string
	Result  instance.Result
	Err     error
}

type Watcher struct {
	job      Job
	debounce time.Duration

	op     *instance.Operation
	out    *geo.Document
	source *geo.Document
	target *geo.Document
}

func New(job Job, debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{job: job, debounce: debounce, op: instance.New(), out: geo.New()}
}

// Output is the document the watcher cooks into.
func (w *Watcher) Output() *geo.Document { return w.out }

// Cook reloads the inputs, cooks and writes the output file.
func (w *Watcher) Cook(trigger string) Report {
	rep := Report{Trigger: trigger}
	src, err := geoio.ReadFile(w.job.Source)
	if err != nil {
		rep.Err = err
		return rep
	}
	target, err := geoio.ReadFile(w.job.Target)
	if err != nil {
		rep.Err = err
		return rep
	}
	w.source = Merge(w.source, src)
	w.target = Merge(w.target, target)

	rep.Result, rep.Err = w.op.Cook(w.out, w.source, w.target, w.job.Params)
	if rep.Err != nil {
		return rep
	}
	if w.job.Output != "" {
		rep.Err = geoio.WriteFile(w.job.Output, w.out)
	}
	return rep
}

// Run cooks once, then again after each burst of changes to the source
// or target file, until ctx is done. onCook sees every report.
func (w *Watcher) Run(ctx context.Context, onCook func(Report)) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer fw.Close()

	// Editors often replace files, so the directories are watched.
	files := map[string]bool{}
	for _, p := range []string{w.job.Source, w.job.Target} {
		abs, err := filepath.Abs(p)
		if err != nil {
			return fmt.Errorf("watch: %w", err)
		}
		files[abs] = true
		dir := filepath.Dir(abs)
		if err := fw.Add(dir); err != nil {
			return fmt.Errorf("watch: add %s: %w", dir, err)
		}
	}

	onCook(w.Cook(""))

	log := logging.L()
	var timer *time.Timer
	var timerC <-chan time.Time
	pending := ""
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			abs, _ := filepath.Abs(ev.Name)
			if !files[abs] || ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			pending = abs
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			timerC = timer.C
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			log.Warn("watch error", "err", err)
		case <-timerC:
			timerC = nil
			if _, err := os.Stat(pending); errors.Is(err, os.ErrNotExist) {
				// Renamed away; wait for the replacement.
				continue
			}
			onCook(w.Cook(pending))
		}
	}
}
