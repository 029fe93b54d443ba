/*
Package output writes finalized datasets to disk.

LAYOUT:
  <dir>/<vertical>/<collection>.json   JSON array, generation order
  <dir>/<vertical>/summary.json        Summary object

ALL-OR-NOTHING:
  Every dataset passed to one Write call is staged under a hidden directory
  inside <dir> and only renamed into place once all of them were written.
  A failure, including a failed rename halfway through publishing, leaves
  the previous output untouched. Vertical names must be plain directory
  names; anything that could resolve outside <dir> is refused. Datasets that are not
  Complete are refused before anything touches the disk.
*/
package output

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/warp/synth-engine/generic"
)

// SummaryFile is the per-vertical summary file name.
const SummaryFile = "summary.json"

// Writer writes datasets under Dir.
type Writer struct {
	Dir    string
	Indent bool
	Log    *slog.Logger
}

// NewWriter returns an indenting Writer for dir.
func NewWriter(dir string, log *slog.Logger) *Writer {
	if log == nil {
		log = slog.Default()
	}
	return &Writer{Dir: dir, Indent: true, Log: log}
}

// Result lists what one dataset produced.
type Result struct {
	Vertical string         `json:"vertical"`
	Dir      string         `json:"dir"`
	Files    map[string]int `json:"files"` // file name -> entity count
}

// Write stages and publishes every dataset, or none of them.
func (w *Writer) Write(datasets ...*generic.Dataset) ([]Result, error) {
	seen := make(map[string]bool, len(datasets))
	for _, ds := range datasets {
		if err := w.checkName(ds.Vertical); err != nil {
			return nil, err
		}
		if !ds.Complete() {
			return nil, fmt.Errorf("%s: %w", ds.Vertical, generic.ErrNotComplete)
		}
		if seen[ds.Vertical] {
			return nil, fmt.Errorf("vertical %s given twice", ds.Vertical)
		}
		seen[ds.Vertical] = true
	}

	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	staging, err := os.MkdirTemp(w.Dir, ".staging-")
	if err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(staging)

	results := make([]Result, 0, len(datasets))
	for _, ds := range datasets {
		res, err := w.stage(staging, ds)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}

	names := make([]string, len(datasets))
	for i, ds := range datasets {
		names[i] = ds.Vertical
	}
	if err := w.publish(staging, names); err != nil {
		return nil, err
	}
	for i, ds := range datasets {
		results[i].Dir = filepath.Join(w.Dir, ds.Vertical)
		w.Log.Info("dataset written", "vertical", ds.Vertical, "dir", results[i].Dir, "entities", ds.Total())
	}
	return results, nil
}

// checkName refuses vertical names that would resolve outside Dir.
func (w *Writer) checkName(name string) error {
	if err := generic.ValidateName(name); err != nil {
		return err
	}
	if strings.ContainsAny(name, `/\`) || name != filepath.Base(filepath.Clean(name)) {
		return &generic.ConfigurationError{Field: "vertical", Reason: fmt.Sprintf("%q is not a plain directory name", name)}
	}
	base := filepath.Clean(w.Dir)
	if filepath.Dir(filepath.Join(base, name)) != base {
		return &generic.ConfigurationError{Field: "vertical", Reason: fmt.Sprintf("%q escapes %s", name, w.Dir)}
	}
	return nil
}

// publish moves every staged directory into place. Previous output is parked
// under staging/.previous and restored if any rename fails.
func (w *Writer) publish(staging string, names []string) error {
	previous := filepath.Join(staging, ".previous")
	if err := os.Mkdir(previous, 0o755); err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}

	type moved struct {
		name   string
		parked bool
	}
	var done []moved
	rollback := func() {
		for i := len(done) - 1; i >= 0; i-- {
			final := filepath.Join(w.Dir, done[i].name)
			if err := os.RemoveAll(final); err != nil {
				w.Log.Error("rollback failed", "dir", final, "error", err)
				continue
			}
			if done[i].parked {
				if err := os.Rename(filepath.Join(previous, done[i].name), final); err != nil {
					w.Log.Error("rollback failed", "dir", final, "error", err)
				}
			}
		}
	}

	for _, name := range names {
		final := filepath.Join(w.Dir, name)
		m := moved{name: name}
		if _, err := os.Lstat(final); err == nil {
			if err := os.Rename(final, filepath.Join(previous, name)); err != nil {
				rollback()
				return fmt.Errorf("failed to replace %s: %w", final, err)
			}
			m.parked = true
		} else if !errors.Is(err, fs.ErrNotExist) {
			rollback()
			return fmt.Errorf("failed to replace %s: %w", final, err)
		}
		if err := renameDir(filepath.Join(staging, name), final); err != nil {
			if m.parked {
				if rerr := os.Rename(filepath.Join(previous, name), final); rerr != nil {
					w.Log.Error("rollback failed", "dir", final, "error", rerr)
				}
			}
			rollback()
			return fmt.Errorf("failed to publish %s: %w", final, err)
		}
		done = append(done, m)
	}
	return nil
}

// renameDir is swapped in tests to simulate a failing rename.
var renameDir = os.Rename

func (w *Writer) stage(staging string, ds *generic.Dataset) (Result, error) {
	dir := filepath.Join(staging, ds.Vertical)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Result{}, err
	}
	res := Result{Vertical: ds.Vertical, Files: make(map[string]int)}

	for _, name := range ds.Names() {
		entities := ds.Collection(name)
		if entities == nil {
			entities = []generic.Entity{}
		}
		file := name + ".json"
		if err := w.writeJSON(filepath.Join(dir, file), entities); err != nil {
			return Result{}, fmt.Errorf("failed to write %s/%s: %w", ds.Vertical, file, err)
		}
		res.Files[file] = len(entities)
	}

	summary, err := ds.Summary()
	if err != nil {
		return Result{}, err
	}
	if err := w.writeJSON(filepath.Join(dir, SummaryFile), summary); err != nil {
		return Result{}, fmt.Errorf("failed to write %s/%s: %w", ds.Vertical, SummaryFile, err)
	}
	res.Files[SummaryFile] = 1
	return res, nil
}

func (w *Writer) writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	if w.Indent {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(v); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
