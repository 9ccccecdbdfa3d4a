package workflow

import (
	"context"
	"io/ioutil"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
)

// Controller drives the L9 state machine over one run's checkpoint
// (spec §4.7). It is not safe for concurrent use; the workflow has a
// single controller goroutine by design (spec §9 "the arena is the
// workflow controller and lives for the entire run").
type Controller struct {
	checkpointPath string
	matchDir       string
	binDir         string

	cp *Checkpoint
}

// New creates a controller starting from Start with an empty
// checkpoint. matchDir and binDir are the directories CleanupIntermediary
// removes files from once their producing stage is done.
func New(checkpointPath, matchDir, binDir string) *Controller {
	return &Controller{
		checkpointPath: checkpointPath,
		matchDir:       matchDir,
		binDir:         binDir,
		cp:             &Checkpoint{State: Start, BamMapping: map[string]string{}},
	}
}

// Load reconstructs a Controller from a previously saved checkpoint
// file, allowing a run to resume (spec §4.7, §6).
func Load(ctx context.Context, checkpointPath, matchDir, binDir string) (*Controller, error) {
	cp, err := loadCheckpoint(ctx, checkpointPath)
	if err != nil {
		return nil, err
	}
	return &Controller{checkpointPath: checkpointPath, matchDir: matchDir, binDir: binDir, cp: cp}, nil
}

// State returns the controller's current state.
func (c *Controller) State() State { return c.cp.State }

// Checkpoint returns the controller's mutable checkpoint payload so
// callers can populate Tiles/Tally/Bins/BamMapping before the next Step
// persists them.
func (c *Controller) Checkpoint() *Checkpoint { return c.cp }

// Step advances the state machine by exactly one state (spec §4.7
// "Each step() advances at most one state") and persists the checkpoint.
// It returns false without error if the controller is already at the
// terminal state BamDone.
func (c *Controller) Step(ctx context.Context) (bool, error) {
	next, ok := c.cp.State.next()
	if !ok {
		return false, nil
	}
	c.cp.State = next
	if err := c.save(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// Rewind moves the controller back to state `to`. Forward rewind is
// rejected (spec §4.7 "rewind(to) is permitted only backward; forward
// rewind is rejected").
func (c *Controller) Rewind(ctx context.Context, to State) error {
	if to > c.cp.State {
		return errors.E(errors.Invalid, "workflow: rewind to", to, "is forward of current state", c.cp.State)
	}
	c.cp.State = to
	return c.save(ctx)
}

// CleanupIntermediary removes per-tile match files once the selector has
// consumed them and per-bin files once the builder has consumed them.
// It is idempotent and safe to call in any state (spec §4.7): before the
// relevant stage is done the matching directory is simply left alone.
func (c *Controller) CleanupIntermediary(ctx context.Context) error {
	if c.cp.State >= MatchSelectorDone && c.matchDir != "" {
		if err := removeDirContents(ctx, c.matchDir); err != nil {
			return err
		}
	}
	if c.cp.State >= AlignmentReportsDone && c.binDir != "" {
		if err := removeDirContents(ctx, c.binDir); err != nil {
			return err
		}
	}
	return nil
}

// removeDirContents deletes every file directly under dir (match and bin
// directories are flat, one file per tile or bin). A missing directory
// is not an error, matching CleanupIntermediary's idempotence contract.
func removeDirContents(ctx context.Context, dir string) error {
	lister := file.List(ctx, dir, false)
	var paths []string
	for lister.Scan() {
		paths = append(paths, lister.Path())
	}
	if err := lister.Err(); err != nil {
		return nil
	}
	for _, p := range paths {
		if err := file.Remove(ctx, p); err != nil {
			return errors.E(errors.Temporary, err, "workflow: remove intermediate file", p)
		}
	}
	return nil
}

func (c *Controller) save(ctx context.Context) error {
	return writeCheckpoint(ctx, c.checkpointPath, c.cp)
}

func writeCheckpoint(ctx context.Context, path string, cp *Checkpoint) error {
	f, err := file.Create(ctx, path)
	if err != nil {
		return errors.E(errors.Invalid, err, "workflow: create checkpoint", path)
	}
	if _, err := f.Writer(ctx).Write(cp.Marshal()); err != nil {
		_ = f.Close(ctx)
		return errors.E(errors.Temporary, err, "workflow: write checkpoint", path)
	}
	if err := f.Close(ctx); err != nil {
		return errors.E(errors.Temporary, err, "workflow: close checkpoint", path)
	}
	log.Debug.Printf("workflow: checkpoint saved at state %s", cp.State)
	return nil
}

func loadCheckpoint(ctx context.Context, path string) (*Checkpoint, error) {
	f, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.E(errors.NotExist, err, "workflow: open checkpoint", path)
	}
	defer f.Close(ctx) // nolint: errcheck
	data, err := ioutil.ReadAll(f.Reader(ctx))
	if err != nil {
		return nil, errors.E(errors.Invalid, err, "workflow: read checkpoint", path)
	}
	return UnmarshalCheckpoint(data)
}
