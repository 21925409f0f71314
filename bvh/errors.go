package bvh

import (
	"errors"
	"os"

	"github.com/achilleasa/gobvh/log"
)

// Sentinel errors for precondition violations (spec §7). No exported
// function returns them: the entry points that detect a violation (the
// Build* functions, Rebuild, Refit) pass them to fatal, which logs and
// exits, matching the teacher's renderer/opencl pattern of named
// sentinel errors while satisfying spec §4.14's "print a diagnostic and
// exit" for precondition violations.
var (
	ErrEmptyInput         = errors.New("bvh: cannot build from zero primitives")
	ErrNotRebuildable     = errors.New("bvh: tree is not rebuildable (it was produced by a layout conversion)")
	ErrNotRefittable      = errors.New("bvh: tree is not refittable (spatial splits may have clipped fragments)")
	ErrHasHoles           = errors.New("bvh: tree has holes left by MergeLeafs; refit requires a hole-free tree")
	ErrSlackExhausted     = errors.New("bvh: spatial-split fragment slack exhausted")
)

var pkgLogger = log.New("bvh")

// fatal logs err at Error level through logger (or the package default)
// and terminates the process, per spec §4.14: "All construction
// precondition violations ... are fatal: print a diagnostic and exit."
func fatal(logger log.Logger, err error) {
	if logger == nil {
		logger = pkgLogger
	}
	logger.Errorf("fatal: %s", err)
	os.Exit(1)
}
