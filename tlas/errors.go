package tlas

import (
	"errors"
	"os"

	"github.com/achilleasa/gobvh/log"
)

// ErrNoInstances is the precondition violation spec §4.14 names for
// building a TLAS with zero instances, mirroring bvh.ErrEmptyInput.
var ErrNoInstances = errors.New("tlas: cannot build from zero instances")

var pkgLogger = log.New("tlas")

func fatal(err error) {
	pkgLogger.Errorf("fatal: %s", err)
	os.Exit(1)
}
