package layout

import (
	"errors"
	"os"

	"github.com/achilleasa/gobvh/log"
)

// Sentinel errors for layout-conversion precondition violations, mirroring
// the bvh package's fatal-on-violation convention (spec §4.14).
var (
	ErrWrongWidth  = errors.New("layout: intermediate tree has the wrong width for this conversion")
	ErrWrongSource = errors.New("layout: conversion source tree's root is a leaf")
)

var pkgLogger = log.New("layout")

func fatal(err error) {
	pkgLogger.Errorf("fatal: %s", err)
	os.Exit(1)
}
