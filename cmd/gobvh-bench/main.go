// Command gobvh-bench builds a synthetic triangle soup, times a chosen
// builder and layout conversion, and (where a CPU traversal kernel
// exists for that layout) fires a batch of rays through it. Structured
// after the teacher's main.go: a urfave/cli app with global verbosity
// flags and a single default action.
package main

import (
	"fmt"
	"os"

	"github.com/achilleasa/gobvh/bvh"
	"github.com/achilleasa/gobvh/log"
	"github.com/urfave/cli"
)

var logger = log.New("gobvh-bench")

func setupLogging(ctx *cli.Context) {
	if ctx.GlobalBool("v") {
		log.SetLevel(log.Info)
	}
	if ctx.GlobalBool("vv") {
		log.SetLevel(log.Debug)
	}
}

func main() {
	app := cli.NewApp()
	app.Name = "gobvh-bench"
	app.Usage = "build and trace synthetic geometry to benchmark builders and layouts"
	app.Version = "0.0.1"
	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "v",
			Usage: "enable verbose logging",
		},
		cli.BoolFlag{
			Name:  "vv",
			Usage: "enable even more verbose logging",
		},
		cli.UintFlag{
			Name:  "prims",
			Value: 100000,
			Usage: "number of synthetic triangles to generate",
		},
		cli.UintFlag{
			Name:  "rays",
			Value: 100000,
			Usage: "number of rays to fire against the built tree",
		},
		cli.StringFlag{
			Name:  "builder",
			Value: "bin",
			Usage: "builder to use: bin, simd, sbvh, quick",
		},
		cli.StringFlag{
			Name:  "layout",
			Value: "bvh2",
			Usage: "target layout: bvh2, gpu2, soa2, wide4, wide8, cpu4, quant4, cwbvh",
		},
		cli.BoolFlag{
			Name:  "packet",
			Usage: "trace rays in 256-ray coherent packets instead of one at a time (bvh2 only)",
		},
		cli.Int64Flag{
			Name:  "seed",
			Value: 1,
			Usage: "seed for the synthetic scene and ray generator",
		},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		logger.Error(err)
		os.Exit(1)
	}
}

func run(ctx *cli.Context) error {
	setupLogging(ctx)

	prims := uint32(ctx.Uint("prims"))
	rays := uint32(ctx.Uint("rays"))
	builder := ctx.String("builder")
	layoutName := ctx.String("layout")
	packet := ctx.Bool("packet")
	seed := ctx.Int64("seed")

	if packet && layoutName != "bvh2" {
		return fmt.Errorf("--packet is only supported with --layout=bvh2")
	}

	opts := &bvh.Options{Logger: logger}
	res, err := runBench(builder, layoutName, prims, rays, seed, packet, opts)
	if err != nil {
		return err
	}

	fmt.Printf("builder=%s layout=%s prims=%d\n", res.builder, res.layoutName, prims)
	fmt.Printf("build:      %.3fms\n", res.buildTime)
	if res.convTime > 0 {
		fmt.Printf("convert:    %.3fms\n", res.convTime)
	}
	if res.rays > 0 {
		fmt.Printf("trace:      %.3fms for %d rays (%d hits, %.2f Mrays/s)\n",
			res.traceTime, res.rays, res.hits, float64(res.rays)/res.traceTime/1000)
	}
	fmt.Print(res.stats.String())

	return nil
}
