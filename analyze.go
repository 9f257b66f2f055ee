package main

import (
	"context"
	"log"

	"loov.dev/rvilp/internal/blocks"
	"loov.dev/rvilp/internal/config"
	"loov.dev/rvilp/internal/disasm"
	"loov.dev/rvilp/internal/image"
	"loov.dev/rvilp/internal/slicer"
)

// Options configures a single analysis.
type Options struct {
	Config config.Config
	// Listing also disassembles the scheduled blocks.
	Listing bool
	// Log receives progress messages, nil disables them.
	Log *log.Logger
}

// Output is the result of analysing a program.
type Output struct {
	Image    *image.Image
	Blocks   blocks.Blocks
	Schedule *slicer.Schedule
	Listing  *disasm.Listing
}

// Analyze loads the program at path, finds its basic blocks and slices them.
func Analyze(ctx context.Context, path string, opts Options) (*Output, error) {
	if err := opts.Config.Validate(); err != nil {
		return nil, err
	}
	img, err := image.Open(path, image.Window{Base: opts.Config.Base, Size: opts.Config.Size})
	if err != nil {
		return nil, err
	}
	return AnalyzeImage(ctx, img, opts)
}

// AnalyzeImage runs the analysis on an already loaded image.
func AnalyzeImage(ctx context.Context, img *image.Image, opts Options) (*Output, error) {
	if err := opts.Config.Validate(); err != nil {
		return nil, err
	}
	cfg := opts.Config

	logf := func(format string, args ...any) {
		if opts.Log != nil {
			opts.Log.Printf(format, args...)
		}
	}

	for _, sec := range img.Sections {
		logf("section %-12s %#08x+%#x exec=%v", sec.Name, sec.Addr, sec.Size, sec.Exec)
	}
	logf("code range %#08x-%#08x", img.Bounds.Base, img.Bounds.Limit)

	discover := blocks.Options{
		Exhaustive: cfg.Exhaustive,
		Workers:    cfg.Parallelism(),
	}
	if cfg.Entry {
		discover.Seeds = append(discover.Seeds, img.Entry)
	}

	bbs, err := blocks.Discover(ctx, img, img.Bounds, discover)
	if err != nil {
		return nil, err
	}
	logf("found %d blocks", len(bbs))

	sched, err := slicer.Build(ctx, bbs, cfg.Width, cfg.Parallelism())
	if err != nil {
		return nil, err
	}
	logf("scheduled into %d lanes", sched.Lanes)

	out := &Output{
		Image:    img,
		Blocks:   bbs,
		Schedule: sched,
	}
	if opts.Listing {
		out.Listing, err = disasm.Build(bbs, sched, img.Symbols)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}
