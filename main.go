package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"os"

	"loov.dev/rvilp/internal/config"
	"loov.dev/rvilp/internal/ilpfile"
)

func main() {
	if err := run(os.Args[1:], os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string, stderr io.Writer) error {
	flags := flag.NewFlagSet("rvilp", flag.ContinueOnError)
	flags.SetOutput(stderr)

	configPath := flags.String("config", "", "load configuration from a YAML file")
	width := flags.Int("width", config.DefaultWidth, "maximum number of instructions in a cycle")
	base := flags.Uint("base", config.DefaultBase, "address of the memory image")
	size := flags.Uint("size", config.DefaultSize, "size of the memory image")
	exhaustive := flags.Bool("exhaustive", false, "try every aligned address as a block start")
	workers := flags.Int("workers", 0, "number of goroutines, 0 uses one per CPU")
	entry := flags.Bool("entry", false, "also start discovery from the ELF entry point")
	pad := flags.Bool("pad", false, "pad cycles to the lane count in the text output")
	listing := flags.Bool("listing", false, "also write a disassembly listing to <output>.lst")
	verbose := flags.Bool("v", false, "print progress")

	flags.Usage = func() {
		fmt.Fprintln(flags.Output(), "rvilp [flags] <input.elf> <output.ilp>")
		flags.PrintDefaults()
	}

	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() != 2 {
		flags.Usage()
		return fmt.Errorf("expected input and output paths, got %d arguments", flags.NArg())
	}
	inputPath, outputPath := flags.Arg(0), flags.Arg(1)

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			return err
		}
	}

	var flagErr error
	flags.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "width":
			cfg.Width = *width
		case "base":
			if *base > math.MaxUint32 {
				flagErr = fmt.Errorf("%w: -base %#x does not fit 32 bits", config.ErrInvalid, *base)
			}
			cfg.Base = uint32(*base)
		case "size":
			if *size > math.MaxUint32 {
				flagErr = fmt.Errorf("%w: -size %#x does not fit 32 bits", config.ErrInvalid, *size)
			}
			cfg.Size = uint32(*size)
		case "exhaustive":
			cfg.Exhaustive = *exhaustive
		case "workers":
			cfg.Workers = *workers
		case "entry":
			cfg.Entry = *entry
		}
	})
	if flagErr != nil {
		return flagErr
	}

	opts := Options{
		Config:  cfg,
		Listing: *listing,
	}
	if *verbose {
		opts.Log = log.New(stderr, "rvilp: ", 0)
	}

	out, err := Analyze(context.Background(), inputPath, opts)
	if err != nil {
		return err
	}

	files := OutputFiles(outputPath)
	if err := out.Write(files, ilpfile.TextOptions{Pad: *pad}); err != nil {
		return err
	}
	if opts.Log != nil {
		opts.Log.Printf("wrote %s and %s", files.Schedule, files.Text)
		if out.Listing != nil {
			opts.Log.Printf("wrote %s", files.Listing)
		}
	}
	return nil
}
