package main

import (
	"bytes"
	"fmt"
	"os"

	"loov.dev/rvilp/internal/ilpfile"
)

// Files lists the paths written for an output path.
type Files struct {
	Schedule string
	Text     string
	Listing  string
}

// OutputFiles returns the file names derived from path.
func OutputFiles(path string) Files {
	return Files{
		Schedule: path,
		Text:     path + ".txt",
		Listing:  path + ".lst",
	}
}

// Write renders the analysis results. Everything is rendered before the
// first file is created.
func (out *Output) Write(files Files, text ilpfile.TextOptions) error {
	schedule := ilpfile.Marshal(out.Schedule)

	var rendered bytes.Buffer
	if err := ilpfile.WriteText(&rendered, out.Schedule, text); err != nil {
		return err
	}

	var listing bytes.Buffer
	if out.Listing != nil {
		if err := out.Listing.Write(&listing); err != nil {
			return err
		}
	}

	if err := os.WriteFile(files.Schedule, schedule, 0644); err != nil {
		return fmt.Errorf("write schedule: %w", err)
	}
	if err := os.WriteFile(files.Text, rendered.Bytes(), 0644); err != nil {
		return fmt.Errorf("write text: %w", err)
	}
	if out.Listing != nil {
		if err := os.WriteFile(files.Listing, listing.Bytes(), 0644); err != nil {
			return fmt.Errorf("write listing: %w", err)
		}
	}
	return nil
}
