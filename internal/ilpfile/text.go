package ilpfile

import (
	"bufio"
	"fmt"
	"io"

	"loov.dev/rvilp/internal/slicer"
)

// TextOptions configures the diagnostic rendering.
type TextOptions struct {
	// Pad fills every cycle with zero addresses up to the lane count.
	Pad bool
}

// WriteText renders the schedule in a human readable form.
func WriteText(w io.Writer, s *slicer.Schedule, opts TextOptions) error {
	out := bufio.NewWriter(w)

	starts := s.Starts()
	fmt.Fprintf(out, "num blocks: %d\n", len(starts))
	fmt.Fprintf(out, "num threads: %d\n", s.Lanes)

	for _, start := range starts {
		fmt.Fprintf(out, "\n0x%08X:\n", start)
		for _, c := range s.Blocks[start].Cycles {
			out.WriteString("   ")
			for _, addr := range c {
				fmt.Fprintf(out, " 0x%08X", addr)
			}
			if opts.Pad {
				for i := len(c); i < s.Lanes; i++ {
					out.WriteString(" 0x00000000")
				}
			}
			out.WriteByte('\n')
		}
	}

	return out.Flush()
}
