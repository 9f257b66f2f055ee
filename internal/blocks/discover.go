package blocks

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"loov.dev/rvilp/internal/image"
	"loov.dev/rvilp/internal/rv32"
)

// Options configures block discovery.
type Options struct {
	// Exhaustive tries every aligned address in the code range as a block
	// start, instead of following successors from the seeds.
	Exhaustive bool
	// Seeds are additional start addresses, the image base is always used.
	Seeds []uint32
	// Workers bounds the goroutines used by exhaustive discovery.
	Workers int
}

// Discover finds all basic blocks of the program.
//
// Any decoding failure aborts the discovery.
func Discover(ctx context.Context, mem rv32.Memory, bounds image.Bounds, opts Options) (Blocks, error) {
	seeds := append([]uint32{bounds.Base}, opts.Seeds...)
	if opts.Exhaustive {
		return discoverExhaustive(ctx, mem, bounds, seeds, opts.Workers)
	}
	return follow(ctx, mem, bounds, Blocks{}, seeds)
}

// follow grows blocks starting from heads, and then from their successors,
// until no unknown head remains.
func follow(ctx context.Context, mem rv32.Memory, bounds image.Bounds, blocks Blocks, heads []uint32) (Blocks, error) {
	queue := make([]uint32, 0, len(heads))
	for _, head := range heads {
		if bounds.Base <= head && head < bounds.Limit {
			queue = append(queue, head)
		}
	}

	for len(queue) > 0 {
		pc := queue[len(queue)-1]
		queue = queue[:len(queue)-1]
		if _, ok := blocks[pc]; ok {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		b, err := Grow(mem, bounds, pc)
		if err != nil {
			return nil, err
		}
		blocks[pc] = b

		for _, succ := range b.Succs {
			if _, ok := blocks[succ]; !ok {
				queue = append(queue, succ)
			}
		}
	}
	return blocks, nil
}

// discoverExhaustive grows a block from every aligned address of the code
// range. The range is split between workers, a start that is already
// registered is never overwritten.
func discoverExhaustive(ctx context.Context, mem rv32.Memory, bounds image.Bounds, seeds []uint32, workers int) (Blocks, error) {
	if workers < 1 {
		workers = 1
	}

	first := (bounds.Base + 3) &^ 3
	if first >= bounds.Limit {
		return follow(ctx, mem, bounds, Blocks{}, seeds)
	}
	count := (bounds.Limit - first + 3) / 4
	chunk := (count + uint32(workers) - 1) / uint32(workers)

	var found sync.Map
	var heads struct {
		sync.Mutex
		list []uint32
	}

	g, gctx := errgroup.WithContext(ctx)
	for lo := uint32(0); lo < count; lo += chunk {
		lo, hi := lo, lo+chunk
		if hi > count {
			hi = count
		}
		g.Go(func() error {
			var local []uint32
			for i := lo; i < hi; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				pc := first + 4*i
				if _, ok := found.Load(pc); ok {
					continue
				}
				b, err := Grow(mem, bounds, pc)
				if err != nil {
					return err
				}
				if _, loaded := found.LoadOrStore(pc, b); !loaded {
					local = append(local, b.Succs...)
				}
			}

			heads.Lock()
			heads.list = append(heads.list, local...)
			heads.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	blocks := Blocks{}
	found.Range(func(key, value any) bool {
		blocks[key.(uint32)] = value.(*Block)
		return true
	})

	// successors and seeds that are not word aligned
	return follow(ctx, mem, bounds, blocks, append(seeds, heads.list...))
}
