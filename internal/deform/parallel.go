package deform

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/ayusman/loom/internal/mesh"
)

// MinChunk is the smallest slice of vertices handed to one worker.
const MinChunk = 1024

// VertexFunc computes the output for one vertex.
type VertexFunc func(v mesh.Vertex) Output

// Map applies fn to every vertex and writes result i to out[i].
// Work is split into contiguous chunks so each index has exactly one writer;
// fn must not mutate shared state.
func Map(ctx context.Context, vertices []mesh.Vertex, fn VertexFunc, out []Output) error {
	if len(out) < len(vertices) {
		return fmt.Errorf("output buffer too small: %d < %d", len(out), len(vertices))
	}

	workers := runtime.GOMAXPROCS(0)
	chunk := (len(vertices) + workers - 1) / workers
	if chunk < MinChunk {
		chunk = MinChunk
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for start := 0; start < len(vertices); start += chunk {
		end := min(start+chunk, len(vertices))
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			for i := start; i < end; i++ {
				out[i] = fn(vertices[i])
			}
			return nil
		})
	}
	return g.Wait()
}
