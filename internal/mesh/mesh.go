// Package mesh builds the fixed vertex grid the renderer deforms every frame.
package mesh

import (
	"errors"
	"fmt"
	"math"
)

// Topology selects how the grid is drawn.
type Topology string

const (
	// TopologyScatter draws every vertex as an independent point.
	TopologyScatter Topology = "scatter"
	// TopologyLines draws the grid edges as connected segments.
	TopologyLines Topology = "lines"
)

// ErrUnknownTopology is returned when Options.Topology is not a known mode.
var ErrUnknownTopology = errors.New("unknown topology")

// Vertex is an immutable grid coordinate with a stable id.
type Vertex struct {
	U  float64 `json:"u"`
	V  float64 `json:"v"`
	ID int     `json:"id"`
}

// Edge connects two vertex ids. Only built for TopologyLines.
type Edge struct {
	A int `json:"a"`
	B int `json:"b"`
}

// Options holds the inputs that determine a mesh.
type Options struct {
	Target   int      // Desired vertex count
	Topology Topology // Scatter or lines
	Aspect   float64  // Display aspect ratio (width / height) at build time
}

// Key identifies the configuration a mesh was built for.
// Two meshes with the same key are interchangeable.
type Key struct {
	Target   int
	Topology Topology
}

// Mesh is the vertex buffer and, for lines, the edge index buffer.
type Mesh struct {
	Rows     int
	Cols     int
	Vertices []Vertex
	Edges    []Edge
	key      Key
}

// Build generates the grid for the given options.
//
// rows = ceil(sqrt(target/aspect)) and cols = ceil(target/rows), both clamped
// to at least 2 so that u = col/(cols-1) never divides by zero. The vertex
// order is row-major and ids equal the vertex index, so the same options
// always produce the same buffers.
func Build(opts Options) (*Mesh, error) {
	switch opts.Topology {
	case TopologyScatter, TopologyLines:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTopology, opts.Topology)
	}

	target := opts.Target
	if target < 1 {
		target = 1
	}
	aspect := opts.Aspect
	if aspect <= 0 || math.IsNaN(aspect) || math.IsInf(aspect, 0) {
		aspect = 1
	}

	rows, cols := GridSize(target, aspect)

	m := &Mesh{
		Rows:     rows,
		Cols:     cols,
		Vertices: make([]Vertex, 0, rows*cols),
		key:      Key{Target: opts.Target, Topology: opts.Topology},
	}

	for r := 0; r < rows; r++ {
		v := float64(r) / float64(rows-1)
		for c := 0; c < cols; c++ {
			m.Vertices = append(m.Vertices, Vertex{
				U:  float64(c) / float64(cols-1),
				V:  v,
				ID: r*cols + c,
			})
		}
	}

	if opts.Topology == TopologyLines {
		m.Edges = buildEdges(rows, cols)
	}

	return m, nil
}

// GridSize returns the rows and columns used for a target vertex count.
func GridSize(target int, aspect float64) (rows, cols int) {
	rows = int(math.Ceil(math.Sqrt(float64(target) / aspect)))
	if rows < 2 {
		rows = 2
	}
	cols = int(math.Ceil(float64(target) / float64(rows)))
	if cols < 2 {
		cols = 2
	}
	return rows, cols
}

// buildEdges links each vertex to its right and lower neighbours.
func buildEdges(rows, cols int) []Edge {
	edges := make([]Edge, 0, rows*(cols-1)+(rows-1)*cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			id := r*cols + c
			if c < cols-1 {
				edges = append(edges, Edge{A: id, B: id + 1})
			}
			if r < rows-1 {
				edges = append(edges, Edge{A: id, B: id + cols})
			}
		}
	}
	return edges
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int {
	return len(m.Vertices)
}

// EdgeCount returns the number of edges (zero for scatter meshes).
func (m *Mesh) EdgeCount() int {
	return len(m.Edges)
}

// Topology returns the topology the mesh was built for.
func (m *Mesh) Topology() Topology {
	return m.key.Topology
}

// Key returns the configuration key the mesh was built for.
func (m *Mesh) Key() Key {
	return m.key
}
