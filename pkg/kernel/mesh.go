package kernel

import (
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Mesh is an indexed triangle mesh with flat buffers ready for upload:
// Vertices and Normals hold 3 floats per vertex, Indices 3 per triangle.
// Triangles wind counter-clockwise when seen from outside the solid.
type Mesh struct {
	Vertices []float32 `json:"vertices"`
	Normals  []float32 `json:"normals"`
	Indices  []uint32  `json:"indices"`
	PartName string    `json:"partName"`
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int {
	return len(m.Vertices) / 3
}

// TriangleCount returns the number of triangles.
func (m *Mesh) TriangleCount() int {
	return len(m.Indices) / 3
}

// IsEmpty reports whether the mesh has no triangles.
func (m *Mesh) IsEmpty() bool {
	return len(m.Indices) == 0
}

// AddVertex appends a vertex with its normal and returns its index.
func (m *Mesh) AddVertex(p, n v3.Vec) uint32 {
	m.Vertices = append(m.Vertices, float32(p.X), float32(p.Y), float32(p.Z))
	m.Normals = append(m.Normals, float32(n.X), float32(n.Y), float32(n.Z))
	return uint32(len(m.Vertices)/3 - 1)
}

// AddTriangle appends a triangle by vertex index.
func (m *Mesh) AddTriangle(a, b, c uint32) {
	m.Indices = append(m.Indices, a, b, c)
}

// Vertex returns vertex i.
func (m *Mesh) Vertex(i uint32) v3.Vec {
	return v3.Vec{
		X: float64(m.Vertices[3*i]),
		Y: float64(m.Vertices[3*i+1]),
		Z: float64(m.Vertices[3*i+2]),
	}
}

// Triangle returns the corner positions of triangle i.
func (m *Mesh) Triangle(i int) [3]v3.Vec {
	return [3]v3.Vec{
		m.Vertex(m.Indices[3*i]),
		m.Vertex(m.Indices[3*i+1]),
		m.Vertex(m.Indices[3*i+2]),
	}
}

// Bounds returns the axis-aligned bounding box of the vertices. An empty
// mesh returns two zero vectors.
func (m *Mesh) Bounds() (lo, hi v3.Vec) {
	for i := 0; i < m.VertexCount(); i++ {
		v := m.Vertex(uint32(i))
		if i == 0 {
			lo, hi = v, v
			continue
		}
		lo = v3.Vec{X: min(lo.X, v.X), Y: min(lo.Y, v.Y), Z: min(lo.Z, v.Z)}
		hi = v3.Vec{X: max(hi.X, v.X), Y: max(hi.Y, v.Y), Z: max(hi.Z, v.Z)}
	}
	return lo, hi
}

// Volume returns the signed volume enclosed by a closed mesh, positive
// for outward winding.
func (m *Mesh) Volume() float64 {
	vol := 0.0
	for i := 0; i < m.TriangleCount(); i++ {
		t := m.Triangle(i)
		vol += t[0].Dot(t[1].Cross(t[2])) / 6
	}
	return vol
}
