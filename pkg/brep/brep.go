// Package brep defines the boundary-representation contract consumed by the
// exporter and a few reference solids that satisfy it.
//
// A Solid is only ever asked for its faces, and a Face only for a
// triangulation within a linear deflection tolerance. Everything else about
// the solid is opaque.
package brep

import (
	"errors"
	"fmt"
	gomath "math"

	"github.com/Faultbox/steelifc/pkg/math"
)

// Errors returned by reference solids.
var (
	ErrInvalidTolerance = errors.New("deflection tolerance must be positive")
	ErrDegenerateSolid  = errors.New("degenerate solid dimensions")
)

// Solid is a closed boundary-representation shape.
type Solid interface {
	// Faces returns the boundary faces in a stable order.
	Faces() []Face
}

// Face is one bounded surface patch of a solid.
type Face interface {
	// Triangulate meshes the face so that no point of the mesh deviates from
	// the surface by more than tolerance. A nil result or an error means the
	// face could not be meshed.
	Triangulate(tolerance float64) (*Triangulation, error)
}

// Triangulation is the mesh of a single face in face-local coordinates.
type Triangulation struct {
	// Nodes are face-local positions.
	Nodes []math.Vec3
	// Triangles index into Nodes; index order gives the outward orientation.
	Triangles [][3]int
	// Location maps face-local coordinates to world coordinates.
	// It is rigid: rotation and translation only.
	Location math.Mat4
}

// NodeCount returns the number of mesh nodes.
func (t *Triangulation) NodeCount() int {
	return len(t.Nodes)
}

// TriangleCount returns the number of triangles.
func (t *Triangulation) TriangleCount() int {
	return len(t.Triangles)
}

func checkTolerance(tolerance float64) error {
	if !(tolerance > 0) || gomath.IsInf(tolerance, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidTolerance, tolerance)
	}
	return nil
}

// frame builds a rigid matrix from orthonormal basis vectors u, v, n
// (n = u x v) and an origin.
func frame(u, v, n, origin math.Vec3) math.Mat4 {
	return math.Mat4{
		u.X, u.Y, u.Z, 0,
		v.X, v.Y, v.Z, 0,
		n.X, n.Y, n.Z, 0,
		origin.X, origin.Y, origin.Z, 1,
	}
}
