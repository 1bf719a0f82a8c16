// Package mesh turns boundary-representation solids into world-space
// triangles.
package mesh

import (
	"context"
	"errors"
	"fmt"
	"iter"
	gomath "math"

	"github.com/Faultbox/steelifc/pkg/brep"
	"github.com/Faultbox/steelifc/pkg/math"
)

// DefaultTolerance is the default linear deflection in model length units.
// It is coarse enough for connection visualization, not for fabrication.
const DefaultTolerance = 1.0

// ErrInvalidTolerance is returned for a non-positive or non-finite tolerance.
var ErrInvalidTolerance = errors.New("mesh: tolerance must be a positive finite number")

// Triangle is three world-space points. Their order gives the outward
// orientation.
type Triangle [3]math.Vec3

// Normal returns the unnormalized face normal (right-hand rule).
func (t Triangle) Normal() math.Vec3 {
	return t[1].Sub(t[0]).Cross(t[2].Sub(t[0]))
}

// Area returns the triangle area.
func (t Triangle) Area() float64 {
	return t.Normal().Length() / 2
}

// ValidateTolerance checks a deflection tolerance.
func ValidateTolerance(tolerance float64) error {
	if !(tolerance > 0) || gomath.IsInf(tolerance, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidTolerance, tolerance)
	}
	return nil
}

// Triangulate returns a single-use sequence of the solid's triangles, face by
// face in the solid's face order. Faces that fail to mesh, or panic while
// meshing, contribute nothing.
// Meshing happens lazily while the sequence is consumed.
func Triangulate(solid brep.Solid, tolerance float64) (iter.Seq[Triangle], error) {
	if err := ValidateTolerance(tolerance); err != nil {
		return nil, err
	}
	return func(yield func(Triangle) bool) {
		for _, face := range solid.Faces() {
			if !faceTriangles(face, tolerance, yield) {
				return
			}
		}
	}, nil
}

// Collect materializes the triangulation. The context is checked before
// each face; when it is done the triangles gathered so far are discarded and
// the context error is returned.
func Collect(ctx context.Context, solid brep.Solid, tolerance float64) ([]Triangle, error) {
	if err := ValidateTolerance(tolerance); err != nil {
		return nil, err
	}
	var out []Triangle
	for _, face := range solid.Faces() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		faceTriangles(face, tolerance, func(t Triangle) bool {
			out = append(out, t)
			return true
		})
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Count returns the number of triangles the solid meshes into.
func Count(solid brep.Solid, tolerance float64) (int, error) {
	seq, err := Triangulate(solid, tolerance)
	if err != nil {
		return 0, err
	}
	n := 0
	for range seq {
		n++
	}
	return n, nil
}

// faceTriangles meshes one face and yields its triangles in index order.
// It returns false when the consumer stopped the iteration.
func faceTriangles(face brep.Face, tolerance float64, yield func(Triangle) bool) bool {
	tri, err := triangulateFace(face, tolerance)
	if err != nil || tri == nil || len(tri.Triangles) == 0 {
		return true
	}

	loc := tri.Location
	if loc == (math.Mat4{}) {
		// An unset location is the identity.
		loc = math.Identity()
	}
	for _, idx := range tri.Triangles {
		// Bounds check node indices
		if !validIndex(idx[0], tri.Nodes) || !validIndex(idx[1], tri.Nodes) || !validIndex(idx[2], tri.Nodes) {
			continue
		}
		t := Triangle{
			loc.TransformPoint(tri.Nodes[idx[0]]),
			loc.TransformPoint(tri.Nodes[idx[1]]),
			loc.TransformPoint(tri.Nodes[idx[2]]),
		}
		if !yield(t) {
			return false
		}
	}
	return true
}

// triangulateFace turns a panic in the face's mesher into an error so only
// that face is lost.
func triangulateFace(face brep.Face, tolerance float64) (tri *brep.Triangulation, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("face triangulation panicked: %v", r)
		}
	}()
	return face.Triangulate(tolerance)
}

func validIndex(i int, nodes []math.Vec3) bool {
	return i >= 0 && i < len(nodes)
}
