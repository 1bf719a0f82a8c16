package brep

import (
	"fmt"

	"github.com/Faultbox/steelifc/pkg/math"
)

// PlanarFace is a rectangle spanning [0,Width]x[0,Height] in the local XY
// plane with its outward normal along local +Z.
type PlanarFace struct {
	Width, Height float64
	Location      math.Mat4
}

// Triangulate splits the rectangle along its diagonal. Planar faces need no
// refinement for any deflection tolerance.
func (f *PlanarFace) Triangulate(tolerance float64) (*Triangulation, error) {
	if err := checkTolerance(tolerance); err != nil {
		return nil, err
	}
	if f.Width <= 0 || f.Height <= 0 {
		return nil, nil
	}
	return &Triangulation{
		Nodes: []math.Vec3{
			{X: 0, Y: 0, Z: 0},
			{X: f.Width, Y: 0, Z: 0},
			{X: f.Width, Y: f.Height, Z: 0},
			{X: 0, Y: f.Height, Z: 0},
		},
		Triangles: [][3]int{{0, 1, 2}, {0, 2, 3}},
		Location:  f.Location,
	}, nil
}

// Box is an axis-aligned box in its own frame, positioned in the world by
// Placement. The corner at Origin is the minimum corner.
type Box struct {
	Origin    math.Vec3
	Size      math.Vec3
	Placement math.Mat4
}

// NewBox creates a box with its minimum corner at origin and the given
// extents along X, Y and Z.
func NewBox(origin math.Vec3, dx, dy, dz float64) (*Box, error) {
	if dx <= 0 || dy <= 0 || dz <= 0 {
		return nil, fmt.Errorf("%w: box %gx%gx%g", ErrDegenerateSolid, dx, dy, dz)
	}
	return &Box{
		Origin:    origin,
		Size:      math.Vec3{X: dx, Y: dy, Z: dz},
		Placement: math.Identity(),
	}, nil
}

// MustBox is like NewBox but panics on invalid dimensions.
func MustBox(origin math.Vec3, dx, dy, dz float64) *Box {
	b, err := NewBox(origin, dx, dy, dz)
	if err != nil {
		panic(err)
	}
	return b
}

// Moved returns a copy of the box with m applied after its current placement.
func (b *Box) Moved(m math.Mat4) *Box {
	moved := *b
	moved.Placement = m.Mul(b.Placement)
	return &moved
}

// Faces returns the six faces in the order bottom, top, front, back, left, right.
func (b *Box) Faces() []Face {
	dx, dy, dz := b.Size.X, b.Size.Y, b.Size.Z
	base := b.Placement.Mul(math.TranslateVec3(b.Origin))

	x := math.Vec3{X: 1}
	y := math.Vec3{Y: 1}
	z := math.Vec3{Z: 1}
	o := math.Vec3{}

	faces := []struct {
		u, v, n, origin math.Vec3
		w, h            float64
	}{
		{y, x, z.Scale(-1), o, dy, dx},
		{x, y, z, math.Vec3{Z: dz}, dx, dy},
		{x, z, y.Scale(-1), o, dx, dz},
		{z, x, y, math.Vec3{Y: dy}, dz, dx},
		{z, y, x.Scale(-1), o, dz, dy},
		{y, z, x, math.Vec3{X: dx}, dy, dz},
	}

	out := make([]Face, 0, len(faces))
	for _, f := range faces {
		out = append(out, &PlanarFace{
			Width:    f.w,
			Height:   f.h,
			Location: base.Mul(frame(f.u, f.v, f.n, f.origin)),
		})
	}
	return out
}
