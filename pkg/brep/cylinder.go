package brep

import (
	"fmt"
	gomath "math"

	"github.com/Faultbox/steelifc/pkg/math"
)

const (
	minSegments = 3
	maxSegments = 1024
)

// Cylinder is a right circular cylinder whose axis runs along local +Z from
// the base centre, positioned by Placement.
type Cylinder struct {
	Radius    float64
	Height    float64
	Placement math.Mat4
}

// NewCylinder creates a cylinder with the base centre at the origin.
func NewCylinder(radius, height float64) (*Cylinder, error) {
	if radius <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: cylinder r=%g h=%g", ErrDegenerateSolid, radius, height)
	}
	return &Cylinder{Radius: radius, Height: height, Placement: math.Identity()}, nil
}

// Moved returns a copy of the cylinder with m applied after its current placement.
func (c *Cylinder) Moved(m math.Mat4) *Cylinder {
	moved := *c
	moved.Placement = m.Mul(c.Placement)
	return &moved
}

// Faces returns the bottom cap, the top cap and the lateral surface.
func (c *Cylinder) Faces() []Face {
	return []Face{
		&diskFace{radius: c.Radius, flip: true, location: c.Placement},
		&diskFace{radius: c.Radius, location: c.Placement.Mul(math.Translate(0, 0, c.Height))},
		&lateralFace{radius: c.Radius, height: c.Height, location: c.Placement},
	}
}

// Segments returns how many straight chords approximate a circle of radius r
// so that the sagitta stays within tolerance.
func Segments(radius, tolerance float64) int {
	if tolerance >= radius {
		return minSegments
	}
	n := int(gomath.Ceil(gomath.Pi / gomath.Acos(1-tolerance/radius)))
	if n < minSegments {
		return minSegments
	}
	if n > maxSegments {
		return maxSegments
	}
	return n
}

func ring(radius, z float64, n int) []math.Vec3 {
	pts := make([]math.Vec3, n)
	for i := range pts {
		a := 2 * gomath.Pi * float64(i) / float64(n)
		pts[i] = math.Vec3{X: radius * gomath.Cos(a), Y: radius * gomath.Sin(a), Z: z}
	}
	return pts
}

type diskFace struct {
	radius   float64
	flip     bool
	location math.Mat4
}

func (f *diskFace) Triangulate(tolerance float64) (*Triangulation, error) {
	if err := checkTolerance(tolerance); err != nil {
		return nil, err
	}
	n := Segments(f.radius, tolerance)
	nodes := append([]math.Vec3{{}}, ring(f.radius, 0, n)...)
	tris := make([][3]int, 0, n)
	for i := 0; i < n; i++ {
		a, b := 1+i, 1+(i+1)%n
		if f.flip {
			a, b = b, a
		}
		tris = append(tris, [3]int{0, a, b})
	}
	return &Triangulation{Nodes: nodes, Triangles: tris, Location: f.location}, nil
}

type lateralFace struct {
	radius, height float64
	location       math.Mat4
}

func (f *lateralFace) Triangulate(tolerance float64) (*Triangulation, error) {
	if err := checkTolerance(tolerance); err != nil {
		return nil, err
	}
	n := Segments(f.radius, tolerance)
	nodes := append(ring(f.radius, 0, n), ring(f.radius, f.height, n)...)
	tris := make([][3]int, 0, 2*n)
	for i := 0; i < n; i++ {
		b0, b1 := i, (i+1)%n
		t0, t1 := n+i, n+(i+1)%n
		tris = append(tris, [3]int{b0, b1, t1}, [3]int{b0, t1, t0})
	}
	return &Triangulation{Nodes: nodes, Triangles: tris, Location: f.location}, nil
}
