package brep

// FaceSet is a solid given directly by its faces.
type FaceSet []Face

// SolidOf returns a solid made of faces.
func SolidOf(faces ...Face) FaceSet {
	return FaceSet(faces)
}

// Faces implements Solid.
func (s FaceSet) Faces() []Face {
	return s
}

// Compound is a solid made of the faces of several solids, in order. A
// connection part built from a web and two flanges is one Compound.
type Compound []Solid

// Faces implements Solid.
func (c Compound) Faces() []Face {
	var faces []Face
	for _, s := range c {
		if s == nil {
			continue
		}
		faces = append(faces, s.Faces()...)
	}
	return faces
}
