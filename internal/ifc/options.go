package ifc

import (
	"errors"
	"fmt"
	gomath "math"
	"time"

	"github.com/Faultbox/steelifc/internal/classify"
	"github.com/Faultbox/steelifc/internal/mesh"
	"github.com/Faultbox/steelifc/pkg/ifcguid"
)

// DefaultPrecision is the precision of the shared geometric representation
// context, in model length units.
const DefaultPrecision = 1e-5

// Schema is the IFC schema identifier written to FILE_SCHEMA.
const Schema = "IFC4"

// ErrInvalidPrecision is returned for a non-positive context precision.
var ErrInvalidPrecision = errors.New("ifc: precision must be a positive finite number")

// Options configures a Document.
type Options struct {
	ProjectName  string
	SiteName     string
	BuildingName string
	StoreyName   string

	// Tolerance is the linear deflection used to mesh solids.
	Tolerance float64
	// Precision is written to the representation context and used to merge
	// coincident facet corners.
	Precision float64

	// Header fields.
	Author       string
	Organization string
	Application  string

	// Classifier maps element names to kinds. Nil means classify.Default().
	Classifier *classify.Classifier
	// IDs issues GlobalIds. Nil means random UUIDs.
	IDs ifcguid.Generator
	// Clock stamps the file header. Nil means time.Now.
	Clock func() time.Time
}

// DefaultOptions returns options with the default hierarchy names,
// tolerance and precision.
func DefaultOptions() Options {
	return Options{
		ProjectName:  "Steel Connection Project",
		SiteName:     "Default Site",
		BuildingName: "Default Building",
		StoreyName:   "Level 0",
		Tolerance:    mesh.DefaultTolerance,
		Precision:    DefaultPrecision,
		Application:  "steelifc",
	}
}

// Validate checks numeric options.
func (o Options) Validate() error {
	if err := mesh.ValidateTolerance(o.Tolerance); err != nil {
		return err
	}
	if !(o.Precision > 0) || gomath.IsInf(o.Precision, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidPrecision, o.Precision)
	}
	return nil
}

func (o Options) withDefaults() Options {
	if o.Classifier == nil {
		o.Classifier = classify.Default()
	}
	if o.IDs == nil {
		o.IDs = ifcguid.RandomGenerator{}
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	if o.Application == "" {
		o.Application = "steelifc"
	}
	return o
}
