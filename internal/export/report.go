package export

import (
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/Faultbox/steelifc/internal/classify"
	"github.com/Faultbox/steelifc/internal/ifc"
	"github.com/Faultbox/steelifc/internal/metrics"
)

// Outcome is the result for one entry.
type Outcome struct {
	Name     string
	Kind     classify.Kind
	Facets   int
	Result   metrics.OutcomeLabel
	Duration time.Duration
	// Err is set when the element was written without geometry because of
	// a failure. It is an *ifc.ElementError.
	Err error
}

// Report summarizes an export.
type Report struct {
	// Path is the written file, empty when writing to a stream.
	Path     string
	Outcomes []Outcome
	Stats    ifc.Stats
	Duration time.Duration
}

// Failed returns the outcomes that carry an error.
func (r *Report) Failed() []Outcome {
	return r.filter(func(o Outcome) bool { return o.Err != nil })
}

// TimedOut returns the outcomes whose triangulation hit the element deadline.
func (r *Report) TimedOut() []Outcome {
	return r.filter(func(o Outcome) bool { return o.Result == metrics.OutcomeTimeout })
}

func (r *Report) filter(keep func(Outcome) bool) []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if keep(o) {
			out = append(out, o)
		}
	}
	return out
}

// Err combines the per-element errors, or returns nil.
func (r *Report) Err() error {
	var err error
	for _, o := range r.Outcomes {
		err = multierr.Append(err, o.Err)
	}
	return err
}

func (r *Report) String() string {
	return fmt.Sprintf("%s; %d failed, %d timed out in %s",
		r.Stats, len(r.Failed()), len(r.TimedOut()), r.Duration.Round(time.Millisecond))
}
