// Package export turns named solids into an IFC file: it validates the
// input, triangulates (optionally in parallel), fills an ifc.Document in
// input order and writes it.
package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Faultbox/steelifc/internal/ifc"
	"github.com/Faultbox/steelifc/internal/mesh"
	"github.com/Faultbox/steelifc/internal/metrics"
	"github.com/Faultbox/steelifc/pkg/brep"
)

var errNilSolid = errors.New("nil solid")

// Pipeline exports entries to IFC. The zero value is usable once Options
// is set; nil Logger and Recorder discard their output.
type Pipeline struct {
	Options  ifc.Options
	Logger   *zap.Logger
	Recorder metrics.Recorder

	// ElementTimeout bounds the triangulation of one element. Zero means
	// no deadline. The deadline is checked between faces.
	ElementTimeout time.Duration
	// Workers triangulate concurrently when greater than one. Elements are
	// still inserted in input order.
	Workers int
}

func (p *Pipeline) logger() *zap.Logger {
	if p.Logger == nil {
		return zap.NewNop()
	}
	return p.Logger
}

func (p *Pipeline) recorder() metrics.Recorder {
	if p.Recorder == nil {
		return metrics.NoopRecorder{}
	}
	return p.Recorder
}

// Export builds the document for entries and writes it to dest. Element
// failures are reported in the Report; only invalid input, cancellation of
// ctx or a write failure return an error.
func (p *Pipeline) Export(ctx context.Context, entries []Entry, dest string) (*Report, error) {
	return p.run(ctx, entries, func(doc *ifc.Document, r *Report) error {
		r.Path = dest
		return doc.WriteFile(dest)
	})
}

// ExportTo is Export writing to w.
func (p *Pipeline) ExportTo(ctx context.Context, entries []Entry, w io.Writer) (*Report, error) {
	return p.run(ctx, entries, func(doc *ifc.Document, _ *Report) error {
		return doc.Serialize(w)
	})
}

func (p *Pipeline) run(ctx context.Context, entries []Entry, write func(*ifc.Document, *Report) error) (*Report, error) {
	start := time.Now()
	rec := p.recorder()

	doc, report, err := p.Build(ctx, entries)
	if err == nil {
		err = write(doc, report)
	}
	if report != nil {
		report.Duration = time.Since(start)
	}
	rec.ObserveExportDuration(time.Since(start), err == nil)
	if err != nil {
		return report, err
	}

	p.logger().Info("export finished",
		zap.String("path", report.Path),
		zap.Int("elements", report.Stats.Elements),
		zap.Int("with_geometry", report.Stats.WithGeometry),
		zap.Int("facets", report.Stats.Facets),
		zap.Int("failed", len(report.Failed())),
		zap.Duration("duration", report.Duration))
	return report, nil
}

// Build validates entries and fills a new document without writing it.
func (p *Pipeline) Build(ctx context.Context, entries []Entry) (*ifc.Document, *Report, error) {
	if err := ValidateEntries(entries); err != nil {
		return nil, nil, err
	}
	log := p.logger()
	doc, err := ifc.NewDocument(p.Options, log)
	if err != nil {
		return nil, nil, err
	}

	report := &Report{Outcomes: make([]Outcome, 0, len(entries))}
	if p.Workers > 1 || p.ElementTimeout > 0 {
		err = p.buildPrepared(ctx, doc, entries, report)
	} else {
		err = p.buildStreaming(ctx, doc, entries, report)
	}
	if err != nil {
		return nil, nil, err
	}
	report.Stats = doc.Stats()
	return doc, report, nil
}

// buildStreaming meshes each solid lazily while inserting it.
func (p *Pipeline) buildStreaming(ctx context.Context, doc *ifc.Document, entries []Entry, report *Report) error {
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		start, before := time.Now(), doc.Len()
		err := doc.AddElement(e.Name, e.Solid)
		p.record(doc, report, e.Name, before, start, err, false)
	}
	return nil
}

type prepared struct {
	triangles []mesh.Triangle
	err       error
	elapsed   time.Duration
}

// buildPrepared triangulates up to Workers solids at a time, then inserts the
// results in input order.
func (p *Pipeline) buildPrepared(ctx context.Context, doc *ifc.Document, entries []Entry, report *Report) error {
	results := make([]prepared, len(entries))

	workers := p.Workers
	if workers < 1 {
		workers = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, e := range entries {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			start := time.Now()
			tris, err := p.triangulate(gctx, e.Solid)
			results[i] = prepared{triangles: tris, err: err, elapsed: time.Since(start)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	// An element deadline is not a cancellation of the export.
	if err := ctx.Err(); err != nil {
		return err
	}

	for i, e := range entries {
		res := results[i]
		start, before := time.Now().Add(-res.elapsed), doc.Len()
		switch {
		case res.err == nil:
			err := doc.AddTriangulated(e.Name, res.triangles)
			p.record(doc, report, e.Name, before, start, err, false)
		case errors.Is(res.err, context.DeadlineExceeded):
			err := doc.AddWithoutGeometry(e.Name)
			p.record(doc, report, e.Name, before, start, err, err == nil)
		default:
			// Insert the element so the hierarchy stays complete.
			err := doc.AddWithoutGeometry(e.Name)
			if err == nil {
				kind := doc.Last().Kind
				err = &ifc.ElementError{Name: e.Name, Kind: kind, Err: res.err}
				p.logger().Warn("element triangulation failed",
					zap.String("element", e.Name),
					zap.Stringer("kind", kind),
					zap.Error(res.err))
			}
			p.record(doc, report, e.Name, before, start, err, false)
		}
	}
	return nil
}

// triangulate materializes the triangles of solid under the element
// deadline. Panics raised by the solid become errors.
func (p *Pipeline) triangulate(ctx context.Context, solid brep.Solid) (tris []mesh.Triangle, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ifc.ErrPanic, r)
		}
	}()
	if solid == nil {
		return nil, errNilSolid
	}
	if p.ElementTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.ElementTimeout)
		defer cancel()
	}
	return mesh.Collect(ctx, solid, p.Options.Tolerance)
}

// record appends the outcome of the element attempted under name. before is
// the element count prior to the attempt; an element that never made it into
// the document is reported with the kind carried by its *ElementError.
func (p *Pipeline) record(doc *ifc.Document, report *Report, name string, before int, start time.Time, err error, timedOut bool) {
	o := Outcome{
		Name:     name,
		Duration: time.Since(start),
		Err:      err,
	}
	var elem *ifc.Element
	if doc.Len() > before {
		elem = doc.Last()
		o.Kind = elem.Kind
		o.Facets = len(elem.Facets)
	} else {
		var ee *ifc.ElementError
		if errors.As(err, &ee) {
			o.Kind = ee.Kind
		}
	}
	switch {
	case err != nil:
		o.Result = metrics.OutcomeFailed
	case timedOut:
		o.Result = metrics.OutcomeTimeout
		p.logger().Warn("element triangulation timed out",
			zap.String("element", o.Name),
			zap.Stringer("kind", o.Kind),
			zap.Duration("timeout", p.ElementTimeout))
	case elem != nil && elem.HasGeometry():
		o.Result = metrics.OutcomeGeometry
	default:
		o.Result = metrics.OutcomeEmpty
	}
	report.Outcomes = append(report.Outcomes, o)

	rec := p.recorder()
	kind := o.Kind.String()
	rec.IncElement(kind, o.Result)
	rec.AddFacets(kind, o.Facets)
	rec.ObserveElementDuration(kind, o.Duration)
}
