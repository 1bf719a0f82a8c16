package export

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/Faultbox/steelifc/internal/classify"
	"github.com/Faultbox/steelifc/internal/ifc"
	"github.com/Faultbox/steelifc/internal/metrics"
	"github.com/Faultbox/steelifc/pkg/brep"
	"github.com/Faultbox/steelifc/pkg/ifcguid"
	"github.com/Faultbox/steelifc/pkg/math"
	"github.com/Faultbox/steelifc/pkg/step"
)

type panickingSolid struct{}

func (panickingSolid) Faces() []brep.Face { panic("broken solid") }

type slowFace struct{ delay time.Duration }

func (f slowFace) Triangulate(tol float64) (*brep.Triangulation, error) {
	time.Sleep(f.delay)
	return nil, nil
}

type slowSolid struct{}

func (slowSolid) Faces() []brep.Face {
	faces := make([]brep.Face, 20)
	for i := range faces {
		faces[i] = slowFace{delay: 20 * time.Millisecond}
	}
	return faces
}

type countingRecorder struct {
	mu       sync.Mutex
	elements map[metrics.OutcomeLabel]int
	facets   int
	exports  []bool
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{elements: make(map[metrics.OutcomeLabel]int)}
}

func (r *countingRecorder) IncElement(_ string, o metrics.OutcomeLabel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.elements[o]++
}

func (r *countingRecorder) AddFacets(_ string, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.facets += n
}

func (r *countingRecorder) ObserveElementDuration(string, time.Duration) {}

func (r *countingRecorder) ObserveExportDuration(_ time.Duration, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exports = append(r.exports, ok)
}

func reproducibleOptions() ifc.Options {
	opts := ifc.DefaultOptions()
	opts.IDs = ifcguid.NewSequenceGenerator("test")
	opts.Clock = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return opts
}

func connectionEntries() []Entry {
	return []Entry{
		{Name: "Beam_Main", Solid: brep.MustBox(math.Vec3{}, 100, 1000, 200)},
		{Name: "EndPlate", Solid: brep.MustBox(math.Vec3{X: -10, Z: -50}, 10, 150, 300)},
		{Name: "Bolt_1", Solid: brep.MustBox(math.Vec3{X: -15, Y: 25, Z: 25}, 20, 10, 10)},
	}
}

func TestEntriesFromMapIsSorted(t *testing.T) {
	box := brep.MustBox(math.Vec3{}, 1, 1, 1)
	entries := EntriesFromMap(map[string]brep.Solid{"c": box, "a": box, "b": box})
	require.Len(t, entries, 3)
	assert.Equal(t, "a", entries[0].Name)
	assert.Equal(t, "b", entries[1].Name)
	assert.Equal(t, "c", entries[2].Name)
}

func TestValidateEntries(t *testing.T) {
	box := brep.MustBox(math.Vec3{}, 1, 1, 1)
	assert.NoError(t, ValidateEntries(nil))
	assert.ErrorIs(t, ValidateEntries([]Entry{{Name: " ", Solid: box}}), ErrEmptyName)
	assert.ErrorIs(t, ValidateEntries([]Entry{{Name: "a", Solid: box}, {Name: "a", Solid: box}}), ErrDuplicateName)
}

func TestExportConnection(t *testing.T) {
	rec := newCountingRecorder()
	p := &Pipeline{Options: reproducibleOptions(), Recorder: rec}
	dest := filepath.Join(t.TempDir(), "connection.ifc")

	report, err := p.Export(context.Background(), connectionEntries(), dest)
	require.NoError(t, err)
	require.NoError(t, report.Err())
	assert.Equal(t, dest, report.Path)
	assert.Empty(t, report.Failed())

	require.Len(t, report.Outcomes, 3)
	wantKinds := []classify.Kind{classify.Beam, classify.Plate, classify.MechanicalFastener}
	for i, o := range report.Outcomes {
		assert.Equal(t, wantKinds[i], o.Kind, o.Name)
		assert.Equal(t, 12, o.Facets, o.Name)
		assert.Equal(t, metrics.OutcomeGeometry, o.Result, o.Name)
	}
	assert.Equal(t, 3, report.Stats.Elements)
	assert.Equal(t, 36, report.Stats.Facets)
	assert.Equal(t, 3, rec.elements[metrics.OutcomeGeometry])
	assert.Equal(t, 36, rec.facets)
	assert.Equal(t, []bool{true}, rec.exports)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	f, err := step.ParseBytes(data)
	require.NoError(t, err)
	require.NoError(t, f.Validate())
	assert.Len(t, f.ByType("IFCBEAM"), 1)
	assert.Len(t, f.ByType("IFCPLATE"), 1)
	assert.Len(t, f.ByType("IFCMECHANICALFASTENER"), 1)
	assert.Len(t, f.ByType("IFCFACE"), 36)
}

func TestParallelMatchesSequential(t *testing.T) {
	entries := connectionEntries()
	c, err := brep.NewCylinder(12, 80)
	require.NoError(t, err)
	entries = append(entries, Entry{Name: "Bolt_2", Solid: c})

	var seq, par bytes.Buffer
	_, err = (&Pipeline{Options: reproducibleOptions()}).ExportTo(context.Background(), entries, &seq)
	require.NoError(t, err)
	_, err = (&Pipeline{Options: reproducibleOptions(), Workers: 4}).ExportTo(context.Background(), entries, &par)
	require.NoError(t, err)

	assert.Equal(t, seq.String(), par.String())
}

func TestElementFailuresAreReported(t *testing.T) {
	for _, workers := range []int{1, 3} {
		rec := newCountingRecorder()
		p := &Pipeline{Options: reproducibleOptions(), Recorder: rec, Workers: workers}
		entries := []Entry{
			{Name: "Beam_1", Solid: brep.MustBox(math.Vec3{}, 10, 10, 10)},
			{Name: "Bolt_bad", Solid: panickingSolid{}},
			{Name: "Plate_missing", Solid: nil},
			{Name: "Column_1", Solid: brep.MustBox(math.Vec3{}, 10, 10, 10)},
		}

		var buf bytes.Buffer
		report, err := p.ExportTo(context.Background(), entries, &buf)
		require.NoError(t, err, "workers=%d", workers)

		failed := report.Failed()
		require.Len(t, failed, 2, "workers=%d", workers)
		assert.Equal(t, "Bolt_bad", failed[0].Name)
		assert.Equal(t, classify.MechanicalFastener, failed[0].Kind)
		assert.ErrorIs(t, failed[0].Err, ifc.ErrPanic)
		assert.Equal(t, "Plate_missing", failed[1].Name)

		var elemErr *ifc.ElementError
		assert.ErrorAs(t, failed[1].Err, &elemErr)
		assert.Len(t, multierr.Errors(report.Err()), 2)

		assert.Equal(t, 4, report.Stats.Elements)
		assert.Equal(t, 2, report.Stats.WithGeometry)
		assert.Equal(t, 2, rec.elements[metrics.OutcomeFailed])

		f, err := step.Parse(&buf)
		require.NoError(t, err)
		require.NoError(t, f.Validate())
		assert.Len(t, f.ByType("IFCRELCONTAINEDINSPATIALSTRUCTURE"), 4)
	}
}

func TestElementTimeout(t *testing.T) {
	rec := newCountingRecorder()
	p := &Pipeline{
		Options:        reproducibleOptions(),
		Recorder:       rec,
		ElementTimeout: 5 * time.Millisecond,
	}
	entries := []Entry{
		{Name: "Beam_slow", Solid: slowSolid{}},
		{Name: "Plate_fast", Solid: brep.MustBox(math.Vec3{}, 10, 10, 1)},
	}

	var buf bytes.Buffer
	report, err := p.ExportTo(context.Background(), entries, &buf)
	require.NoError(t, err)
	require.NoError(t, report.Err())

	timedOut := report.TimedOut()
	require.Len(t, timedOut, 1)
	assert.Equal(t, "Beam_slow", timedOut[0].Name)
	assert.Zero(t, timedOut[0].Facets)
	assert.Less(t, timedOut[0].Duration, 300*time.Millisecond)

	assert.Equal(t, metrics.OutcomeGeometry, report.Outcomes[1].Result)
	assert.Equal(t, 1, rec.elements[metrics.OutcomeTimeout])
	assert.Equal(t, 2, report.Stats.Elements)
}

func TestEmptySolidHasNoGeometry(t *testing.T) {
	p := &Pipeline{Options: reproducibleOptions()}
	report, err := p.ExportTo(context.Background(), []Entry{{Name: "Gusset", Solid: brep.SolidOf()}}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, metrics.OutcomeEmpty, report.Outcomes[0].Result)
	assert.NoError(t, report.Err())
}

func TestInvalidInputWritesNothing(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "out.ifc")
	box := brep.MustBox(math.Vec3{}, 1, 1, 1)

	p := &Pipeline{Options: reproducibleOptions()}
	_, err := p.Export(context.Background(), []Entry{{Name: "a", Solid: box}, {Name: "a", Solid: box}}, dest)
	assert.ErrorIs(t, err, ErrDuplicateName)

	p.Options.Tolerance = -1
	_, err = p.Export(context.Background(), []Entry{{Name: "a", Solid: box}}, dest)
	assert.Error(t, err)

	_, statErr := os.Stat(dest)
	assert.True(t, errors.Is(statErr, os.ErrNotExist))
}

func TestCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, workers := range []int{1, 2} {
		rec := newCountingRecorder()
		p := &Pipeline{Options: reproducibleOptions(), Workers: workers, Recorder: rec}
		dest := filepath.Join(t.TempDir(), "out.ifc")
		_, err := p.Export(ctx, connectionEntries(), dest)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, []bool{false}, rec.exports)
		_, statErr := os.Stat(dest)
		assert.True(t, errors.Is(statErr, os.ErrNotExist))
	}
}

func TestWriteFailure(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "taken")
	require.NoError(t, os.MkdirAll(filepath.Join(dest, "child"), 0755))

	rec := newCountingRecorder()
	p := &Pipeline{Options: reproducibleOptions(), Recorder: rec}
	report, err := p.Export(context.Background(), connectionEntries(), dest)
	assert.Error(t, err)
	require.NotNil(t, report)
	assert.Len(t, report.Outcomes, 3)
	assert.Equal(t, []bool{false}, rec.exports)
}

// failingIDs counts issued ids and panics on call number failAt.
type failingIDs struct {
	next   ifcguid.Generator
	calls  int
	failAt int
}

func (g *failingIDs) Next() string {
	g.calls++
	if g.calls == g.failAt {
		panic("id source exhausted")
	}
	return g.next.Next()
}

// hierarchyIDs returns the number of ids a fresh document consumes.
func hierarchyIDs(t *testing.T) int {
	t.Helper()
	ids := &failingIDs{next: ifcguid.NewSequenceGenerator("count")}
	opts := reproducibleOptions()
	opts.IDs = ids
	_, err := ifc.NewDocument(opts, nil)
	require.NoError(t, err)
	return ids.calls
}

func TestElementNotInsertedIsReportedUnderItsName(t *testing.T) {
	base := hierarchyIDs(t)
	box := brep.MustBox(math.Vec3{}, 10, 10, 10)

	tests := []struct {
		name    string
		failAt  int
		workers int
		wantLen int
	}{
		// Each element takes two ids: its GlobalId, then its containment.
		{"first element streaming", base + 1, 1, 1},
		{"second element streaming", base + 3, 1, 1},
		{"first element parallel", base + 1, 2, 1},
		{"second element containment parallel", base + 4, 2, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := reproducibleOptions()
			opts.IDs = &failingIDs{next: ifcguid.NewSequenceGenerator("test"), failAt: tt.failAt}
			rec := newCountingRecorder()
			p := &Pipeline{Options: opts, Recorder: rec, Workers: tt.workers}

			entries := []Entry{{Name: "Beam_1", Solid: box}, {Name: "Bolt_2", Solid: box}}
			doc, report, err := p.Build(context.Background(), entries)
			require.NoError(t, err)
			require.Len(t, report.Outcomes, 2)
			assert.Equal(t, "Beam_1", report.Outcomes[0].Name)
			assert.Equal(t, "Bolt_2", report.Outcomes[1].Name)
			assert.Equal(t, classify.Beam, report.Outcomes[0].Kind)
			assert.Equal(t, classify.MechanicalFastener, report.Outcomes[1].Kind)

			failed := report.Failed()
			require.Len(t, failed, 1)
			var ee *ifc.ElementError
			require.ErrorAs(t, failed[0].Err, &ee)
			assert.ErrorIs(t, failed[0].Err, ifc.ErrPanic)
			assert.Equal(t, failed[0].Name, ee.Name)
			assert.Equal(t, 0, failed[0].Facets)
			assert.Equal(t, tt.wantLen, doc.Len())
			assert.Equal(t, 1, rec.elements[metrics.OutcomeFailed])
		})
	}
}
