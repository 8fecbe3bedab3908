package pipeline

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propwatch/appraisal-cli/internal/model"
	"github.com/propwatch/appraisal-cli/internal/resolve"
	"github.com/propwatch/appraisal-cli/pkg/appraiser"
)

type mockResolver struct {
	// failEvery fails resolution for every Nth address id (1-based).
	failEvery int
}

func (m *mockResolver) Resolve(_ context.Context, address string) (string, error) {
	var id int
	fmt.Sscanf(address, "%d", &id)
	if m.failEvery > 0 && id%m.failEvery == 0 {
		return "", eris.Wrapf(resolve.ErrNoMatch, "address %q", address)
	}
	return fmt.Sprintf("30-0000-000-%04d", id), nil
}

type mockClient struct {
	prop *appraiser.Property
	err  error
}

func (m *mockClient) SearchByAddress(context.Context, string) (*appraiser.SearchResult, error) {
	panic("not used")
}

func (m *mockClient) PropertyByFolio(context.Context, string) (*appraiser.Property, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.prop, nil
}

// mockStore records sink activity. Only InsertBatch and SaveReport are
// exercised by a pipeline run.
type mockStore struct {
	mu        sync.Mutex
	batches   []int64
	report    *model.Report
	insertErr error
	// failAfter makes InsertBatch fail once n batches have committed.
	failAfter int
}

func (m *mockStore) InsertBatch(_ context.Context, addressID int64, _ *model.RowSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil && len(m.batches) >= m.failAfter {
		return m.insertErr
	}
	m.batches = append(m.batches, addressID)
	return nil
}

func (m *mockStore) SaveReport(_ context.Context, report *model.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.report = report
	return nil
}

func (m *mockStore) InsertAddress(context.Context, model.AddressRecord) (int64, error) {
	panic("not used")
}
func (m *mockStore) AddressesByZip(context.Context, string) ([]model.InputRecord, error) {
	panic("not used")
}
func (m *mockStore) ListReports(context.Context, int) ([]model.Report, error) { panic("not used") }
func (m *mockStore) UnindexedCoordinates(context.Context) ([]model.Coordinate, error) {
	panic("not used")
}
func (m *mockStore) MaxSpatialID(context.Context) (int64, error) { panic("not used") }
func (m *mockStore) InsertSpatialEntry(context.Context, int64, model.SpatialEntry) error {
	panic("not used")
}
func (m *mockStore) LandValues(context.Context, model.QueryBox, int) ([]model.LandValue, error) {
	panic("not used")
}
func (m *mockStore) Migrate(context.Context) error { panic("not used") }

func (m *mockStore) Close() error { return nil }

func residentialProperty() *appraiser.Property {
	return &appraiser.Property{
		Completed:    true,
		PropertyInfo: &appraiser.PropertyInfo{DORDescription: "RESIDENTIAL - SINGLE FAMILY"},
		Land: &appraiser.Land{Landlines: []appraiser.Landline{
			{RollYear: 2020, Units: 7500, UnitType: "Square Ft.", AdjustedUnitPrice: 20},
		}},
	}
}

func inputs(n int) []model.InputRecord {
	recs := make([]model.InputRecord, n)
	for i := range recs {
		recs[i] = model.InputRecord{
			Address:   fmt.Sprintf("%d MAIN ST", i+1),
			AddressID: int64(i + 1),
		}
	}
	return recs
}

func TestRun_AllSucceed(t *testing.T) {
	st := &mockStore{}
	p := New(&mockResolver{}, &mockClient{prop: residentialProperty()}, st, Options{
		Workers:         8,
		ResidentialOnly: true,
		RequireLand:     true,
	})

	report, err := p.Run(context.Background(), "33125", inputs(50))
	require.NoError(t, err)

	assert.Equal(t, 50, report.Attempted)
	assert.Equal(t, 50, report.Succeeded)
	assert.Equal(t, 0, report.Failed)
	assert.Empty(t, report.Failures)
	assert.Len(t, st.batches, 50)
}

func TestRun_ResolutionFailuresAreIsolated(t *testing.T) {
	st := &mockStore{}
	// Every 5th record fails resolution: 10 failures out of 50.
	p := New(&mockResolver{failEvery: 5}, &mockClient{prop: residentialProperty()}, st, Options{
		Workers: 8,
	})

	report, err := p.Run(context.Background(), "33125", inputs(50))
	require.NoError(t, err)

	assert.Equal(t, 50, report.Attempted)
	assert.Equal(t, 40, report.Succeeded)
	assert.Equal(t, 10, report.Failed)
	require.Len(t, report.Failures, 10)
	for _, f := range report.Failures {
		assert.Equal(t, model.FailureResolution, f.Kind)
	}
	assert.Len(t, st.batches, 40)
}

func TestRun_SourceFailureKind(t *testing.T) {
	st := &mockStore{}
	p := New(&mockResolver{}, &mockClient{err: eris.New("http 503")}, st, Options{Workers: 2})

	report, err := p.Run(context.Background(), "33125", inputs(3))
	require.NoError(t, err)

	assert.Equal(t, 3, report.Failed)
	for _, f := range report.Failures {
		assert.Equal(t, model.FailureSourceUnavailable, f.Kind)
	}
}

func TestRun_ResidentialFilter(t *testing.T) {
	commercial := residentialProperty()
	commercial.PropertyInfo.DORDescription = "COMMERCIAL - OFFICE BUILDING"

	st := &mockStore{}
	p := New(&mockResolver{}, &mockClient{prop: commercial}, st, Options{
		Workers:         2,
		ResidentialOnly: true,
	})

	report, err := p.Run(context.Background(), "33125", inputs(4))
	require.NoError(t, err)

	assert.Equal(t, 0, report.Succeeded)
	assert.Equal(t, 4, report.Failed)
	for _, f := range report.Failures {
		assert.Equal(t, model.FailureFiltered, f.Kind)
		assert.Contains(t, f.Reason, "not residential")
	}
	assert.Empty(t, st.batches)
}

func TestRun_RequireLandFilter(t *testing.T) {
	noLand := residentialProperty()
	noLand.Land = nil

	st := &mockStore{}
	p := New(&mockResolver{}, &mockClient{prop: noLand}, st, Options{
		Workers:     2,
		RequireLand: true,
	})

	report, err := p.Run(context.Background(), "33125", inputs(2))
	require.NoError(t, err)

	assert.Equal(t, 2, report.Failed)
	for _, f := range report.Failures {
		assert.Equal(t, model.FailureFiltered, f.Kind)
		assert.Contains(t, f.Reason, "no land data")
	}
}

func TestRun_NormalizationFailureKind(t *testing.T) {
	bad := residentialProperty()
	bad.SalesInfos = []appraiser.SaleInfo{{DateOfSale: "not a date", SalePrice: 1}}

	st := &mockStore{}
	p := New(&mockResolver{}, &mockClient{prop: bad}, st, Options{Workers: 2})

	report, err := p.Run(context.Background(), "33125", inputs(1))
	require.NoError(t, err)

	require.Len(t, report.Failures, 1)
	assert.Equal(t, model.FailureNormalization, report.Failures[0].Kind)
}

func TestRun_EveryRecordAccountedFor(t *testing.T) {
	st := &mockStore{}
	p := New(&mockResolver{failEvery: 3}, &mockClient{prop: residentialProperty()}, st, Options{
		Workers:    4,
		QueueDepth: 2,
	})

	report, err := p.Run(context.Background(), "33125", inputs(25))
	require.NoError(t, err)

	assert.Equal(t, report.Attempted, report.Succeeded+report.Failed)
	assert.Len(t, report.Failures, report.Failed)
}

func TestRun_SinkFailureIsFatalButDrains(t *testing.T) {
	st := &mockStore{insertErr: eris.New("disk full"), failAfter: 0}
	p := New(&mockResolver{}, &mockClient{prop: residentialProperty()}, st, Options{
		Workers:    4,
		QueueDepth: 1,
	})

	report, err := p.Run(context.Background(), "33125", inputs(20))
	require.Error(t, err)

	// Nothing committed, every record accounted for, no deadlock despite
	// the tiny queue.
	assert.Equal(t, 0, report.Succeeded)
	assert.Equal(t, 20, report.Failed)
	assert.Empty(t, st.batches)

	// Store faults keep their own kind so the report stays diagnosable:
	// the source answered fine for every one of these records.
	require.Len(t, report.Failures, 20)
	for _, f := range report.Failures {
		assert.Equal(t, model.FailureStore, f.Kind)
	}
}

func TestRun_SavesReport(t *testing.T) {
	st := &mockStore{}
	p := New(&mockResolver{}, &mockClient{prop: residentialProperty()}, st, Options{Workers: 2})

	report, err := p.Run(context.Background(), "33155", inputs(5))
	require.NoError(t, err)

	require.NotNil(t, st.report)
	assert.Equal(t, report, st.report)
	assert.Equal(t, "33155", st.report.ZipCode)
	assert.False(t, st.report.FinishedAt.Before(st.report.StartedAt))
}

func TestNew_Defaults(t *testing.T) {
	p := New(&mockResolver{}, &mockClient{}, &mockStore{}, Options{})
	assert.Equal(t, 50, p.opts.Workers)
	assert.Equal(t, 100, p.opts.QueueDepth)
}

func TestRun_EmptyInput(t *testing.T) {
	st := &mockStore{}
	p := New(&mockResolver{}, &mockClient{}, st, Options{Workers: 2})

	report, err := p.Run(context.Background(), "33125", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Attempted)
	assert.Equal(t, 0, report.Succeeded)
}
