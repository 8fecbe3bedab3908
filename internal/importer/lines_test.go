package importer

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propwatch/appraisal-cli/internal/model"
)

// fakeStore captures inserted address records.
type fakeStore struct {
	inserted  []model.AddressRecord
	insertErr error
}

func (f *fakeStore) InsertAddress(_ context.Context, rec model.AddressRecord) (int64, error) {
	if f.insertErr != nil {
		return 0, f.insertErr
	}
	f.inserted = append(f.inserted, rec)
	return int64(len(f.inserted)), nil
}

func (f *fakeStore) AddressesByZip(context.Context, string) ([]model.InputRecord, error) {
	panic("not used")
}

func (f *fakeStore) InsertBatch(context.Context, int64, *model.RowSet) error { panic("not used") }

func (f *fakeStore) SaveReport(context.Context, *model.Report) error { panic("not used") }

func (f *fakeStore) ListReports(context.Context, int) ([]model.Report, error) {
	panic("not used")
}

func (f *fakeStore) UnindexedCoordinates(context.Context) ([]model.Coordinate, error) {
	panic("not used")
}

func (f *fakeStore) MaxSpatialID(context.Context) (int64, error) { panic("not used") }

func (f *fakeStore) InsertSpatialEntry(context.Context, int64, model.SpatialEntry) error {
	panic("not used")
}

func (f *fakeStore) LandValues(context.Context, model.QueryBox, int) ([]model.LandValue, error) {
	panic("not used")
}

func (f *fakeStore) Migrate(context.Context) error { panic("not used") }

func (f *fakeStore) Close() error { return nil }

func TestParseLine(t *testing.T) {
	rec, err := parseLine("123 NW 42 AVE, Miami, FL, 33125, 25.762, -80.191")
	require.NoError(t, err)
	assert.Equal(t, "123", rec.HouseNumber)
	assert.Equal(t, "NW 42 AVE", rec.Street)
	assert.Equal(t, "Miami", rec.City)
	assert.Equal(t, "FL", rec.State)
	assert.Equal(t, "33125", rec.ZipCode)
	assert.Equal(t, 25.762, rec.Lat)
	assert.Equal(t, -80.191, rec.Lon)
}

func TestParseLine_Malformed(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"too few fields", "123 MAIN ST, Miami, FL, 33125, 25.762"},
		{"too many fields", "123 MAIN ST, Miami, FL, 33125, 25.762, -80.191, extra"},
		{"no street", "123, Miami, FL, 33125, 25.762, -80.191"},
		{"missing zip", "123 MAIN ST, Miami, FL, , 25.762, -80.191"},
		{"bad lat", "123 MAIN ST, Miami, FL, 33125, north, -80.191"},
		{"bad lon", "123 MAIN ST, Miami, FL, 33125, 25.762, west"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseLine(tt.line)
			assert.Error(t, err)
		})
	}
}

func TestImportLines(t *testing.T) {
	input := strings.Join([]string{
		"123 NW 42 AVE, Miami, FL, 33125, 25.762, -80.191",
		"",
		"not a valid line",
		"125 NW 42 AVE, Miami, FL, 33125, 25.763, -80.191",
	}, "\n")

	st := &fakeStore{}
	res, err := ImportLines(context.Background(), strings.NewReader(input), st)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Imported)
	assert.Equal(t, 1, res.Skipped)
	require.Len(t, st.inserted, 2)
	assert.Equal(t, "125", st.inserted[1].HouseNumber)
}

func TestImportLines_InsertErrorIsFatal(t *testing.T) {
	st := &fakeStore{insertErr: assert.AnError}
	res, err := ImportLines(context.Background(),
		strings.NewReader("123 NW 42 AVE, Miami, FL, 33125, 25.762, -80.191"), st)

	require.Error(t, err)
	assert.Equal(t, 0, res.Imported)
}
