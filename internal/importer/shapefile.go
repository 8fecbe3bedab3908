package importer

import (
	"context"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/propwatch/appraisal-cli/internal/model"
	"github.com/propwatch/appraisal-cli/internal/store"
)

// Shapefile attribute names used by county address-point extracts.
var shpFields = struct {
	houseNumber, street, city, state, zip string
}{"HSE_NUM", "STREET", "CITY", "STATE", "ZIP"}

// ImportShapefile loads an address-point shapefile: one point geometry per
// address with the civic attributes in the DBF. Non-point shapes and records
// without a zip are skipped.
func ImportShapefile(ctx context.Context, path string, st store.Store) (*Result, error) {
	log := zap.L().With(zap.String("component", "importer"), zap.String("shapefile", path))

	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "importer: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	hseIdx := fieldIndex(reader, shpFields.houseNumber)
	streetIdx := fieldIndex(reader, shpFields.street)
	cityIdx := fieldIndex(reader, shpFields.city)
	stateIdx := fieldIndex(reader, shpFields.state)
	zipIdx := fieldIndex(reader, shpFields.zip)
	if hseIdx < 0 || streetIdx < 0 || zipIdx < 0 {
		return nil, eris.Errorf("importer: required shapefile fields (%s, %s, %s) not found",
			shpFields.houseNumber, shpFields.street, shpFields.zip)
	}

	res := &Result{}
	for reader.Next() {
		_, shape := reader.Shape()
		point, ok := shape.(*shp.Point)
		if !ok {
			res.Skipped++
			continue
		}
		// Shapefile points are (x, y) in lon/lat order.
		geo := geom.NewPointFlat(geom.XY, []float64{point.X, point.Y})

		rec := model.AddressRecord{
			HouseNumber: strings.TrimSpace(reader.Attribute(hseIdx)),
			Street:      strings.TrimSpace(reader.Attribute(streetIdx)),
			ZipCode:     strings.TrimSpace(reader.Attribute(zipIdx)),
			Lat:         geo.Y(),
			Lon:         geo.X(),
		}
		if cityIdx >= 0 {
			rec.City = strings.TrimSpace(reader.Attribute(cityIdx))
		}
		if stateIdx >= 0 {
			rec.State = strings.TrimSpace(reader.Attribute(stateIdx))
		}

		if rec.HouseNumber == "" || rec.Street == "" || rec.ZipCode == "" {
			res.Skipped++
			continue
		}

		if _, err := st.InsertAddress(ctx, rec); err != nil {
			return res, eris.Wrap(err, "importer: insert shapefile record")
		}
		res.Imported++
	}

	log.Info("shapefile import complete",
		zap.Int("imported", res.Imported), zap.Int("skipped", res.Skipped))
	return res, nil
}

// fieldIndex returns the index of a named DBF field, or -1 if not present.
func fieldIndex(reader *shp.Reader, name string) int {
	for i, f := range reader.Fields() {
		if strings.EqualFold(strings.TrimRight(f.String(), "\x00"), name) {
			return i
		}
	}
	return -1
}
