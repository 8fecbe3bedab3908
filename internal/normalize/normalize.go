// Package normalize decomposes one raw appraiser payload into flat row
// families ready for insertion.
package normalize

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/propwatch/appraisal-cli/internal/model"
	"github.com/propwatch/appraisal-cli/pkg/appraiser"
)

// minFootArea guards against degenerate or placeholder land lines: foot-based
// entries below this area are dropped.
const minFootArea = 10

// ErrBadSaleDate reports a sale date the service returned in an unexpected
// format. It fails normalization for the whole record; a partial sale list
// is never emitted.
var ErrBadSaleDate = eris.New("normalize: unparseable sale date")

// Policy controls the land-line filtering variant.
type Policy struct {
	// DropFrontage drops land lines measured as street frontage. The two
	// historical pipeline variants disagreed on this, so it is explicit
	// configuration rather than a constant.
	DropFrontage bool
}

// Rows flattens a payload into its row families. Families whose section is
// absent from the payload come back nil, which callers treat the same as
// empty: nothing to insert.
func Rows(prop *appraiser.Property, policy Policy) (*model.RowSet, error) {
	sales, err := saleRows(prop.SalesInfos)
	if err != nil {
		return nil, err
	}
	return &model.RowSet{
		Assessments: assessmentRows(prop.Assessment),
		LandParcels: landRows(prop.Land, policy),
		Sales:       sales,
		Buildings:   buildingRows(prop.Building),
	}, nil
}

func assessmentRows(section *appraiser.Assessment) []model.AssessmentRow {
	if section == nil {
		return nil
	}
	rows := make([]model.AssessmentRow, 0, len(section.AssessmentInfos))
	for _, a := range section.AssessmentInfos {
		rows = append(rows, model.AssessmentRow{
			Year:              a.Year,
			LandValue:         a.LandValue,
			BuildingValue:     a.BuildingOnlyValue,
			ExtraFeatureValue: a.ExtraFeatureValue,
		})
	}
	return rows
}

func landRows(section *appraiser.Land, policy Policy) []model.LandRow {
	if section == nil {
		return nil
	}
	rows := make([]model.LandRow, 0, len(section.Landlines))
	for _, l := range section.Landlines {
		if policy.DropFrontage && strings.Contains(l.UnitType, "Front") {
			continue
		}
		if strings.Contains(l.UnitType, "Ft.") && l.Units < minFootArea {
			continue
		}
		rows = append(rows, model.LandRow{
			Year:              l.RollYear,
			Area:              l.Units,
			AreaUnit:          l.UnitType,
			AdjustedUnitPrice: l.AdjustedUnitPrice,
		})
	}
	return rows
}

func saleRows(sales []appraiser.SaleInfo) ([]model.SaleRow, error) {
	rows := make([]model.SaleRow, 0, len(sales))
	for _, s := range sales {
		d, err := time.Parse("01/02/2006", s.DateOfSale)
		if err != nil {
			return nil, eris.Wrapf(ErrBadSaleDate, "%q", s.DateOfSale)
		}
		rows = append(rows, model.SaleRow{
			Price: s.SalePrice,
			Date:  d.Format("2006-01-02"),
		})
	}
	return rows, nil
}

func buildingRows(section *appraiser.Building) []model.BuildingRow {
	if section == nil {
		return nil
	}
	seen := make(map[int]bool, len(section.BuildingInfos))
	rows := make([]model.BuildingRow, 0, len(section.BuildingInfos))
	for _, b := range section.BuildingInfos {
		if seen[b.BuildingNo] {
			continue
		}
		seen[b.BuildingNo] = true
		rows = append(rows, model.BuildingRow{
			BuildingNumber:  b.BuildingNo,
			YearConstructed: b.Effective,
			BuildingArea:    b.EffectiveArea,
		})
	}
	return rows
}
