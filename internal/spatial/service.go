package spatial

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/propwatch/appraisal-cli/internal/model"
	"github.com/propwatch/appraisal-cli/internal/store"
)

// Service answers land-value queries for a point by searching the coordinate
// index with a fixed-half-width box around it.
type Service struct {
	store         store.Store
	halfWidth     float64
	valuationYear int
}

// NewService creates a query Service. halfWidth is the box half-width in
// degrees; deployments run either a coarse (0.5) or fine (0.008) radius, set
// once in config and never mixed.
func NewService(st store.Store, halfWidth float64, valuationYear int) (*Service, error) {
	if halfWidth <= 0 {
		return nil, eris.Errorf("spatial: half width must be positive, got %v", halfWidth)
	}
	if valuationYear <= 0 {
		return nil, eris.Errorf("spatial: valuation year must be positive, got %d", valuationYear)
	}
	return &Service{store: st, halfWidth: halfWidth, valuationYear: valuationYear}, nil
}

// BoxAround derives the query rectangle for a center point.
func BoxAround(lat, lon, halfWidth float64) model.QueryBox {
	return model.QueryBox{
		MinLat: lat - halfWidth,
		MaxLat: lat + halfWidth,
		MinLon: lon - halfWidth,
		MaxLon: lon + halfWidth,
	}
}

// bounds lifts a query box into a geom.Bounds in lon/lat order.
func bounds(box model.QueryBox) *geom.Bounds {
	return geom.NewBounds(geom.XY).Set(box.MinLon, box.MinLat, box.MaxLon, box.MaxLat)
}

// Contains reports whether the entry's rectangle lies fully inside the box.
// An axis-aligned rectangle is inside iff both of its corners are, and
// geom.Bounds point checks are closed-interval, so an entry exactly on the
// box edge matches. The store's containment SQL implements the same
// predicate; this form exists for in-process checks and tests.
func Contains(box model.QueryBox, e model.SpatialEntry) bool {
	b := bounds(box)
	return b.OverlapsPoint(geom.XY, geom.Coord{e.MinLon, e.MinLat}) &&
		b.OverlapsPoint(geom.XY, geom.Coord{e.MaxLon, e.MaxLat})
}

// LandValue returns current-valuation-year land data for every indexed
// property whose entry lies inside the box around (lat, lon). No match is an
// empty result, not an error.
func (s *Service) LandValue(ctx context.Context, lat, lon float64) ([]model.LandValue, error) {
	box := BoxAround(lat, lon, s.halfWidth)
	values, err := s.store.LandValues(ctx, box, s.valuationYear)
	if err != nil {
		return nil, eris.Wrap(err, "spatial: land value query")
	}
	return values, nil
}
