// Package spatial maintains the coordinate index over stored property
// locations and answers bounding-box queries against it.
package spatial

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/propwatch/appraisal-cli/internal/model"
	"github.com/propwatch/appraisal-cli/internal/store"
)

// Epsilon pads a point into a non-degenerate rectangle. It is well under a
// meter of latitude, so the pad never changes which query boxes match.
const Epsilon = 1e-7

// EntryForPoint builds the index rectangle for one coordinate.
func EntryForPoint(id int64, lat, lon float64) model.SpatialEntry {
	return model.SpatialEntry{
		ID:     id,
		MinLat: lat,
		MaxLat: lat + Epsilon,
		MinLon: lon,
		MaxLon: lon + Epsilon,
	}
}

// Builder inserts index entries for stored coordinates that have none yet.
type Builder struct {
	store store.Store
}

// NewBuilder creates a Builder over the given store.
func NewBuilder(st store.Store) *Builder {
	return &Builder{store: st}
}

// Build indexes every unindexed coordinate and returns how many entries it
// inserted. Ids continue from the current maximum, so repeated passes stay
// strictly increasing and never reuse an id. Entries are immutable once
// written; updating a record's coordinates is out of scope.
func (b *Builder) Build(ctx context.Context) (int, error) {
	log := zap.L().With(zap.String("component", "spatial.builder"))

	coords, err := b.store.UnindexedCoordinates(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "spatial: list unindexed")
	}
	if len(coords) == 0 {
		log.Info("nothing to index")
		return 0, nil
	}

	maxID, err := b.store.MaxSpatialID(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "spatial: seed id counter")
	}

	inserted := 0
	nextID := maxID + 1
	for _, c := range coords {
		entry := EntryForPoint(nextID, c.Lat, c.Lon)
		if err := b.store.InsertSpatialEntry(ctx, c.AddressID, entry); err != nil {
			return inserted, eris.Wrapf(err, "spatial: index address %d", c.AddressID)
		}
		nextID++
		inserted++
	}

	log.Info("index build complete", zap.Int("inserted", inserted), zap.Int64("last_id", nextID-1))
	return inserted, nil
}
