// Package store persists addresses, normalized property rows, the coordinate
// index, and ingest-run reports. Two backends implement the same interface:
// SQLite for single-file deployments and Postgres for shared ones.
package store

import (
	"context"

	"github.com/propwatch/appraisal-cli/internal/model"
)

// Store is the persistence interface for the ingest pipeline and the query
// service. During a pipeline run exactly one goroutine (the sink) calls the
// mutating methods; readers attach only after the run has committed.
type Store interface {
	// Addresses
	InsertAddress(ctx context.Context, rec model.AddressRecord) (int64, error)
	AddressesByZip(ctx context.Context, zipCode string) ([]model.InputRecord, error)

	// InsertBatch writes every row family for one property as a single
	// atomic unit. Readers never observe a partially inserted record.
	InsertBatch(ctx context.Context, addressID int64, rows *model.RowSet) error

	// Ingest-run reports
	SaveReport(ctx context.Context, report *model.Report) error
	ListReports(ctx context.Context, limit int) ([]model.Report, error)

	// Coordinate index
	UnindexedCoordinates(ctx context.Context) ([]model.Coordinate, error)
	MaxSpatialID(ctx context.Context) (int64, error)
	InsertSpatialEntry(ctx context.Context, addressID int64, entry model.SpatialEntry) error

	// LandValues returns, for each indexed coordinate whose rectangle lies
	// fully inside box, the land valuation for the given roll year.
	LandValues(ctx context.Context, box model.QueryBox, year int) ([]model.LandValue, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
