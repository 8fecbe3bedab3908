package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/propwatch/appraisal-cli/internal/db"
	"github.com/propwatch/appraisal-cli/internal/model"
)

// PostgresStore implements Store using a pgx connection pool. The sink still
// holds the single-writer role during a run; the pool only multiplexes
// readers.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool, mainly for tests.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS zip_codes (
	zip_id   BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	zip_code TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS addresses (
	address_id       BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	address          TEXT NOT NULL,
	city             TEXT,
	state            TEXT,
	zip_code_id      BIGINT NOT NULL REFERENCES zip_codes(zip_id),
	lat              DOUBLE PRECISION,
	lon              DOUBLE PRECISION,
	coord_tree_index BIGINT
);

CREATE TABLE IF NOT EXISTS assessments (
	year                INTEGER NOT NULL,
	land_value          DOUBLE PRECISION,
	building_value      DOUBLE PRECISION,
	extra_feature_value DOUBLE PRECISION,
	property            BIGINT NOT NULL REFERENCES addresses(address_id)
);

CREATE TABLE IF NOT EXISTS land_parcels (
	year                INTEGER NOT NULL,
	land_area           DOUBLE PRECISION,
	land_area_unit      TEXT,
	adjusted_unit_price DOUBLE PRECISION,
	property            BIGINT NOT NULL REFERENCES addresses(address_id)
);

CREATE TABLE IF NOT EXISTS sales (
	price    DOUBLE PRECISION,
	date     DATE,
	property BIGINT NOT NULL REFERENCES addresses(address_id)
);

CREATE TABLE IF NOT EXISTS buildings (
	building_number  INTEGER,
	year_constructed INTEGER,
	building_area    DOUBLE PRECISION,
	property         BIGINT NOT NULL REFERENCES addresses(address_id)
);

CREATE TABLE IF NOT EXISTS coord_index (
	id     BIGINT PRIMARY KEY,
	minLat DOUBLE PRECISION NOT NULL,
	maxLat DOUBLE PRECISION NOT NULL,
	minLon DOUBLE PRECISION NOT NULL,
	maxLon DOUBLE PRECISION NOT NULL
);

CREATE TABLE IF NOT EXISTS ingest_runs (
	id          TEXT PRIMARY KEY,
	zip_code    TEXT NOT NULL,
	attempted   INTEGER NOT NULL,
	succeeded   INTEGER NOT NULL,
	failed      INTEGER NOT NULL,
	failures    JSONB,
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_addresses_zip ON addresses(zip_code_id);
CREATE INDEX IF NOT EXISTS idx_addresses_coord ON addresses(coord_tree_index);
CREATE INDEX IF NOT EXISTS idx_assessments_property ON assessments(property);
CREATE INDEX IF NOT EXISTS idx_land_parcels_property ON land_parcels(property);
CREATE INDEX IF NOT EXISTS idx_land_parcels_year ON land_parcels(year);
CREATE INDEX IF NOT EXISTS idx_sales_property ON sales(property);
CREATE INDEX IF NOT EXISTS idx_buildings_property ON buildings(property);
CREATE INDEX IF NOT EXISTS idx_coord_index_bounds ON coord_index(minLat, maxLat, minLon, maxLon);
CREATE INDEX IF NOT EXISTS idx_ingest_runs_started ON ingest_runs(started_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) InsertAddress(ctx context.Context, rec model.AddressRecord) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: begin insert address")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx,
		`INSERT INTO zip_codes (zip_code) VALUES ($1) ON CONFLICT (zip_code) DO NOTHING`,
		rec.ZipCode,
	); err != nil {
		return 0, eris.Wrap(err, "postgres: ensure zip")
	}

	var zipID int64
	if err := tx.QueryRow(ctx,
		`SELECT zip_id FROM zip_codes WHERE zip_code = $1`, rec.ZipCode,
	).Scan(&zipID); err != nil {
		return 0, eris.Wrap(err, "postgres: select zip")
	}

	var id int64
	if err := tx.QueryRow(ctx,
		`INSERT INTO addresses (address, city, state, zip_code_id, lat, lon)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING address_id`,
		rec.HouseNumber+" "+rec.Street, rec.City, rec.State, zipID, rec.Lat, rec.Lon,
	).Scan(&id); err != nil {
		return 0, eris.Wrap(err, "postgres: insert address")
	}

	return id, eris.Wrap(tx.Commit(ctx), "postgres: commit insert address")
}

func (s *PostgresStore) AddressesByZip(ctx context.Context, zipCode string) ([]model.InputRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT a.address, a.address_id
		 FROM addresses a INNER JOIN zip_codes z ON a.zip_code_id = z.zip_id
		 WHERE z.zip_code = $1
		 ORDER BY a.address_id`,
		zipCode,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: addresses for zip %s", zipCode)
	}
	defer rows.Close()

	var recs []model.InputRecord
	for rows.Next() {
		var r model.InputRecord
		if err := rows.Scan(&r.Address, &r.AddressID); err != nil {
			return nil, eris.Wrap(err, "postgres: scan address")
		}
		recs = append(recs, r)
	}
	return recs, eris.Wrap(rows.Err(), "postgres: iterate addresses")
}

func (s *PostgresStore) InsertBatch(ctx context.Context, addressID int64, rowSet *model.RowSet) error {
	if rowSet.Empty() {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin batch")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for _, a := range rowSet.Assessments {
		if _, err := tx.Exec(ctx,
			`INSERT INTO assessments (year, land_value, building_value, extra_feature_value, property) VALUES ($1, $2, $3, $4, $5)`,
			a.Year, a.LandValue, a.BuildingValue, a.ExtraFeatureValue, addressID,
		); err != nil {
			return eris.Wrapf(err, "postgres: insert assessment for %d", addressID)
		}
	}
	for _, l := range rowSet.LandParcels {
		if _, err := tx.Exec(ctx,
			`INSERT INTO land_parcels (year, land_area, land_area_unit, adjusted_unit_price, property) VALUES ($1, $2, $3, $4, $5)`,
			l.Year, l.Area, l.AreaUnit, l.AdjustedUnitPrice, addressID,
		); err != nil {
			return eris.Wrapf(err, "postgres: insert land parcel for %d", addressID)
		}
	}
	for _, sl := range rowSet.Sales {
		if _, err := tx.Exec(ctx,
			`INSERT INTO sales (price, date, property) VALUES ($1, $2, $3)`,
			sl.Price, sl.Date, addressID,
		); err != nil {
			return eris.Wrapf(err, "postgres: insert sale for %d", addressID)
		}
	}
	for _, b := range rowSet.Buildings {
		if _, err := tx.Exec(ctx,
			`INSERT INTO buildings (building_number, year_constructed, building_area, property) VALUES ($1, $2, $3, $4)`,
			b.BuildingNumber, b.YearConstructed, b.BuildingArea, addressID,
		); err != nil {
			return eris.Wrapf(err, "postgres: insert building for %d", addressID)
		}
	}

	return eris.Wrapf(tx.Commit(ctx), "postgres: commit batch for %d", addressID)
}

func (s *PostgresStore) SaveReport(ctx context.Context, report *model.Report) error {
	if report.RunID == "" {
		report.RunID = uuid.New().String()
	}

	failuresJSON, err := json.Marshal(report.Failures)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal failures")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO ingest_runs (id, zip_code, attempted, succeeded, failed, failures, started_at, finished_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		report.RunID, report.ZipCode, report.Attempted, report.Succeeded, report.Failed,
		failuresJSON, report.StartedAt, report.FinishedAt,
	)
	return eris.Wrap(err, "postgres: save report")
}

func (s *PostgresStore) ListReports(ctx context.Context, limit int) ([]model.Report, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, zip_code, attempted, succeeded, failed, failures, started_at, finished_at
		 FROM ingest_runs ORDER BY started_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list reports")
	}
	defer rows.Close()

	var reports []model.Report
	for rows.Next() {
		var r model.Report
		var failuresJSON []byte
		if err := rows.Scan(&r.RunID, &r.ZipCode, &r.Attempted, &r.Succeeded, &r.Failed,
			&failuresJSON, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan report")
		}
		if len(failuresJSON) > 0 {
			if err := json.Unmarshal(failuresJSON, &r.Failures); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal failures")
			}
		}
		reports = append(reports, r)
	}
	return reports, eris.Wrap(rows.Err(), "postgres: iterate reports")
}

func (s *PostgresStore) UnindexedCoordinates(ctx context.Context) ([]model.Coordinate, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT address_id, lat, lon FROM addresses
		 WHERE coord_tree_index IS NULL AND lat IS NOT NULL AND lon IS NOT NULL
		 ORDER BY address_id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: unindexed coordinates")
	}
	defer rows.Close()

	var coords []model.Coordinate
	for rows.Next() {
		var c model.Coordinate
		if err := rows.Scan(&c.AddressID, &c.Lat, &c.Lon); err != nil {
			return nil, eris.Wrap(err, "postgres: scan coordinate")
		}
		coords = append(coords, c)
	}
	return coords, eris.Wrap(rows.Err(), "postgres: iterate coordinates")
}

func (s *PostgresStore) MaxSpatialID(ctx context.Context) (int64, error) {
	var max int64
	err := s.pool.QueryRow(ctx, `SELECT COALESCE(MAX(id), 0) FROM coord_index`).Scan(&max)
	return max, eris.Wrap(err, "postgres: max spatial id")
}

func (s *PostgresStore) InsertSpatialEntry(ctx context.Context, addressID int64, entry model.SpatialEntry) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin spatial insert")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx,
		`INSERT INTO coord_index (id, minLat, maxLat, minLon, maxLon) VALUES ($1, $2, $3, $4, $5)`,
		entry.ID, entry.MinLat, entry.MaxLat, entry.MinLon, entry.MaxLon,
	); err != nil {
		return eris.Wrapf(err, "postgres: insert spatial entry %d", entry.ID)
	}

	tag, err := tx.Exec(ctx,
		`UPDATE addresses SET coord_tree_index = $1 WHERE address_id = $2`,
		entry.ID, addressID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: backref spatial entry %d", entry.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: address not found: %d", addressID)
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit spatial insert")
}

func (s *PostgresStore) LandValues(ctx context.Context, box model.QueryBox, year int) ([]model.LandValue, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT b.address_id, b.lat, b.lon, a.adjusted_unit_price, a.land_area_unit, a.land_area
		 FROM land_parcels a
		 INNER JOIN addresses b ON a.property = b.address_id
		 WHERE a.year = $1 AND b.address_id IN (
			SELECT c.address_id
			FROM addresses c
			INNER JOIN coord_index d ON c.coord_tree_index = d.id
			WHERE d.minLat >= $2 AND d.maxLat <= $3 AND d.minLon >= $4 AND d.maxLon <= $5
		 )`,
		year, box.MinLat, box.MaxLat, box.MinLon, box.MaxLon,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: land values")
	}
	defer rows.Close()

	var values []model.LandValue
	for rows.Next() {
		var v model.LandValue
		if err := rows.Scan(&v.ID, &v.Lat, &v.Lon, &v.LandValue, &v.LandUnit, &v.LandArea); err != nil {
			return nil, eris.Wrap(err, "postgres: scan land value")
		}
		values = append(values, v)
	}
	return values, eris.Wrap(rows.Err(), "postgres: iterate land values")
}
