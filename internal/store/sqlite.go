package store

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/propwatch/appraisal-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// Pragmas ride the DSN so every pooled connection applies them, not just the
// first one opened.
const sqlitePragmas = "?_pragma=journal_mode(WAL)" +
	"&_pragma=busy_timeout(5000)" +
	"&_pragma=synchronous(NORMAL)" +
	"&_pragma=foreign_keys(ON)"

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path+sqlitePragmas)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, eris.Wrapf(err, "sqlite: open %s", path)
	}
	return &SQLiteStore{db: db}, nil
}

// coord_index bounds are plain 64-bit reals rather than an R*Tree virtual
// table: the R*Tree stores 32-bit floats, which breaks exact closed-interval
// boundary comparisons on query boxes.
const sqliteMigration = `
CREATE TABLE IF NOT EXISTS zip_codes (
	zip_id   INTEGER PRIMARY KEY AUTOINCREMENT,
	zip_code TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS addresses (
	address_id       INTEGER PRIMARY KEY AUTOINCREMENT,
	address          TEXT NOT NULL,
	city             TEXT,
	state            TEXT,
	zip_code_id      INTEGER NOT NULL REFERENCES zip_codes(zip_id),
	lat              REAL,
	lon              REAL,
	coord_tree_index INTEGER
);

CREATE TABLE IF NOT EXISTS assessments (
	year                INTEGER NOT NULL,
	land_value          REAL,
	building_value      REAL,
	extra_feature_value REAL,
	property            INTEGER NOT NULL REFERENCES addresses(address_id)
);

CREATE TABLE IF NOT EXISTS land_parcels (
	year                INTEGER NOT NULL,
	land_area           REAL,
	land_area_unit      TEXT,
	adjusted_unit_price REAL,
	property            INTEGER NOT NULL REFERENCES addresses(address_id)
);

CREATE TABLE IF NOT EXISTS sales (
	price    REAL,
	date     TEXT,
	property INTEGER NOT NULL REFERENCES addresses(address_id)
);

CREATE TABLE IF NOT EXISTS buildings (
	building_number  INTEGER,
	year_constructed INTEGER,
	building_area    REAL,
	property         INTEGER NOT NULL REFERENCES addresses(address_id)
);

CREATE TABLE IF NOT EXISTS coord_index (
	id     INTEGER PRIMARY KEY,
	minLat REAL NOT NULL,
	maxLat REAL NOT NULL,
	minLon REAL NOT NULL,
	maxLon REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS ingest_runs (
	id          TEXT PRIMARY KEY,
	zip_code    TEXT NOT NULL,
	attempted   INTEGER NOT NULL,
	succeeded   INTEGER NOT NULL,
	failed      INTEGER NOT NULL,
	failures    TEXT,
	started_at  DATETIME NOT NULL,
	finished_at DATETIME NOT NULL
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

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) InsertAddress(ctx context.Context, rec model.AddressRecord) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin insert address")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO zip_codes (zip_code) VALUES (?)`, rec.ZipCode,
	); err != nil {
		return 0, eris.Wrap(err, "sqlite: ensure zip")
	}

	var zipID int64
	if err := tx.QueryRowContext(ctx,
		`SELECT zip_id FROM zip_codes WHERE zip_code = ?`, rec.ZipCode,
	).Scan(&zipID); err != nil {
		return 0, eris.Wrap(err, "sqlite: select zip")
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO addresses (address, city, state, zip_code_id, lat, lon) VALUES (?, ?, ?, ?, ?, ?)`,
		rec.HouseNumber+" "+rec.Street, rec.City, rec.State, zipID, rec.Lat, rec.Lon,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: insert address")
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: address id")
	}
	return id, eris.Wrap(tx.Commit(), "sqlite: commit insert address")
}

func (s *SQLiteStore) AddressesByZip(ctx context.Context, zipCode string) ([]model.InputRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT a.address, a.address_id
		 FROM addresses a INNER JOIN zip_codes z ON a.zip_code_id = z.zip_id
		 WHERE z.zip_code = ?
		 ORDER BY a.address_id`,
		zipCode,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: addresses for zip %s", zipCode)
	}
	defer rows.Close()

	var recs []model.InputRecord
	for rows.Next() {
		var r model.InputRecord
		if err := rows.Scan(&r.Address, &r.AddressID); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan address")
		}
		recs = append(recs, r)
	}
	return recs, eris.Wrap(rows.Err(), "sqlite: iterate addresses")
}

func (s *SQLiteStore) InsertBatch(ctx context.Context, addressID int64, rows *model.RowSet) error {
	if rows.Empty() {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin batch")
	}
	defer tx.Rollback() //nolint:errcheck

	for _, a := range rows.Assessments {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO assessments (year, land_value, building_value, extra_feature_value, property) VALUES (?, ?, ?, ?, ?)`,
			a.Year, a.LandValue, a.BuildingValue, a.ExtraFeatureValue, addressID,
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert assessment for %d", addressID)
		}
	}
	for _, l := range rows.LandParcels {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO land_parcels (year, land_area, land_area_unit, adjusted_unit_price, property) VALUES (?, ?, ?, ?, ?)`,
			l.Year, l.Area, l.AreaUnit, l.AdjustedUnitPrice, addressID,
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert land parcel for %d", addressID)
		}
	}
	for _, sl := range rows.Sales {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO sales (price, date, property) VALUES (?, ?, ?)`,
			sl.Price, sl.Date, addressID,
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert sale for %d", addressID)
		}
	}
	for _, b := range rows.Buildings {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO buildings (building_number, year_constructed, building_area, property) VALUES (?, ?, ?, ?)`,
			b.BuildingNumber, b.YearConstructed, b.BuildingArea, addressID,
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert building for %d", addressID)
		}
	}

	return eris.Wrapf(tx.Commit(), "sqlite: commit batch for %d", addressID)
}

func (s *SQLiteStore) SaveReport(ctx context.Context, report *model.Report) error {
	if report.RunID == "" {
		report.RunID = uuid.New().String()
	}

	failuresJSON, err := json.Marshal(report.Failures)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal failures")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO ingest_runs (id, zip_code, attempted, succeeded, failed, failures, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		report.RunID, report.ZipCode, report.Attempted, report.Succeeded, report.Failed,
		string(failuresJSON), report.StartedAt, report.FinishedAt,
	)
	return eris.Wrap(err, "sqlite: save report")
}

func (s *SQLiteStore) ListReports(ctx context.Context, limit int) ([]model.Report, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, zip_code, attempted, succeeded, failed, failures, started_at, finished_at
		 FROM ingest_runs ORDER BY started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list reports")
	}
	defer rows.Close()

	var reports []model.Report
	for rows.Next() {
		var r model.Report
		var failuresJSON sql.NullString
		if err := rows.Scan(&r.RunID, &r.ZipCode, &r.Attempted, &r.Succeeded, &r.Failed,
			&failuresJSON, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan report")
		}
		if failuresJSON.Valid && failuresJSON.String != "" {
			if err := json.Unmarshal([]byte(failuresJSON.String), &r.Failures); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal failures")
			}
		}
		reports = append(reports, r)
	}
	return reports, eris.Wrap(rows.Err(), "sqlite: iterate reports")
}

func (s *SQLiteStore) UnindexedCoordinates(ctx context.Context) ([]model.Coordinate, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT address_id, lat, lon FROM addresses
		 WHERE coord_tree_index IS NULL AND lat IS NOT NULL AND lon IS NOT NULL
		 ORDER BY address_id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: unindexed coordinates")
	}
	defer rows.Close()

	var coords []model.Coordinate
	for rows.Next() {
		var c model.Coordinate
		if err := rows.Scan(&c.AddressID, &c.Lat, &c.Lon); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan coordinate")
		}
		coords = append(coords, c)
	}
	return coords, eris.Wrap(rows.Err(), "sqlite: iterate coordinates")
}

func (s *SQLiteStore) MaxSpatialID(ctx context.Context) (int64, error) {
	var max int64
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(id), 0) FROM coord_index`).Scan(&max)
	return max, eris.Wrap(err, "sqlite: max spatial id")
}

func (s *SQLiteStore) InsertSpatialEntry(ctx context.Context, addressID int64, entry model.SpatialEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin spatial insert")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO coord_index (id, minLat, maxLat, minLon, maxLon) VALUES (?, ?, ?, ?, ?)`,
		entry.ID, entry.MinLat, entry.MaxLat, entry.MinLon, entry.MaxLon,
	); err != nil {
		return eris.Wrapf(err, "sqlite: insert spatial entry %d", entry.ID)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE addresses SET coord_tree_index = ? WHERE address_id = ?`,
		entry.ID, addressID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: backref spatial entry %d", entry.ID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Errorf("sqlite: address not found: %d", addressID)
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit spatial insert")
}

func (s *SQLiteStore) LandValues(ctx context.Context, box model.QueryBox, year int) ([]model.LandValue, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT b.address_id, b.lat, b.lon, a.adjusted_unit_price, a.land_area_unit, a.land_area
		 FROM land_parcels a
		 INNER JOIN addresses b ON a.property = b.address_id
		 WHERE a.year = ? AND b.address_id IN (
			SELECT c.address_id
			FROM addresses c
			INNER JOIN coord_index d ON c.coord_tree_index = d.id
			WHERE d.minLat >= ? AND d.maxLat <= ? AND d.minLon >= ? AND d.maxLon <= ?
		 )`,
		year, box.MinLat, box.MaxLat, box.MinLon, box.MaxLon,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: land values")
	}
	defer rows.Close()

	var values []model.LandValue
	for rows.Next() {
		var v model.LandValue
		if err := rows.Scan(&v.ID, &v.Lat, &v.Lon, &v.LandValue, &v.LandUnit, &v.LandArea); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan land value")
		}
		values = append(values, v)
	}
	return values, eris.Wrap(rows.Err(), "sqlite: iterate land values")
}
