package model

// InputRecord is one address queued for ingestion: the free-text address used
// for folio resolution plus the stable row id it was stored under. Immutable
// once read from the store.
type InputRecord struct {
	Address   string `json:"address"`
	AddressID int64  `json:"address_id"`
}

// AddressRecord is a raw address produced by the geographic extract, before
// it has been persisted. Records without a zip code are rejected upstream.
type AddressRecord struct {
	HouseNumber string  `json:"house_number"`
	Street      string  `json:"street"`
	City        string  `json:"city"`
	State       string  `json:"state"`
	ZipCode     string  `json:"zip_code"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
}

// AssessmentRow is one year of assessed values for a property.
type AssessmentRow struct {
	Year              int     `json:"year"`
	LandValue         float64 `json:"land_value"`
	BuildingValue     float64 `json:"building_value"`
	ExtraFeatureValue float64 `json:"extra_feature_value"`
}

// LandRow is one land line (year/parcel entry) for a property. A property
// assembled from multiple joined lots carries one row per lot per year.
type LandRow struct {
	Year              int     `json:"year"`
	Area              float64 `json:"area"`
	AreaUnit          string  `json:"area_unit"`
	AdjustedUnitPrice float64 `json:"adjusted_unit_price"`
}

// SaleRow is one recorded sale event. Date is normalized to YYYY-MM-DD.
type SaleRow struct {
	Price float64 `json:"price"`
	Date  string  `json:"date"`
}

// BuildingRow is one distinct structure on a property.
type BuildingRow struct {
	BuildingNumber  int     `json:"building_number"`
	YearConstructed int     `json:"year_constructed"`
	BuildingArea    float64 `json:"building_area"`
}

// RowSet holds every normalized row family for one property. A nil family
// slice and an empty one mean the same thing to the sink: nothing to insert.
type RowSet struct {
	Assessments []AssessmentRow `json:"assessments"`
	LandParcels []LandRow       `json:"land_parcels"`
	Sales       []SaleRow       `json:"sales"`
	Buildings   []BuildingRow   `json:"buildings"`
}

// Empty reports whether the set carries no rows at all.
func (rs *RowSet) Empty() bool {
	return rs == nil ||
		len(rs.Assessments) == 0 && len(rs.LandParcels) == 0 &&
			len(rs.Sales) == 0 && len(rs.Buildings) == 0
}

// Coordinate is a stored property location awaiting spatial indexing.
type Coordinate struct {
	AddressID int64   `json:"address_id"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
}

// SpatialEntry is a near-point rectangle in the coordinate index. Its id is
// allocated from a single strictly increasing counter and is independent of
// the owning address's primary key; the backreference lives on the address
// row itself.
type SpatialEntry struct {
	ID     int64   `json:"id"`
	MinLat float64 `json:"min_lat"`
	MaxLat float64 `json:"max_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLon float64 `json:"max_lon"`
}

// QueryBox is an axis-aligned query rectangle over latitude and longitude.
// Containment comparisons against it are closed-interval on every edge.
type QueryBox struct {
	MinLat float64 `json:"min_lat"`
	MaxLat float64 `json:"max_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLon float64 `json:"max_lon"`
}

// LandValue is one row of the landValue query result.
type LandValue struct {
	ID        int64   `json:"id"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	LandValue float64 `json:"land_value"`
	LandUnit  string  `json:"land_unit"`
	LandArea  float64 `json:"land_area"`
}
