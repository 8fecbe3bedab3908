package appraiser

// Property is the payload returned for one folio. Sections the service omits
// for a given property are nil pointers, which is distinct from a section
// present with an empty list.
type Property struct {
	Completed    bool          `json:"Completed"`
	PropertyInfo *PropertyInfo `json:"PropertyInfo"`
	Assessment   *Assessment   `json:"Assessment"`
	Land         *Land         `json:"Land"`
	Building     *Building     `json:"Building"`
	SalesInfos   []SaleInfo    `json:"SalesInfos"`
}

// PropertyInfo carries the property classification.
type PropertyInfo struct {
	FolioNumber    string `json:"FolioNumber"`
	DORDescription string `json:"DORDescription"`
}

// Assessment wraps the per-year assessed value list.
type Assessment struct {
	AssessmentInfos []AssessmentInfo `json:"AssessmentInfos"`
}

// AssessmentInfo is one year of assessed values.
type AssessmentInfo struct {
	Year              int     `json:"Year"`
	LandValue         float64 `json:"LandValue"`
	BuildingOnlyValue float64 `json:"BuildingOnlyValue"`
	ExtraFeatureValue float64 `json:"ExtraFeatureValue"`
}

// Land wraps the land line list.
type Land struct {
	Landlines []Landline `json:"Landlines"`
}

// Landline is one year/lot land entry.
type Landline struct {
	RollYear          int     `json:"RollYear"`
	Units             float64 `json:"Units"`
	UnitType          string  `json:"UnitType"`
	AdjustedUnitPrice float64 `json:"AdjustedUnitPrice"`
	Depth             float64 `json:"Depth"`
}

// Building wraps the structure list.
type Building struct {
	BuildingInfos []BuildingInfo `json:"BuildingInfos"`
}

// BuildingInfo is one structure on the property.
type BuildingInfo struct {
	BuildingNo    int     `json:"BuildingNo"`
	Effective     int     `json:"Effective"`
	EffectiveArea float64 `json:"EffectiveArea"`
}

// SaleInfo is one recorded sale, date in the service's MM/DD/YYYY form.
type SaleInfo struct {
	DateOfSale string  `json:"DateOfSale"`
	SalePrice  float64 `json:"SalePrice"`
}

// SearchResult is the response to an address search.
type SearchResult struct {
	Completed            bool           `json:"Completed"`
	MinimumPropertyInfos []PropertySite `json:"MinimumPropertyInfos"`
}

// PropertySite is one address-search candidate. Strap is the folio in its
// dashed display form.
type PropertySite struct {
	SiteAddress string `json:"SiteAddress"`
	Strap       string `json:"Strap"`
}
