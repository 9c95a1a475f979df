package models

// RawRow holds the verbatim cell text extracted from one table row.
// It only lives for the duration of a single scrape.
type RawRow struct {
	RawDate string `json:"raw_date"`
	RawKg   string `json:"raw_kg"`
}

// Row is a normalized table row: ISO date plus parsed weight. A RawRow
// becomes a Row only when both cells parse; otherwise it is dropped.
// Kg is a pointer so defensive consumers can distinguish an absent weight.
type Row struct {
	Date    string   `json:"date"`
	Kg      *float64 `json:"kg"`
	RawDate string   `json:"raw_date,omitempty"`
	RawKg   string   `json:"raw_kg,omitempty"`
}

// UnitResult is the outcome of scraping one unit. Exactly one variant holds:
// either Rows is populated with Total = sum of kg, or Error is set with
// empty Rows and Total 0.
type UnitResult struct {
	UnitID string  `json:"unit_id"`
	Rows   []Row   `json:"rows"`
	Total  float64 `json:"total"`
	Error  string  `json:"error,omitempty"`
}

// ScrapeReport aggregates per-unit results in request order.
// SuccessfulUnits + FailedUnits always equals TotalUnits.
type ScrapeReport struct {
	Results         []*UnitResult `json:"results"`
	TotalUnits      int           `json:"total_units"`
	SuccessfulUnits int           `json:"successful_units"`
	FailedUnits     int           `json:"failed_units"`
}

// UnitInfo describes a unit discovered from portal markup. The portal does
// not guarantee unit_id uniqueness, so consumers must not assume it.
type UnitInfo struct {
	UnitID   string `json:"unit_id"`
	UnitName string `json:"unit_name"`
}

// ScrapeRequest is the payload of the scrape API operation.
type ScrapeRequest struct {
	Units        []string `json:"units"`
	StartDate    string   `json:"start_date,omitempty"`
	EndDate      string   `json:"end_date,omitempty"`
	Username     string   `json:"username,omitempty"`
	Password     string   `json:"password,omitempty"`
	DateSelector string   `json:"date_selector,omitempty"`
	KgSelector   string   `json:"kg_selector,omitempty"`
}

// DiscoverResponse is the payload returned by the unit discovery operation.
type DiscoverResponse struct {
	Units []UnitInfo `json:"units"`
	Total int        `json:"total"`
}

// LoginCredentials carries portal credentials submitted to the API.
type LoginCredentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// HealthResponse is returned by the health check endpoint.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}
