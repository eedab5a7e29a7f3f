package domain

// ImportRecord maps canonical field names to raw string values for one input
// row. Records are ephemeral: they exist only for the duration of a single
// import run.
type ImportRecord map[string]string

// ImportError describes why one row was rejected. Row numbers are 1-based
// over the whole file including the header, so the first data row is row 2.
type ImportError struct {
	Row   int    `json:"row"`
	Email string `json:"email"`
	Error string `json:"error"`
}

// ImportResult is the complete report for one import run.
//
// Invariants: Imported + Skipped == Total, and Duplicates <= Skipped.
// Errors and SegmentWarnings appear in source-row order.
type ImportResult struct {
	Total           int           `json:"total"`
	Imported        int           `json:"imported"`
	Skipped         int           `json:"skipped"`
	Duplicates      int           `json:"duplicates"`
	Errors          []ImportError `json:"errors"`
	SegmentWarnings []string      `json:"segmentWarnings"`
}
