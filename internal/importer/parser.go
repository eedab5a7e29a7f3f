package importer

import (
	"encoding/csv"
	"io"
	"strings"

	"github.com/meridian-research/audience/internal/domain"
)

// Reader turns a raw delimited-text payload into a sequence of ImportRecords.
//
// It is deliberately forgiving: variable-width rows are accepted (missing
// trailing fields become empty strings, extra fields are ignored), loosely
// quoted fields parse via LazyQuotes, and blank lines are skipped without
// counting toward the total. A structurally unusable payload simply yields
// zero records. Construct a new Reader from the same payload to restart.
type Reader struct {
	csv     *csv.Reader
	headers []string
	row     int // file row of the last record returned; header is row 1
}

// NewReader consumes the header row and prepares to stream data records.
func NewReader(payload string) *Reader {
	cr := csv.NewReader(strings.NewReader(payload))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	r := &Reader{csv: cr, row: 1}
	header, err := cr.Read()
	if err != nil {
		// Empty or unreadable payload: leave headers nil so Next returns
		// nothing and the aggregate reports total = 0.
		return r
	}
	r.headers = CanonicalizeHeaders(header)
	return r
}

// Headers returns the canonicalized field names, nil if the payload had none.
func (r *Reader) Headers() []string {
	return r.headers
}

// Next returns the next record and its 1-based file row number (the first
// data row is 2). ok is false once the payload is exhausted.
func (r *Reader) Next() (rec domain.ImportRecord, row int, ok bool) {
	if r.headers == nil {
		return nil, 0, false
	}
	for {
		fields, err := r.csv.Read()
		if err == io.EOF {
			return nil, 0, false
		}
		if err != nil {
			// A malformed line never aborts the run; move on.
			continue
		}
		r.row++
		rec = make(domain.ImportRecord, len(r.headers))
		for i, name := range r.headers {
			if i < len(fields) {
				rec[name] = fields[i]
			} else {
				rec[name] = ""
			}
		}
		return rec, r.row, true
	}
}
