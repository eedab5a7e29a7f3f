package importer

import (
	"errors"
	"regexp"
	"strings"

	"github.com/meridian-research/audience/internal/domain"
)

// Validation reasons surfaced verbatim in the import report.
var (
	ErrMissingRequiredFields = errors.New("missing required fields")
	ErrInvalidEmailFormat    = errors.New("invalid email format")
)

// emailShapeRegex accepts local@domain.tld: no whitespace, a single @ and a
// dot somewhere in the domain part.
var emailShapeRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidateRecord checks one record against the required-field and email-shape
// rules. The first failing rule wins; both required fields share one reason.
// A record that fails validation never reaches the duplicate checker or the
// committer.
func ValidateRecord(rec domain.ImportRecord) error {
	if strings.TrimSpace(rec["firstName"]) == "" || strings.TrimSpace(rec["email"]) == "" {
		return ErrMissingRequiredFields
	}
	if !emailShapeRegex.MatchString(strings.TrimSpace(rec["email"])) {
		return ErrInvalidEmailFormat
	}
	return nil
}
