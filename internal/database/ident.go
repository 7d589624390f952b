package database

import (
	"fmt"
	"regexp"
	"strings"
)

// identPattern matches identifiers safe to interpolate into DDL. Names are
// derived from user-supplied table names, so anything outside this set is
// rejected rather than escaped.
var identPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// maxIdentLength matches the PostgreSQL identifier limit.
const maxIdentLength = 63

// ValidateIdent rejects names that cannot be safely used as SQL
// identifiers.
func ValidateIdent(name string) error {
	if name == "" {
		return fmt.Errorf("empty identifier")
	}
	if len(name) > maxIdentLength {
		return fmt.Errorf("identifier too long (%d > %d): %s", len(name), maxIdentLength, name)
	}
	if !identPattern.MatchString(name) {
		return fmt.Errorf("invalid identifier: %s", name)
	}
	return nil
}

// QuoteIdent double-quotes an identifier for interpolation into SQL.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
