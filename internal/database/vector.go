package database

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"
)

// Vector wraps a float64 slice for use as an embedding column value. It
// implements sql.Scanner and driver.Valuer using the pgvector text format
// "[1.0,2.0,3.0]". PostgreSQL casts the literal into a VECTOR column; SQLite
// stores it as TEXT in the same format, so rows move between dialects
// unchanged.
type Vector struct {
	floats []float64
}

// NewVector creates a Vector from a float64 slice. The input is defensively
// copied so later mutations of the source slice have no effect.
func NewVector(floats []float64) Vector {
	cp := make([]float64, len(floats))
	copy(cp, floats)
	return Vector{floats: cp}
}

// Floats returns a defensive copy of the underlying float64 slice.
// Returns nil if the vector was never initialized (e.g. scanned from nil).
func (v Vector) Floats() []float64 {
	if v.floats == nil {
		return nil
	}
	cp := make([]float64, len(v.floats))
	copy(cp, v.floats)
	return cp
}

// Dimensions returns the number of elements in the vector.
func (v Vector) Dimensions() int {
	return len(v.floats)
}

// Scan implements sql.Scanner. It parses the vector text format
// "[1.0,2.0,3.0]" from either a string or []byte value.
func (v *Vector) Scan(value any) error {
	if value == nil {
		v.floats = nil
		return nil
	}

	var raw string
	switch val := value.(type) {
	case string:
		raw = val
	case []byte:
		raw = string(val)
	default:
		return fmt.Errorf("cannot scan %T into Vector", value)
	}

	raw = strings.TrimSpace(raw)
	if raw == "[]" || raw == "" {
		v.floats = []float64{}
		return nil
	}

	raw = strings.TrimPrefix(raw, "[")
	raw = strings.TrimSuffix(raw, "]")

	parts := strings.Split(raw, ",")
	floats := make([]float64, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return fmt.Errorf("parse element %d: %w", i, err)
		}
		floats[i] = f
	}

	v.floats = floats
	return nil
}

// Value implements driver.Valuer. It serializes the vector to the text
// format "[1.0,2.0,3.0]".
func (v Vector) Value() (driver.Value, error) {
	return v.String(), nil
}

// String returns the vector literal "[1.0,2.0,3.0]".
func (v Vector) String() string {
	// Pre-allocate: ~12 bytes per float (digits + comma) plus brackets.
	var b strings.Builder
	b.Grow(len(v.floats)*12 + 2)
	b.WriteByte('[')
	for i, f := range v.floats {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(f, 'f', -1, 64))
	}
	b.WriteByte(']')
	return b.String()
}
