// Package schema holds the pure, side-effect free half of drift detection:
// normalizing raw CREATE TABLE text and computing column-level diffs
// between two normalized schemas.
package schema

// TableSchema is one table's DDL as fetched from the database during a
// single poll cycle. It is never persisted as-is.
type TableSchema struct {
	Name   string
	RawDDL string
}

// Normalized returns the normalized form of the table's DDL.
func (t TableSchema) Normalized() string {
	return Normalize(t.RawDDL)
}
