package schema

import "regexp"

// autoIncrementRe matches the table option MySQL appends to SHOW CREATE TABLE
// output once a table has rows, e.g. " AUTO_INCREMENT=42". The counter moves
// with every insert and carries no schema meaning. Column-level
// AUTO_INCREMENT attributes have no "=<digits>" and are left alone.
var autoIncrementRe = regexp.MustCompile(` ?\bAUTO_INCREMENT=[0-9]+\b`)

// Normalize strips volatile noise from raw DDL so that two observations of
// the same schema compare equal. It never fails, preserves line structure,
// and is idempotent: Normalize(Normalize(s)) == Normalize(s).
//
// Removal repeats until nothing matches, since stripping one clause can join
// its neighbours into another. Input that consists of nothing but counter
// clauses is returned unchanged: the result is empty only for empty input.
func Normalize(raw string) string {
	if raw == "" {
		return ""
	}
	out := raw
	for {
		next := autoIncrementRe.ReplaceAllString(out, "")
		if next == out {
			break
		}
		out = next
	}
	if out == "" {
		return raw
	}
	return out
}
