package schema

import (
	"fmt"
	"strings"
)

// noisePrefixes mark lines of a CREATE TABLE statement that describe the
// table envelope, keys or constraints rather than a column. They never
// produce column statements.
var noisePrefixes = []string{
	"CREATE TABLE",
	") ENGINE",
	"PRIMARY KEY",
	"UNIQUE KEY",
	"FULLTEXT KEY",
	"SPATIAL KEY",
	"KEY",
	"CONSTRAINT",
}

// Lines is an immutable, trimmed line view over a schema string.
type Lines []string

// SplitLines splits s on newlines and trims every line: leading whitespace,
// trailing whitespace and trailing commas. Empty lines are dropped.
func SplitLines(s string) Lines {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, "\n")
	out := make(Lines, 0, len(raw))
	for _, l := range raw {
		if l = trimLine(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

// Contains reports whether line is present by exact string match.
func (ls Lines) Contains(line string) bool {
	for _, l := range ls {
		if l == line {
			return true
		}
	}
	return false
}

func trimLine(l string) string {
	l = strings.TrimLeft(l, " \t\r\n\v\f")
	return strings.TrimRight(l, " \t\r\n\v\f,")
}

// IsNoise reports whether a trimmed line is structural (table header/footer,
// key or constraint clause).
func IsNoise(line string) bool {
	for _, p := range noisePrefixes {
		if strings.HasPrefix(line, p) {
			return true
		}
	}
	return false
}

// ColumnName returns the first backtick-quoted identifier in line.
func ColumnName(line string) (string, bool) {
	start := strings.IndexByte(line, '`')
	if start < 0 {
		return "", false
	}
	rest := line[start+1:]
	end := strings.IndexByte(rest, '`')
	if end < 0 {
		return "", false
	}
	return rest[:end], true
}

// Column is one column definition line that appears on only one side of a
// comparison.
type Column struct {
	Name       string
	Definition string // trimmed line, e.g. "`email` varchar(255) NOT NULL"
}

// Changes is the column-level difference between two schemas.
type Changes struct {
	Added   []Column // in the order they appear in the new schema
	Removed []Column // in the order they appear in the old schema
}

// Empty reports whether the comparison produced no actionable statement.
func (c Changes) Empty() bool {
	return len(c.Added) == 0 && len(c.Removed) == 0
}

// Compare classifies every non-noise line present on only one side.
// Lines are matched by exact trimmed text, so a changed column type shows
// up as one removal plus one addition of the same name. Lines without a
// backtick-quoted identifier are skipped.
func Compare(oldSchema, newSchema string) Changes {
	oldLines := SplitLines(oldSchema)
	newLines := SplitLines(newSchema)
	return Changes{
		Added:   unmatched(newLines, oldLines),
		Removed: unmatched(oldLines, newLines),
	}
}

// unmatched returns the columns of from that have no exact match in against.
func unmatched(from, against Lines) []Column {
	var cols []Column
	for _, l := range from {
		if IsNoise(l) || against.Contains(l) {
			continue
		}
		name, ok := ColumnName(l)
		if !ok {
			continue
		}
		cols = append(cols, Column{Name: name, Definition: l})
	}
	return cols
}

// SQL renders the changes as paired up/down ALTER statements for table.
// Additions come first in both scripts, followed by removals.
func (c Changes) SQL(table string) (up, down string) {
	var u, d strings.Builder
	for _, col := range c.Added {
		fmt.Fprintf(&u, "ALTER TABLE `%s` ADD %s;\n", table, col.Definition)
		fmt.Fprintf(&d, "ALTER TABLE `%s` DROP COLUMN `%s`;\n", table, col.Name)
	}
	for _, col := range c.Removed {
		fmt.Fprintf(&u, "ALTER TABLE `%s` DROP COLUMN `%s`;\n", table, col.Name)
		fmt.Fprintf(&d, "ALTER TABLE `%s` ADD %s;\n", table, col.Definition)
	}
	return u.String(), d.String()
}

// Diff computes the up and down migration scripts that take oldSchema to
// newSchema. Both are empty when no column-level change was found, even if
// the inputs differ; callers treat that as "no actionable change".
func Diff(table, oldSchema, newSchema string) (up, down string) {
	return Compare(oldSchema, newSchema).SQL(table)
}
