package migration

import (
	"fmt"
	"os"
	"strings"
	"time"
)

const historySeparator = "----------------------------------------"

// HistoryEntry formats one human-readable change log entry.
func HistoryEntry(at time.Time, hadPrevious bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] Schema changed\n", at.Format(time.ANSIC))
	if hadPrevious {
		b.WriteString("Previous schema was different. Generated ALTER statements.\n")
	} else {
		b.WriteString("Initial schema saved.\n")
	}
	b.WriteString(historySeparator)
	b.WriteString("\n")
	return b.String()
}

// AppendHistory appends an entry to the history file at path.
func AppendHistory(path string, at time.Time, hadPrevious bool) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open history %s: %w", path, err)
	}
	if _, err := f.WriteString(HistoryEntry(at, hadPrevious)); err != nil {
		_ = f.Close()
		return fmt.Errorf("append history: %w", err)
	}
	return f.Close()
}
