package report

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"sync/atomic"

	"github.com/deepak-highbeam/schemadrift/internal/ipc"
)

// ANSI escape codes for terminal formatting.
const (
	bold   = "\033[1m"
	red    = "\033[31m"
	green  = "\033[32m"
	yellow = "\033[33m"
	reset  = "\033[0m"
)

var (
	plain   atomic.Bool
	ansiSeq = regexp.MustCompile(`\x1b\[[0-9;]*m`)
)

// SetColor turns ANSI colors in formatted output on or off. Colors are on
// by default; the CLI turns them off when stdout is not a terminal.
func SetColor(on bool) {
	plain.Store(!on)
}

// finish strips escape codes when colors are off.
func finish(s string) string {
	if plain.Load() {
		return ansiSeq.ReplaceAllString(s, "")
	}
	return s
}

// FormatStatus formats daemon StatusData as a terminal-friendly table.
func FormatStatus(status *ipc.StatusData) string {
	var b strings.Builder

	b.WriteString(bold + "schemadrift - Daemon Status" + reset + "\n")
	b.WriteString(strings.Repeat("=", 40) + "\n\n")

	b.WriteString(fmt.Sprintf("%-20s %s\n", "Uptime:", status.Uptime))
	if status.RunID != "" {
		b.WriteString(fmt.Sprintf("%-20s %s\n", "Run:", status.RunID))
	}
	b.WriteString(fmt.Sprintf("%-20s %s\n", "Branch:", status.Branch))
	if status.Commit != "" {
		b.WriteString(fmt.Sprintf("%-20s %s\n", "Commit:", shortHash(status.Commit)))
	}
	b.WriteString(fmt.Sprintf("%-20s %s\n", "Main Branch:", status.MainBranch))

	baseline := yellow + "bootstrapping" + reset
	if status.Bootstrapped {
		baseline = green + "initialized" + reset
	}
	b.WriteString(fmt.Sprintf("%-20s %s\n", "Main Baseline:", baseline))
	b.WriteString(fmt.Sprintf("%-20s %d\n", "Tables Tracked:", status.TablesTracked))
	b.WriteString(fmt.Sprintf("%-20s %d\n", "Migrations:", status.MigrationsCount))
	b.WriteString(fmt.Sprintf("%-20s %d\n", "Git Events:", status.VCSEventsCount))
	b.WriteString(fmt.Sprintf("%-20s %s\n", "DB Size:", humanBytes(status.DBSizeBytes)))

	return finish(b.String())
}

// FormatHistory formats a History as a terminal-friendly report.
func FormatHistory(h *History) string {
	var b strings.Builder

	b.WriteString(bold + "schemadrift - Migration History" + reset + "\n")
	b.WriteString(strings.Repeat("=", 40) + "\n\n")

	if h.Branch != "" {
		b.WriteString(fmt.Sprintf("Branch: %s\n", h.Branch))
	}
	b.WriteString(fmt.Sprintf("Total migrations: %d\n", h.Total))
	if h.Total == 0 {
		return finish(b.String())
	}
	b.WriteString("\n")

	b.WriteString(bold + "By Reason" + reset + "\n")
	b.WriteString(strings.Repeat("-", 35) + "\n")
	for _, reason := range []string{"new_table", "schema_changed", "branch_delta"} {
		if n := h.ByReason[reason]; n > 0 {
			b.WriteString(fmt.Sprintf("%s%-20s%s %6d\n", colorForReason(reason), reason, reset, n))
		}
	}
	b.WriteString("\n")

	if h.Branch == "" && len(h.Branches) > 0 {
		b.WriteString(bold + "By Branch" + reset + "\n")
		b.WriteString(strings.Repeat("-", 35) + "\n")
		for _, bs := range h.Branches {
			b.WriteString(fmt.Sprintf("%-28s %6d\n", truncate(bs.Branch, 28), bs.Count))
		}
		b.WriteString("\n")
	}

	b.WriteString(bold + "Recent Migrations" + reset + "\n")
	b.WriteString(strings.Repeat("-", 80) + "\n")
	b.WriteString(fmt.Sprintf("%-19s %-20s %-20s %-15s %s\n", "Time", "Branch", "Table", "Reason", "File"))
	b.WriteString(strings.Repeat("-", 80) + "\n")
	for _, r := range h.Records {
		b.WriteString(fmt.Sprintf("%-19s %-20s %-20s %s%-15s%s %s\n",
			r.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			truncate(r.Branch, 20),
			truncate(r.Table, 20),
			colorForReason(r.Reason), r.Reason, reset,
			filepath.Base(r.UpPath)))
	}
	if len(h.Records) < h.Total {
		b.WriteString(fmt.Sprintf("... and %d more migrations\n", h.Total-len(h.Records)))
	}

	return finish(b.String())
}

// FormatDiff renders the up and down scripts produced for table.
func FormatDiff(table, up, down string) string {
	if up == "" && down == "" {
		return fmt.Sprintf("-- %s: no column changes\n", table)
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("-- %s: up\n", table))
	b.WriteString(up)
	b.WriteString(fmt.Sprintf("\n-- %s: down\n", table))
	b.WriteString(down)
	return b.String()
}

// FormatJSON marshals any value as indented JSON.
func FormatJSON(v interface{}) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf(`{"error": %q}`, err.Error())
	}
	return string(data)
}

// colorForReason returns an ANSI color code for a migration reason.
func colorForReason(reason string) string {
	switch reason {
	case "new_table":
		return green
	case "branch_delta":
		return yellow
	default:
		return red
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-(n-3):]
}

func shortHash(h string) string {
	if len(h) > 7 {
		return h[:7]
	}
	return h
}

// humanBytes formats bytes as a human-readable string (KB, MB, GB).
func humanBytes(b int64) string {
	const (
		kb = 1024
		mb = 1024 * kb
		gb = 1024 * mb
	)

	switch {
	case b >= gb:
		return fmt.Sprintf("%.1f GB", float64(b)/float64(gb))
	case b >= mb:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(mb))
	case b >= kb:
		return fmt.Sprintf("%.1f KB", float64(b)/float64(kb))
	default:
		return fmt.Sprintf("%d B", b)
	}
}
