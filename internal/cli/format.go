package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"github.com/danieljhkim/ledgerfs/internal/engine"
)

var (
	// fatih/color disables these when stdout is not a TTY
	successColor = color.New(color.FgGreen, color.Bold)
	warningColor = color.New(color.FgYellow, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	infoColor    = color.New(color.FgCyan)
	headerColor  = color.New(color.FgBlue, color.Bold)
	labelColor   = color.New(color.FgWhite, color.Bold)
	valueColor   = color.New(color.FgHiBlack)
	dimColor     = color.New(color.FgHiBlack)
)

// PrintSection prints a section header
func PrintSection(title string) {
	fmt.Println()
	_, _ = headerColor.Printf("▸ %s\n", title)
	fmt.Println()
}

// PrintSuccess prints a success message with a checkmark
func PrintSuccess(msg string) {
	_, _ = successColor.Printf("✓ %s\n", msg)
}

// PrintWarning prints a warning message with a warning symbol
func PrintWarning(msg string) {
	_, _ = warningColor.Printf("⚠ %s\n", msg)
}

// errOutput is where PrintError writes
var errOutput io.Writer = os.Stderr

// PrintError prints an error to stderr
func PrintError(err error) {
	_, _ = fmt.Fprintln(errOutput, formatError(err))
}

// PrintInfo prints an informational message
func PrintInfo(msg string) {
	fmt.Println(msg)
}

// PrintLabelValue prints a label-value pair with proper formatting
func PrintLabelValue(label, value string) {
	_, _ = labelColor.Printf("  %s: ", label)
	_, _ = valueColor.Println(value)
}

// PrintList prints a list of items with bullet points
func PrintList(items []string, indent int) {
	indentStr := strings.Repeat("  ", indent)
	for _, item := range items {
		_, _ = infoColor.Printf("%s• %s\n", indentStr, item)
	}
}

// PrintTable prints a simple table
func PrintTable(headers []string, rows [][]string) {
	if len(headers) == 0 || len(rows) == 0 {
		return
	}

	colWidths := make([]int, len(headers))
	for i, header := range headers {
		colWidths[i] = len(header)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(colWidths) && len(cell) > colWidths[i] {
				colWidths[i] = len(cell)
			}
		}
	}

	_, _ = headerColor.Print("  ")
	for i, header := range headers {
		if i > 0 {
			fmt.Print("  ")
		}
		_, _ = headerColor.Printf("%-*s", colWidths[i], header)
	}
	fmt.Println()

	fmt.Print("  ")
	for i, width := range colWidths {
		if i > 0 {
			fmt.Print("  ")
		}
		fmt.Print(strings.Repeat("-", width))
	}
	fmt.Println()

	for _, row := range rows {
		fmt.Print("  ")
		for i, cell := range row {
			if i >= len(colWidths) {
				break
			}
			if i > 0 {
				fmt.Print("  ")
			}
			_, _ = valueColor.Printf("%-*s", colWidths[i], cell)
		}
		fmt.Println()
	}
}

// PrintEmptyState prints a message when there's no data to show
func PrintEmptyState(msg string) {
	_, _ = dimColor.Printf("  %s\n", msg)
}

// PrintCount prints a count with proper formatting
func PrintCount(count int, singular, plural string) string {
	if count == 1 {
		return fmt.Sprintf("%d %s", count, singular)
	}
	return fmt.Sprintf("%d %s", count, plural)
}

// formatSize renders a byte count, e.g. "1.2 kB".
func formatSize(n int) string {
	return humanize.Bytes(uint64(n))
}

// formatAge renders a time relative to now, e.g. "3 minutes ago".
func formatAge(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return humanize.Time(t)
}

// printSaveResult summarizes what a save changed on disk.
func printSaveResult(res *engine.SaveResult) {
	if res == nil {
		return
	}
	if !res.Changed() {
		PrintEmptyState("Nothing to save.")
		return
	}
	if len(res.Written) > 0 {
		PrintSuccess(fmt.Sprintf("Wrote %s", PrintCount(len(res.Written), "record", "records")))
		PrintList(res.Written, 1)
	}
	if len(res.Deleted) > 0 {
		PrintSuccess(fmt.Sprintf("Deleted %s", PrintCount(len(res.Deleted), "record", "records")))
		PrintList(res.Deleted, 1)
	}
	if len(res.Backups) > 0 {
		PrintLabelValue("Backups", PrintCount(len(res.Backups), "file", "files"))
	}
	for _, set := range res.Pruned {
		PrintLabelValue("Pruned", fmt.Sprintf("backup set %s (%s)", set.DateKey, PrintCount(len(set.Entries), "file", "files")))
	}
	for _, w := range res.Warnings {
		PrintWarning(w)
	}
}
