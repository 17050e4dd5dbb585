package frame

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const (
	// showTruncate is the cell width Show cuts long values to
	showTruncate = 20
	// displayMaxWidth caps Display column widths
	displayMaxWidth = 40
)

// Show prints the first n rows the way a data frame show does:
// right aligned cells truncated to 20 characters and "null" for nulls.
func (f *Frame) Show(w io.Writer, n int) {
	if n < 0 {
		n = 0
	}
	head := f.Head(n)

	cells := make([][]string, 0, len(head.Rows)+1)
	cells = append(cells, head.ColumnNames())
	for _, row := range head.Rows {
		line := make([]string, len(f.Columns))
		for i := range line {
			var v any
			if i < len(row) {
				v = row[i]
			}
			line[i] = truncateShow(formatValue(v, "null"))
		}
		cells = append(cells, line)
	}
	for i := range cells[0] {
		cells[0][i] = truncateShow(cells[0][i])
	}

	widths := make([]int, len(f.Columns))
	for i := range widths {
		widths[i] = 3
	}
	for _, line := range cells {
		for i, c := range line {
			if l := utf8.RuneCountInString(c); l > widths[i] {
				widths[i] = l
			}
		}
	}

	sep := border(widths, "-")
	fmt.Fprintln(w, sep)
	writeLine(w, cells[0], widths, padLeft)
	fmt.Fprintln(w, sep)
	for _, line := range cells[1:] {
		writeLine(w, line, widths, padLeft)
	}
	fmt.Fprintln(w, sep)

	if len(f.Rows) > n {
		noun := "rows"
		if n == 1 {
			noun = "row"
		}
		fmt.Fprintf(w, "only showing top %d %s\n", n, noun)
	}
}

// Display prints every row as a bordered table with a header separator
func (f *Frame) Display(w io.Writer) {
	if len(f.Columns) == 0 {
		fmt.Fprintln(w, "(no columns)")
		return
	}

	widths := make([]int, len(f.Columns))
	for i, col := range f.Columns {
		widths[i] = utf8.RuneCountInString(col.Name)
	}
	for _, row := range f.Rows {
		for i := range f.Columns {
			var v any
			if i < len(row) {
				v = row[i]
			}
			if l := utf8.RuneCountInString(formatValue(v, "NULL")); l > widths[i] {
				widths[i] = min(l, displayMaxWidth)
			}
		}
	}

	fmt.Fprintln(w, border(widths, "-"))
	writeLine(w, f.ColumnNames(), widths, padRight)
	fmt.Fprintln(w, border(widths, "="))
	for _, row := range f.Rows {
		line := make([]string, len(f.Columns))
		for i := range line {
			var v any
			if i < len(row) {
				v = row[i]
			}
			line[i] = formatValue(v, "NULL")
		}
		writeLine(w, line, widths, padRight)
	}
	fmt.Fprintln(w, border(widths, "-"))
	fmt.Fprintf(w, "(%d rows)\n", len(f.Rows))
}

func border(widths []int, ch string) string {
	var b strings.Builder
	b.WriteString("+")
	for _, width := range widths {
		b.WriteString(strings.Repeat(ch, width))
		b.WriteString("+")
	}
	return b.String()
}

func writeLine(w io.Writer, cells []string, widths []int, pad func(string, int) string) {
	var b strings.Builder
	b.WriteString("|")
	for i, c := range cells {
		b.WriteString(pad(truncate(c, widths[i]), widths[i]))
		b.WriteString("|")
	}
	fmt.Fprintln(w, b.String())
}

func formatValue(v any, null string) string {
	switch t := v.(type) {
	case nil:
		return null
	case string:
		return t
	case []byte:
		return string(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case decimal.Decimal:
		return t.String()
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

func truncateShow(s string) string {
	if utf8.RuneCountInString(s) <= showTruncate {
		return s
	}
	runes := []rune(s)
	return string(runes[:showTruncate-3]) + "..."
}

func truncate(s string, w int) string {
	runes := []rune(s)
	if len(runes) <= w {
		return s
	}
	if w <= 3 {
		return string(runes[:w])
	}
	return string(runes[:w-3]) + "..."
}

func padLeft(s string, w int) string {
	if l := utf8.RuneCountInString(s); l < w {
		return strings.Repeat(" ", w-l) + s
	}
	return s
}

func padRight(s string, w int) string {
	if l := utf8.RuneCountInString(s); l < w {
		return s + strings.Repeat(" ", w-l)
	}
	return s
}
