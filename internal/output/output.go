// Package output provides consistent CLI output: status lines, aligned
// tables and JSON for machine consumers.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// Format selects how command results are written.
type Format string

const (
	// FormatText is human-readable output.
	FormatText Format = "text"
	// FormatJSON is indented JSON.
	FormatJSON Format = "json"
)

// ParseFormat accepts "text" or "json"; empty means text.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q: use text or json", s)
	}
}

// Writer provides formatted output for CLI commands.
// Errors from writing are ignored for status lines.
type Writer struct {
	out    io.Writer
	format Format
}

// New creates a text Writer.
func New(out io.Writer) *Writer {
	return &Writer{out: out, format: FormatText}
}

// NewWithFormat creates a Writer for format.
func NewWithFormat(out io.Writer, format Format) *Writer {
	if format == "" {
		format = FormatText
	}
	return &Writer{out: out, format: format}
}

// Format returns the writer's format.
func (w *Writer) Format() Format { return w.format }

// IsJSON reports whether results are written as JSON.
func (w *Writer) IsJSON() bool { return w.format == FormatJSON }

// Status prints a message with an icon. In JSON mode status lines are
// suppressed so that stdout stays parseable.
func (w *Writer) Status(icon, msg string) {
	if w.IsJSON() {
		return
	}
	if icon != "" {
		_, _ = fmt.Fprintf(w.out, "%s %s\n", icon, msg)
	} else {
		_, _ = fmt.Fprintf(w.out, "   %s\n", msg)
	}
}

// Statusf prints a formatted status message with an icon.
func (w *Writer) Statusf(icon, format string, args ...any) {
	w.Status(icon, fmt.Sprintf(format, args...))
}

// Success prints a success message.
func (w *Writer) Success(msg string) { w.Status("✅", msg) }

// Successf prints a formatted success message.
func (w *Writer) Successf(format string, args ...any) { w.Success(fmt.Sprintf(format, args...)) }

// Warning prints a warning message.
func (w *Writer) Warning(msg string) { w.Status("⚠️ ", msg) }

// Warningf prints a formatted warning message.
func (w *Writer) Warningf(format string, args ...any) { w.Warning(fmt.Sprintf(format, args...)) }

// Error prints an error message.
func (w *Writer) Error(msg string) { w.Status("❌", msg) }

// Errorf prints a formatted error message.
func (w *Writer) Errorf(format string, args ...any) { w.Error(fmt.Sprintf(format, args...)) }

// Newline prints an empty line in text mode.
func (w *Writer) Newline() {
	if !w.IsJSON() {
		_, _ = fmt.Fprintln(w.out)
	}
}

// JSON writes v as indented JSON regardless of format.
func (w *Writer) JSON(v any) error {
	enc := json.NewEncoder(w.out)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// Result writes v as JSON in JSON mode and text otherwise.
func (w *Writer) Result(v any, text string) error {
	if w.IsJSON() {
		return w.JSON(v)
	}
	if text == "" {
		return nil
	}
	_, err := fmt.Fprintln(w.out, strings.TrimRight(text, "\n"))
	return err
}

// Table writes rows as aligned columns under headers.
func (w *Writer) Table(headers []string, rows [][]string) error {
	tw := tabwriter.NewWriter(w.out, 0, 0, 2, ' ', 0)
	if len(headers) > 0 {
		_, _ = fmt.Fprintln(tw, strings.Join(headers, "\t"))
	}
	for _, row := range rows {
		_, _ = fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

// KeyValues writes label/value pairs as two aligned columns.
func (w *Writer) KeyValues(pairs [][2]string) error {
	tw := tabwriter.NewWriter(w.out, 0, 0, 2, ' ', 0)
	for _, p := range pairs {
		_, _ = fmt.Fprintf(tw, "%s:\t%s\n", p[0], p[1])
	}
	return tw.Flush()
}

// Truncate shortens s to max runes, marking the cut with "...".
func Truncate(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if max <= 3 || len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
