package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// StatusInfo describes the on-disk indexes for `archivist stats`.
type StatusInfo struct {
	DataDir string `json:"data_dir"`

	// Lexical index
	Snapshot     string    `json:"snapshot,omitempty"`
	BuiltAt      time.Time `json:"built_at,omitempty"`
	Documents    int       `json:"documents"`
	Terms        int       `json:"terms"`
	Postings     int       `json:"postings"`
	AvgDocLength float64   `json:"avg_doc_length"`

	// Entity store
	StoredDocuments int    `json:"stored_documents"`
	EntityLinks     int    `json:"entity_links"`
	UniqueEntities  int    `json:"unique_entities"`
	FirstDate       string `json:"first_date,omitempty"`
	LastDate        string `json:"last_date,omitempty"`

	// Vectors
	Vectors       int    `json:"vectors"`
	EmbedderModel string `json:"embedder_model,omitempty"`

	// Sizes in bytes
	LexicalSize int64 `json:"lexical_size"`
	EntitySize  int64 `json:"entity_size"`
	VectorSize  int64 `json:"vector_size"`
}

// TotalSize is the sum of all index files.
func (s StatusInfo) TotalSize() int64 {
	return s.LexicalSize + s.EntitySize + s.VectorSize
}

// StatusRenderer displays StatusInfo.
type StatusRenderer struct {
	out    io.Writer
	styles Styles
}

// NewStatusRenderer creates a status renderer.
func NewStatusRenderer(out io.Writer, noColor bool) *StatusRenderer {
	return &StatusRenderer{out: out, styles: GetStyles(noColor)}
}

// Render writes a human-readable report.
func (r *StatusRenderer) Render(info StatusInfo) error {
	w := r.out
	_, _ = fmt.Fprintf(w, "%s\n\n", r.styles.Header.Render("Archive: "+info.DataDir))

	_, _ = fmt.Fprintln(w, "  Lexical index:")
	if info.Snapshot == "" {
		_, _ = fmt.Fprintf(w, "    %s\n", r.styles.Warning.Render("not built"))
	} else {
		_, _ = fmt.Fprintf(w, "    Snapshot:  %s\n", info.Snapshot)
		if !info.BuiltAt.IsZero() {
			_, _ = fmt.Fprintf(w, "    Built:     %s\n", formatTime(info.BuiltAt))
		}
		_, _ = fmt.Fprintf(w, "    Documents: %d\n", info.Documents)
		_, _ = fmt.Fprintf(w, "    Terms:     %d (%d postings, avg length %.1f)\n", info.Terms, info.Postings, info.AvgDocLength)
	}
	_, _ = fmt.Fprintln(w)

	_, _ = fmt.Fprintln(w, "  Entity store:")
	_, _ = fmt.Fprintf(w, "    Documents: %d\n", info.StoredDocuments)
	_, _ = fmt.Fprintf(w, "    Entities:  %d unique, %d links\n", info.UniqueEntities, info.EntityLinks)
	if info.FirstDate != "" {
		_, _ = fmt.Fprintf(w, "    Dates:     %s .. %s\n", info.FirstDate, info.LastDate)
	}
	_, _ = fmt.Fprintln(w)

	_, _ = fmt.Fprintln(w, "  Vectors:")
	if info.Vectors == 0 {
		_, _ = fmt.Fprintf(w, "    %s\n", r.styles.Dim.Render("none (lexical only)"))
	} else {
		_, _ = fmt.Fprintf(w, "    Count: %d\n", info.Vectors)
		if info.EmbedderModel != "" {
			_, _ = fmt.Fprintf(w, "    Model: %s\n", info.EmbedderModel)
		}
	}
	_, _ = fmt.Fprintln(w)

	_, _ = fmt.Fprintln(w, "  Storage:")
	_, _ = fmt.Fprintf(w, "    Lexical:  %s\n", FormatBytes(info.LexicalSize))
	_, _ = fmt.Fprintf(w, "    Entities: %s\n", FormatBytes(info.EntitySize))
	_, _ = fmt.Fprintf(w, "    Vectors:  %s\n", FormatBytes(info.VectorSize))
	_, _ = fmt.Fprintf(w, "    Total:    %s\n", FormatBytes(info.TotalSize()))
	return nil
}

// RenderJSON writes info as indented JSON.
func (r *StatusRenderer) RenderJSON(info StatusInfo) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(info)
}

func formatTime(t time.Time) string {
	diff := time.Since(t)
	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return plural(int(diff.Minutes()), "minute") + " ago"
	case diff < 24*time.Hour:
		return plural(int(diff.Hours()), "hour") + " ago"
	case diff < 7*24*time.Hour:
		return plural(int(diff.Hours()/24), "day") + " ago"
	default:
		return t.Format("2006-01-02 15:04")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// FormatBytes formats a byte count for humans.
func FormatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
	)
	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
