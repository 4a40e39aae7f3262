// Package ingest reads the entity-annotated corpus export (CSV or JSON
// Lines) into store.Documents. Rows without an id or plain content are
// skipped as malformed and counted; they never abort a load.
package ingest

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	aerrors "github.com/Aman-CERP/archivist/internal/errors"
	"github.com/Aman-CERP/archivist/internal/store"
)

// Column names of the corpus export.
const (
	ColID             = "ID"
	ColDate           = "date"
	ColTitle          = "title"
	ColContent        = "cleaned_content_for_api"
	ColServiceContent = "cleaned_content_for_service"
	ColPersons        = "solar_persons"
	ColOrganizations  = "solar_organizations"
	ColConcepts       = "solar_concepts"
	ColEvents         = "solar_events"
	ColLocations      = "solar_locations"
	ColTotalEntities  = "total_entities"
)

// maxReportedErrors caps the skip reasons kept in a Report.
const maxReportedErrors = 20

// Report summarizes a load.
type Report struct {
	Rows       int     `json:"rows"`
	Accepted   int     `json:"accepted"`
	Skipped    int     `json:"skipped"`
	Duplicates int     `json:"duplicates"`
	Errors     []error `json:"-"`
}

func (r *Report) skip(err error) {
	r.Skipped++
	if len(r.Errors) < maxReportedErrors {
		r.Errors = append(r.Errors, err)
	}
	slog.LogAttrs(context.Background(), slog.LevelDebug, "document_skipped", aerrors.LogAttrs(err)...)
}

// Format selects the input encoding.
type Format string

const (
	FormatCSV   Format = "csv"
	FormatJSONL Format = "jsonl"
)

// DetectFormat picks the format from the file extension.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV, nil
	case ".jsonl", ".ndjson":
		return FormatJSONL, nil
	default:
		return "", aerrors.ValidationError(fmt.Sprintf("unsupported corpus format %q: use .csv or .jsonl", filepath.Ext(path)), nil)
	}
}

// ReadFile loads path according to its extension.
func ReadFile(ctx context.Context, path string) ([]*store.Document, *Report, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, aerrors.New(aerrors.ErrCodeFileNotFound, "corpus not found: "+path, err)
		}
		return nil, nil, fmt.Errorf("open corpus: %w", err)
	}
	defer func() { _ = f.Close() }()

	switch format {
	case FormatJSONL:
		return ReadJSONL(ctx, f)
	default:
		return ReadCSV(ctx, f)
	}
}

// ReadCSV loads a CSV export with a header row. Unknown columns are ignored;
// missing optional columns read as empty.
func ReadCSV(ctx context.Context, r io.Reader) ([]*store.Document, *Report, error) {
	cr := csv.NewReader(bufio.NewReader(r))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return []*store.Document{}, &Report{}, nil
		}
		return nil, nil, aerrors.ValidationError("read csv header", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		// Excel exports prefix the first header with a byte order mark.
		cols[strings.TrimPrefix(strings.TrimSpace(h), "\ufeff")] = i
	}
	if _, ok := cols[ColID]; !ok {
		return nil, nil, aerrors.ValidationError("csv header has no "+ColID+" column", nil)
	}

	b := newBuilder()
	for {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		b.report.Rows++
		if err != nil {
			b.report.skip(aerrors.MalformedDocument(fmt.Sprintf("row %d", b.report.Rows), err.Error()))
			continue
		}
		get := func(col string) string {
			if i, ok := cols[col]; ok && i < len(rec) {
				return rec[i]
			}
			return ""
		}
		b.add(record{
			ID:             get(ColID),
			Date:           get(ColDate),
			Title:          get(ColTitle),
			Content:        get(ColContent),
			ServiceContent: get(ColServiceContent),
			Persons:        get(ColPersons),
			Organizations:  get(ColOrganizations),
			Concepts:       get(ColConcepts),
			Events:         get(ColEvents),
			Locations:      get(ColLocations),
			TotalEntities:  flexString(get(ColTotalEntities)),
		})
	}
	return b.finish()
}

// ReadJSONL loads one JSON object per line using the CSV column names as keys.
// total_entities may be a number or a string.
func ReadJSONL(ctx context.Context, r io.Reader) ([]*store.Document, *Report, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	b := newBuilder()
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		b.report.Rows++
		var rec record
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			b.report.skip(aerrors.MalformedDocument(fmt.Sprintf("line %d", b.report.Rows), err.Error()))
			continue
		}
		b.add(rec)
	}
	if err := sc.Err(); err != nil {
		return nil, nil, aerrors.ValidationError("read jsonl", err)
	}
	return b.finish()
}

// record is one raw row.
type record struct {
	ID             string     `json:"ID"`
	Date           string     `json:"date"`
	Title          string     `json:"title"`
	Content        string     `json:"cleaned_content_for_api"`
	ServiceContent string     `json:"cleaned_content_for_service"`
	Persons        string     `json:"solar_persons"`
	Organizations  string     `json:"solar_organizations"`
	Concepts       string     `json:"solar_concepts"`
	Events         string     `json:"solar_events"`
	Locations      string     `json:"solar_locations"`
	TotalEntities  flexString `json:"total_entities"`
}

// flexString accepts a JSON string or number.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	if string(data) == "null" {
		*f = ""
		return nil
	}
	*f = flexString(data)
	return nil
}

type builder struct {
	docs   []*store.Document
	seen   map[string]int
	report *Report
}

func newBuilder() *builder {
	return &builder{seen: make(map[string]int), report: &Report{}}
}

// add converts rec. A later row with an id already seen replaces the
// earlier one, matching the store's upsert semantics.
func (b *builder) add(rec record) {
	d, err := rec.document()
	if err != nil {
		b.report.skip(err)
		return
	}
	if i, ok := b.seen[d.ID]; ok {
		b.docs[i] = d
		b.report.Duplicates++
		return
	}
	b.seen[d.ID] = len(b.docs)
	b.docs = append(b.docs, d)
	b.report.Accepted++
}

func (b *builder) finish() ([]*store.Document, *Report, error) {
	if b.docs == nil {
		b.docs = []*store.Document{}
	}
	return b.docs, b.report, nil
}

func (rec record) document() (*store.Document, error) {
	id := strings.TrimSpace(rec.ID)
	content := strings.TrimSpace(rec.Content)
	if id == "" {
		return nil, aerrors.MalformedDocument("", "missing "+ColID)
	}
	if content == "" {
		return nil, aerrors.MalformedDocument(id, "missing "+ColContent)
	}

	d := &store.Document{
		ID:             id,
		Date:           store.NormalizeDate(rec.Date),
		Title:          strings.TrimSpace(rec.Title),
		Content:        content,
		ServiceContent: strings.TrimSpace(rec.ServiceContent),
		Persons:        store.SplitEntities(rec.Persons),
		Organizations:  store.SplitEntities(rec.Organizations),
		Concepts:       store.SplitEntities(rec.Concepts),
		Events:         store.SplitEntities(rec.Events),
		Locations:      store.SplitEntities(rec.Locations),
	}
	// The total is always the sum of the lists; an exported value that
	// disagrees is only reported.
	d.TotalEntities = d.EntityCount()
	if n, err := strconv.Atoi(strings.TrimSpace(string(rec.TotalEntities))); err == nil && n != d.TotalEntities {
		slog.Debug("entity_total_mismatch", slog.String("doc_id", id), slog.Int("exported", n), slog.Int("counted", d.TotalEntities))
	}
	return d, nil
}
