// Package store is the persistence and retrieval layer of archivist: the
// Korean-aware tokenizer, the arena-layout BM25 lexical index, the SQLite
// document/entity store with its temporal analytics, and a local HNSW graph
// that can back the vector adapter.
package store

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the day-precision date format used everywhere in the corpus.
const DateLayout = "2006-01-02"

// DateRange is an inclusive range of YYYY-MM-DD dates.
// An empty bound is open. Dates compare lexicographically.
type DateRange struct {
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}

// IsZero reports whether neither bound is set.
func (r DateRange) IsZero() bool {
	return r.Start == "" && r.End == ""
}

// Valid reports whether the range can match anything. A range whose start
// is after its end is invalid and yields empty results, never an error.
func (r DateRange) Valid() bool {
	return r.Start == "" || r.End == "" || r.Start <= r.End
}

// Contains reports whether date lies inside the range, comparing as strings.
// An empty date sorts before every bound: it fails any start bound and
// passes an end-only range.
func (r DateRange) Contains(date string) bool {
	if r.Start != "" && date < r.Start {
		return false
	}
	if r.End != "" && date > r.End {
		return false
	}
	return true
}

// ParseDateRange validates both bounds as YYYY-MM-DD.
func ParseDateRange(start, end string) (DateRange, error) {
	for _, d := range []string{start, end} {
		if d == "" {
			continue
		}
		if _, err := time.Parse(DateLayout, d); err != nil {
			return DateRange{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", d)
		}
	}
	return DateRange{Start: start, End: end}, nil
}

// NormalizeDate keeps the first 10 characters of a timestamp-like value.
func NormalizeDate(raw string) string {
	raw = strings.TrimSpace(raw)
	if len(raw) > 10 {
		return raw[:10]
	}
	return raw
}

// EntityType is the kind of a named entity attached to a document.
type EntityType string

const (
	EntityPerson       EntityType = "person"
	EntityOrganization EntityType = "organization"
	EntityConcept      EntityType = "concept"
	EntityEvent        EntityType = "event"
	EntityLocation     EntityType = "location"
)

// EntityTypes lists every entity type in storage order.
var EntityTypes = []EntityType{EntityPerson, EntityOrganization, EntityConcept, EntityEvent, EntityLocation}

// ParseEntityType accepts an entity type name; empty means any type.
func ParseEntityType(s string) (EntityType, error) {
	if s == "" {
		return "", nil
	}
	for _, t := range EntityTypes {
		if strings.EqualFold(s, string(t)) {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown entity type %q", s)
}

// Document is one corpus item with its extracted entities.
type Document struct {
	ID             string   `json:"doc_id"`
	Date           string   `json:"date"`
	Title          string   `json:"title"`
	Content        string   `json:"content"`
	ServiceContent string   `json:"content_for_service,omitempty"`
	Persons        []string `json:"persons,omitempty"`
	Organizations  []string `json:"organizations,omitempty"`
	Concepts       []string `json:"concepts,omitempty"`
	Events         []string `json:"events,omitempty"`
	Locations      []string `json:"locations,omitempty"`
	TotalEntities  int      `json:"total_entities"`
}

// EntityCount returns the number of entities across all lists.
func (d *Document) EntityCount() int {
	return len(d.Persons) + len(d.Organizations) + len(d.Concepts) + len(d.Events) + len(d.Locations)
}

// Entities returns the document's entity lists keyed by type.
func (d *Document) Entities() map[EntityType][]string {
	return map[EntityType][]string{
		EntityPerson:       d.Persons,
		EntityOrganization: d.Organizations,
		EntityConcept:      d.Concepts,
		EntityEvent:        d.Events,
		EntityLocation:     d.Locations,
	}
}

// Links expands the document into one EntityLink per entity mention.
func (d *Document) Links() []EntityLink {
	links := make([]EntityLink, 0, d.EntityCount())
	for _, typ := range EntityTypes {
		for _, name := range d.Entities()[typ] {
			links = append(links, EntityLink{Name: name, Type: typ, DocID: d.ID, Date: d.Date})
		}
	}
	return links
}

// IndexText is the text the lexical index scores: title, content, persons
// and organizations.
func (d *Document) IndexText() string {
	parts := []string{d.Title, d.Content}
	if len(d.Persons) > 0 {
		parts = append(parts, strings.Join(d.Persons, " "))
	}
	if len(d.Organizations) > 0 {
		parts = append(parts, strings.Join(d.Organizations, " "))
	}
	return strings.Join(parts, " ")
}

// EmbeddingText is the text embedded for semantic search.
func (d *Document) EmbeddingText() string {
	parts := []string{d.Title, d.Content}
	if len(d.Persons) > 0 {
		parts = append(parts, strings.Join(d.Persons, ", "))
	}
	if len(d.Concepts) > 0 {
		parts = append(parts, strings.Join(d.Concepts, ", "))
	}
	return strings.Join(parts, "\n")
}

// Meta returns the subset of the document kept inside the lexical index.
func (d *Document) Meta() DocMeta {
	return DocMeta{
		ID:            d.ID,
		Date:          d.Date,
		Title:         d.Title,
		Content:       d.Content,
		Persons:       d.Persons,
		Organizations: d.Organizations,
		Concepts:      d.Concepts,
	}
}

// SplitEntities splits a semicolon-joined entity field, trimming blanks.
func SplitEntities(field string) []string {
	if strings.TrimSpace(field) == "" {
		return nil
	}
	var out []string
	for _, name := range strings.Split(field, ";") {
		if name = strings.TrimSpace(name); name != "" {
			out = append(out, name)
		}
	}
	return out
}

// JoinEntities is the inverse of SplitEntities.
func JoinEntities(names []string) string {
	return strings.Join(names, ";")
}

// EntityLink is one (entity, document) mention.
type EntityLink struct {
	Name  string     `json:"name"`
	Type  EntityType `json:"type"`
	DocID string     `json:"doc_id"`
	Date  string     `json:"date"`
}

// Granularity selects the time bucket used by timeline and trend queries.
type Granularity string

const (
	GranularityDay   Granularity = "day"
	GranularityWeek  Granularity = "week"
	GranularityMonth Granularity = "month"
)

// ParseGranularity accepts day, week or month. Empty falls back to def.
func ParseGranularity(s string, def Granularity) (Granularity, error) {
	switch Granularity(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return def, nil
	case GranularityDay:
		return GranularityDay, nil
	case GranularityWeek:
		return GranularityWeek, nil
	case GranularityMonth:
		return GranularityMonth, nil
	default:
		return "", fmt.Errorf("unknown granularity %q: use day, week or month", s)
	}
}

// Period returns the bucket label of date at granularity g. Weeks are
// month-relative: day 1-7 is W1, 8-14 W2, 15-21 W3, 22-28 W4, 29-31 W5.
func (g Granularity) Period(date string) string {
	switch g {
	case GranularityMonth:
		if len(date) >= 7 {
			return date[:7]
		}
	case GranularityWeek:
		if len(date) >= 10 {
			day := int(date[8]-'0')*10 + int(date[9]-'0')
			return fmt.Sprintf("%s-W%d", date[:7], (day-1)/7+1)
		}
	}
	return date
}

// TimelineBucket is one period of an entity timeline.
type TimelineBucket struct {
	Period   string   `json:"period"`
	DocCount int      `json:"doc_count"`
	Titles   []string `json:"titles"`
}

// PeriodCount is one period of a trend timeline.
type PeriodCount struct {
	Period string `json:"period"`
	Count  int    `json:"count"`
}

// EntityCount is a co-occurring entity with its mention count.
type EntityCount struct {
	Name  string     `json:"name"`
	Type  EntityType `json:"type"`
	Count int        `json:"count"`
}

// DocSnippet is a short representative document.
type DocSnippet struct {
	DocID   string `json:"doc_id"`
	Date    string `json:"date"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// TrendReport summarizes how often a keyword appears over time.
type TrendReport struct {
	Keyword            string        `json:"keyword"`
	Granularity        Granularity   `json:"granularity"`
	Timeline           []PeriodCount `json:"timeline"`
	CoEntities         []EntityCount `json:"co_entities"`
	RepresentativeDocs []DocSnippet  `json:"representative_docs"`
	TotalCount         int           `json:"total_count"`
}

// DocumentSummary is a document row returned by entity and source lookups.
type DocumentSummary struct {
	DocID         string   `json:"doc_id"`
	Date          string   `json:"date"`
	Title         string   `json:"title"`
	Content       string   `json:"content"`
	Persons       []string `json:"persons,omitempty"`
	Organizations []string `json:"organizations,omitempty"`
	Concepts      []string `json:"concepts,omitempty"`
}

// DailySummary describes one day of the corpus.
type DailySummary struct {
	Date          string   `json:"date"`
	DocCount      int      `json:"doc_count"`
	Titles        []string `json:"titles"`
	Persons       []string `json:"persons"`
	Organizations []string `json:"organizations"`
	Concepts      []string `json:"concepts"`
}

// StoreStats reports entity store totals.
type StoreStats struct {
	Documents      int    `json:"documents"`
	EntityLinks    int    `json:"entity_links"`
	UniqueEntities int    `json:"unique_entities"`
	UniqueDates    int    `json:"unique_dates"`
	FirstDate      string `json:"first_date,omitempty"`
	LastDate       string `json:"last_date,omitempty"`
}

// ErrDimensionMismatch is returned when a vector has the wrong length.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}
