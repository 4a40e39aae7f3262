package store

import (
	"context"
	"database/sql"
	"strings"

	aerrors "github.com/Aman-CERP/archivist/internal/errors"
)

const (
	defaultTimelineLimit = 50
	defaultListLimit     = 20
	maxTimelineTitles    = 5
	maxCoEntities        = 20
	maxRepresentative    = 10
	snippetRunes         = 200

	// titleSep joins titles inside GROUP_CONCAT; titles never contain it.
	titleSep = "\x1f"
)

// TimelineQuery selects the documents mentioning an entity.
type TimelineQuery struct {
	Entity      string
	Dates       DateRange
	Granularity Granularity
	// Limit caps the number of buckets. Zero means 50.
	Limit int
}

// TrendQuery selects the documents mentioning a keyword.
type TrendQuery struct {
	Keyword     string
	Dates       DateRange
	Granularity Granularity
}

// EntityQuery looks up documents by entity name and optional type.
type EntityQuery struct {
	Name  string
	Type  EntityType
	Dates DateRange
	Limit int
}

// SourceQuery looks up documents attributed to a media organization.
type SourceQuery struct {
	Media string
	Topic string
	Dates DateRange
	Limit int
}

// periodExpr renders the SQL bucket expression for a YYYY-MM-DD column.
func periodExpr(col string, g Granularity) string {
	switch g {
	case GranularityMonth:
		return "SUBSTR(" + col + ", 1, 7)"
	case GranularityWeek:
		return "SUBSTR(" + col + ", 1, 7) || '-W' || CAST((CAST(SUBSTR(" + col + ", 9, 2) AS INTEGER) - 1) / 7 + 1 AS TEXT)"
	default:
		return col
	}
}

// likePattern builds a substring pattern for LIKE ... ESCAPE '\'.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}

// dateClause appends inclusive bounds on col.
func dateClause(q *strings.Builder, args []any, col string, dates DateRange) []any {
	if dates.Start != "" {
		q.WriteString(" AND " + col + " >= ?")
		args = append(args, dates.Start)
	}
	if dates.End != "" {
		q.WriteString(" AND " + col + " <= ?")
		args = append(args, dates.End)
	}
	return args
}

// EntityTimeline counts the distinct documents mentioning q.Entity per
// period, ascending, with up to five titles per bucket. A blank entity or
// an invalid date range yields no buckets.
func (s *EntityStore) EntityTimeline(ctx context.Context, q TimelineQuery) ([]TimelineBucket, error) {
	q.Entity = strings.TrimSpace(q.Entity)
	if q.Entity == "" || !q.Dates.Valid() {
		return []TimelineBucket{}, nil
	}
	if q.Granularity == "" {
		q.Granularity = GranularityDay
	}
	if q.Limit <= 0 {
		q.Limit = defaultTimelineLimit
	}

	var inner strings.Builder
	inner.WriteString(`
		SELECT DISTINCT e.doc_id, e.date AS doc_date, d.title
		FROM entities e
		JOIN documents d ON e.doc_id = d.doc_id
		WHERE e.entity_name LIKE ? ESCAPE '\'`)
	args := []any{likePattern(q.Entity)}
	args = dateClause(&inner, args, "e.date", q.Dates)

	query := `
		SELECT period, COUNT(*), GROUP_CONCAT(title, '` + titleSep + `')
		FROM (
			SELECT ` + periodExpr("r.doc_date", q.Granularity) + ` AS period, r.title AS title
			FROM (` + inner.String() + `) r
			ORDER BY r.doc_date, r.doc_id
		)
		GROUP BY period
		ORDER BY period ASC
		LIMIT ?`
	args = append(args, q.Limit)

	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, aerrors.StorageError("query entity timeline", err)
	}
	defer rows.Close()

	buckets := []TimelineBucket{}
	for rows.Next() {
		var (
			b      TimelineBucket
			titles sql.NullString
		)
		if err := rows.Scan(&b.Period, &b.DocCount, &titles); err != nil {
			return nil, aerrors.StorageError("scan timeline bucket", err)
		}
		b.Titles = []string{}
		if titles.Valid {
			parts := strings.Split(titles.String, titleSep)
			if len(parts) > maxTimelineTitles {
				parts = parts[:maxTimelineTitles]
			}
			b.Titles = parts
		}
		buckets = append(buckets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, aerrors.StorageError("iterate timeline", err)
	}
	return buckets, nil
}

// keywordClause matches a keyword against content, title, concepts and events.
const keywordClause = `(d.content LIKE ? ESCAPE '\' OR d.title LIKE ? ESCAPE '\'
	OR d.concepts LIKE ? ESCAPE '\' OR d.events LIKE ? ESCAPE '\')`

// Trend reports per-period counts of documents matching q.Keyword, the top
// co-occurring entities (excluding names containing the keyword) and the ten
// newest matching documents. TotalCount is the sum of the period counts.
func (s *EntityStore) Trend(ctx context.Context, q TrendQuery) (*TrendReport, error) {
	q.Keyword = strings.TrimSpace(q.Keyword)
	if q.Granularity == "" {
		q.Granularity = GranularityMonth
	}
	report := &TrendReport{
		Keyword:            q.Keyword,
		Granularity:        q.Granularity,
		Timeline:           []PeriodCount{},
		CoEntities:         []EntityCount{},
		RepresentativeDocs: []DocSnippet{},
	}
	if q.Keyword == "" || !q.Dates.Valid() {
		return report, nil
	}

	pattern := likePattern(q.Keyword)
	matchArgs := []any{pattern, pattern, pattern, pattern}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	// Per-day counts, folded into periods in date order.
	var tq strings.Builder
	tq.WriteString(`SELECT d.date, COUNT(*) FROM documents d WHERE ` + keywordClause)
	args := dateClause(&tq, append([]any{}, matchArgs...), "d.date", q.Dates)
	tq.WriteString(` GROUP BY d.date ORDER BY d.date ASC`)

	rows, err := s.db.QueryContext(ctx, tq.String(), args...)
	if err != nil {
		return nil, aerrors.StorageError("query trend timeline", err)
	}
	for rows.Next() {
		var (
			day   string
			count int
		)
		if err := rows.Scan(&day, &count); err != nil {
			rows.Close()
			return nil, aerrors.StorageError("scan trend period", err)
		}
		period := q.Granularity.Period(day)
		if n := len(report.Timeline); n > 0 && report.Timeline[n-1].Period == period {
			report.Timeline[n-1].Count += count
		} else {
			report.Timeline = append(report.Timeline, PeriodCount{Period: period, Count: count})
		}
		report.TotalCount += count
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, aerrors.StorageError("iterate trend timeline", err)
	}

	// Co-occurring entities.
	var cq strings.Builder
	cq.WriteString(`SELECT e.entity_name, e.entity_type, COUNT(*) AS co_count
		FROM entities e
		JOIN documents d ON e.doc_id = d.doc_id
		WHERE ` + keywordClause + ` AND e.entity_name NOT LIKE ? ESCAPE '\'`)
	args = dateClause(&cq, append(append([]any{}, matchArgs...), pattern), "d.date", q.Dates)
	cq.WriteString(` GROUP BY e.entity_name, e.entity_type ORDER BY co_count DESC, e.entity_name ASC LIMIT ?`)
	args = append(args, maxCoEntities)

	rows, err = s.db.QueryContext(ctx, cq.String(), args...)
	if err != nil {
		return nil, aerrors.StorageError("query co-entities", err)
	}
	for rows.Next() {
		var (
			ec  EntityCount
			typ string
		)
		if err := rows.Scan(&ec.Name, &typ, &ec.Count); err != nil {
			rows.Close()
			return nil, aerrors.StorageError("scan co-entity", err)
		}
		ec.Type = EntityType(typ)
		report.CoEntities = append(report.CoEntities, ec)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, aerrors.StorageError("iterate co-entities", err)
	}

	// Representative documents, newest first.
	var rq strings.Builder
	rq.WriteString(`SELECT d.doc_id, d.date, d.title, SUBSTR(d.content, 1, ?)
		FROM documents d WHERE ` + keywordClause)
	args = dateClause(&rq, append([]any{snippetRunes}, matchArgs...), "d.date", q.Dates)
	rq.WriteString(` ORDER BY d.date DESC, d.doc_id ASC LIMIT ?`)
	args = append(args, maxRepresentative)

	rows, err = s.db.QueryContext(ctx, rq.String(), args...)
	if err != nil {
		return nil, aerrors.StorageError("query representative docs", err)
	}
	defer rows.Close()
	for rows.Next() {
		var ds DocSnippet
		if err := rows.Scan(&ds.DocID, &ds.Date, &ds.Title, &ds.Snippet); err != nil {
			return nil, aerrors.StorageError("scan representative doc", err)
		}
		report.RepresentativeDocs = append(report.RepresentativeDocs, ds)
	}
	if err := rows.Err(); err != nil {
		return nil, aerrors.StorageError("iterate representative docs", err)
	}

	return report, nil
}

const summaryColumns = `d.doc_id, d.date, d.title, d.content, d.persons, d.organizations, d.concepts`

// SearchByEntity returns documents linked to an entity whose name contains
// q.Name, optionally restricted to one entity type, newest first.
func (s *EntityStore) SearchByEntity(ctx context.Context, q EntityQuery) ([]DocumentSummary, error) {
	q.Name = strings.TrimSpace(q.Name)
	if q.Name == "" || !q.Dates.Valid() {
		return []DocumentSummary{}, nil
	}
	if q.Limit <= 0 {
		q.Limit = defaultListLimit
	}

	var sb strings.Builder
	sb.WriteString(`SELECT DISTINCT ` + summaryColumns + `
		FROM entities e
		JOIN documents d ON e.doc_id = d.doc_id
		WHERE e.entity_name LIKE ? ESCAPE '\'`)
	args := []any{likePattern(q.Name)}
	if q.Type != "" {
		sb.WriteString(` AND e.entity_type = ?`)
		args = append(args, string(q.Type))
	}
	args = dateClause(&sb, args, "e.date", q.Dates)
	sb.WriteString(` ORDER BY d.date DESC, d.doc_id ASC LIMIT ?`)
	args = append(args, q.Limit)

	return s.querySummaries(ctx, sb.String(), args)
}

// SearchBySource returns documents whose organizations mention q.Media,
// optionally matching q.Topic in content, title or concepts, newest first.
func (s *EntityStore) SearchBySource(ctx context.Context, q SourceQuery) ([]DocumentSummary, error) {
	q.Media = strings.TrimSpace(q.Media)
	if q.Media == "" || !q.Dates.Valid() {
		return []DocumentSummary{}, nil
	}
	if q.Limit <= 0 {
		q.Limit = defaultListLimit
	}

	var sb strings.Builder
	sb.WriteString(`SELECT ` + summaryColumns + `
		FROM documents d
		WHERE d.organizations LIKE ? ESCAPE '\'`)
	args := []any{likePattern(q.Media)}
	if topic := strings.TrimSpace(q.Topic); topic != "" {
		p := likePattern(topic)
		sb.WriteString(` AND (d.content LIKE ? ESCAPE '\' OR d.title LIKE ? ESCAPE '\' OR d.concepts LIKE ? ESCAPE '\')`)
		args = append(args, p, p, p)
	}
	args = dateClause(&sb, args, "d.date", q.Dates)
	sb.WriteString(` ORDER BY d.date DESC, d.doc_id ASC LIMIT ?`)
	args = append(args, q.Limit)

	return s.querySummaries(ctx, sb.String(), args)
}

func (s *EntityStore) querySummaries(ctx context.Context, query string, args []any) ([]DocumentSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, aerrors.StorageError("query documents", err)
	}
	defer rows.Close()

	out := []DocumentSummary{}
	for rows.Next() {
		var (
			ds                      DocumentSummary
			persons, orgs, concepts sql.NullString
		)
		if err := rows.Scan(&ds.DocID, &ds.Date, &ds.Title, &ds.Content, &persons, &orgs, &concepts); err != nil {
			return nil, aerrors.StorageError("scan document", err)
		}
		ds.Persons = SplitEntities(persons.String)
		ds.Organizations = SplitEntities(orgs.String)
		ds.Concepts = SplitEntities(concepts.String)
		out = append(out, ds)
	}
	if err := rows.Err(); err != nil {
		return nil, aerrors.StorageError("iterate documents", err)
	}
	return out, nil
}

// DailySummary describes the documents of a single day: their titles and
// the distinct persons, organizations and concepts mentioned.
func (s *EntityStore) DailySummary(ctx context.Context, date string) (*DailySummary, error) {
	sum := &DailySummary{
		Date:          date,
		Titles:        []string{},
		Persons:       []string{},
		Organizations: []string{},
		Concepts:      []string{},
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT title FROM documents WHERE date = ? ORDER BY doc_id`, date)
	if err != nil {
		return nil, aerrors.StorageError("query daily titles", err)
	}
	for rows.Next() {
		var title string
		if err := rows.Scan(&title); err != nil {
			rows.Close()
			return nil, aerrors.StorageError("scan daily title", err)
		}
		sum.Titles = append(sum.Titles, title)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, aerrors.StorageError("iterate daily titles", err)
	}
	sum.DocCount = len(sum.Titles)

	rows, err = s.db.QueryContext(ctx, `
		SELECT DISTINCT entity_type, entity_name FROM entities
		WHERE date = ? AND entity_type IN (?, ?, ?)
		ORDER BY entity_type, entity_name`,
		date, string(EntityPerson), string(EntityOrganization), string(EntityConcept))
	if err != nil {
		return nil, aerrors.StorageError("query daily entities", err)
	}
	defer rows.Close()
	for rows.Next() {
		var typ, name string
		if err := rows.Scan(&typ, &name); err != nil {
			return nil, aerrors.StorageError("scan daily entity", err)
		}
		switch EntityType(typ) {
		case EntityPerson:
			sum.Persons = append(sum.Persons, name)
		case EntityOrganization:
			sum.Organizations = append(sum.Organizations, name)
		case EntityConcept:
			sum.Concepts = append(sum.Concepts, name)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, aerrors.StorageError("iterate daily entities", err)
	}
	return sum, nil
}
