package search

import (
	"fmt"
	"strings"

	"github.com/Aman-CERP/archivist/internal/store"
)

const (
	noResults    = "관련 문서를 찾지 못했습니다."
	noneLabel    = "없음"
	resultSep    = "\n\n---\n\n"
	maxBarLength = 30
)

// FormatContext renders results as numbered blocks for a downstream
// language model: date, title, content and the entity lists.
func FormatContext(results []SearchResult) string {
	if len(results) == 0 {
		return noResults
	}
	parts := make([]string, len(results))
	for i, r := range results {
		parts[i] = fmt.Sprintf("[%d] (%s) %s\n내용: %s\n인물: %s\n조직: %s\n키워드: %s",
			i+1, r.Date, r.Title, r.Content,
			joinOrNone(r.Persons), joinOrNone(r.Organizations), joinOrNone(r.Concepts))
	}
	return strings.Join(parts, resultSep)
}

// FormatTimeline renders timeline buckets with a bar per period and up to
// three titles.
func FormatTimeline(entity string, buckets []store.TimelineBucket) string {
	if len(buckets) == 0 {
		return fmt.Sprintf("'%s'에 대한 보도 이력을 찾지 못했습니다.", entity)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "'%s' 타임라인 (%d개 기간):", entity, len(buckets))
	for _, b := range buckets {
		titles := b.Titles
		if len(titles) > 3 {
			titles = titles[:3]
		}
		fmt.Fprintf(&sb, "\n\n%s: %d건 %s\n  주요 제목: %s",
			b.Period, b.DocCount, bar(b.DocCount), strings.Join(titles, " / "))
	}
	return sb.String()
}

// FormatTrend renders a trend report: per-period counts, the top ten
// co-entities and five representative documents.
func FormatTrend(report *store.TrendReport) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "'%s' 트렌드 분석 (총 %d건):\n\n[기간별 빈도]", report.Keyword, report.TotalCount)
	for _, p := range report.Timeline {
		fmt.Fprintf(&sb, "\n  %s: %d건 %s", p.Period, p.Count, bar(p.Count))
	}
	if len(report.CoEntities) > 0 {
		sb.WriteString("\n\n[공출현 엔티티]")
		for _, ec := range report.CoEntities[:min(10, len(report.CoEntities))] {
			fmt.Fprintf(&sb, "\n  - %s (%s): %d회", ec.Name, ec.Type, ec.Count)
		}
	}
	if len(report.RepresentativeDocs) > 0 {
		sb.WriteString("\n\n[대표 문서]")
		for _, d := range report.RepresentativeDocs[:min(5, len(report.RepresentativeDocs))] {
			fmt.Fprintf(&sb, "\n  (%s) %s\n    %s...", d.Date, d.Title, d.Snippet)
		}
	}
	return sb.String()
}

// FormatSources renders a source search.
func FormatSources(media string, docs []store.DocumentSummary) string {
	if len(docs) == 0 {
		return fmt.Sprintf("'%s' 관련 문서를 찾지 못했습니다.", media)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "'%s' 관련 문서 (%d건):", media, len(docs))
	for i, d := range docs {
		fmt.Fprintf(&sb, "\n\n[%d] (%s) %s\n내용: %s", i+1, d.Date, d.Title, d.Content)
	}
	return sb.String()
}

func joinOrNone(names []string) string {
	if len(names) == 0 {
		return noneLabel
	}
	return strings.Join(names, ", ")
}

func bar(n int) string {
	return strings.Repeat("█", min(n, maxBarLength))
}
