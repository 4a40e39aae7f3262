package search

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Aman-CERP/archivist/internal/store"
)

func TestFormatContext(t *testing.T) {
	assert.Equal(t, "관련 문서를 찾지 못했습니다.", FormatContext(nil))

	out := FormatContext([]SearchResult{
		{DocID: "a", Date: "2024-01-01", Title: "제목", Content: "본문", Persons: []string{"갑", "을"}},
		{DocID: "b", Date: "2024-01-02", Title: "둘째", Content: "내용"},
	})

	parts := strings.Split(out, "\n\n---\n\n")
	assert.Len(t, parts, 2)
	assert.Equal(t, "[1] (2024-01-01) 제목\n내용: 본문\n인물: 갑, 을\n조직: 없음\n키워드: 없음", parts[0])
	assert.True(t, strings.HasPrefix(parts[1], "[2] (2024-01-02) 둘째"))
}

func TestFormatTimeline(t *testing.T) {
	assert.Contains(t, FormatTimeline("갑", nil), "찾지 못했습니다")

	out := FormatTimeline("갑", []store.TimelineBucket{
		{Period: "2024-03", DocCount: 40, Titles: []string{"a", "b", "c", "d"}},
	})
	assert.Contains(t, out, "2024-03: 40건 "+strings.Repeat("█", 30))
	assert.Contains(t, out, "주요 제목: a / b / c")
	assert.NotContains(t, out, " / d")
}

func TestFormatTrend(t *testing.T) {
	out := FormatTrend(&store.TrendReport{
		Keyword:            "반도체",
		TotalCount:         3,
		Timeline:           []store.PeriodCount{{Period: "2024-01", Count: 3}},
		CoEntities:         []store.EntityCount{{Name: "산업부", Type: store.EntityOrganization, Count: 2}},
		RepresentativeDocs: []store.DocSnippet{{DocID: "t1", Date: "2024-01-10", Title: "수출", Snippet: "본문"}},
	})
	assert.Contains(t, out, "'반도체' 트렌드 분석 (총 3건)")
	assert.Contains(t, out, "2024-01: 3건 ███")
	assert.Contains(t, out, "- 산업부 (organization): 2회")
	assert.Contains(t, out, "(2024-01-10) 수출\n    본문...")
}

func TestFormatSources(t *testing.T) {
	assert.Contains(t, FormatSources("KBS", nil), "'KBS' 관련 문서를 찾지 못했습니다.")
	out := FormatSources("KBS", []store.DocumentSummary{{DocID: "s", Date: "2024-01-01", Title: "t", Content: "c"}})
	assert.Contains(t, out, "[1] (2024-01-01) t\n내용: c")
}
