package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	aerrors "github.com/Aman-CERP/archivist/internal/errors"
)

const sampleCSV = `ID,date,title,cleaned_content_for_api,cleaned_content_for_service,solar_persons,solar_organizations,solar_concepts,solar_events,solar_locations,total_entities
a1,2024-03-05T09:00:00,첫 기사,"본문, 쉼표 포함",서비스 본문,홍길동; 김철수,산업부,경제,,서울,
a2,2024-03-06,두번째,본문 둘,,,,,,,7
,2024-03-07,no id,본문,,,,,,,
a3,2024-03-08,no content,   ,,,,,,,
`

func TestReadCSV_ParsesRowsAndSkipsMalformed(t *testing.T) {
	// Given a CSV export with two valid rows and two malformed ones
	// When it is read
	docs, report, err := ReadCSV(context.Background(), strings.NewReader(sampleCSV))

	// Then the valid rows become documents and the rest are counted as skipped
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, 4, report.Rows)
	assert.Equal(t, 2, report.Accepted)
	assert.Equal(t, 2, report.Skipped)
	require.Len(t, report.Errors, 2)
	for _, e := range report.Errors {
		assert.Equal(t, aerrors.ErrCodeMalformedDocument, aerrors.GetCode(e))
	}

	first := docs[0]
	assert.Equal(t, "a1", first.ID)
	assert.Equal(t, "2024-03-05", first.Date)
	assert.Equal(t, "본문, 쉼표 포함", first.Content)
	assert.Equal(t, "서비스 본문", first.ServiceContent)
	assert.Equal(t, []string{"홍길동", "김철수"}, first.Persons)
	assert.Equal(t, []string{"산업부"}, first.Organizations)
	assert.Equal(t, []string{"서울"}, first.Locations)
	assert.Empty(t, first.Events)
	assert.Equal(t, 5, first.TotalEntities)

	// The exported total of 7 disagrees with the empty lists and is ignored.
	assert.Equal(t, 0, docs[1].TotalEntities)
}

func TestReadCSV_HeaderHandling(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
		wantN   int
	}{
		{name: "empty input", input: "", wantN: 0},
		{name: "header only", input: "ID,cleaned_content_for_api\n", wantN: 0},
		{name: "bom prefixed header", input: "\ufeffID,cleaned_content_for_api\nx,body\n", wantN: 1},
		{name: "missing id column", input: "title,cleaned_content_for_api\nt,body\n", wantErr: true},
		{name: "minimal columns", input: "cleaned_content_for_api,ID\nbody,x\nbody2,y\n", wantN: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs, _, err := ReadCSV(context.Background(), strings.NewReader(tt.input))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, docs, tt.wantN)
		})
	}
}

func TestReadCSV_DuplicateIDKeepsLatest(t *testing.T) {
	// Given the same id twice
	input := "ID,title,cleaned_content_for_api\nx,old,body\ny,other,body\nx,new,body\n"

	// When read
	docs, report, err := ReadCSV(context.Background(), strings.NewReader(input))

	// Then the later row replaces the earlier one in place
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "x", docs[0].ID)
	assert.Equal(t, "new", docs[0].Title)
	assert.Equal(t, 1, report.Duplicates)
	assert.Equal(t, 2, report.Accepted)
}

func TestReadJSONL(t *testing.T) {
	// Given JSON lines with numeric and string totals, a blank line and a broken line
	input := strings.Join([]string{
		`{"ID":"j1","date":"2024-01-02 10:00","title":"t","cleaned_content_for_api":"c","solar_persons":"가;나","total_entities":3}`,
		``,
		`{"ID":"j2","cleaned_content_for_api":"c2","total_entities":"4"}`,
		`{not json}`,
		`{"ID":"j3","cleaned_content_for_api":"","total_entities":null}`,
	}, "\n")

	// When read
	docs, report, err := ReadJSONL(context.Background(), strings.NewReader(input))

	// Then valid lines parse and the others are skipped
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, 4, report.Rows)
	assert.Equal(t, 2, report.Skipped)
	assert.Equal(t, "2024-01-02", docs[0].Date)
	assert.Equal(t, []string{"가", "나"}, docs[0].Persons)
	assert.Equal(t, 2, docs[0].TotalEntities)
	assert.Equal(t, 0, docs[1].TotalEntities)
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		path    string
		want    Format
		wantErr bool
	}{
		{path: "corpus.csv", want: FormatCSV},
		{path: "CORPUS.CSV", want: FormatCSV},
		{path: "corpus.jsonl", want: FormatJSONL},
		{path: "corpus.ndjson", want: FormatJSONL},
		{path: "corpus.xlsx", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := DetectFormat(tt.path)
			if tt.wantErr {
				assert.Equal(t, aerrors.ErrCodeInvalidInput, aerrors.GetCode(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "corpus.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleCSV), 0o644))

	docs, report, err := ReadFile(context.Background(), path)
	require.NoError(t, err)
	assert.Len(t, docs, 2)
	assert.Equal(t, 2, report.Skipped)

	_, _, err = ReadFile(context.Background(), filepath.Join(dir, "missing.csv"))
	assert.Equal(t, aerrors.ErrCodeFileNotFound, aerrors.GetCode(err))
}

func TestReadCSV_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := ReadCSV(ctx, strings.NewReader(sampleCSV))
	assert.ErrorIs(t, err, context.Canceled)
}
