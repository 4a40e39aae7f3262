//go:build ignore

// Package main generates a synthetic entity-annotated news corpus for
// benchmarking builds and queries.
// Usage: go run scripts/generate-test-corpus.go -docs 10000 -output testdata/bench/news.csv
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

var (
	numDocs  = flag.Int("docs", 10000, "Number of documents to generate")
	output   = flag.String("output", "testdata/bench/news.csv", "Output CSV file")
	seed     = flag.Int64("seed", 42, "Random seed for reproducibility")
	start    = flag.String("start", "2024-01-01", "First publication date")
	days     = flag.Int("days", 365, "Number of days the corpus spans")
	dupEvery = flag.Int("dup-every", 0, "Repeat an earlier id every N rows (0 disables)")
)

var header = []string{
	"ID", "date", "title",
	"cleaned_content_for_api", "cleaned_content_for_service",
	"solar_persons", "solar_organizations", "solar_concepts", "solar_events", "solar_locations",
	"total_entities",
}

var (
	persons       = []string{"홍길동", "김철수", "이영희", "박민수", "최지은", "정하늘", "강도윤", "윤서연"}
	organizations = []string{"산업부", "국회", "한국은행", "삼성전자", "현대차", "연합뉴스", "KBS", "기획재정부", "SK하이닉스"}
	concepts      = []string{"반도체", "금리", "수출", "물가", "부동산", "AI", "배터리", "저출생", "환율"}
	events        = []string{"국정감사", "총선", "정상회담", "기자회견", "실적발표"}
	locations     = []string{"서울", "부산", "세종", "워싱턴", "베이징", "도쿄"}
	verbs         = []string{"늘었다", "줄었다", "논의했다", "발표했다", "합의했다", "우려했다", "전망했다"}
)

func main() {
	flag.Parse()
	rng := rand.New(rand.NewSource(*seed))

	first, err := time.Parse("2006-01-02", *start)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid -start: %v\n", err)
		os.Exit(1)
	}
	if err := os.MkdirAll(filepath.Dir(*output), 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create output directory: %v\n", err)
		os.Exit(1)
	}

	f, err := os.Create(*output)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create %s: %v\n", *output, err)
		os.Exit(1)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	_ = w.Write(header)

	fmt.Printf("Generating %d documents in %s\n", *numDocs, *output)
	for i := 0; i < *numDocs; i++ {
		id := fmt.Sprintf("news-%06d", i)
		if *dupEvery > 0 && i > 0 && i%*dupEvery == 0 {
			id = fmt.Sprintf("news-%06d", rng.Intn(i))
		}
		date := first.AddDate(0, 0, rng.Intn(max(*days, 1))).Format("2006-01-02")
		if err := w.Write(generateRow(rng, id, date)); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write row %d: %v\n", i, err)
			os.Exit(1)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to flush: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Generated %d documents successfully.\n", *numDocs)
}

func generateRow(rng *rand.Rand, id, date string) []string {
	ps := pick(rng, persons, 2)
	orgs := pick(rng, organizations, 2)
	cs := pick(rng, concepts, 3)
	es := pick(rng, events, 1)
	ls := pick(rng, locations, 1)

	title := fmt.Sprintf("%s %s %s", orgs[0], cs[0], randomWord(rng, verbs))
	var body strings.Builder
	for s := 0; s < 3+rng.Intn(5); s++ {
		fmt.Fprintf(&body, "%s %s은 %s 관련 %s에서 %s. ",
			randomWord(rng, organizations), randomWord(rng, persons),
			randomWord(rng, concepts), randomWord(rng, events), randomWord(rng, verbs))
	}

	total := len(ps) + len(orgs) + len(cs) + len(es) + len(ls)
	return []string{
		id, date, title,
		strings.TrimSpace(body.String()), "",
		strings.Join(ps, ";"), strings.Join(orgs, ";"), strings.Join(cs, ";"),
		strings.Join(es, ";"), strings.Join(ls, ";"),
		strconv.Itoa(total),
	}
}

// pick returns up to n distinct names from pool, at least one.
func pick(rng *rand.Rand, pool []string, n int) []string {
	k := 1 + rng.Intn(n)
	idx := rng.Perm(len(pool))[:k]
	out := make([]string, k)
	for i, j := range idx {
		out[i] = pool[j]
	}
	return out
}

func randomWord(rng *rand.Rand, pool []string) string {
	return pool[rng.Intn(len(pool))]
}
