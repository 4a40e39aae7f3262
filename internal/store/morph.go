package store

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Morpheme is one analyzed unit: its surface form and part-of-speech tag.
// Tags follow the Sejong tagset (NNG, NNP, VV, VA, SL, SH, SN, J*, E*, S*).
type Morpheme struct {
	Form string
	Tag  string
}

// MorphAnalyzer splits text into tagged morphemes. Implementations must be
// safe for concurrent use; the index build calls Analyze from many workers.
type MorphAnalyzer interface {
	Analyze(text string) []Morpheme
}

// MorphAnalyzerFunc adapts a function to MorphAnalyzer.
type MorphAnalyzerFunc func(text string) []Morpheme

// Analyze calls f(text).
func (f MorphAnalyzerFunc) Analyze(text string) []Morpheme { return f(text) }

type runeClass int

const (
	classSpace runeClass = iota
	classHangul
	classLatin
	classDigit
	classHan
	classSymbol
)

func classify(r rune) runeClass {
	switch {
	case r >= '가' && r <= '힣':
		return classHangul
	case unicode.IsSpace(r):
		return classSpace
	case unicode.IsDigit(r):
		return classDigit
	case unicode.Is(unicode.Han, r):
		return classHan
	case unicode.IsLetter(r):
		return classLatin
	default:
		return classSymbol
	}
}

// Postpositions and verbal endings stripped from the end of a Hangul word,
// longest first so that 에서는 wins over 는.
var (
	particles = []string{
		"에서부터", "으로부터", "에게서는",
		"에서는", "에서도", "으로는", "으로도", "에게는", "에게서", "이라는", "라는",
		"에서", "에게", "으로", "까지", "부터", "처럼", "보다", "마저", "조차", "이며", "하고",
		"은", "는", "이", "가", "을", "를", "의", "에", "도", "만", "와", "과", "로", "께",
	}
	verbalEndings = []string{
		"하겠습니다", "했습니다", "합니다", "하였다", "되었다", "시켰다",
		"했다", "한다", "하는", "하고", "하며", "해서", "했던", "하기", "하자", "한",
		"됐다", "된다", "되는", "되고", "되며", "돼", "된",
	}
	particleSet = func() map[string]bool {
		m := make(map[string]bool, len(particles))
		for _, p := range particles {
			m[p] = true
		}
		return m
	}()
)

// ScriptAnalyzer is a dictionary-free Korean analyzer. It segments text into
// script runs, tags Latin as SL, Han as SH and digits as SN, and splits the
// trailing particle or 하다/되다 ending off each Hangul word. It is a
// deterministic fallback for environments without a full morphological
// analyzer.
type ScriptAnalyzer struct{}

// NewScriptAnalyzer returns the default analyzer.
func NewScriptAnalyzer() *ScriptAnalyzer { return &ScriptAnalyzer{} }

// Analyze implements MorphAnalyzer.
func (ScriptAnalyzer) Analyze(text string) []Morpheme {
	text = norm.NFC.String(text)

	var (
		out      []Morpheme
		run      []rune
		runClass = classSpace
		prev     = classSpace // class of the run before the current one, spaces reset it
	)

	flush := func() {
		if len(run) == 0 {
			return
		}
		form := string(run)
		switch runClass {
		case classHangul:
			out = append(out, splitHangulWord(form, prev != classSpace && prev != classSymbol)...)
		case classLatin:
			out = append(out, Morpheme{Form: form, Tag: "SL"})
		case classDigit:
			out = append(out, Morpheme{Form: form, Tag: "SN"})
		case classHan:
			out = append(out, Morpheme{Form: form, Tag: "SH"})
		}
		prev = runClass
		run = run[:0]
	}

	for _, r := range text {
		c := classify(r)
		if c != runClass {
			flush()
			runClass = c
		}
		switch c {
		case classSpace:
			prev = classSpace
		case classSymbol:
			out = append(out, Morpheme{Form: string(r), Tag: "SW"})
			prev = classSymbol
			runClass = classSpace
		default:
			run = append(run, r)
		}
	}
	flush()
	return out
}

// splitHangulWord separates a stem from its particle or ending. attached is
// true when the word directly follows a Latin, digit or Han run, as in
// "AI가", where the whole word may be a bare particle.
func splitHangulWord(word string, attached bool) []Morpheme {
	if attached && particleSet[word] {
		return []Morpheme{{Form: word, Tag: "JX"}}
	}

	n := len([]rune(word))

	for _, e := range verbalEndings {
		if strings.HasSuffix(word, e) && n-len([]rune(e)) >= 2 {
			stem := strings.TrimSuffix(word, e)
			return []Morpheme{{Form: stem, Tag: "NNG"}, {Form: e, Tag: "XSV"}}
		}
	}

	for _, p := range particles {
		if strings.HasSuffix(word, p) && n-len([]rune(p)) >= 2 {
			stem := strings.TrimSuffix(word, p)
			return []Morpheme{{Form: stem, Tag: "NNG"}, {Form: p, Tag: "JKS"}}
		}
	}

	return []Morpheme{{Form: word, Tag: "NNG"}}
}
