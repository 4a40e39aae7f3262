package store

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
)

// Tokenizer turns text into index terms using a morphological analyzer.
//
// Content morphemes are kept: nouns (NN*), verbs (VV*), adjectives (VA*),
// foreign words (SL) and Hanja (SH). Forms are case-folded and must be at
// least two runes long, except SL/SH which are kept at any length. A run of
// two or more single-syllable Hangul nouns is merged into one token (북, 미 →
// 북미); a lone single-syllable noun is dropped as noise.
type Tokenizer struct {
	analyzer MorphAnalyzer
}

// NewTokenizer returns a tokenizer over a. A nil analyzer selects the
// built-in ScriptAnalyzer.
func NewTokenizer(a MorphAnalyzer) *Tokenizer {
	if a == nil {
		a = NewScriptAnalyzer()
	}
	return &Tokenizer{analyzer: a}
}

// Tokenize returns the index terms of text in order, duplicates included.
func (t *Tokenizer) Tokenize(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	// cases.Caser is stateful; one per call keeps Tokenize goroutine-safe.
	fold := cases.Fold()

	var (
		tokens  []string
		nounBuf []string
	)
	flushNouns := func() {
		if len(nounBuf) >= 2 {
			tokens = append(tokens, strings.Join(nounBuf, ""))
		}
		nounBuf = nounBuf[:0]
	}

	for _, m := range t.analyzer.Analyze(text) {
		form := fold.String(m.Form)
		n := utf8.RuneCountInString(form)

		if n == 1 && strings.HasPrefix(m.Tag, "NN") && isHangulSyllable(form) {
			nounBuf = append(nounBuf, form)
			continue
		}
		flushNouns()

		if !keepTag(m.Tag) {
			continue
		}
		if n >= 2 || isForeignTag(m.Tag) {
			tokens = append(tokens, form)
		}
	}
	flushNouns()

	return tokens
}

func keepTag(tag string) bool {
	for _, p := range [...]string{"NN", "VV", "VA", "SL", "SH"} {
		if strings.HasPrefix(tag, p) {
			return true
		}
	}
	return false
}

func isForeignTag(tag string) bool {
	return strings.HasPrefix(tag, "SL") || strings.HasPrefix(tag, "SH")
}

func isHangulSyllable(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return r >= '가' && r <= '힣'
}
