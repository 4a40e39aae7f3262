package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenizer_Rules(t *testing.T) {
	tok := NewTokenizer(taggedAnalyzer)

	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"merges consecutive one-syllable nouns", "북/NNP 미/NNP 정상/NNG 회담/NNG", []string{"북미", "정상", "회담"}},
		{"merges three one-syllable nouns", "한/NNP 미/NNP 일/NNP", []string{"한미일"}},
		{"drops lone one-syllable noun", "북/NNP 회담/NNG", []string{"회담"}},
		{"other morpheme breaks the run", "북/NNP 의/JKG 미/NNP", nil},
		{"keeps single-letter foreign word", "X/SL 발표/NNG", []string{"x", "발표"}},
		{"keeps single Hanja", "漢/SH", []string{"漢"}},
		{"case folds foreign words", "OpenAI/SL", []string{"openai"}},
		{"keeps verbs and adjectives of two runes", "달리/VV 예쁘/VA", []string{"달리", "예쁘"}},
		{"drops one-rune verbs", "먹/VV", nil},
		{"drops particles and endings", "가/JKS 다/EF 는/JX", nil},
		{"drops numbers", "2024/SN 선거/NNG", []string{"선거"}},
		{"one-rune Latin noun is not merged", "a/NNG b/NNG", nil},
		{"keeps duplicates", "선거/NNG 선거/NNG", []string{"선거", "선거"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tok.Tokenize(tt.input))
		})
	}
}

func TestTokenizer_EmptyInput(t *testing.T) {
	tok := NewTokenizer(nil)
	assert.Empty(t, tok.Tokenize(""))
	assert.Empty(t, tok.Tokenize("   \n\t"))
}

func TestTokenizer_Deterministic(t *testing.T) {
	tok := NewTokenizer(nil)
	text := "정부는 반도체 수출 규제를 발표했다. OpenAI와 삼성전자가 협력한다."
	assert.Equal(t, tok.Tokenize(text), tok.Tokenize(text))
}

func TestScriptAnalyzer_Korean(t *testing.T) {
	tok := NewTokenizer(NewScriptAnalyzer())

	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"strips particles and verbal endings", "삼성전자는 AI 반도체를 발표했다", []string{"삼성전자", "ai", "반도체", "발표"}},
		{"attached particle after Latin is dropped", "GPT-4가 공개", []string{"gpt", "공개"}},
		{"spaced one-syllable nouns merge", "북 미 회담", []string{"북미", "회담"}},
		{"short words keep their last syllable", "회의 국가", []string{"회의", "국가"}},
		{"hanja runs are kept", "中 외교부", []string{"中", "외교부"}},
		{"punctuation separates", "윤석열·이재명", []string{"윤석열", "이재명"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tok.Tokenize(tt.input))
		})
	}
}

func TestScriptAnalyzer_NormalizesDecomposedHangul(t *testing.T) {
	// "한국" written as conjoining jamo (NFD).
	decomposed := "\u1112\u1161\u11ab\u1100\u116e\u11a8"
	tok := NewTokenizer(nil)
	assert.Equal(t, []string{"한국"}, tok.Tokenize(decomposed))
}
