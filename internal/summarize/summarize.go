// Package summarize condenses free text into a few representative sentences.
//
// It is an extractive, frequency-based summarizer: every sentence is scored by
// the normalised term frequency of its non-stopword terms and the best scoring
// sentences are returned in their original order. It never fails; callers in
// the interview hot path always get a usable string back.
package summarize

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"interview-backend/internal/shared/telemetry"
)

// EmptyMarker is returned for empty or whitespace-only input.
const EmptyMarker = "No content provided."

// FallbackWidth is the maximum rune length of Fallback output, placeholder included.
const FallbackWidth = 400

const fallbackPlaceholder = "..."

type sentence struct {
	text  string
	pos   int
	score float64
}

// Summarize reduces text to at most n sentences.
// Text that already has n sentences or fewer is returned unchanged.
// Ties between equally scored sentences go to the earlier sentence, and the
// selected sentences keep their original relative order.
func Summarize(text string, n int) (out string) {
	if strings.TrimSpace(text) == "" {
		return EmptyMarker
	}
	if n <= 0 {
		n = 1
	}
	defer func() {
		if rec := recover(); rec != nil {
			telemetry.Error("summarize.failed", map[string]any{
				"error":     fmt.Sprint(rec),
				"input_len": len(text),
			})
			out = Fallback(text)
		}
	}()

	parts := SplitSentences(text)
	if len(parts) <= n {
		return text
	}

	freq := termFrequencies(parts)
	if len(freq) == 0 {
		return Fallback(text)
	}

	scored := make([]sentence, len(parts))
	for i, p := range parts {
		var score float64
		for _, term := range terms(p) {
			score += freq[term]
		}
		scored[i] = sentence{text: p, pos: i, score: score}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})
	top := scored[:n]
	sort.Slice(top, func(i, j int) bool { return top[i].pos < top[j].pos })

	picked := make([]string, 0, n)
	for _, s := range top {
		picked = append(picked, s.text)
	}
	return strings.Join(picked, " ")
}

// Fallback shortens text to FallbackWidth runes on a word boundary, marking the cut with "...".
func Fallback(text string) string {
	collapsed := strings.Join(strings.Fields(text), " ")
	if collapsed == "" {
		return EmptyMarker
	}
	runes := []rune(collapsed)
	if len(runes) <= FallbackWidth {
		return collapsed
	}
	limit := FallbackWidth - len(fallbackPlaceholder)
	cut := string(runes[:limit])
	if idx := strings.LastIndexByte(cut, ' '); idx > 0 && runes[limit] != ' ' {
		cut = cut[:idx]
	}
	return strings.TrimRight(cut, " ") + fallbackPlaceholder
}

// SplitSentences breaks text into trimmed sentences. A sentence ends at '.', '!'
// or '?' followed by whitespace, or at a line break.
func SplitSentences(text string) []string {
	var (
		out []string
		cur strings.Builder
	)
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			out = append(out, s)
		}
		cur.Reset()
	}

	runes := []rune(text)
	for i, r := range runes {
		if r == '\n' || r == '\r' {
			flush()
			continue
		}
		cur.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			if i+1 == len(runes) || unicode.IsSpace(runes[i+1]) {
				flush()
			}
		}
	}
	flush()
	return out
}

// termFrequencies returns each term's count divided by the highest count.
func termFrequencies(sentences []string) map[string]float64 {
	counts := make(map[string]int)
	maxCount := 0
	for _, s := range sentences {
		for _, term := range terms(s) {
			counts[term]++
			if counts[term] > maxCount {
				maxCount = counts[term]
			}
		}
	}
	freq := make(map[string]float64, len(counts))
	for term, c := range counts {
		freq[term] = float64(c) / float64(maxCount)
	}
	return freq
}

// terms returns the case-folded, non-stopword words of s. Punctuation is dropped.
func terms(s string) []string {
	words := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := words[:0]
	for _, w := range words {
		if _, stop := stopwords[w]; stop {
			continue
		}
		out = append(out, w)
	}
	return out
}
