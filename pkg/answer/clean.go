package answer

import (
	"regexp"
	"strings"
)

// Recall-source markers appear anywhere in answer text, not just at the end:
// "^^[... recall slice ...]" in square, round or fullwidth-round brackets,
// plus knowledge-base attribution phrases in Chinese and English, plus any
// stray "^^" left behind.
var (
	recallBracketRe     = regexp.MustCompile(`(?i)\s*\^{2}\s*\[[^\]]*recall\s*slice[^\]]*\]\s*`)
	recallParenRe       = regexp.MustCompile(`(?i)\s*\^{2}\s*\([^)]*recall\s*slice[^)]*\)\s*`)
	recallWideParenRe   = regexp.MustCompile(`(?i)\s*\^{2}\s*（[^）]*recall\s*slice[^）]*）\s*`)
	attributionPhraseRe = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\s*答案来自知识库\s*\^{2}\s*`),
		regexp.MustCompile(`(?i)\s*来源于知识库\s*\^{2}\s*`),
		regexp.MustCompile(`(?i)\s*Answer\s*from\s*knowledge\s*base\s*\^{2}\s*`),
	}
	strayCaretsRe  = regexp.MustCompile(`\s*\^{2}\s*`)
	paragraphSplit = regexp.MustCompile(`\n{2,}`)
)

// CleanRecallSuffix strips knowledge-retrieval markers from answer text and
// trims the result.
func CleanRecallSuffix(text string) string {
	if text == "" {
		return ""
	}

	// Replace with a single space rather than nothing: markers can sit
	// between words, and the surrounding whitespace is part of the match.
	t := recallBracketRe.ReplaceAllString(text, " ")
	t = recallParenRe.ReplaceAllString(t, " ")
	t = recallWideParenRe.ReplaceAllString(t, " ")
	for _, re := range attributionPhraseRe {
		t = re.ReplaceAllString(t, " ")
	}
	t = strayCaretsRe.ReplaceAllString(t, " ")

	return strings.TrimSpace(t)
}

// IsRecommendedQuestion reports whether text looks like a follow-up question
// suggestion rather than an answer: a single paragraph ending in a question
// mark (halfwidth or fullwidth).
func IsRecommendedQuestion(text string) bool {
	t := strings.TrimSpace(text)
	if t == "" {
		return false
	}

	var paragraphs int
	for _, p := range paragraphSplit.Split(t, -1) {
		if strings.TrimSpace(p) != "" {
			paragraphs++
		}
	}

	endsWithQuestion := strings.HasSuffix(t, "?") || strings.HasSuffix(t, "？")
	return endsWithQuestion && paragraphs < 2
}
