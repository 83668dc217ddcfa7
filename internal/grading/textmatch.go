package grading

import (
	"strings"
	"unicode"
)

// Normalize folds case, drops punctuation and collapses runs of whitespace.
// Apostrophes inside words are kept so "don't" and "dont" stay distinct.
func Normalize(s string) string {
	rs := []rune(strings.TrimSpace(s))
	out := make([]rune, 0, len(rs))
	space := false
	for i, r := range rs {
		switch {
		case unicode.IsSpace(r):
			space = true
		case isApostrophe(r) && i > 0 && i < len(rs)-1 && unicode.IsLetter(rs[i-1]) && unicode.IsLetter(rs[i+1]):
			if space && len(out) > 0 {
				out = append(out, ' ')
			}
			space = false
			out = append(out, '\'')
		case unicode.IsPunct(r):
		default:
			if space && len(out) > 0 {
				out = append(out, ' ')
			}
			space = false
			out = append(out, unicode.ToLower(r))
		}
	}
	return string(out)
}

func isApostrophe(r rune) bool {
	return r == '\'' || r == '’'
}

// levenshtein computes edit distance (insertion, deletion, substitution cost 1).
func levenshtein(a, b string) int {
	ar, br := []rune(a), []rune(b)
	n, m := len(ar), len(br)
	if n == 0 {
		return m
	}
	if m == 0 {
		return n
	}
	dp := make([]int, m+1)
	for j := range dp {
		dp[j] = j
	}
	for i := 1; i <= n; i++ {
		prev := dp[0]
		dp[0] = i
		for j := 1; j <= m; j++ {
			tmp := dp[j]
			cost := 1
			if ar[i-1] == br[j-1] {
				cost = 0
			}
			dp[j] = min(dp[j]+1, dp[j-1]+1, prev+cost)
			prev = tmp
		}
	}
	return dp[m]
}
