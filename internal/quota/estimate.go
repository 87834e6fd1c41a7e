package quota

import "unicode/utf8"

// EstimateTokens approximates the token count of s as ceil(runes/4). It is
// what accounts are charged, not what the model reports.
func EstimateTokens(s string) uint64 {
	n := uint64(utf8.RuneCountInString(s))
	return (n + 3) / 4
}
