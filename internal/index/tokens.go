package index

import (
	"path/filepath"
	"strconv"
	"strings"
	"unicode"
)

// Tokens splits a file name, minus its last extension, on every
// non-alphanumeric rune.
func Tokens(name string) []string {
	stem := strings.ToLower(strings.TrimSuffix(name, filepath.Ext(name)))
	return strings.FieldsFunc(stem, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// NumericTokens returns the positive integer tokens of name in order.
func NumericTokens(name string) []uint32 {
	var out []uint32
	for _, tok := range Tokens(name) {
		if n, err := strconv.ParseUint(tok, 10, 32); err == nil && n > 0 {
			out = append(out, uint32(n))
		}
	}
	return out
}

// HasChromaToken reports whether name carries a standalone "chroma" token.
func HasChromaToken(name string) bool {
	for _, tok := range Tokens(name) {
		if tok == "chroma" {
			return true
		}
	}
	return false
}

// guess derives ids from a file name. Unknown ids are zero.
func guess(name string, mode IDMode) (champion, skin, chroma uint32) {
	if mode == IDModeOff {
		return 0, 0, 0
	}
	nums := NumericTokens(name)
	if len(nums) == 0 {
		return 0, 0, 0
	}
	if HasChromaToken(name) && len(nums) > 1 {
		chroma = nums[1]
	}
	if mode == IDModeChampion {
		return nums[0], 0, chroma
	}
	return 0, nums[0], chroma
}
