package resolve

import (
	"regexp"
	"strings"
	"unicode"
)

// substitution is one ordered abbreviation rule. Multi-word keys are applied
// as whole-phrase replacements, single words as whole-token replacements.
type substitution struct {
	from string
	to   string
}

// substitutions is the fixed abbreviation table the appraiser's search
// expects. Order matters: rules run against the output of earlier ones, so
// the long compass names must come before the short ones they contain.
var substitutions = []substitution{
	{"DRIVE", "DR"},
	{"COURT", "CT"},
	{"STREET", "ST"},
	{"LANE", "LN"},
	{"AVENUE", "AVE"},
	{"TERRACE", "TER"},
	{"EXTENSION", ""},
	{"441 AVENUE", "441"},
	{"NORTHWEST", "NW"},
	{"NORTHEAST", "NE"},
	{"SOUTHWEST", "SW"},
	{"SOUTHEAST", "SE"},
	{"NORTH", "N"},
	{"SOUTH", "S"},
	{"EAST", "E"},
	{"WEST", "W"},
}

var multiSpaceRe = regexp.MustCompile(`\s{2,}`)

// NormalizeAddress standardizes a free-text street address into the form the
// appraiser's address search matches against:
//  1. Uppercase, collapse runs of whitespace
//  2. Strip letters from tokens after the house number that mix digits and
//     letters (ordinal street names like "42ND" become "42")
//  3. Apply the fixed abbreviation table in order
//
// Pure and deterministic; safe to test without any network.
func NormalizeAddress(addr string) string {
	addr = strings.ToUpper(strings.TrimSpace(addr))
	addr = multiSpaceRe.ReplaceAllString(addr, " ")
	if addr == "" {
		return ""
	}

	tokens := strings.Fields(addr)
	// The leading house number keeps its suffix letters (e.g. "123A").
	for i := 1; i < len(tokens); i++ {
		if mixesDigitsAndLetters(tokens[i]) {
			tokens[i] = digitsOnly(tokens[i])
		}
	}
	addr = strings.Join(tokens, " ")

	for _, sub := range substitutions {
		if strings.Contains(sub.from, " ") {
			addr = replacePhrase(addr, sub.from, sub.to)
		} else {
			addr = replaceToken(addr, sub.from, sub.to)
		}
	}

	return strings.TrimSpace(multiSpaceRe.ReplaceAllString(addr, " "))
}

func mixesDigitsAndLetters(tok string) bool {
	var hasDigit, hasLetter bool
	for _, r := range tok {
		switch {
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsLetter(r):
			hasLetter = true
		}
	}
	return hasDigit && hasLetter
}

func digitsOnly(tok string) string {
	var b strings.Builder
	for _, r := range tok {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// replaceToken swaps whole tokens equal to from. An empty replacement drops
// the token entirely.
func replaceToken(s, from, to string) string {
	tokens := strings.Fields(s)
	out := tokens[:0]
	for _, tok := range tokens {
		if tok == from {
			if to == "" {
				continue
			}
			tok = to
		}
		out = append(out, tok)
	}
	return strings.Join(out, " ")
}

// replacePhrase swaps a multi-word phrase bounded by token edges.
func replacePhrase(s, from, to string) string {
	padded := " " + s + " "
	padded = strings.ReplaceAll(padded, " "+from+" ", " "+to+" ")
	return strings.TrimSpace(multiSpaceRe.ReplaceAllString(padded, " "))
}

// HouseNumber returns the integer value of the leading house-number token,
// ignoring any non-digit suffix. ok is false when the address has no leading
// digits at all.
func HouseNumber(addr string) (int, bool) {
	fields := strings.Fields(strings.TrimSpace(addr))
	if len(fields) == 0 {
		return 0, false
	}
	n := 0
	seen := false
	for _, r := range fields[0] {
		if !unicode.IsDigit(r) {
			break
		}
		n = n*10 + int(r-'0')
		seen = true
	}
	return n, seen
}
