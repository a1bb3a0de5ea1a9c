package linguistic

import (
	"regexp"
	"strings"
	"unicode"
)

// Gibberish reason codes.
const (
	ReasonRepeatedCharacters = "gibberish_repeated_characters"
	ReasonKeyboardSmash      = "gibberish_keyboard_smash"
	ReasonLowRichness        = "gibberish_low_vocabulary_richness"
	ReasonRepeatedWord       = "gibberish_repeated_word"
	ReasonNonAlphabetic      = "gibberish_non_alphabetic"
	ReasonCVAlternation      = "gibberish_cv_alternation"
	ReasonConsonantClusters  = "gibberish_consonant_clusters"
)

const (
	// gibberishMinLength exempts very short texts from the pre-filter.
	gibberishMinLength = 10

	richnessMinWords    = 10
	richnessFloor       = 0.15
	repeatedWordShare   = 0.5
	nonAlphabeticCeil   = 0.5
	cvAlternationLength = 8
	consonantRunLength  = 5
)

// Go's RE2 engine has no backreferences, so the intended pattern
// `([a-z])\1{4,}` (any letter repeated five or more times) is spelled out
// as an alternation over the alphabet.
var repeatedLetterPattern = regexp.MustCompile(`(?i)a{5,}|b{5,}|c{5,}|d{5,}|e{5,}|f{5,}|g{5,}|h{5,}|i{5,}|j{5,}|k{5,}|l{5,}|m{5,}|n{5,}|o{5,}|p{5,}|q{5,}|r{5,}|s{5,}|t{5,}|u{5,}|v{5,}|w{5,}|x{5,}|y{5,}|z{5,}`)

var keyboardRows = []string{"qwertyuiop", "asdfghjkl", "zxcvbnm"}

// DetectGibberish applies the pre-filter rules and returns the reason codes
// of every rule that fired. Texts under the minimum length are exempt.
func DetectGibberish(text string) []string {
	if len([]rune(text)) < gibberishMinLength {
		return nil
	}

	var reasons []string

	if repeatedLetterPattern.MatchString(text) {
		reasons = append(reasons, ReasonRepeatedCharacters)
	}
	if hasKeyboardSmash(text) {
		reasons = append(reasons, ReasonKeyboardSmash)
	}

	tokens := wordPattern.FindAllString(strings.ToLower(text), -1)
	if len(tokens) > richnessMinWords {
		unique := map[string]bool{}
		for _, t := range tokens {
			unique[t] = true
		}
		if float64(len(unique))/float64(len(tokens)) < richnessFloor {
			reasons = append(reasons, ReasonLowRichness)
		}
	}
	if hasDominantWord(tokens) {
		reasons = append(reasons, ReasonRepeatedWord)
	}
	if nonAlphabeticShare(text) > nonAlphabeticCeil {
		reasons = append(reasons, ReasonNonAlphabetic)
	}
	for _, tok := range tokens {
		if isRegularAlternation(tok) {
			reasons = append(reasons, ReasonCVAlternation)
			break
		}
	}
	for _, tok := range tokens {
		if hasConsonantRun(tok) {
			reasons = append(reasons, ReasonConsonantClusters)
			break
		}
	}

	return reasons
}

// hasKeyboardSmash looks for runs of five or more characters that all sit
// adjacent on one physical keyboard row.
func hasKeyboardSmash(text string) bool {
	lower := strings.ToLower(text)
	for _, row := range keyboardRows {
		run := 0
		prevIdx := -2
		for _, r := range lower {
			idx := strings.IndexRune(row, r)
			if idx >= 0 && prevIdx >= 0 && abs(idx-prevIdx) == 1 {
				run++
				if run >= 4 { // four adjacent pairs = five keys
					return true
				}
			} else if idx >= 0 {
				run = 0
			} else {
				run = 0
				idx = -2
			}
			prevIdx = idx
		}
	}
	return false
}

// hasDominantWord reports a single word (longer than two characters) making
// up more than half of the relevant tokens.
func hasDominantWord(tokens []string) bool {
	counts := map[string]int{}
	relevant := 0
	for _, t := range tokens {
		if len(t) <= 2 {
			continue
		}
		counts[t]++
		relevant++
	}
	if relevant < 3 {
		return false
	}
	for _, c := range counts {
		if float64(c)/float64(relevant) > repeatedWordShare {
			return true
		}
	}
	return false
}

func nonAlphabeticShare(text string) float64 {
	var total, nonAlpha int
	for _, r := range text {
		if unicode.IsSpace(r) {
			continue
		}
		total++
		if !unicode.IsLetter(r) {
			nonAlpha++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(nonAlpha) / float64(total)
}

// isRegularAlternation reports a long word strictly alternating consonants
// and vowels ("bababababa"), a pattern typical of generated filler.
func isRegularAlternation(word string) bool {
	if len(word) < cvAlternationLength {
		return false
	}
	prev := isVowel(rune(word[0]))
	for _, r := range word[1:] {
		cur := isVowel(r)
		if cur == prev {
			return false
		}
		prev = cur
	}
	return true
}

func hasConsonantRun(word string) bool {
	run := 0
	for _, r := range word {
		if !isVowel(r) && r != 'y' {
			run++
			if run >= consonantRunLength {
				return true
			}
		} else {
			run = 0
		}
	}
	return false
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
