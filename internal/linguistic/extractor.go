// Package linguistic fingerprints review text and scores its authenticity.
package linguistic

import (
	"math"
	"regexp"
	"strings"
	"unicode"
)

// Fingerprint is the fixed set of derived text statistics used as classifier
// input. It is immutable once computed for a given text. All ratio fields are
// in [0,1]; readability is unbounded but typically 0-100.
type Fingerprint struct {
	WordCount     int `json:"word_count"`
	SentenceCount int `json:"sentence_count"`

	VocabularyRichness      float64 `json:"vocabulary_richness"`
	MorphologicalComplexity float64 `json:"morphological_complexity"`
	SentimentScore          float64 `json:"sentiment_score"`
	PunctuationDensity      float64 `json:"punctuation_density"`
	CapitalizationRatio     float64 `json:"capitalization_ratio"`
	RepetitionScore         float64 `json:"repetition_score"`
	AvgWordsPerSentence     float64 `json:"avg_words_per_sentence"`
	AvgCharsPerWord         float64 `json:"avg_chars_per_word"`

	NounRatio      float64 `json:"noun_ratio"`
	VerbRatio      float64 `json:"verb_ratio"`
	AdjectiveRatio float64 `json:"adjective_ratio"`
	AdverbRatio    float64 `json:"adverb_ratio"`

	NamedEntityCount   int `json:"named_entity_count"`
	TopicCount         int `json:"topic_count"`
	EmotionalWordCount int `json:"emotional_word_count"`

	ReadabilityScore float64 `json:"readability_score"`
	ComplexityScore  float64 `json:"complexity_score"`
}

var (
	wordPattern   = regexp.MustCompile(`[a-zA-Z']+`)
	sentenceSplit = regexp.MustCompile(`[.!?]+`)
)

var positiveWords = map[string]bool{
	"good": true, "great": true, "excellent": true, "love": true, "happy": true,
	"wonderful": true, "fantastic": true, "amazing": true, "perfect": true,
	"satisfied": true, "recommend": true, "quality": true, "fast": true,
	"helpful": true, "pleased": true, "beautiful": true, "enjoy": true,
	"nice": true, "best": true, "awesome": true,
}

var negativeWords = map[string]bool{
	"bad": true, "poor": true, "terrible": true, "hate": true, "awful": true,
	"horrible": true, "disappointed": true, "broken": true, "waste": true,
	"refund": true, "slow": true, "cheap": true, "defective": true, "worst": true,
	"useless": true, "damaged": true, "late": true, "wrong": true, "never": true,
	"scam": true,
}

var emotionalWords = map[string]bool{
	"love": true, "hate": true, "excited": true, "thrilled": true, "angry": true,
	"frustrated": true, "happy": true, "sad": true, "delighted": true,
	"disappointed": true, "surprised": true, "shocked": true, "impressed": true,
	"annoyed": true, "grateful": true, "upset": true, "worried": true,
	"relieved": true, "amazed": true, "regret": true,
}

// topicWords groups marketplace vocabulary into coarse topics. Topic count is
// the number of distinct groups the text touches.
var topicWords = map[string]string{
	"shipping": "delivery", "delivery": "delivery", "arrived": "delivery",
	"package": "delivery", "box": "delivery",
	"price": "value", "value": "value", "money": "value", "cost": "value",
	"cheap": "value", "expensive": "value",
	"quality": "quality", "material": "quality", "build": "quality",
	"sturdy": "quality", "durable": "quality",
	"size": "fit", "fit": "fit", "color": "fit", "small": "fit", "large": "fit",
	"seller": "service", "service": "service", "support": "service",
	"return": "service", "replacement": "service",
}

// Extract computes the linguistic fingerprint of a text.
func Extract(text string) Fingerprint {
	fp := Fingerprint{}

	tokens := wordPattern.FindAllString(text, -1)
	fp.WordCount = len(tokens)
	if fp.WordCount == 0 {
		return fp
	}

	lower := make([]string, len(tokens))
	unique := make(map[string]bool)
	stems := make(map[string]bool)
	var totalChars int
	for i, tok := range tokens {
		lower[i] = strings.ToLower(tok)
		unique[lower[i]] = true
		stems[stem(lower[i])] = true
		totalChars += len(tok)
	}

	fp.VocabularyRichness = float64(len(unique)) / float64(len(tokens))
	if len(unique) > 0 {
		fp.MorphologicalComplexity = float64(len(stems)) / float64(len(unique))
	}
	fp.AvgCharsPerWord = float64(totalChars) / float64(len(tokens))
	fp.RepetitionScore = 1 - fp.VocabularyRichness

	sentences := splitSentences(text)
	fp.SentenceCount = len(sentences)
	if fp.SentenceCount > 0 {
		fp.AvgWordsPerSentence = float64(fp.WordCount) / float64(fp.SentenceCount)
	}

	fp.SentimentScore = sentiment(lower)
	fp.PunctuationDensity = punctuationDensity(text)
	fp.CapitalizationRatio = capitalizationRatio(text)

	tagRatios(&fp, lower)
	fp.NamedEntityCount = countNamedEntities(text, tokens)

	topics := map[string]bool{}
	for _, w := range lower {
		if topic, ok := topicWords[w]; ok {
			topics[topic] = true
		}
		if emotionalWords[w] {
			fp.EmotionalWordCount++
		}
	}
	fp.TopicCount = len(topics)

	fp.ReadabilityScore = fleschReadability(fp.WordCount, fp.SentenceCount, lower)
	fp.ComplexityScore = gunningFog(fp.WordCount, fp.SentenceCount, lower)

	return fp
}

// splitSentences breaks text on terminal punctuation, dropping empty pieces.
func splitSentences(text string) []string {
	parts := sentenceSplit.Split(text, -1)
	sentences := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			sentences = append(sentences, strings.TrimSpace(p))
		}
	}
	return sentences
}

// sentiment is the normalized positive/negative balance in [-1,1].
func sentiment(words []string) float64 {
	var pos, neg int
	for _, w := range words {
		if positiveWords[w] {
			pos++
		}
		if negativeWords[w] {
			neg++
		}
	}
	if pos+neg == 0 {
		return 0
	}
	return float64(pos-neg) / float64(pos+neg)
}

func punctuationDensity(text string) float64 {
	if len(text) == 0 {
		return 0
	}
	var punct int
	for _, r := range text {
		if unicode.IsPunct(r) {
			punct++
		}
	}
	d := float64(punct) / float64(len([]rune(text)))
	return math.Min(d, 1)
}

func capitalizationRatio(text string) float64 {
	var letters, upper int
	for _, r := range text {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				upper++
			}
		}
	}
	if letters == 0 {
		return 0
	}
	return float64(upper) / float64(letters)
}

// tagRatios assigns part-of-speech shares with deterministic suffix
// heuristics. Rough, but stable across runs and good enough as a stylistic
// signal.
func tagRatios(fp *Fingerprint, words []string) {
	var nouns, verbs, adjectives, adverbs int
	for _, w := range words {
		switch {
		case strings.HasSuffix(w, "ly"):
			adverbs++
		case strings.HasSuffix(w, "ful") || strings.HasSuffix(w, "ous") ||
			strings.HasSuffix(w, "ive") || strings.HasSuffix(w, "able") ||
			strings.HasSuffix(w, "al") || strings.HasSuffix(w, "est"):
			adjectives++
		case strings.HasSuffix(w, "ing") || strings.HasSuffix(w, "ed") ||
			strings.HasSuffix(w, "ize") || strings.HasSuffix(w, "ate"):
			verbs++
		case strings.HasSuffix(w, "tion") || strings.HasSuffix(w, "ment") ||
			strings.HasSuffix(w, "ness") || strings.HasSuffix(w, "ity") ||
			strings.HasSuffix(w, "er") || strings.HasSuffix(w, "or"):
			nouns++
		default:
			nouns++
		}
	}
	total := float64(len(words))
	fp.NounRatio = float64(nouns) / total
	fp.VerbRatio = float64(verbs) / total
	fp.AdjectiveRatio = float64(adjectives) / total
	fp.AdverbRatio = float64(adverbs) / total
}

// countNamedEntities counts capitalized tokens that do not open a sentence.
func countNamedEntities(text string, tokens []string) int {
	sentenceStarts := map[string]bool{}
	for _, s := range splitSentences(text) {
		first := wordPattern.FindString(s)
		if first != "" {
			sentenceStarts[first] = true
		}
	}

	count := 0
	for _, tok := range tokens {
		r := []rune(tok)
		if len(r) > 1 && unicode.IsUpper(r[0]) && !sentenceStarts[tok] {
			count++
		}
	}
	return count
}

// fleschReadability is a Flesch-Kincaid style reading-ease score.
func fleschReadability(words, sentences int, tokens []string) float64 {
	if words == 0 || sentences == 0 {
		return 0
	}
	var syllables int
	for _, w := range tokens {
		syllables += countSyllables(w)
	}
	return 206.835 - 1.015*(float64(words)/float64(sentences)) - 84.6*(float64(syllables)/float64(words))
}

// gunningFog is a Gunning-Fog style complexity index.
func gunningFog(words, sentences int, tokens []string) float64 {
	if words == 0 || sentences == 0 {
		return 0
	}
	var complex int
	for _, w := range tokens {
		if countSyllables(w) >= 3 {
			complex++
		}
	}
	return 0.4 * (float64(words)/float64(sentences) + 100*float64(complex)/float64(words))
}

func countSyllables(word string) int {
	word = strings.ToLower(word)
	count := 0
	prevVowel := false
	for _, r := range word {
		v := isVowel(r)
		if v && !prevVowel {
			count++
		}
		prevVowel = v
	}
	if strings.HasSuffix(word, "e") && count > 1 {
		count--
	}
	if count == 0 {
		count = 1
	}
	return count
}

func isVowel(r rune) bool {
	switch r {
	case 'a', 'e', 'i', 'o', 'u':
		return true
	}
	return false
}

// stem strips common suffixes for a crude morphological normalization.
func stem(word string) string {
	for _, suffix := range []string{"ingly", "edly", "ings", "ing", "ed", "ly", "es", "s"} {
		if strings.HasSuffix(word, suffix) && len(word) > len(suffix)+2 {
			return word[:len(word)-len(suffix)]
		}
	}
	return word
}
