package linguistic

import (
	"context"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/vaibhavgarg230/trustlens-sub001/internal/external"
	"github.com/vaibhavgarg230/trustlens-sub001/internal/models"
)

// Synthetic-text reason codes.
const (
	ReasonTooPerfectReadability = "too_perfect_readability"
	ReasonNoFirstPerson         = "no_first_person_pronouns"
	ReasonGenericTransitions    = "generic_transition_phrases"
	ReasonLowLexicalDiversity   = "low_lexical_diversity"
	ReasonOverlyDescriptive     = "overly_descriptive_phrases"
	ReasonRepeatedSuperlatives  = "repeated_superlatives"
	ReasonMarketingPhrases      = "marketing_phrases"
	ReasonExcessiveEnthusiasm   = "excessive_enthusiasm"
	ReasonExclamationMarks      = "excessive_exclamation"
	ReasonRepetitiveStructure   = "repetitive_sentence_structure"
	ReasonMarketingBuzzwords    = "marketing_buzzwords"
	ReasonExternalSignal        = "external_synthetic_signal"
	ReasonTextTooShort          = "text_too_short"
)

// Classifier thresholds.
const (
	baseScore             = 50.0
	maxSyntheticDeduction = 40.0

	gibberishConfidence = 95.0
	gibberishScore      = 25.0

	syntheticIndicatorMin  = 2
	syntheticConfidenceMin = 60.0
	indicatorWeight        = 22.0
	externalSignalWeight   = 20.0

	perfectReadability   = 95.0
	firstPersonMinLength = 100
	diversityFloor       = 0.3
)

var firstPersonPronouns = []string{"i", "me", "my", "mine", "we", "our", "us"}

var transitionPhrases = []string{
	"in addition", "furthermore", "moreover", "in conclusion", "overall",
	"additionally", "on the other hand", "as a result", "to summarize",
}

var descriptivePhrases = []string{
	"top of the line", "state of the art", "best in class", "second to none",
	"unparalleled quality", "exceeds expectations", "truly remarkable",
}

var superlatives = []string{
	"best", "greatest", "amazing", "perfect", "incredible", "excellent",
	"outstanding", "phenomenal", "exceptional", "flawless",
}

var marketingPhrases = []string{
	"buy now", "highly recommend to everyone", "must buy", "don't miss",
	"five stars", "you won't regret", "act fast", "limited time",
}

var enthusiasmPhrases = []string{
	"absolutely amazing", "life changing", "game changer", "blown away",
	"beyond words", "can't live without",
}

var buzzwords = []string{
	"innovative", "revolutionary", "cutting-edge", "premium", "seamless",
	"world-class", "next-level", "disruptive",
}

// Result is the text-authenticity verdict for one review body.
type Result struct {
	Score       float64                   `json:"score"`
	IsSynthetic bool                      `json:"is_synthetic"`
	Confidence  float64                   `json:"confidence"`
	ReasonCodes []string                  `json:"reason_codes,omitempty"`
	RiskTier    models.RiskLevel          `json:"risk_tier"`
	Fingerprint *Fingerprint              `json:"fingerprint,omitempty"`
	Analysis    models.LinguisticAnalysis `json:"analysis"`

	// ExternalUsed records whether the advisory external signal reached the
	// verdict. Its absence never changes correctness, only reasoning depth.
	ExternalUsed bool `json:"external_used"`
}

// SignalService is the optional external classifier consulted per text.
type SignalService interface {
	ClassifyText(ctx context.Context, text string) (*external.Classification, error)
}

// Classifier turns text into an authenticity verdict. All rules are
// deterministic; the external service only enriches them.
type Classifier struct {
	signals SignalService
	logger  *zap.Logger
}

// NewClassifier creates a text authenticity classifier. signals may be nil.
func NewClassifier(signals SignalService, logger *zap.Logger) *Classifier {
	return &Classifier{
		signals: signals,
		logger:  logger.With(zap.String("component", "text_classifier")),
	}
}

// Classify scores a text. It never fails on external-service errors; those
// degrade to local-only analysis.
func (c *Classifier) Classify(ctx context.Context, text string) *Result {
	if len([]rune(text)) < gibberishMinLength {
		return &Result{
			Score:       40,
			Confidence:  30,
			ReasonCodes: []string{ReasonTextTooShort},
			RiskTier:    models.RiskMedium,
		}
	}

	if reasons := DetectGibberish(text); len(reasons) > 0 {
		return &Result{
			Score:       gibberishScore,
			IsSynthetic: true,
			Confidence:  gibberishConfidence,
			ReasonCodes: reasons,
			RiskTier:    models.RiskHigh,
			Analysis:    gibberishAnalysis(),
		}
	}

	fp := Extract(text)
	reasons, confidence := c.syntheticIndicators(text, &fp)

	if c.signals != nil {
		signal, err := c.signals.ClassifyText(ctx, text)
		if err != nil {
			// External failures never fail the classification.
			c.logger.Warn("external signal unavailable, using local analysis", zap.Error(err))
		} else {
			if signal.SyntheticLikelihood > 0.7 {
				reasons = append(reasons, ReasonExternalSignal)
				confidence += externalSignalWeight
			}
			fp.SentimentScore = (fp.SentimentScore + signal.Sentiment) / 2
		}
	}

	result := &Result{
		Fingerprint: &fp,
		ReasonCodes: reasons,
		Confidence:  math.Min(95, confidence),
	}
	result.ExternalUsed = containsReason(reasons, ReasonExternalSignal)
	result.IsSynthetic = len(reasons) >= syntheticIndicatorMin || confidence > syntheticConfidenceMin
	result.Score = authenticityScore(&fp, result.IsSynthetic, result.Confidence)
	result.RiskTier = riskTier(result.Score)
	result.Analysis = deriveAnalysis(&fp)

	c.logger.Debug("text classified",
		zap.Float64("score", result.Score),
		zap.Bool("is_synthetic", result.IsSynthetic),
		zap.Strings("reasons", reasons))

	return result
}

// syntheticIndicators evaluates every deterministic synthetic-text rule and
// returns the fired reason codes with their combined confidence.
func (c *Classifier) syntheticIndicators(text string, fp *Fingerprint) ([]string, float64) {
	var reasons []string
	lower := strings.ToLower(text)
	tokens := wordPattern.FindAllString(lower, -1)

	add := func(reason string) {
		reasons = append(reasons, reason)
	}

	if fp.ReadabilityScore > perfectReadability {
		add(ReasonTooPerfectReadability)
	}
	if len(text) > firstPersonMinLength && !containsAny(tokens, firstPersonPronouns) {
		add(ReasonNoFirstPerson)
	}
	if countPhraseHits(lower, transitionPhrases) >= 3 {
		add(ReasonGenericTransitions)
	}
	if fp.VocabularyRichness < diversityFloor {
		add(ReasonLowLexicalDiversity)
	}
	if countPhraseHits(lower, descriptivePhrases) >= 3 {
		add(ReasonOverlyDescriptive)
	}
	if countWordHits(tokens, superlatives) >= 4 {
		add(ReasonRepeatedSuperlatives)
	}
	if countPhraseHits(lower, marketingPhrases) >= 2 {
		add(ReasonMarketingPhrases)
	}
	if countPhraseHits(lower, enthusiasmPhrases) >= 2 {
		add(ReasonExcessiveEnthusiasm)
	}
	if strings.Count(text, "!") >= 2 {
		add(ReasonExclamationMarks)
	}
	if repeatedSentenceOpeners(text) >= 3 {
		add(ReasonRepetitiveStructure)
	}
	if countPhraseHits(lower, buzzwords) >= 3 {
		add(ReasonMarketingBuzzwords)
	}

	return reasons, float64(len(reasons)) * indicatorWeight
}

// authenticityScore fuses the fingerprint into a bounded score. Base 50,
// minus a synthetic deduction scaled by confidence, plus bonuses for the
// signals that mark engaged human writing.
func authenticityScore(fp *Fingerprint, synthetic bool, confidence float64) float64 {
	score := baseScore

	if synthetic {
		score -= maxSyntheticDeduction * confidence / 100
	}

	// Sentiment intensity: engaged reviewers take a position.
	score += math.Min(math.Abs(fp.SentimentScore)*20, 10)

	// Lexical diversity.
	score += fp.VocabularyRichness * 15

	// Natural variation across syntactic classes.
	if syntacticVariance(fp) > 0.01 {
		score += 8
	}

	// Moderate readability; prose that is neither opaque nor machine-smooth.
	if fp.ReadabilityScore >= 30 && fp.ReadabilityScore <= 70 {
		score += 10
	}

	// Semantic richness per word.
	if fp.WordCount > 0 {
		richness := float64(fp.NamedEntityCount+fp.TopicCount+fp.EmotionalWordCount) / float64(fp.WordCount)
		score += math.Min(richness*50, 10)
	}

	return clamp(score, 0, 100)
}

func syntacticVariance(fp *Fingerprint) float64 {
	ratios := []float64{fp.NounRatio, fp.VerbRatio, fp.AdjectiveRatio, fp.AdverbRatio}
	var mean float64
	for _, r := range ratios {
		mean += r
	}
	mean /= float64(len(ratios))
	var variance float64
	for _, r := range ratios {
		variance += (r - mean) * (r - mean)
	}
	return variance / float64(len(ratios))
}

// deriveAnalysis produces the persisted linguistic summary, each field 0-100.
func deriveAnalysis(fp *Fingerprint) models.LinguisticAnalysis {
	variety := clamp(fp.AvgWordsPerSentence*4, 0, 100)
	if fp.SentenceCount <= 1 {
		variety = clamp(variety/2, 0, 100)
	}

	emotional := clamp(float64(fp.EmotionalWordCount)*15+math.Abs(fp.SentimentScore)*30, 0, 100)
	details := clamp(float64(fp.NamedEntityCount)*12+float64(fp.TopicCount)*15, 0, 100)
	vocabulary := clamp(fp.VocabularyRichness*60+fp.AvgCharsPerWord*5, 0, 100)

	grammar := 50.0
	if fp.ReadabilityScore >= 30 && fp.ReadabilityScore <= 80 {
		grammar = 80
	} else if fp.ReadabilityScore > 80 {
		grammar = 65
	}

	return models.LinguisticAnalysis{
		SentenceVariety:       variety,
		EmotionalAuthenticity: emotional,
		SpecificDetails:       details,
		VocabularyComplexity:  vocabulary,
		GrammarScore:          grammar,
	}
}

func gibberishAnalysis() models.LinguisticAnalysis {
	return models.LinguisticAnalysis{
		SentenceVariety:       5,
		EmotionalAuthenticity: 5,
		SpecificDetails:       0,
		VocabularyComplexity:  5,
		GrammarScore:          10,
	}
}

func riskTier(score float64) models.RiskLevel {
	switch {
	case score >= 70:
		return models.RiskLow
	case score >= 40:
		return models.RiskMedium
	default:
		return models.RiskHigh
	}
}

func repeatedSentenceOpeners(text string) int {
	counts := map[string]int{}
	max := 0
	for _, s := range splitSentences(text) {
		first := strings.ToLower(wordPattern.FindString(s))
		if first == "" {
			continue
		}
		counts[first]++
		if counts[first] > max {
			max = counts[first]
		}
	}
	return max
}

func countPhraseHits(lower string, phrases []string) int {
	hits := 0
	for _, p := range phrases {
		hits += strings.Count(lower, p)
	}
	return hits
}

func countWordHits(tokens []string, words []string) int {
	set := map[string]bool{}
	for _, w := range words {
		set[w] = true
	}
	hits := 0
	for _, t := range tokens {
		if set[t] {
			hits++
		}
	}
	return hits
}

func containsAny(tokens []string, words []string) bool {
	set := map[string]bool{}
	for _, w := range words {
		set[w] = true
	}
	for _, t := range tokens {
		if set[t] {
			return true
		}
	}
	return false
}

func containsReason(reasons []string, reason string) bool {
	for _, r := range reasons {
		if r == reason {
			return true
		}
	}
	return false
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
