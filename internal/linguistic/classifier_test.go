package linguistic

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vaibhavgarg230/trustlens-sub001/internal/external"
	"github.com/vaibhavgarg230/trustlens-sub001/internal/models"
)

const genuineReview = "I bought this coffee grinder last month and use it every morning. " +
	"The burrs stay consistent, though the hopper lid feels a bit loose. " +
	"Cleanup takes about two minutes."

type stubSignals struct {
	classification *external.Classification
	err            error
	calls          int
}

func (s *stubSignals) ClassifyText(ctx context.Context, text string) (*external.Classification, error) {
	s.calls++
	return s.classification, s.err
}

func TestClassifier_Classify(t *testing.T) {
	ctx := context.Background()

	t.Run("Short Text", func(t *testing.T) {
		classifier := NewClassifier(nil, zap.NewNop())
		result := classifier.Classify(ctx, "ok")

		assert.Equal(t, 40.0, result.Score)
		assert.Equal(t, 30.0, result.Confidence)
		assert.Equal(t, []string{ReasonTextTooShort}, result.ReasonCodes)
		assert.Equal(t, models.RiskMedium, result.RiskTier)
		assert.False(t, result.IsSynthetic)
	})

	t.Run("Gibberish Short-Circuits", func(t *testing.T) {
		classifier := NewClassifier(nil, zap.NewNop())
		result := classifier.Classify(ctx, "asdbsfbsf asdbsfbsf asdbsfbsf")

		assert.True(t, result.IsSynthetic)
		assert.Equal(t, 95.0, result.Confidence)
		assert.Equal(t, 25.0, result.Score)
		assert.Equal(t, models.RiskHigh, result.RiskTier)
		assert.Contains(t, result.ReasonCodes, ReasonRepeatedWord)
	})

	t.Run("Genuine Review", func(t *testing.T) {
		classifier := NewClassifier(nil, zap.NewNop())
		result := classifier.Classify(ctx, genuineReview)

		assert.False(t, result.IsSynthetic)
		assert.Greater(t, result.Score, 70.0)
		assert.Equal(t, models.RiskLow, result.RiskTier)
		assert.Empty(t, result.ReasonCodes)
		require.NotNil(t, result.Fingerprint)
		assert.Greater(t, result.Fingerprint.VocabularyRichness, 0.5)
	})

	t.Run("Marketing Copy Accumulates Indicators", func(t *testing.T) {
		classifier := NewClassifier(nil, zap.NewNop())
		text := "This product is the best, most amazing and perfect purchase! " +
			"Absolutely amazing quality, a real game changer! " +
			"Five stars, must buy, you won't regret it! Simply the greatest!"

		result := classifier.Classify(ctx, text)

		assert.True(t, result.IsSynthetic)
		assert.Contains(t, result.ReasonCodes, ReasonExclamationMarks)
		assert.Contains(t, result.ReasonCodes, ReasonRepeatedSuperlatives)
		assert.Contains(t, result.ReasonCodes, ReasonMarketingPhrases)
		assert.Contains(t, result.ReasonCodes, ReasonExcessiveEnthusiasm)
		assert.GreaterOrEqual(t, result.Confidence, 80.0)
		assert.Less(t, result.Score, 70.0)
	})

	t.Run("External Signal Enriches The Verdict", func(t *testing.T) {
		signals := &stubSignals{classification: &external.Classification{
			Sentiment:           0.4,
			SyntheticLikelihood: 0.9,
		}}
		classifier := NewClassifier(signals, zap.NewNop())

		result := classifier.Classify(ctx, genuineReview)

		assert.Equal(t, 1, signals.calls)
		assert.True(t, result.ExternalUsed)
		assert.Contains(t, result.ReasonCodes, ReasonExternalSignal)
	})

	t.Run("External Failure Degrades To Local Analysis", func(t *testing.T) {
		signals := &stubSignals{err: &models.ExternalServiceError{
			Service: "text-analysis",
			Err:     errors.New("connection refused"),
		}}
		classifier := NewClassifier(signals, zap.NewNop())

		result := classifier.Classify(ctx, genuineReview)

		assert.Equal(t, 1, signals.calls)
		assert.False(t, result.ExternalUsed)
		assert.False(t, result.IsSynthetic)
		assert.Greater(t, result.Score, 70.0, "Local verdict must stand on its own")
	})
}

func TestDetectGibberish(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		reason string
	}{
		{"Repeated Characters", "aaaaawesome product right here", ReasonRepeatedCharacters},
		{"Keyboard Smash", "asdfghjkl good product", ReasonKeyboardSmash},
		{"Repeated Word", "asdbsfbsf asdbsfbsf asdbsfbsf", ReasonRepeatedWord},
		{"Non Alphabetic", "1234 5678 90!! ??", ReasonNonAlphabetic},
		{"Strict CV Alternation", "bababababa is the word", ReasonCVAlternation},
		{"Consonant Clusters", "the bcdfgklm thing", ReasonConsonantClusters},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, DetectGibberish(tt.text), tt.reason)
		})
	}

	t.Run("Short Texts Are Exempt", func(t *testing.T) {
		assert.Empty(t, DetectGibberish("aaaaaa"))
	})

	t.Run("Normal Prose Passes", func(t *testing.T) {
		assert.Empty(t, DetectGibberish(genuineReview))
	})
}

func TestExtract(t *testing.T) {
	t.Run("Counts And Ratios", func(t *testing.T) {
		fp := Extract("The delivery arrived fast. Great quality for the price.")

		assert.Equal(t, 9, fp.WordCount)
		assert.Equal(t, 2, fp.SentenceCount)
		assert.Equal(t, 4.5, fp.AvgWordsPerSentence)
		assert.Positive(t, fp.SentimentScore, "Positive vocabulary should lift sentiment")
		assert.GreaterOrEqual(t, fp.TopicCount, 2, "Delivery and value topics are present")
	})

	t.Run("Empty Text", func(t *testing.T) {
		fp := Extract("")
		assert.Zero(t, fp.WordCount)
		assert.Zero(t, fp.ReadabilityScore)
	})

	t.Run("Named Entities Exclude Sentence Openers", func(t *testing.T) {
		fp := Extract("The package from Acme arrived on Tuesday. Great service.")
		assert.Equal(t, 2, fp.NamedEntityCount)
	})
}
