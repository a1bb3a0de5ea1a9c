// Package behavioral classifies session timing signals as human or automated.
package behavioral

import (
	"math"
)

// MinSampleSize is the smallest timing sequence the extractor accepts.
const MinSampleSize = 5

// Pattern thresholds over inter-event intervals in milliseconds.
const (
	// naturalRhythmThreshold is the minimum variance of successive deltas a
	// human-paced sequence shows.
	naturalRhythmThreshold = 500.0

	// accelerationThreshold is the second-difference magnitude that counts
	// as a speed change; accelerationRatio is the fraction of windows that
	// must show one.
	accelerationThreshold = 40.0
	accelerationRatio     = 0.3

	// pauseFactor marks an interval as a pause when it exceeds this multiple
	// of the mean.
	pauseFactor = 1.5
)

// Features are the statistical descriptors derived from a timing sequence.
type Features struct {
	SampleCount int     `json:"sample_count"`
	Mean        float64 `json:"mean"`
	Variance    float64 `json:"variance"`
	StdDev      float64 `json:"std_dev"`
	Skewness    float64 `json:"skewness"`
	Kurtosis    float64 `json:"kurtosis"`

	HasNaturalRhythm bool    `json:"has_natural_rhythm"`
	HasAcceleration  bool    `json:"has_acceleration"`
	HasPauses        bool    `json:"has_pauses"`
	Consistency      float64 `json:"consistency"`
}

// Extract converts a sequence of inter-event intervals into statistical
// descriptors. The caller guarantees len(intervals) >= MinSampleSize.
func Extract(intervals []int) Features {
	n := len(intervals)
	values := make([]float64, n)
	for i, v := range intervals {
		values[i] = float64(v)
	}

	features := Features{SampleCount: n}

	var sum float64
	for _, v := range values {
		sum += v
	}
	features.Mean = sum / float64(n)

	var m2, m3, m4 float64
	for _, v := range values {
		d := v - features.Mean
		m2 += d * d
		m3 += d * d * d
		m4 += d * d * d * d
	}
	features.Variance = m2 / float64(n)
	features.StdDev = math.Sqrt(features.Variance)

	if features.StdDev > 0 {
		features.Skewness = (m3 / float64(n)) / math.Pow(features.StdDev, 3)
		features.Kurtosis = (m4/float64(n))/math.Pow(features.Variance, 2) - 3
	}

	features.HasNaturalRhythm = deltaVariance(values) > naturalRhythmThreshold
	features.HasAcceleration = accelerationShare(values) >= accelerationRatio
	features.HasPauses = hasPauses(values, features.Mean)
	features.Consistency = consistency(values, features.Mean)

	return features
}

// deltaVariance is the population variance of successive differences.
func deltaVariance(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	deltas := make([]float64, 0, len(values)-1)
	var sum float64
	for i := 1; i < len(values); i++ {
		d := values[i] - values[i-1]
		deltas = append(deltas, d)
		sum += d
	}
	mean := sum / float64(len(deltas))
	var variance float64
	for _, d := range deltas {
		variance += (d - mean) * (d - mean)
	}
	return variance / float64(len(deltas))
}

// accelerationShare is the fraction of three-sample windows whose second
// difference exceeds the acceleration threshold.
func accelerationShare(values []float64) float64 {
	if len(values) < 3 {
		return 0
	}
	windows := len(values) - 2
	hits := 0
	for i := 0; i < windows; i++ {
		second := values[i+2] - 2*values[i+1] + values[i]
		if math.Abs(second) > accelerationThreshold {
			hits++
		}
	}
	return float64(hits) / float64(windows)
}

func hasPauses(values []float64, mean float64) bool {
	for _, v := range values {
		if v > mean*pauseFactor {
			return true
		}
	}
	return false
}

// consistency is 1 minus the mean absolute deviation normalized by the mean,
// clamped to [0,1]. A perfectly regular sequence scores 1.
func consistency(values []float64, mean float64) float64 {
	if mean == 0 {
		return 0
	}
	var mad float64
	for _, v := range values {
		mad += math.Abs(v - mean)
	}
	mad /= float64(len(values))

	c := 1 - mad/mean
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
