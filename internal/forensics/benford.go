// Package forensics holds the statistical and cross-contract checks that run
// over the whole dataset rather than one contract at a time.
package forensics

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

const (
	// MinBenfordSamples is the smallest sample the analysis accepts.
	MinBenfordSamples = 50
	// BenfordThreshold is the per-digit deviation above which the
	// distribution is flagged.
	BenfordThreshold = 0.05
)

var ErrInsufficientSamples = errors.New("insufficient samples for benford analysis")

type DigitStat struct {
	Digit       int     `json:"digit"`
	Observed    int     `json:"observed"`
	ObservedPct float64 `json:"observed_pct"`
	ExpectedPct float64 `json:"expected_pct"`
	Delta       float64 `json:"delta"`
}

type BenfordResult struct {
	Samples      int         `json:"samples"`
	Digits       []DigitStat `json:"digits"`
	MaxDelta     float64     `json:"max_delta"`
	SuspectDigit int         `json:"suspect_digit"`
	ChiSquare    float64     `json:"chi_square"`
	PValue       float64     `json:"p_value"`
	Anomalous    bool        `json:"anomalous"`
}

// BenfordExpected is log10(1 + 1/d), the expected share of leading digit d.
func BenfordExpected(d int) float64 {
	return math.Log10(1 + 1/float64(d))
}

// LeadingDigit returns the first non-zero digit of v. Zero has none.
func LeadingDigit(v decimal.Decimal) (int, bool) {
	s := strings.TrimLeft(strings.ReplaceAll(v.Abs().String(), ".", ""), "0")
	if s == "" {
		return 0, false
	}
	return int(s[0] - '0'), true
}

// Benford compares the leading digits of values with Benford's law. Values
// without a leading digit are ignored.
func Benford(values []decimal.Decimal) (BenfordResult, error) {
	var counts [10]int
	samples := 0
	for _, v := range values {
		if d, ok := LeadingDigit(v); ok {
			counts[d]++
			samples++
		}
	}
	if samples < MinBenfordSamples {
		return BenfordResult{Samples: samples}, fmt.Errorf("%w: got %d, need %d", ErrInsufficientSamples, samples, MinBenfordSamples)
	}

	res := BenfordResult{Samples: samples, Digits: make([]DigitStat, 0, 9)}
	observed := make([]float64, 9)
	expected := make([]float64, 9)

	n := float64(samples)
	for d := 1; d <= 9; d++ {
		obsPct := float64(counts[d]) / n
		expPct := BenfordExpected(d)
		delta := math.Abs(obsPct - expPct)

		res.Digits = append(res.Digits, DigitStat{
			Digit:       d,
			Observed:    counts[d],
			ObservedPct: obsPct,
			ExpectedPct: expPct,
			Delta:       delta,
		})
		if delta > res.MaxDelta {
			res.MaxDelta = delta
			res.SuspectDigit = d
		}

		observed[d-1] = float64(counts[d])
		expected[d-1] = expPct * n
	}

	res.ChiSquare = stat.ChiSquare(observed, expected)
	res.PValue = distuv.ChiSquared{K: 8}.Survival(res.ChiSquare)
	res.Anomalous = res.MaxDelta > BenfordThreshold
	return res, nil
}
