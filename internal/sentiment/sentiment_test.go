package sentiment

import (
	"math"
	"testing"

	"github.com/abelbrown/divyadrishti/internal/model"
)

func TestNormalize(t *testing.T) {
	got := Normalize(model.Sentiment{Positive: 3, Negative: 1, Neutral: 0})
	if got.Positive != 75 || got.Negative != 25 || got.Neutral != 0 {
		t.Errorf("expected {75,25,0}, got %+v", got)
	}
	if got.NoData() {
		t.Error("non-zero counts should not be NoData")
	}
	if got.Total != 4 {
		t.Errorf("expected total 4, got %v", got.Total)
	}
}

func TestNormalizeZeroTotal(t *testing.T) {
	got := Normalize(model.Sentiment{})
	if got.Positive != 0 || got.Negative != 0 || got.Neutral != 0 {
		t.Errorf("expected all-zero shares, got %+v", got)
	}
	if !got.NoData() {
		t.Error("zero counts should be NoData")
	}
	for _, v := range []float64{got.Positive, got.Negative, got.Neutral} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Errorf("share must be finite, got %v", v)
		}
	}
}

func TestNormalizeThirds(t *testing.T) {
	got := Normalize(model.Sentiment{Positive: 1, Negative: 1, Neutral: 1})
	if PercentOneDecimal(got.Positive) != "33.3%" {
		t.Errorf("expected 33.3%%, got %s", PercentOneDecimal(got.Positive))
	}
	if Percent(got.Neutral) != "33%" {
		t.Errorf("expected 33%%, got %s", Percent(got.Neutral))
	}
	sum := got.Positive + got.Negative + got.Neutral
	if math.Abs(sum-100) > 1e-9 {
		t.Errorf("shares should sum to ~100, got %v", sum)
	}
}
