package aggregate

import "testing"

func TestComputeWeightsClass1AndClass2Higher(t *testing.T) {
	base := Stats{MarketID: "m1", WindowCount: 10, AvgDurationMs: 2000, AvgSpread: 0.10}

	allOther := base
	allOther.Class1Count, allOther.Class2Count = 0, 0

	allClass1 := base
	allClass1.Class1Count = 10

	scoreOther := Compute(allOther)
	scoreClass1 := Compute(allClass1)

	if scoreClass1.FrequencyScore <= scoreOther.FrequencyScore {
		t.Errorf("class-1-heavy frequency score %v should exceed other-class score %v", scoreClass1.FrequencyScore, scoreOther.FrequencyScore)
	}
}

func TestComputeClampsCompositeAtZero(t *testing.T) {
	s := Stats{MarketID: "m1", WindowCount: 10, NoiseRatio: 1.0}
	score := Compute(s)
	if score.CompositeScore != 0 {
		t.Errorf("CompositeScore = %v, want 0 when noise swamps the other terms", score.CompositeScore)
	}
}

func TestComputeCapsEachTermAtItsMax(t *testing.T) {
	s := Stats{
		MarketID:      "m1",
		WindowCount:   1000,
		Class1Count:   1000,
		AvgDurationMs: 1_000_000,
		AvgSpread:     5.0,
	}
	score := Compute(s)
	if score.FrequencyScore != 30 {
		t.Errorf("FrequencyScore = %v, want capped at 30", score.FrequencyScore)
	}
	if score.DurationScore != 30 {
		t.Errorf("DurationScore = %v, want capped at 30", score.DurationScore)
	}
	if score.SpreadScore != 25 {
		t.Errorf("SpreadScore = %v, want capped at 25", score.SpreadScore)
	}
}

func TestComputeZeroWindowsYieldsZeroScore(t *testing.T) {
	score := Compute(Stats{MarketID: "m1"})
	if score.CompositeScore != 0 {
		t.Errorf("CompositeScore = %v, want 0 for an empty stats row", score.CompositeScore)
	}
}
