package feeest

import (
	"testing"

	"github.com/rawblock/scriptquery/internal/mempool"
)

func TestEstimateReturnsCrossingBucketScaled(t *testing.T) {
	histogram := []mempool.FeeBucket{
		{FeeRateSatVB: 50, CumVsize: 100_000},
		{FeeRateSatVB: 20, CumVsize: 300_000},
		{FeeRateSatVB: 10, CumVsize: 600_000},
	}
	got := Estimate(histogram, 300_000)
	want := 20 * satPerVBToBTCPerKB
	if got != want {
		t.Fatalf("got %v, want %v (the bucket that crosses the threshold, scaled to BTC/kB)", got, want)
	}
}

func TestEstimateCrossesOnFirstBucket(t *testing.T) {
	histogram := []mempool.FeeBucket{{FeeRateSatVB: 50, CumVsize: 500_000}}
	got := Estimate(histogram, 100_000)
	want := 50 * satPerVBToBTCPerKB
	if got != want {
		t.Fatalf("got %v, want %v (first bucket already crosses the threshold)", got, want)
	}
}

func TestEstimateEmptyHistogramReturnsZero(t *testing.T) {
	if got := Estimate(nil, 100_000); got != 0 {
		t.Fatalf("got %v, want 0 for an empty histogram", got)
	}
}

func TestEstimateForBlocksScalesThreshold(t *testing.T) {
	histogram := []mempool.FeeBucket{
		{FeeRateSatVB: 30, CumVsize: 900_000},
		{FeeRateSatVB: 5, CumVsize: 2_000_000},
	}
	got := EstimateForBlocks(histogram, 1, 1_000_000)
	want := 5 * satPerVBToBTCPerKB
	if got != want {
		t.Fatalf("got %v, want %v", got, want)
	}
}

// TestEstimateForBlocksScenario6 is spec scenario 6 verbatim: per-bucket
// vsizes (100,600000),(50,900000),(10,2000000) accumulate to cumulative
// vsize 600k / 1.5M / 3.5M; estimate_fee(2) must return 10.0 x 1e-5 = 1e-4.
func TestEstimateForBlocksScenario6(t *testing.T) {
	histogram := []mempool.FeeBucket{
		{FeeRateSatVB: 100, CumVsize: 600_000},
		{FeeRateSatVB: 50, CumVsize: 1_500_000},
		{FeeRateSatVB: 10, CumVsize: 3_500_000},
	}
	got := EstimateForBlocks(histogram, 2, 1_000_000)
	want := 1e-4
	if got != want {
		t.Fatalf("got %v, want %v", got, want)
	}
}
