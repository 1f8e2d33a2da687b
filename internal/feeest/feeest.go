// Package feeest is the C8 fee estimator: given the mempool's fee-rate
// histogram (highest fee rate first, cumulative vsize per bucket), it
// answers "what fee rate clears a transaction within this many vbytes of
// mempool backlog." Grounded on query.rs's estimate_fee.
package feeest

import "github.com/rawblock/scriptquery/internal/mempool"

// satPerVBToBTCPerKB converts sat/vB to BTC/kB, the unit estimate_fee
// reports in query.rs.
const satPerVBToBTCPerKB = 1e-5

// Estimate walks the histogram accumulating vsize from the highest fee
// rate down, tracking the fee rate of whichever bucket is current when the
// vsize threshold is crossed — the crossing bucket's own rate wins, not
// the one before it, matching query.rs's estimate_fee (last_fee_rate is
// assigned before the cumulative-vsize break check). An empty histogram
// reports 0.
func Estimate(histogram []mempool.FeeBucket, vsizeThreshold int64) (btcPerKB float64) {
	var lastRate float64
	for _, bucket := range histogram {
		lastRate = bucket.FeeRateSatVB
		if bucket.CumVsize >= vsizeThreshold {
			break
		}
	}
	return lastRate * satPerVBToBTCPerKB
}

// EstimateForBlocks converts a confirmation-target block count into a
// vsize threshold (one block's worth of backlog per target) and delegates
// to Estimate. blockVsize is the chain's effective block size budget in
// vbytes (e.g. 1_000_000 for Bitcoin's default policy weight/4).
func EstimateForBlocks(histogram []mempool.FeeBucket, confTarget int, blockVsize int64) (btcPerKB float64) {
	if confTarget < 1 {
		confTarget = 1
	}
	return Estimate(histogram, int64(confTarget)*blockVsize)
}
