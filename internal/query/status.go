package query

import (
	"crypto/sha256"
	"fmt"
	"log"
	"sort"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/rawblock/scriptquery/pkg/chainmodels"
)

// Status is the funding/spending view of one scripthash, split into
// confirmed and mempool halves so balance, history, and UTXO views can
// each decide how to treat unconfirmed activity. Grounded on query.rs's
// Status{confirmed: (Vec<FundingOutput>, Vec<SpendingInput>), mempool: (..)}.
type Status struct {
	ConfirmedFunding  []chainmodels.FundingOutput
	ConfirmedSpending []chainmodels.SpendingInput
	MempoolFunding    []chainmodels.FundingOutput
	MempoolSpending   []chainmodels.SpendingInput
}

// ConfirmedBalance sums confirmed funding minus confirmed spending.
func (s *Status) ConfirmedBalance() int64 {
	return sumFunding(s.ConfirmedFunding) - sumSpending(s.ConfirmedSpending)
}

// MempoolBalance sums mempool funding minus mempool spending. Added to
// ConfirmedBalance it gives the total balance including unconfirmed
// activity, the same split query.rs exposes so a client can show "N BTC
// confirmed, M BTC pending" rather than a single blended number.
func (s *Status) MempoolBalance() int64 {
	return sumFunding(s.MempoolFunding) - sumSpending(s.MempoolSpending)
}

func sumFunding(f []chainmodels.FundingOutput) int64 {
	var total int64
	for _, o := range f {
		total += int64(o.Value)
	}
	return total
}

func sumSpending(s []chainmodels.SpendingInput) int64 {
	var total int64
	for _, in := range s {
		total += int64(in.Value)
	}
	return total
}

// History returns every transaction touching this scripthash, mempool
// transactions that have an unconfirmed parent first, then mempool
// transactions with no unconfirmed parent, then confirmed transactions by
// ascending height; entries at the same height sort by txid. A transaction that
// both funds and spends this scripthash (or appears via more than one
// output) surfaces once: this is the structural de-dup the open question
// in SPEC_FULL.md relies on instead of an explicit pre-pass.
func (s *Status) History() []chainmodels.HistoryEntry {
	seen := make(map[chainhash.Hash]chainmodels.HistoryEntry)
	add := func(txid chainhash.Hash, height int32) {
		if _, ok := seen[txid]; !ok {
			seen[txid] = chainmodels.HistoryEntry{Height: height, Txid: txid}
		}
	}
	for _, o := range s.ConfirmedFunding {
		add(o.Txid, o.Height)
	}
	for _, in := range s.ConfirmedSpending {
		add(in.Txid, in.Height)
	}
	for _, o := range s.MempoolFunding {
		add(o.Txid, o.Height)
	}
	for _, in := range s.MempoolSpending {
		add(in.Txid, in.Height)
	}

	out := make([]chainmodels.HistoryEntry, 0, len(seen))
	for _, e := range seen {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		ki, kj := historySortKey(out[i].Height), historySortKey(out[j].Height)
		if ki != kj {
			return ki < kj
		}
		return lessHash(out[i].Txid, out[j].Txid)
	})
	return out
}

// historySortKey maps a real height to itself (so confirmed entries sort
// ascending among themselves) and maps the two mempool sentinels below every
// real height, has-deps before no-deps.
func historySortKey(height int32) int64 {
	switch {
	case height == chainmodels.HeightMempoolHasDeps:
		return -2
	case height == chainmodels.HeightMempoolNoDeps:
		return -1
	default:
		return int64(height)
	}
}

func lessHash(a, b chainhash.Hash) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// Unspent returns every funding output not consumed by a spending input
// seen in either phase, matching query.rs's unspent(): collect fundings by
// outpoint, then remove one entry per spending input that names it,
// warning (not erroring) if a spending input names an outpoint this Status
// never saw fund — the collection is scripthash-scoped, so that can
// legitimately happen when a scan sees the spend side before the fund side
// ages into the same snapshot.
func (s *Status) Unspent() []chainmodels.UTXO {
	byOutpoint := make(map[chainmodels.Outpoint]chainmodels.UTXO)
	addFunding := func(outputs []chainmodels.FundingOutput) {
		for _, o := range outputs {
			op := chainmodels.Outpoint{Txid: o.Txid, Vout: o.Vout}
			byOutpoint[op] = chainmodels.UTXO{Outpoint: op, Height: o.Height, Value: o.Value}
		}
	}
	addFunding(s.ConfirmedFunding)
	addFunding(s.MempoolFunding)

	removeSpent := func(inputs []chainmodels.SpendingInput) {
		for _, in := range inputs {
			if _, ok := byOutpoint[in.Funding]; !ok {
				log.Printf("[Query] spending input %s names unknown funding outpoint %s:%d", in.Txid, in.Funding.Txid, in.Funding.Vout)
				continue
			}
			delete(byOutpoint, in.Funding)
		}
	}
	removeSpent(s.ConfirmedSpending)
	removeSpent(s.MempoolSpending)

	out := make([]chainmodels.UTXO, 0, len(byOutpoint))
	for _, u := range byOutpoint {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Height != out[j].Height {
			return historySortKey(out[i].Height) < historySortKey(out[j].Height)
		}
		return out[i].Outpoint.Vout < out[j].Outpoint.Vout
	})
	return out
}

// Hash returns the scripthash status hash Electrum's subscribe protocol
// compares across polls: SHA-256 over "txid_be_hex:height:" for every
// history entry concatenated in order, or nil when history is empty
// (meaning "no activity", distinguishable from a real hash).
func (s *Status) Hash() *chainhash.Hash {
	history := s.History()
	if len(history) == 0 {
		return nil
	}
	h := sha256.New()
	for _, e := range history {
		fmt.Fprintf(h, "%s:%d:", e.Txid.String(), e.Height)
	}
	var out chainhash.Hash
	copy(out[:], h.Sum(nil))
	return &out
}
