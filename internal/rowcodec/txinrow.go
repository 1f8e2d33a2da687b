package rowcodec

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/rawblock/scriptquery/internal/store"
)

// TxInRow names a transaction prefix as a candidate spender of a funding
// outpoint. Like TxOutRow it carries no value: a hit must be materialized
// and its inputs re-checked against (funding_txid, funding_vout) before
// being trusted, matching query.rs's find_spending_input.
//
// Key:   TagTxIn ‖ funding_txid(32) ‖ funding_vout(4 BE) ‖ spending_txid[0..PrefixLen]
// Value: empty
type TxInRow struct {
	FundingTxid        chainhash.Hash
	FundingVout        uint32
	SpendingTxidPrefix []byte
}

// NewTxInRow derives the row for a spending candidate from the funding
// outpoint it names and the full txid of the transaction that spends it,
// keeping only the leading PrefixLen bytes of the spending txid.
func NewTxInRow(fundingTxid chainhash.Hash, fundingVout uint32, spendingTxid chainhash.Hash) TxInRow {
	return TxInRow{
		FundingTxid:        fundingTxid,
		FundingVout:        fundingVout,
		SpendingTxidPrefix: txidPrefix(spendingTxid),
	}
}

func (r TxInRow) ToRow() store.Row {
	key := make([]byte, 1+32+4+len(r.SpendingTxidPrefix))
	key[0] = TagTxIn
	copy(key[1:33], r.FundingTxid[:])
	putUint32(key[33:37], r.FundingVout)
	copy(key[37:], r.SpendingTxidPrefix)
	return store.Row{Key: key}
}

func TxInRowFromRow(row store.Row) (TxInRow, error) {
	wantLen := 1 + 32 + 4 + PrefixLen
	if len(row.Key) != wantLen || row.Key[0] != TagTxIn {
		return TxInRow{}, fmt.Errorf("rowcodec: malformed TxInRow key (len=%d)", len(row.Key))
	}
	var r TxInRow
	copy(r.FundingTxid[:], row.Key[1:33])
	r.FundingVout = getUint32(row.Key[33:37])
	r.SpendingTxidPrefix = append([]byte(nil), row.Key[37:]...)
	return r, nil
}

// FilterSpendingByFundingOutpoint returns the scan prefix over every
// TxInRow naming a funding outpoint: the step 4 scan of the C6 status
// algorithm, run once per materialized FundingOutput.
func FilterSpendingByFundingOutpoint(fundingTxid chainhash.Hash, fundingVout uint32) []byte {
	prefix := make([]byte, 1+32+4)
	prefix[0] = TagTxIn
	copy(prefix[1:33], fundingTxid[:])
	putUint32(prefix[33:37], fundingVout)
	return prefix
}
