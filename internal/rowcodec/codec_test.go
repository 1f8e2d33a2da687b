package rowcodec

import (
	"bytes"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

func mustHash(t *testing.T, b byte) chainhash.Hash {
	t.Helper()
	var h chainhash.Hash
	for i := range h {
		h[i] = b
	}
	return h
}

func TestTxOutRowRoundTrip(t *testing.T) {
	scripthash := [32]byte{1, 2, 3}
	txid := mustHash(t, 0xAB)
	want := NewTxOutRow(scripthash, txid)
	got, err := TxOutRowFromRow(want.ToRow())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Scripthash != want.Scripthash || !bytes.Equal(got.TxidPrefix, want.TxidPrefix) {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, want)
	}
	if len(got.TxidPrefix) != PrefixLen || !bytes.Equal(got.TxidPrefix, txid[:PrefixLen]) {
		t.Fatalf("expected TxidPrefix to be the funding txid's leading %d bytes, got %x", PrefixLen, got.TxidPrefix)
	}
}

func TestTxOutRowHasEmptyValue(t *testing.T) {
	row := NewTxOutRow([32]byte{1}, mustHash(t, 0xAB)).ToRow()
	if len(row.Value) != 0 {
		t.Fatalf("expected empty value, got %x", row.Value)
	}
}

func TestTxInRowRoundTrip(t *testing.T) {
	fundingTxid := mustHash(t, 0xEF)
	spendingTxid := mustHash(t, 0xCD)
	want := NewTxInRow(fundingTxid, 0, spendingTxid)
	got, err := TxInRowFromRow(want.ToRow())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.FundingTxid != want.FundingTxid || got.FundingVout != want.FundingVout || !bytes.Equal(got.SpendingTxidPrefix, want.SpendingTxidPrefix) {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, want)
	}
	if !bytes.Equal(got.SpendingTxidPrefix, spendingTxid[:PrefixLen]) {
		t.Fatalf("expected SpendingTxidPrefix to be the spending txid's leading %d bytes, got %x", PrefixLen, got.SpendingTxidPrefix)
	}
}

func TestTxInRowHasEmptyValue(t *testing.T) {
	row := NewTxInRow(mustHash(t, 0xEF), 0, mustHash(t, 0xCD)).ToRow()
	if len(row.Value) != 0 {
		t.Fatalf("expected empty value, got %x", row.Value)
	}
}

func TestFilterSpendingByFundingOutpointMatchesStoredRow(t *testing.T) {
	fundingTxid := mustHash(t, 0xEF)
	row := NewTxInRow(fundingTxid, 3, mustHash(t, 0xCD)).ToRow()
	prefix := FilterSpendingByFundingOutpoint(fundingTxid, 3)
	if !bytes.HasPrefix(row.Key, prefix) {
		t.Fatalf("expected row key %x to carry prefix %x", row.Key, prefix)
	}
	other := FilterSpendingByFundingOutpoint(fundingTxid, 4)
	if bytes.HasPrefix(row.Key, other) {
		t.Fatalf("row for vout 3 must not match a scan for vout 4")
	}
}

func TestTxRowRoundTrip(t *testing.T) {
	want := TxRow{
		Txid:      mustHash(t, 0x11),
		Height:    100,
		BlockHash: mustHash(t, 0x22),
	}
	got, err := TxRowFromRow(want.ToRow())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != want {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, want)
	}
}

func TestTxRowMempoolSentinelHeights(t *testing.T) {
	for _, h := range []int32{0, -1, 800000} {
		row := TxRow{Txid: mustHash(t, 0x33), Height: h}
		got, err := TxRowFromRow(row.ToRow())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Height != h {
			t.Fatalf("height %d did not round trip, got %d", h, got.Height)
		}
	}
}

func TestRawTxRowRoundTrip(t *testing.T) {
	want := RawTxRow{Txid: mustHash(t, 0x44), Raw: []byte{0xde, 0xad, 0xbe, 0xef}}
	got, err := RawTxRowFromRow(want.ToRow())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Txid != want.Txid || !bytes.Equal(got.Raw, want.Raw) {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, want)
	}
}

func TestBlockMetaRowRoundTrip(t *testing.T) {
	want := BlockMetaRow{
		Hash:      mustHash(t, 0x55),
		Height:    900000,
		PrevHash:  mustHash(t, 0x66),
		Timestamp: 1700000000,
		TxCount:   2500,
		Size:      1 << 20,
		Weight:    4 << 20,
	}
	got, err := BlockMetaRowFromRow(want.ToRow())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != want {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, want)
	}
}

// TestTxidPrefixCollisionFiltering verifies that two distinct txids sharing
// the same PrefixLen leading bytes both surface under FilterTxByTxid, and
// that a caller comparing the decoded Txid field tells them apart — the
// collision-filtering behavior query.rs's filter_full relies on.
func TestTxidPrefixCollisionFiltering(t *testing.T) {
	old := PrefixLen
	PrefixLen = 4
	defer func() { PrefixLen = old }()

	var a, b chainhash.Hash
	for i := 0; i < 4; i++ {
		a[i], b[i] = 0x77, 0x77
	}
	a[31], b[31] = 0x01, 0x02 // differ outside the shared prefix

	rowA := TxRow{Txid: a, Height: 1}.ToRow()
	rowB := TxRow{Txid: b, Height: 2}.ToRow()

	prefix := FilterTxByTxid(a)
	if !bytes.HasPrefix(rowA.Key, prefix) || !bytes.HasPrefix(rowB.Key, prefix) {
		t.Fatalf("expected both rows to share scan prefix %x", prefix)
	}

	decodedA, err := TxRowFromRow(rowA)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	decodedB, err := TxRowFromRow(rowB)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decodedA.Txid != a || decodedB.Txid != b {
		t.Fatalf("decoded txids must distinguish collisions: got %x and %x", decodedA.Txid, decodedB.Txid)
	}
}

func TestComputeScripthashDeterministic(t *testing.T) {
	script := []byte{0x76, 0xa9, 0x14, 0x01, 0x02, 0x03}
	h1 := ComputeScripthash(script)
	h2 := ComputeScripthash(script)
	if h1 != h2 {
		t.Fatalf("expected deterministic hash, got %x vs %x", h1, h2)
	}
	other := ComputeScripthash([]byte{0x00})
	if h1 == other {
		t.Fatalf("expected different scripts to hash differently")
	}
}
