package addresses

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
)

func TestClassifyOpReturn(t *testing.T) {
	script, err := txscript.NewScriptBuilder().AddOp(txscript.OP_RETURN).AddData([]byte("hello")).Script()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	typ, addr := Classify(script, &chaincfg.MainNetParams)
	if typ != TypeOpReturn {
		t.Fatalf("got %q, want %q", typ, TypeOpReturn)
	}
	if addr != "" {
		t.Fatalf("expected no address for OP_RETURN, got %q", addr)
	}
}

func TestClassifyEmptyScriptIsFee(t *testing.T) {
	typ, _ := Classify(nil, &chaincfg.MainNetParams)
	if typ != TypeFee {
		t.Fatalf("got %q, want %q", typ, TypeFee)
	}
}

func TestClassifyP2PKH(t *testing.T) {
	pkHash := make([]byte, 20)
	script, err := txscript.NewScriptBuilder().
		AddOp(txscript.OP_DUP).
		AddOp(txscript.OP_HASH160).
		AddData(pkHash).
		AddOp(txscript.OP_EQUALVERIFY).
		AddOp(txscript.OP_CHECKSIG).
		Script()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	typ, addr := Classify(script, &chaincfg.MainNetParams)
	if typ != TypeP2PKH {
		t.Fatalf("got %q, want %q", typ, TypeP2PKH)
	}
	if addr == "" {
		t.Fatalf("expected a decoded address for p2pkh")
	}
}
