// Package addresses derives a human-readable address (or script-type
// label) from a scriptPubKey, grounded on rest.rs's scriptpubkey_type
// handling in TransactionValue: a transaction's outputs are rendered with
// both their script type and, where one exists, a decoded address.
package addresses

import (
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
)

// ScriptType names the classes rest.rs distinguishes, plus the
// confidential-chain "fee" output (an explicit zero-script output marking
// the network fee, which Non-goals keep us from constructing but not from
// recognizing on read).
type ScriptType string

const (
	TypeFee                 ScriptType = "fee"
	TypeOpReturn            ScriptType = "op_return"
	TypeP2PK                ScriptType = "p2pk"
	TypeP2PKH               ScriptType = "p2pkh"
	TypeP2SH                ScriptType = "p2sh"
	TypeV0P2WPKH            ScriptType = "v0_p2wpkh"
	TypeV0P2WSH             ScriptType = "v0_p2wsh"
	TypeProvablyUnspendable ScriptType = "provably_unspendable"
	TypeUnknown             ScriptType = "unknown"
)

// Classify reports the script type and, when the script encodes one
// address unambiguously, its string form.
func Classify(scriptPubKey []byte, params *chaincfg.Params) (ScriptType, string) {
	if len(scriptPubKey) == 0 {
		return TypeFee, ""
	}

	class := txscript.GetScriptClass(scriptPubKey)

	switch class {
	case txscript.NullDataTy:
		return TypeOpReturn, ""
	case txscript.PubKeyTy:
		return typeWithAddress(TypeP2PK, scriptPubKey, params)
	case txscript.PubKeyHashTy:
		return typeWithAddress(TypeP2PKH, scriptPubKey, params)
	case txscript.ScriptHashTy:
		return typeWithAddress(TypeP2SH, scriptPubKey, params)
	case txscript.WitnessV0PubKeyHashTy:
		return typeWithAddress(TypeV0P2WPKH, scriptPubKey, params)
	case txscript.WitnessV0ScriptHashTy:
		return typeWithAddress(TypeV0P2WSH, scriptPubKey, params)
	case txscript.NonStandardTy:
		if isProvablyUnspendable(scriptPubKey) {
			return TypeProvablyUnspendable, ""
		}
		return TypeUnknown, ""
	default:
		return TypeUnknown, ""
	}
}

func typeWithAddress(t ScriptType, scriptPubKey []byte, params *chaincfg.Params) (ScriptType, string) {
	_, addrs, _, err := txscript.ExtractPkScriptAddrs(scriptPubKey, params)
	if err != nil || len(addrs) != 1 {
		return t, ""
	}
	return t, addrs[0].EncodeAddress()
}

// isProvablyUnspendable matches rest.rs's distinction between a script
// that can never be redeemed (starts OP_FALSE OP_VERIFY, or OP_RETURN past
// the standardness length limit so it never reached NullDataTy above) and
// one that is merely unrecognized by our script-class table.
func isProvablyUnspendable(scriptPubKey []byte) bool {
	if len(scriptPubKey) == 0 {
		return false
	}
	if scriptPubKey[0] == txscript.OP_RETURN {
		return true
	}
	return len(scriptPubKey) >= 2 && scriptPubKey[0] == txscript.OP_FALSE && scriptPubKey[1] == txscript.OP_VERIFY
}
