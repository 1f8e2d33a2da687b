// Package amount abstracts over the two ways an output's value reaches the
// index: plain (a transparent chain's output carries its value directly)
// and confidential (an Elements-style chain tags each output Explicit or
// Confidential, the latter unreadable without the blinding key). The query
// engine decodes every output value through the Decoder interface, so the
// chain variant is a single config switch (CHAIN_VARIANT) rather than
// scattered type assertions; the row codec and the mempool tracker record
// no values and do not use it.
package amount

// Decoder resolves a single output's spendable value for indexing
// purposes. Confidential outputs that are not Explicit resolve to 0: the
// index cannot see their true value, and spec.md's balance/UTXO views are
// defined in terms of what the index can observe.
type Decoder interface {
	Decode(out RawOutput) uint64
}

// RawOutput is the subset of an output's fields a Decoder needs, kept
// narrow so callers don't need to depend on a specific wire representation.
type RawOutput struct {
	// Plain is the transparent value, valid when Confidential is false.
	Plain uint64
	// Confidential marks an Elements-style confidential output.
	Confidential bool
	// Explicit is true when a Confidential output's value is unblinded
	// (tagged "Explicit" rather than "Confidential" in the original wire
	// encoding). ExplicitValue is only meaningful when both are true.
	Explicit      bool
	ExplicitValue uint64
}

// TransparentDecoder is used for Bitcoin-style chains where every output
// carries its value directly.
type TransparentDecoder struct{}

func (TransparentDecoder) Decode(out RawOutput) uint64 {
	return out.Plain
}

// ConfidentialDecoder is used for Elements-style chains. Non-explicit
// (truly confidential) outputs decode to 0, matching query.rs's handling
// of the Confidential variant of a tagged amount union.
type ConfidentialDecoder struct{}

func (ConfidentialDecoder) Decode(out RawOutput) uint64 {
	if !out.Confidential {
		return out.Plain
	}
	if out.Explicit {
		return out.ExplicitValue
	}
	return 0
}

// Variant names the CHAIN_VARIANT config value, resolved once at startup
// into the Decoder the rest of the process shares.
type Variant string

const (
	VariantTransparent  Variant = "transparent"
	VariantConfidential Variant = "confidential"
)

// NewDecoder resolves a Variant into its Decoder, failing closed on an
// unrecognized value so a typo in configuration can't silently misprice
// every output.
func NewDecoder(v Variant) (Decoder, error) {
	switch v {
	case VariantTransparent, "":
		return TransparentDecoder{}, nil
	case VariantConfidential:
		return ConfidentialDecoder{}, nil
	default:
		return nil, &UnknownVariantError{Variant: v}
	}
}

// UnknownVariantError is returned by NewDecoder for an unrecognized
// CHAIN_VARIANT value.
type UnknownVariantError struct {
	Variant Variant
}

func (e *UnknownVariantError) Error() string {
	return "amount: unknown chain variant " + string(e.Variant)
}
