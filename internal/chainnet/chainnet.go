// Package chainnet resolves the NETWORK config value into the btcd chain
// parameters the rest of the process needs for address encoding and RPC
// client setup.
package chainnet

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg"
)

// Params resolves a network name (as read from the NETWORK env var) into
// the matching chaincfg.Params. Unknown names fail fast at startup rather
// than silently defaulting to mainnet.
func Params(network string) (*chaincfg.Params, error) {
	switch network {
	case "mainnet", "":
		return &chaincfg.MainNetParams, nil
	case "testnet", "testnet3":
		return &chaincfg.TestNet3Params, nil
	case "regtest":
		return &chaincfg.RegressionNetParams, nil
	case "signet":
		return &chaincfg.SigNetParams, nil
	default:
		return nil, fmt.Errorf("chainnet: unknown network %q", network)
	}
}
