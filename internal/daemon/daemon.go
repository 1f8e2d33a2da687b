// Package daemon is the C9 upstream client: the narrow RPC surface the
// query engine and mempool tracker fall back to when the index and cache
// can't answer a request themselves. Grounded on internal/bitcoin/client.go,
// which wraps btcsuite/btcd/rpcclient the same way for a watch-only wallet
// client; we keep its connection setup and fee-estimation fallback chain
// and narrow the method set to what the query engine actually calls.
package daemon

import (
	"context"
	"fmt"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/rpcclient"
)

// Client is the interface the query engine and mempool tracker depend on,
// kept small enough that tests supply a hand-written fake instead of a
// mocking framework.
type Client interface {
	GetRawTransaction(ctx context.Context, txid chainhash.Hash) ([]byte, error)
	GetRawTransactionVerbose(ctx context.Context, txid chainhash.Hash) (*btcjson.TxRawResult, error)
	GetRawMempool(ctx context.Context) ([]chainhash.Hash, error)
	GetRawMempoolVerbose(ctx context.Context) (map[string]btcjson.GetMempoolEntryResult, error)
	GetBlock(ctx context.Context, hash chainhash.Hash) ([]byte, error)
	GetBlockVerbose(ctx context.Context, hash chainhash.Hash) (*btcjson.GetBlockVerboseResult, error)
	GetBlockHash(ctx context.Context, height int64) (chainhash.Hash, error)
	GetBlockCount(ctx context.Context) (int64, error)
	SendRawTransaction(ctx context.Context, raw []byte) (chainhash.Hash, error)
	EstimateSmartFeeSatVB(ctx context.Context, confTarget int64) (float64, error)
}

// Config names the three environment values cmd/server reads for BTC_RPC_HOST,
// BTC_RPC_USER, BTC_RPC_PASS.
type Config struct {
	Host string
	User string
	Pass string
}

// RPCClient is the btcd-backed Client implementation used in production.
type RPCClient struct {
	rpc *rpcclient.Client
}

// NewRPCClient connects over HTTP POST (no ZMQ, no persistent connection)
// the same way internal/bitcoin/client.go's NewClient does, and verifies
// connectivity with a GetBlockCount round trip before returning.
func NewRPCClient(cfg Config) (*RPCClient, error) {
	connCfg := &rpcclient.ConnConfig{
		Host:         cfg.Host,
		User:         cfg.User,
		Pass:         cfg.Pass,
		HTTPPostMode: true,
		DisableTLS:   true,
	}
	rpc, err := rpcclient.New(connCfg, nil)
	if err != nil {
		return nil, fmt.Errorf("daemon: connect: %w", err)
	}
	if _, err := rpc.GetBlockCount(); err != nil {
		return nil, fmt.Errorf("daemon: verify connectivity: %w", err)
	}
	return &RPCClient{rpc: rpc}, nil
}

func (c *RPCClient) GetRawTransaction(_ context.Context, txid chainhash.Hash) ([]byte, error) {
	tx, err := c.rpc.GetRawTransaction(&txid)
	if err != nil {
		return nil, fmt.Errorf("daemon: get raw transaction %s: %w", txid, err)
	}
	var buf []byte
	buf, err = serializeTx(tx.MsgTx())
	if err != nil {
		return nil, fmt.Errorf("daemon: serialize transaction %s: %w", txid, err)
	}
	return buf, nil
}

func (c *RPCClient) GetRawTransactionVerbose(_ context.Context, txid chainhash.Hash) (*btcjson.TxRawResult, error) {
	result, err := c.rpc.GetRawTransactionVerbose(&txid)
	if err != nil {
		return nil, fmt.Errorf("daemon: get raw transaction verbose %s: %w", txid, err)
	}
	return result, nil
}

func (c *RPCClient) GetRawMempool(_ context.Context) ([]chainhash.Hash, error) {
	hashes, err := c.rpc.GetRawMempool()
	if err != nil {
		return nil, fmt.Errorf("daemon: get raw mempool: %w", err)
	}
	out := make([]chainhash.Hash, len(hashes))
	for i, h := range hashes {
		out[i] = *h
	}
	return out, nil
}

// GetRawMempoolVerbose surfaces each mempool entry's fee, vsize, and
// in-mempool dependency list, the inputs the mempool tracker needs to
// assign a transaction its synthetic height and fee-histogram bucket
// without decoding every transaction twice. Grounded on
// internal/bitcoin/client.go's GetRawMempoolVerbose, which backfills
// fees.base for older node versions; we keep that same wrapper shape but
// trust the field as returned since spec.md does not target pre-fees.base
// daemon versions.
func (c *RPCClient) GetRawMempoolVerbose(_ context.Context) (map[string]btcjson.GetMempoolEntryResult, error) {
	entries, err := c.rpc.GetRawMempoolVerbose()
	if err != nil {
		return nil, fmt.Errorf("daemon: get raw mempool verbose: %w", err)
	}
	return entries, nil
}

func (c *RPCClient) GetBlock(_ context.Context, hash chainhash.Hash) ([]byte, error) {
	block, err := c.rpc.GetBlock(&hash)
	if err != nil {
		return nil, fmt.Errorf("daemon: get block %s: %w", hash, err)
	}
	var buf []byte
	buf, err = serializeBlock(block)
	if err != nil {
		return nil, fmt.Errorf("daemon: serialize block %s: %w", hash, err)
	}
	return buf, nil
}

func (c *RPCClient) GetBlockVerbose(_ context.Context, hash chainhash.Hash) (*btcjson.GetBlockVerboseResult, error) {
	result, err := c.rpc.GetBlockVerbose(&hash)
	if err != nil {
		return nil, fmt.Errorf("daemon: get block verbose %s: %w", hash, err)
	}
	return result, nil
}

func (c *RPCClient) GetBlockHash(_ context.Context, height int64) (chainhash.Hash, error) {
	hash, err := c.rpc.GetBlockHash(height)
	if err != nil {
		return chainhash.Hash{}, fmt.Errorf("daemon: get block hash at %d: %w", height, err)
	}
	return *hash, nil
}

func (c *RPCClient) GetBlockCount(_ context.Context) (int64, error) {
	count, err := c.rpc.GetBlockCount()
	if err != nil {
		return 0, fmt.Errorf("daemon: get block count: %w", err)
	}
	return count, nil
}

func (c *RPCClient) SendRawTransaction(_ context.Context, raw []byte) (chainhash.Hash, error) {
	tx, err := deserializeTx(raw)
	if err != nil {
		return chainhash.Hash{}, fmt.Errorf("daemon: decode transaction to broadcast: %w", err)
	}
	hash, err := c.rpc.SendRawTransaction(tx, false)
	if err != nil {
		return chainhash.Hash{}, fmt.Errorf("daemon: broadcast transaction: %w", err)
	}
	return *hash, nil
}

// EstimateSmartFeeSatVB mirrors internal/bitcoin/client.go's fallback
// chain: try ECONOMICAL mode, then CONSERVATIVE, then fall back to the
// node's mempool fee floor rather than erroring out when the node hasn't
// accumulated enough fee data yet for the requested target.
func (c *RPCClient) EstimateSmartFeeSatVB(_ context.Context, confTarget int64) (float64, error) {
	satPerVB, err := c.estimateSmartFeeByMode(confTarget, btcjson.EstimateModeEconomical)
	if err == nil {
		return satPerVB, nil
	}
	satPerVB, err = c.estimateSmartFeeByMode(confTarget, btcjson.EstimateModeConservative)
	if err == nil {
		return satPerVB, nil
	}
	return c.mempoolFeeFloorSatPerVB()
}

func (c *RPCClient) estimateSmartFeeByMode(confTarget int64, mode btcjson.EstimateSmartFeeMode) (float64, error) {
	result, err := c.rpc.EstimateSmartFee(confTarget, &mode)
	if err != nil {
		return 0, err
	}
	if result.FeeRate == nil || !isFinitePositive(*result.FeeRate) {
		return 0, fmt.Errorf("daemon: no fee estimate available for target %d", confTarget)
	}
	return btcPerKVbToSatPerVB(*result.FeeRate), nil
}

func (c *RPCClient) mempoolFeeFloorSatPerVB() (float64, error) {
	info, err := c.rpc.GetMempoolInfo()
	if err != nil {
		return 0, fmt.Errorf("daemon: get mempool info: %w", err)
	}
	if !isFinitePositive(info.MempoolMinFee) {
		return 1.0, nil
	}
	return btcPerKVbToSatPerVB(info.MempoolMinFee), nil
}

func isFinitePositive(v float64) bool {
	return v > 0 && v < 1e18
}

func btcPerKVbToSatPerVB(btcPerKVb float64) float64 {
	return btcPerKVb * 1e8 / 1000
}
