package daemon

import (
	"bytes"

	"github.com/btcsuite/btcd/wire"
	"github.com/rawblock/scriptquery/internal/txwire"
)

func serializeTx(tx *wire.MsgTx) ([]byte, error) {
	return txwire.EncodeTx(tx)
}

func deserializeTx(raw []byte) (*wire.MsgTx, error) {
	return txwire.DecodeTx(raw)
}

func serializeBlock(block *wire.MsgBlock) ([]byte, error) {
	var buf bytes.Buffer
	if err := block.Serialize(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
