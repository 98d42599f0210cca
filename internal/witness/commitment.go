// Package witness computes the SegWit witness commitment carried by the coinbase.
package witness

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/goodnatureofminers/blockinsight7000-miner/internal/hashing"
	"github.com/goodnatureofminers/blockinsight7000-miner/internal/tx"
)

// CommitmentScriptSize is the length of the OP_RETURN commitment output script.
const CommitmentScriptSize = 38

// ReservedValue is the witness reserved value placed in the coinbase witness.
var ReservedValue chainhash.Hash

// commitmentTag follows OP_RETURN OP_DATA_36 in the commitment output.
var commitmentTag = [4]byte{0xaa, 0x21, 0xa9, 0xed}

// Commitment returns dsha256(root || ReservedValue), where root is the Merkle root of
// the reserved value followed by the wtxid of every non-coinbase transaction.
func Commitment(txs []*tx.Transaction) (chainhash.Hash, error) {
	leaves := make([]chainhash.Hash, 0, len(txs)+1)
	leaves = append(leaves, ReservedValue)
	for _, t := range txs {
		if t.IsCoinbase() {
			continue
		}
		leaves = append(leaves, t.WTxID())
	}

	root, err := hashing.MerkleRoot(leaves)
	if err != nil {
		return chainhash.Hash{}, fmt.Errorf("witness merkle root: %w", err)
	}

	var buf [chainhash.HashSize * 2]byte
	copy(buf[:chainhash.HashSize], root[:])
	copy(buf[chainhash.HashSize:], ReservedValue[:])
	return hashing.DoubleSHA256(buf[:]), nil
}

// CommitmentScript builds OP_RETURN <0x24> aa21a9ed <commitment>.
func CommitmentScript(commitment chainhash.Hash) []byte {
	script := make([]byte, 0, CommitmentScriptSize)
	script = append(script, txscript.OP_RETURN, txscript.OP_DATA_36)
	script = append(script, commitmentTag[:]...)
	return append(script, commitment[:]...)
}

// ReservedWitness returns a fresh coinbase witness stack holding the reserved value.
func ReservedWitness() tx.Witness {
	return tx.Witness{append([]byte(nil), ReservedValue[:]...)}
}
