package mining

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/goodnatureofminers/blockinsight7000-miner/internal/hashing"
	"github.com/goodnatureofminers/blockinsight7000-miner/internal/tx"
	"go.uber.org/zap"
)

// PoolEntry is a block member known either as a parsed transaction or only by its
// display-order txid.
type PoolEntry struct {
	tx *tx.Transaction
	id string
}

// TransactionEntry wraps a parsed transaction.
func TransactionEntry(t *tx.Transaction) PoolEntry {
	return PoolEntry{tx: t}
}

// PrecomputedID wraps a txid computed elsewhere. It is parsed only when the Merkle
// root is built.
func PrecomputedID(id string) PoolEntry {
	return PoolEntry{id: id}
}

// Transaction returns the wrapped transaction, or nil for a precomputed id.
func (e PoolEntry) Transaction() *tx.Transaction {
	return e.tx
}

// DisplayID returns the txid in display order.
func (e PoolEntry) DisplayID() string {
	if e.tx != nil {
		return e.tx.TxID().String()
	}
	return e.id
}

// MerkleRoot resolves every entry to its txid and builds the root. Precomputed ids
// that do not parse are skipped and reported as anomalies.
func MerkleRoot(logger *zap.Logger, entries []PoolEntry) (chainhash.Hash, []hashing.Anomaly, error) {
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.DisplayID())
	}
	return hashing.MerkleRootFromIDs(logger, ids)
}
