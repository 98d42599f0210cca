package mining

import (
	"fmt"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/goodnatureofminers/blockinsight7000-miner/internal/coinbase"
	"github.com/goodnatureofminers/blockinsight7000-miner/internal/difficulty"
	"github.com/goodnatureofminers/blockinsight7000-miner/internal/hashing"
	"github.com/goodnatureofminers/blockinsight7000-miner/internal/serialize"
	"github.com/goodnatureofminers/blockinsight7000-miner/internal/tx"
	"github.com/goodnatureofminers/blockinsight7000-miner/internal/witness"
	"github.com/goodnatureofminers/blockinsight7000-miner/pkg/safe"
	"go.uber.org/zap"
)

// Candidate is an assembled block waiting for its proof of work.
type Candidate struct {
	Header   Header
	Coinbase *tx.Transaction
	// Selected holds the pool transactions in block order, without the coinbase.
	Selected  []*tx.Transaction
	Fees      uint64
	Weight    int64
	Anomalies []hashing.Anomaly
}

// Transactions returns a new slice with the coinbase followed by the selected transactions.
func (c *Candidate) Transactions() []*tx.Transaction {
	out := make([]*tx.Transaction, 0, len(c.Selected)+1)
	out = append(out, c.Coinbase)
	return append(out, c.Selected...)
}

// Assemble selects transactions from candidates, builds the coinbase paying subsidy
// plus fees and commits to the selection in a header with nonce zero. Selected
// transactions are dropped from the tail while the finished block exceeds the weight
// limit. The candidates slice is not modified. tmpl.Timestamp must be set.
func Assemble(logger *zap.Logger, tmpl Template, candidates []*tx.Transaction) (*Candidate, error) {
	if err := tmpl.validate(); err != nil {
		return nil, err
	}

	selected, _ := Select(candidates, tmpl.maxWeight(), tmpl.coinbaseReserve())

	var (
		cb     *tx.Transaction
		fees   uint64
		weight int64
	)
	for {
		var err error
		if cb, fees, err = buildCoinbase(tmpl, selected); err != nil {
			return nil, err
		}
		weight = BlockWeight(cb, selected)
		if weight <= tmpl.maxWeight() {
			break
		}
		if len(selected) == 0 {
			return nil, fmt.Errorf("%w: %d > %d", ErrBlockOverweight, weight, tmpl.maxWeight())
		}
		// the reserve was too small for the real coinbase
		selected = selected[:len(selected)-1]
	}

	c := &Candidate{
		Coinbase: cb,
		Selected: selected,
		Fees:     fees,
		Weight:   weight,
	}

	entries := make([]PoolEntry, 0, len(selected)+1)
	for _, t := range c.Transactions() {
		entries = append(entries, TransactionEntry(t))
	}
	root, anomalies, err := MerkleRoot(logger, entries)
	if err != nil {
		return nil, fmt.Errorf("merkle root: %w", err)
	}
	c.Anomalies = anomalies

	c.Header = NewHeader(tmpl.PrevBlock, root, tmpl.Timestamp, difficulty.TargetToBits(tmpl.Target))
	return c, nil
}

func buildCoinbase(tmpl Template, selected []*tx.Transaction) (*tx.Transaction, uint64, error) {
	fees, err := totalFees(selected)
	if err != nil {
		return nil, 0, err
	}

	commitment, err := witness.Commitment(selected)
	if err != nil {
		return nil, 0, fmt.Errorf("witness commitment: %w", err)
	}

	cb, err := coinbase.Build(coinbase.Params{
		PayoutScript: tmpl.PayoutScript,
		Subsidy:      tmpl.Subsidy,
		Fees:         fees,
		Height:       tmpl.Height,
		ExtraNonce:   tmpl.ExtraNonce,
		Commitment:   commitment,
	})
	if err != nil {
		return nil, 0, err
	}
	return cb, fees, nil
}

// BlockWeight returns the consensus weight of a block holding the header, the
// transaction count, cb and selected.
func BlockWeight(cb *tx.Transaction, selected []*tx.Transaction) int64 {
	base := HeaderSize + serialize.VarIntSize(uint64(len(selected)+1))
	weight := int64(base)*blockchain.WitnessScaleFactor + cb.Weight()
	for _, t := range selected {
		weight += t.Weight()
	}
	return weight
}

func totalFees(txs []*tx.Transaction) (uint64, error) {
	fees := make([]uint64, 0, len(txs))
	for _, t := range txs {
		fee, err := safe.Uint64(t.Fee())
		if err != nil {
			return 0, fmt.Errorf("tx %s fee %d: %w", t.TxID(), t.Fee(), err)
		}
		fees = append(fees, fee)
	}
	total, err := safe.AddUint64(fees...)
	if err != nil {
		return 0, fmt.Errorf("total fees: %w", err)
	}
	return total, nil
}
