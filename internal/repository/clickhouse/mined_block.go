package clickhouse

import (
	"fmt"
	"time"

	"github.com/goodnatureofminers/blockinsight7000-miner/internal/difficulty"
	"github.com/goodnatureofminers/blockinsight7000-miner/internal/mining"
	"github.com/goodnatureofminers/blockinsight7000-miner/internal/tx"
	"github.com/goodnatureofminers/blockinsight7000-miner/pkg/safe"
)

// MinedBlock is one row of mined_blocks together with its transactions.
type MinedBlock struct {
	Network      string
	Height       uint32
	Hash         string
	PrevHash     string
	MerkleRoot   string
	Version      int32
	Timestamp    time.Time
	Bits         uint32
	Nonce        uint32
	Difficulty   float64
	TxCount      uint32
	Weight       uint64
	Fees         uint64
	Reward       uint64
	Hashes       uint64
	TimeRolls    uint32
	MinedAt      time.Time
	Transactions []MinedTransaction
}

// MinedTransaction is one row of mined_block_transactions.
type MinedTransaction struct {
	Position   uint32
	TxID       string
	WTxID      string
	Fee        uint64
	Weight     uint64
	IsCoinbase bool
}

// NewMinedBlock flattens a mining result into archive rows.
func NewMinedBlock(network string, height uint32, r *mining.Result, minedAt time.Time) (MinedBlock, error) {
	weight, err := safe.Uint64(r.Weight)
	if err != nil {
		return MinedBlock{}, fmt.Errorf("block weight: %w", err)
	}
	txCount, err := safe.Uint32(len(r.Selected) + 1)
	if err != nil {
		return MinedBlock{}, fmt.Errorf("tx count: %w", err)
	}
	rolls, err := safe.Uint32(r.Stats.TimeRolls)
	if err != nil {
		return MinedBlock{}, fmt.Errorf("time rolls: %w", err)
	}

	h := r.Header.BlockHeader
	block := MinedBlock{
		Network:      network,
		Height:       height,
		Hash:         r.Hash().String(),
		PrevHash:     h.PrevBlock.String(),
		MerkleRoot:   h.MerkleRoot.String(),
		Version:      h.Version,
		Timestamp:    h.Timestamp.UTC(),
		Bits:         h.Bits,
		Nonce:        h.Nonce,
		Difficulty:   difficulty.Difficulty(h.Bits),
		TxCount:      txCount,
		Weight:       weight,
		Fees:         r.Fees,
		Reward:       r.Coinbase.OutputValue(),
		Hashes:       r.Stats.Hashes,
		TimeRolls:    rolls,
		MinedAt:      minedAt.UTC(),
		Transactions: make([]MinedTransaction, 0, txCount),
	}

	var position uint32
	for _, t := range append([]*tx.Transaction{r.Coinbase}, r.Selected...) {
		var fee uint64
		if !t.IsCoinbase() {
			if fee, err = safe.Uint64(t.Fee()); err != nil {
				return MinedBlock{}, fmt.Errorf("fee of %s: %w", t.TxID(), err)
			}
		}
		txWeight, err := safe.Uint64(t.Weight())
		if err != nil {
			return MinedBlock{}, fmt.Errorf("weight of %s: %w", t.TxID(), err)
		}
		block.Transactions = append(block.Transactions, MinedTransaction{
			Position:   position,
			TxID:       t.TxID().String(),
			WTxID:      t.WTxID().String(),
			Fee:        fee,
			Weight:     txWeight,
			IsCoinbase: t.IsCoinbase(),
		})
		position++
	}
	return block, nil
}
