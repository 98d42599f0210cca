package clickhouse

import (
	"context"
	"fmt"
	"time"
)

const insertMinedBlockQuery = `
INSERT INTO mined_blocks (
	network,
	height,
	hash,
	prev_hash,
	merkle_root,
	version,
	timestamp,
	bits,
	nonce,
	difficulty,
	tx_count,
	weight,
	fees,
	reward,
	hashes,
	time_rolls,
	mined_at
) VALUES`

const insertMinedBlockTransactionsQuery = `
INSERT INTO mined_block_transactions (
	network,
	block_hash,
	position,
	txid,
	wtxid,
	fee,
	weight,
	is_coinbase
) VALUES`

// InsertMinedBlock stores a mined block and its transactions. Transaction rows are
// sent first so a block row is only visible once its transactions are.
func (r *Repository) InsertMinedBlock(ctx context.Context, block MinedBlock) error {
	start := time.Now()
	var err error
	defer func() {
		r.metrics.Observe("insert_mined_block", block.Network, err, start)
	}()

	if err = r.insertTransactions(ctx, block); err != nil {
		return err
	}

	batch, err := r.conn.PrepareBatch(ctx, insertMinedBlockQuery)
	if err != nil {
		return fmt.Errorf("prepare mined block batch: %w", err)
	}

	if err = batch.Append(
		block.Network,
		block.Height,
		block.Hash,
		block.PrevHash,
		block.MerkleRoot,
		block.Version,
		block.Timestamp,
		block.Bits,
		block.Nonce,
		block.Difficulty,
		block.TxCount,
		block.Weight,
		block.Fees,
		block.Reward,
		block.Hashes,
		block.TimeRolls,
		block.MinedAt,
	); err != nil {
		_ = batch.Abort()
		return fmt.Errorf("append mined block: %w", err)
	}

	if err = batch.Send(); err != nil {
		return fmt.Errorf("insert mined block: %w", err)
	}
	return nil
}

func (r *Repository) insertTransactions(ctx context.Context, block MinedBlock) error {
	if len(block.Transactions) == 0 {
		return nil
	}

	batch, err := r.conn.PrepareBatch(ctx, insertMinedBlockTransactionsQuery)
	if err != nil {
		return fmt.Errorf("prepare mined block transactions batch: %w", err)
	}

	for _, t := range block.Transactions {
		if err = batch.Append(
			block.Network,
			block.Hash,
			t.Position,
			t.TxID,
			t.WTxID,
			t.Fee,
			t.Weight,
			t.IsCoinbase,
		); err != nil {
			_ = batch.Abort()
			return fmt.Errorf("append mined block transaction: %w", err)
		}
	}

	if err = batch.Send(); err != nil {
		return fmt.Errorf("insert mined block transactions: %w", err)
	}
	return nil
}
