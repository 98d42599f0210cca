// Package coinbase builds the coinbase transaction paying the block reward.
package coinbase

import (
	"errors"
	"fmt"
	"math"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/goodnatureofminers/blockinsight7000-miner/internal/tx"
	"github.com/goodnatureofminers/blockinsight7000-miner/internal/witness"
	"github.com/goodnatureofminers/blockinsight7000-miner/pkg/safe"
)

const (
	// DefaultExtraNonce follows the height push in the coinbase script.
	DefaultExtraNonce = "ExtraNonce"

	// MaxScriptSize is the consensus limit on the coinbase script length.
	MaxScriptSize = 100

	txVersion = 1
)

var (
	ErrEmptyPayoutScript = errors.New("payout script is empty")
	ErrNegativeSubsidy   = errors.New("subsidy is negative")
	ErrPayoutTooLarge    = errors.New("payout exceeds the maximum money supply")
	ErrScriptTooLong     = errors.New("coinbase script too long")
)

// Params describes the coinbase of one block.
type Params struct {
	PayoutScript []byte
	Subsidy      btcutil.Amount
	Fees         uint64
	Height       uint32
	ExtraNonce   []byte
	Commitment   chainhash.Hash
}

// HeightPush encodes height as a data push of its minimal little-endian bytes.
// Height zero is an empty push.
func HeightPush(height uint32) []byte {
	push := []byte{0}
	for h := height; h > 0; h >>= 8 {
		push = append(push, byte(h))
	}
	push[0] = byte(len(push) - 1)
	return push
}

// Build creates the coinbase: one null-prevout input carrying the height push and
// extra nonce, a payout of subsidy plus fees, a zero-value witness commitment output
// and a witness stack holding the reserved value.
func Build(p Params) (*tx.Transaction, error) {
	if len(p.PayoutScript) == 0 {
		return nil, ErrEmptyPayoutScript
	}
	if p.Subsidy < 0 {
		return nil, fmt.Errorf("%w: %d", ErrNegativeSubsidy, p.Subsidy)
	}

	payout, err := safe.AddUint64(uint64(p.Subsidy), p.Fees)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPayoutTooLarge, err)
	}
	if payout > uint64(btcutil.MaxSatoshi) {
		return nil, fmt.Errorf("%w: %d", ErrPayoutTooLarge, payout)
	}

	script := append(HeightPush(p.Height), p.ExtraNonce...)
	if len(script) > MaxScriptSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrScriptTooLong, len(script))
	}

	cb, err := tx.New(tx.Params{
		Version:    txVersion,
		IsCoinbase: true,
		Inputs: []tx.Input{{
			PrevIndex: math.MaxUint32,
			ScriptSig: script,
			Sequence:  math.MaxUint32,
		}},
		Outputs: []tx.Output{
			{Value: payout, PkScript: p.PayoutScript},
			{Value: 0, PkScript: witness.CommitmentScript(p.Commitment)},
		},
		Witness: witness.ReservedWitness(),
	})
	if err != nil {
		return nil, fmt.Errorf("build coinbase: %w", err)
	}
	return cb, nil
}
