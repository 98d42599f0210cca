// Package mining assembles candidate blocks and searches for a proof of work.
package mining

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/goodnatureofminers/blockinsight7000-miner/pkg/safe"
)

const (
	// BlockVersion is the header version of every assembled block.
	BlockVersion int32 = 4

	// DefaultMaxWeight is the consensus block weight limit.
	DefaultMaxWeight int64 = blockchain.MaxBlockWeight

	// DefaultCoinbaseReserve is kept free during selection for the header, the
	// transaction count and the coinbase. Assemble trims the selection when the
	// finished block still exceeds the weight limit.
	DefaultCoinbaseReserve int64 = 544

	// DefaultMaxTimeRolls bounds how often the timestamp is bumped after the nonce
	// space of a header is exhausted.
	DefaultMaxTimeRolls = 16
)

var (
	ErrInvalidTarget       = errors.New("target must be positive and at most 256 bits")
	ErrInvalidWeightBudget = errors.New("coinbase reserve leaves no room in the block")
	ErrInvalidTimestamp    = errors.New("timestamp does not fit the header")
	ErrNonceSpaceExhausted = errors.New("nonce space exhausted")
	ErrBlockOverweight     = errors.New("block exceeds the weight limit")
)

// Template holds everything besides the transactions that goes into a block.
type Template struct {
	// PrevBlock is copied into the header as is.
	PrevBlock    chainhash.Hash
	Target       *big.Int
	Height       uint32
	Subsidy      btcutil.Amount
	PayoutScript []byte
	ExtraNonce   []byte
	// Timestamp of the header. The zero value selects the miner clock.
	Timestamp time.Time
	// MaxWeight of the block. Zero selects DefaultMaxWeight.
	MaxWeight int64
	// CoinbaseReserve is subtracted from MaxWeight. Zero selects DefaultCoinbaseReserve.
	CoinbaseReserve int64
}

func (t Template) maxWeight() int64 {
	if t.MaxWeight == 0 {
		return DefaultMaxWeight
	}
	return t.MaxWeight
}

func (t Template) coinbaseReserve() int64 {
	if t.CoinbaseReserve == 0 {
		return DefaultCoinbaseReserve
	}
	return t.CoinbaseReserve
}

func (t Template) validate() error {
	if t.Target == nil || t.Target.Sign() <= 0 || t.Target.BitLen() > 256 {
		return ErrInvalidTarget
	}
	if t.CoinbaseReserve < 0 || t.maxWeight() <= t.coinbaseReserve() {
		return fmt.Errorf("%w: max weight %d, reserve %d", ErrInvalidWeightBudget, t.maxWeight(), t.coinbaseReserve())
	}
	if _, err := safe.Uint32(t.Timestamp.Unix()); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTimestamp, err)
	}
	return nil
}
