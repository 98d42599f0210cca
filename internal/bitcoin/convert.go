package bitcoin

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// ErrInvalidHash is returned for a block hash that is not 32 bytes of hex.
var ErrInvalidHash = errors.New("block hash must be 64 hex characters")

// BtcToSatoshis converts a BTC amount to satoshis, dropping any fraction of a
// satoshi. Negative, non-finite and above-supply amounts are rejected.
func BtcToSatoshis(value float64) (btcutil.Amount, error) {
	if _, err := btcutil.NewAmount(value); err != nil {
		return 0, err
	}
	if value < 0 {
		return 0, fmt.Errorf("negative amount: %v", value)
	}
	amt := btcutil.Amount(math.Trunc(value * btcutil.SatoshiPerBitcoin))
	if amt > btcutil.MaxSatoshi {
		return 0, fmt.Errorf("amount %v above the money supply", amt)
	}
	return amt, nil
}

// ParseRawHash decodes 64 hex characters into a hash without reversing them, so
// the bytes land in the header in the order they are written.
func ParseRawHash(s string) (chainhash.Hash, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return chainhash.Hash{}, fmt.Errorf("%w: %v", ErrInvalidHash, err)
	}
	h, err := chainhash.NewHash(b)
	if err != nil {
		return chainhash.Hash{}, fmt.Errorf("%w: %v", ErrInvalidHash, err)
	}
	return *h, nil
}
