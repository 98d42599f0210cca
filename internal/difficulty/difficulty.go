// Package difficulty converts proof-of-work targets to and from the compact bits form.
package difficulty

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/chaincfg"
)

const (
	targetBytes = 32
	signBit     = 0x00800000
)

// ErrInvalidTarget is returned for targets that are empty, not hex or wider than 256 bits.
var ErrInvalidTarget = errors.New("invalid target")

// ParseTarget decodes a big-endian hex target. An optional 0x prefix is accepted.
func ParseTarget(s string) (*big.Int, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if s == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidTarget)
	}
	if len(s)%2 == 1 {
		s = "0" + s
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTarget, err)
	}
	target := new(big.Int).SetBytes(b)
	if target.BitLen() > targetBytes*8 {
		return nil, fmt.Errorf("%w: wider than 256 bits", ErrInvalidTarget)
	}
	return target, nil
}

// TargetToBits encodes target as (size << 24) | coefficient, where size is the byte
// length of target and coefficient its three most significant bytes. A coefficient
// with the sign bit set is shifted down a byte and size incremented. Zero encodes as 0.
func TargetToBits(target *big.Int) uint32 {
	if target == nil || target.Sign() <= 0 {
		return 0
	}

	size := uint((target.BitLen() + 7) / 8)
	var coefficient uint64
	if size <= 3 {
		coefficient = target.Uint64() << (8 * (3 - size))
	} else {
		coefficient = new(big.Int).Rsh(target, 8*(size-3)).Uint64()
	}

	if coefficient&signBit != 0 {
		coefficient >>= 8
		size++
	}
	return uint32(size)<<24 | uint32(coefficient)
}

// TargetHexToBits parses a hex target and encodes it.
func TargetHexToBits(s string) (uint32, error) {
	target, err := ParseTarget(s)
	if err != nil {
		return 0, err
	}
	return TargetToBits(target), nil
}

// BitsToTarget expands compact bits into the target it stands for. Precision below
// the three coefficient bytes is lost.
func BitsToTarget(bits uint32) *big.Int {
	return blockchain.CompactToBig(bits)
}

// Difficulty is the mainnet proof-of-work limit divided by the target of bits.
func Difficulty(bits uint32) float64 {
	target := BitsToTarget(bits)
	if target.Sign() <= 0 {
		return 0
	}
	limit := BitsToTarget(chaincfg.MainNetParams.PowLimitBits)
	d, _ := new(big.Float).Quo(new(big.Float).SetInt(limit), new(big.Float).SetInt(target)).Float64()
	return d
}
