// Package hashing implements double-SHA256 and the Bitcoin Merkle tree reduction.
package hashing

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"go.uber.org/zap"
)

var (
	// ErrEmptyMerkleTree is returned when no leaves are left to build a root from.
	ErrEmptyMerkleTree = errors.New("merkle tree has no leaves")
	// ErrMalformedID is returned for ids that are not 32 bytes of hex.
	ErrMalformedID = errors.New("malformed transaction id")
)

// DoubleSHA256 hashes raw bytes twice with SHA-256.
func DoubleSHA256(b []byte) chainhash.Hash {
	return chainhash.DoubleHashH(b)
}

// DoubleSHA256Hex decodes s and hashes the resulting bytes, never the hex characters.
func DoubleSHA256Hex(s string) (chainhash.Hash, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return chainhash.Hash{}, fmt.Errorf("decode hex: %w", err)
	}
	return DoubleSHA256(b), nil
}

// MerkleRoot reduces leaves pairwise until one hash remains. A level with an odd
// number of nodes pairs its last node with itself. Leaves are in internal byte order.
func MerkleRoot(leaves []chainhash.Hash) (chainhash.Hash, error) {
	if len(leaves) == 0 {
		return chainhash.Hash{}, ErrEmptyMerkleTree
	}

	level := append([]chainhash.Hash(nil), leaves...)
	var pair [chainhash.HashSize * 2]byte
	for len(level) > 1 {
		for i := 0; i < len(level); i += 2 {
			right := level[i]
			if i+1 < len(level) {
				right = level[i+1]
			}
			copy(pair[:chainhash.HashSize], level[i][:])
			copy(pair[chainhash.HashSize:], right[:])
			level[i/2] = chainhash.DoubleHashH(pair[:])
		}
		level = level[:(len(level)+1)/2]
	}
	return level[0], nil
}

// Anomaly records an id that was left out of a Merkle computation.
type Anomaly struct {
	Index int
	ID    string
	Err   error
}

// ParseID parses a display-order transaction id into internal byte order.
func ParseID(id string) (chainhash.Hash, error) {
	if len(id) != chainhash.MaxHashStringSize {
		return chainhash.Hash{}, fmt.Errorf("%w: %d hex characters", ErrMalformedID, len(id))
	}
	h, err := chainhash.NewHashFromStr(id)
	if err != nil {
		return chainhash.Hash{}, fmt.Errorf("%w: %v", ErrMalformedID, err)
	}
	return *h, nil
}

// MerkleRootFromIDs computes the Merkle root of display-order ids. Ids that do not
// parse are skipped, logged and returned as anomalies. If nothing parses the result
// is ErrEmptyMerkleTree.
func MerkleRootFromIDs(logger *zap.Logger, ids []string) (chainhash.Hash, []Anomaly, error) {
	leaves := make([]chainhash.Hash, 0, len(ids))
	var anomalies []Anomaly
	for i, id := range ids {
		h, err := ParseID(id)
		if err != nil {
			logger.Error("skipping transaction id in merkle tree",
				zap.Int("index", i),
				zap.String("txid", id),
				zap.Error(err),
			)
			anomalies = append(anomalies, Anomaly{Index: i, ID: id, Err: err})
			continue
		}
		leaves = append(leaves, h)
	}

	root, err := MerkleRoot(leaves)
	if err != nil {
		return chainhash.Hash{}, anomalies, err
	}
	return root, anomalies, nil
}
