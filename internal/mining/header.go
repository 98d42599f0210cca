package mining

import (
	"encoding/binary"
	"encoding/hex"
	"math/big"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// HeaderSize is the length of a serialized block header.
const HeaderSize = wire.MaxBlockHeaderPayload

const nonceOffset = HeaderSize - 4

// Header is the block header being mined.
type Header struct {
	wire.BlockHeader
}

// NewHeader builds a header with nonce zero. The timestamp is truncated to seconds.
func NewHeader(prev, merkleRoot chainhash.Hash, timestamp time.Time, bits uint32) Header {
	return Header{BlockHeader: wire.BlockHeader{
		Version:    BlockVersion,
		PrevBlock:  prev,
		MerkleRoot: merkleRoot,
		Timestamp:  time.Unix(timestamp.Unix(), 0),
		Bits:       bits,
	}}
}

// Bytes returns the 80-byte header: version, previous hash, merkle root, timestamp,
// bits and nonce, integers little-endian.
func (h Header) Bytes() []byte {
	b := h.array()
	return b[:]
}

func (h Header) array() [HeaderSize]byte {
	var b [HeaderSize]byte
	binary.LittleEndian.PutUint32(b[0:4], uint32(h.Version))
	copy(b[4:36], h.PrevBlock[:])
	copy(b[36:68], h.MerkleRoot[:])
	binary.LittleEndian.PutUint32(b[68:72], uint32(h.Timestamp.Unix()))
	binary.LittleEndian.PutUint32(b[72:76], h.Bits)
	binary.LittleEndian.PutUint32(b[nonceOffset:], h.Nonce)
	return b
}

// Hex returns the hex encoding of Bytes.
func (h Header) Hex() string {
	return hex.EncodeToString(h.Bytes())
}

// Hash returns the double-SHA256 of the header. Its String method gives the
// reversed digest shown as the block hash.
func (h Header) Hash() chainhash.Hash {
	b := h.array()
	return chainhash.DoubleHashH(b[:])
}

// targetBytes is a target as 32 big-endian bytes.
type targetBytes [chainhash.HashSize]byte

func newTargetBytes(target *big.Int) (targetBytes, error) {
	var tb targetBytes
	if target == nil || target.Sign() <= 0 || target.BitLen() > 256 {
		return tb, ErrInvalidTarget
	}
	target.FillBytes(tb[:])
	return tb, nil
}

// below reports whether the reversed digest, read as a big-endian integer, is
// strictly less than the target.
func (tb *targetBytes) below(hash *chainhash.Hash) bool {
	for i := 0; i < chainhash.HashSize; i++ {
		d, t := hash[chainhash.HashSize-1-i], tb[i]
		if d != t {
			return d < t
		}
	}
	return false
}

// MeetsTarget reports whether the header hash is below target.
func (h Header) MeetsTarget(target *big.Int) bool {
	tb, err := newTargetBytes(target)
	if err != nil {
		return false
	}
	hash := h.Hash()
	return tb.below(&hash)
}
