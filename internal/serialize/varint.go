// Package serialize implements the primitive byte encodings shared by transactions and block headers.
package serialize

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/wire"
)

var (
	// ErrTruncated is returned when the input ends before a complete value was read.
	ErrTruncated = errors.New("truncated varint")
	// ErrNonCanonical is returned for varints not encoded with the smallest possible form.
	ErrNonCanonical = errors.New("non-canonical varint")
)

// VarIntSize returns the number of bytes EncodeVarInt produces for i: 1, 3, 5 or 9.
func VarIntSize(i uint64) int {
	return wire.VarIntSerializeSize(i)
}

// EncodeVarInt encodes i using the compact-size rules: one byte below 0xfd, otherwise a
// 0xfd/0xfe/0xff marker followed by a 2, 4 or 8 byte little-endian value.
func EncodeVarInt(i uint64) []byte {
	return AppendVarInt(make([]byte, 0, VarIntSize(i)), i)
}

// AppendVarInt appends the varint encoding of i to dst.
func AppendVarInt(dst []byte, i uint64) []byte {
	switch {
	case i < 0xfd:
		return append(dst, byte(i))
	case i <= 0xffff:
		return binary.LittleEndian.AppendUint16(append(dst, 0xfd), uint16(i))
	case i <= 0xffffffff:
		return binary.LittleEndian.AppendUint32(append(dst, 0xfe), uint32(i))
	default:
		return binary.LittleEndian.AppendUint64(append(dst, 0xff), i)
	}
}

// WriteVarInt writes the varint encoding of i to w.
func WriteVarInt(w io.Writer, i uint64) error {
	return wire.WriteVarInt(w, 0, i)
}

// DecodeVarInt reads a varint from the start of b and returns the value together with
// the number of bytes consumed.
func DecodeVarInt(b []byte) (uint64, int, error) {
	if len(b) == 0 {
		return 0, 0, ErrTruncated
	}

	r := bytes.NewReader(b)
	v, err := wire.ReadVarInt(r, 0)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return 0, 0, ErrTruncated
		}
		return 0, 0, fmt.Errorf("%w: %v", ErrNonCanonical, err)
	}
	return v, len(b) - r.Len(), nil
}

// AppendUint32LE appends v as 4 little-endian bytes.
func AppendUint32LE(dst []byte, v uint32) []byte {
	return binary.LittleEndian.AppendUint32(dst, v)
}

// AppendUint64LE appends v as 8 little-endian bytes.
func AppendUint64LE(dst []byte, v uint64) []byte {
	return binary.LittleEndian.AppendUint64(dst, v)
}

// WriteUint32LE writes v as 4 little-endian bytes.
func WriteUint32LE(w io.Writer, v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

// WriteUint64LE writes v as 8 little-endian bytes.
func WriteUint64LE(w io.Writer, v uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

// ReverseBytes returns a reversed copy of b. Used to move between the display
// order of hashes and the order they are hashed and serialized in.
func ReverseBytes(b []byte) []byte {
	out := make([]byte, len(b))
	for i, v := range b {
		out[len(b)-1-i] = v
	}
	return out
}
