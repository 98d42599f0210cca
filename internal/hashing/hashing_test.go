package hashing

import (
	"bytes"
	"encoding/hex"
	"errors"
	"reflect"
	"testing"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestDoubleSHA256(t *testing.T) {
	got := DoubleSHA256(nil)
	if want := "5df6e0e2761359d30a8275058e299fcc0381534545f55cf43e41983f5d4c9456"; hex.EncodeToString(got[:]) != want {
		t.Fatalf("DoubleSHA256(nil) = %x, want %s", got[:], want)
	}
	if DoubleSHA256([]byte{}) != got {
		t.Errorf("nil and empty input hash differently")
	}
}

func TestDoubleSHA256Hex(t *testing.T) {
	fromHex, err := DoubleSHA256Hex("00ff")
	if err != nil {
		t.Fatalf("DoubleSHA256Hex() error = %v", err)
	}
	if fromHex != DoubleSHA256([]byte{0x00, 0xff}) {
		t.Errorf("DoubleSHA256Hex() = %s, want the digest of the decoded bytes", fromHex)
	}
	if fromHex == DoubleSHA256([]byte("00ff")) {
		t.Errorf("DoubleSHA256Hex() hashed the hex characters")
	}

	if _, err = DoubleSHA256Hex("zz"); err == nil {
		t.Errorf("DoubleSHA256Hex(zz) error = nil")
	}
}

func TestDoubleSHA256DeterminismAndAvalanche(t *testing.T) {
	input := bytes.Repeat([]byte{0x5a}, 80)
	base := DoubleSHA256(input)
	if DoubleSHA256(input) != base || DoubleSHA256(base[:]) != DoubleSHA256(base[:]) {
		t.Fatalf("DoubleSHA256() is not deterministic")
	}

	for _, bit := range []int{0, 7, 100, 333, 639} {
		flipped := append([]byte(nil), input...)
		flipped[bit/8] ^= 1 << (bit % 8)
		got := DoubleSHA256(flipped)
		if got == base {
			t.Fatalf("flipping bit %d did not change the digest", bit)
		}

		var differing int
		for i := range got {
			differing += popcount(got[i] ^ base[i])
		}
		if differing < 64 {
			t.Fatalf("flipping bit %d changed only %d output bits", bit, differing)
		}
	}
}

func popcount(b byte) int {
	n := 0
	for ; b != 0; b &= b - 1 {
		n++
	}
	return n
}

func leaf(b byte) chainhash.Hash {
	return DoubleSHA256([]byte{b})
}

func pairHash(a, b chainhash.Hash) chainhash.Hash {
	return DoubleSHA256(append(append([]byte(nil), a[:]...), b[:]...))
}

func TestMerkleRoot(t *testing.T) {
	a, b, c := leaf(1), leaf(2), leaf(3)

	tests := []struct {
		name    string
		leaves  []chainhash.Hash
		want    chainhash.Hash
		wantErr error
	}{
		{name: "empty", leaves: nil, wantErr: ErrEmptyMerkleTree},
		{name: "single leaf is the root", leaves: []chainhash.Hash{a}, want: a},
		{name: "pair", leaves: []chainhash.Hash{a, b}, want: pairHash(a, b)},
		{
			name:   "odd count duplicates last once",
			leaves: []chainhash.Hash{a, b, c},
			want:   pairHash(pairHash(a, b), pairHash(c, c)),
		},
		{
			name:   "duplicate applies per level",
			leaves: []chainhash.Hash{a, b, c, a, b},
			want: func() chainhash.Hash {
				l1 := []chainhash.Hash{pairHash(a, b), pairHash(c, a), pairHash(b, b)}
				l2 := []chainhash.Hash{pairHash(l1[0], l1[1]), pairHash(l1[2], l1[2])}
				return pairHash(l2[0], l2[1])
			}(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MerkleRoot(tt.leaves)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("MerkleRoot() error = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Fatalf("MerkleRoot() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestMerkleRootDoesNotMutateLeaves(t *testing.T) {
	leaves := []chainhash.Hash{leaf(1), leaf(2), leaf(3)}
	before := append([]chainhash.Hash(nil), leaves...)
	if _, err := MerkleRoot(leaves); err != nil {
		t.Fatalf("MerkleRoot() error = %v", err)
	}
	if !reflect.DeepEqual(leaves, before) {
		t.Fatalf("MerkleRoot() modified its input")
	}
}

func TestMerkleRootMatchesBlockchain(t *testing.T) {
	for n := 1; n <= 9; n++ {
		txs := make([]*btcutil.Tx, 0, n)
		leaves := make([]chainhash.Hash, 0, n)
		for i := 0; i < n; i++ {
			msg := wire.NewMsgTx(wire.TxVersion)
			msg.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&chainhash.Hash{byte(i)}, uint32(i)), nil, nil))
			msg.AddTxOut(wire.NewTxOut(int64(1000+i), []byte{0x51}))
			txs = append(txs, btcutil.NewTx(msg))
			leaves = append(leaves, msg.TxHash())
		}

		got, err := MerkleRoot(leaves)
		if err != nil {
			t.Fatalf("%d leaves: MerkleRoot() error = %v", n, err)
		}
		if want := blockchain.CalcMerkleRoot(txs, false); got != want {
			t.Errorf("%d leaves: MerkleRoot() = %s, want %s", n, got, want)
		}
	}
}

func TestParseID(t *testing.T) {
	h := leaf(9)
	got, err := ParseID(h.String())
	if err != nil {
		t.Fatalf("ParseID() error = %v", err)
	}
	if got != h {
		t.Errorf("ParseID(%s) = %s, want the internal order hash back", h, got)
	}

	for _, bad := range []string{"", "abcd", h.String() + "00", "zz" + h.String()[2:]} {
		if _, err := ParseID(bad); !errors.Is(err, ErrMalformedID) {
			t.Errorf("ParseID(%q) error = %v, want %v", bad, err, ErrMalformedID)
		}
	}
}

func TestMerkleRootFromIDs(t *testing.T) {
	a, b := leaf(1), leaf(2)

	tests := []struct {
		name          string
		ids           []string
		want          chainhash.Hash
		wantAnomalies []int
		wantErr       error
	}{
		{
			name: "all ids parse",
			ids:  []string{a.String(), b.String()},
			want: pairHash(a, b),
		},
		{
			name:          "malformed id is skipped",
			ids:           []string{a.String(), "not-a-txid", b.String()},
			want:          pairHash(a, b),
			wantAnomalies: []int{1},
		},
		{
			name:          "short id is skipped",
			ids:           []string{"abcd", a.String()},
			want:          a,
			wantAnomalies: []int{0},
		},
		{
			name:          "nothing left fails loudly",
			ids:           []string{"", "00"},
			wantAnomalies: []int{0, 1},
			wantErr:       ErrEmptyMerkleTree,
		},
		{
			name:    "no ids",
			wantErr: ErrEmptyMerkleTree,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.DebugLevel)
			got, anomalies, err := MerkleRootFromIDs(zap.New(core), tt.ids)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("MerkleRootFromIDs() error = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Fatalf("MerkleRootFromIDs() = %s, want %s", got, tt.want)
			}

			if len(anomalies) != len(tt.wantAnomalies) {
				t.Fatalf("anomalies = %d, want %d", len(anomalies), len(tt.wantAnomalies))
			}
			for i, idx := range tt.wantAnomalies {
				if anomalies[i].Index != idx || anomalies[i].ID != tt.ids[idx] {
					t.Errorf("anomaly %d = %+v, want index %d id %q", i, anomalies[i], idx, tt.ids[idx])
				}
				if !errors.Is(anomalies[i].Err, ErrMalformedID) {
					t.Errorf("anomaly %d error = %v, want %v", i, anomalies[i].Err, ErrMalformedID)
				}
			}
			if n := logs.FilterMessage("skipping transaction id in merkle tree").Len(); n != len(tt.wantAnomalies) {
				t.Errorf("skip logs = %d, want %d", n, len(tt.wantAnomalies))
			}
		})
	}
}
