package mining

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strings"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/goodnatureofminers/blockinsight7000-miner/internal/hashing"
	"github.com/goodnatureofminers/blockinsight7000-miner/internal/tx"
	"go.uber.org/zap"
)

var (
	ErrMalformedOutput    = errors.New("malformed block output")
	ErrCoinbaseMismatch   = errors.New("coinbase txid does not match its serialization")
	ErrMerkleRootMismatch = errors.New("merkle root does not match the listed txids")
	ErrInsufficientWork   = errors.New("header hash is not below the target")
)

// Result is a mined block.
type Result struct {
	Header   Header
	Coinbase *tx.Transaction
	// Selected holds the pool transactions in block order, without the coinbase.
	Selected  []*tx.Transaction
	Fees      uint64
	Weight    int64
	Anomalies []hashing.Anomaly
	Stats     SearchStats
}

// Hash returns the block hash.
func (r *Result) Hash() chainhash.Hash {
	return r.Header.Hash()
}

// TxIDs returns the display-order txids of the block, coinbase first.
func (r *Result) TxIDs() []string {
	ids := make([]string, 0, len(r.Selected)+1)
	ids = append(ids, r.Coinbase.TxID().String())
	for _, t := range r.Selected {
		ids = append(ids, t.TxID().String())
	}
	return ids
}

// Lines returns the output file content: the header hex, the coinbase hex with its
// witness, then every txid in block order starting with the coinbase.
func (r *Result) Lines() []string {
	lines := make([]string, 0, len(r.Selected)+3)
	lines = append(lines, r.Header.Hex(), hex.EncodeToString(r.Coinbase.Serialize(true)))
	return append(lines, r.TxIDs()...)
}

// Block converts the result to a wire block.
func (r *Result) Block() (*wire.MsgBlock, error) {
	msg := wire.NewMsgBlock(&r.Header.BlockHeader)
	if err := msg.AddTransaction(r.Coinbase.MsgTx()); err != nil {
		return nil, fmt.Errorf("add coinbase: %w", err)
	}
	for _, t := range r.Selected {
		if err := msg.AddTransaction(t.MsgTx()); err != nil {
			return nil, fmt.Errorf("add tx %s: %w", t.TxID(), err)
		}
	}
	return msg, nil
}

// WriteOutput writes Lines to w, one per line.
func WriteOutput(w io.Writer, r *Result) error {
	bw := bufio.NewWriter(w)
	for _, line := range r.Lines() {
		if _, err := bw.WriteString(line + "\n"); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}
	return nil
}

// ReadOutput reads the non-empty lines of an output file.
func ReadOutput(r io.Reader) ([]string, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read output: %w", err)
	}
	return lines, nil
}

// Verify checks output lines against each other: the coinbase hashes to the listed
// coinbase txid, the listed txids hash to the header merkle root and the header hash
// is below target.
func Verify(logger *zap.Logger, lines []string, target *big.Int) error {
	if len(lines) < 3 {
		return fmt.Errorf("%w: %d lines", ErrMalformedOutput, len(lines))
	}

	raw, err := hex.DecodeString(lines[0])
	if err != nil || len(raw) != HeaderSize {
		return fmt.Errorf("%w: header is not %d bytes of hex", ErrMalformedOutput, HeaderSize)
	}
	var header wire.BlockHeader
	if err := header.Deserialize(bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("%w: header: %v", ErrMalformedOutput, err)
	}

	raw, err = hex.DecodeString(lines[1])
	if err != nil {
		return fmt.Errorf("%w: coinbase hex: %v", ErrMalformedOutput, err)
	}
	var cb wire.MsgTx
	if err := cb.Deserialize(bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("%w: coinbase: %v", ErrMalformedOutput, err)
	}
	if got := cb.TxHash().String(); got != lines[2] {
		return fmt.Errorf("%w: serialization hashes to %s, listed %s", ErrCoinbaseMismatch, got, lines[2])
	}

	entries := make([]PoolEntry, 0, len(lines)-2)
	for _, id := range lines[2:] {
		entries = append(entries, PrecomputedID(id))
	}
	root, anomalies, err := MerkleRoot(logger, entries)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	if len(anomalies) > 0 {
		return fmt.Errorf("%w: %d unparsable txids", ErrMalformedOutput, len(anomalies))
	}
	if root != header.MerkleRoot {
		return fmt.Errorf("%w: computed %s, header %s", ErrMerkleRootMismatch, root, header.MerkleRoot)
	}

	if !(Header{BlockHeader: header}).MeetsTarget(target) {
		return fmt.Errorf("%w: %s", ErrInsufficientWork, header.BlockHash())
	}
	return nil
}
