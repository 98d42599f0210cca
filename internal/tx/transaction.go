// Package tx models transactions and implements their legacy and SegWit serializations.
package tx

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/goodnatureofminers/blockinsight7000-miner/internal/serialize"
	"github.com/goodnatureofminers/blockinsight7000-miner/pkg/safe"
)

const (
	witnessMarker byte = 0x00
	witnessFlag   byte = 0x01

	// WitnessScaleFactor is the weight of one non-witness byte relative to a witness byte.
	WitnessScaleFactor = 4
)

// Witness is an ordered stack of byte strings. A nil Witness means the field is absent.
type Witness [][]byte

// Prevout is the previous output an input spends. It is used for validation only and
// never serialized.
type Prevout struct {
	Value      uint64
	PkScript   []byte
	ScriptType ScriptType
	Address    string
}

// Input spends a previous output.
type Input struct {
	// PrevTxID is stored in internal byte order, the reverse of the display form.
	PrevTxID  chainhash.Hash
	PrevIndex uint32
	ScriptSig []byte
	Sequence  uint32
	Witness   Witness
	Prevout   *Prevout
}

// Output pays Value satoshis to PkScript.
type Output struct {
	Value    uint64
	PkScript []byte
}

// Params describes a transaction to construct with New.
type Params struct {
	Version    uint32
	LockTime   uint32
	Inputs     []Input
	Outputs    []Output
	IsCoinbase bool
	// Witness is the coinbase witness stack. Ignored for other transactions.
	Witness Witness
}

// Transaction is an immutable transaction. Its identifiers, sizes and fee are derived
// once by New from the fields they depend on.
type Transaction struct {
	version  uint32
	lockTime uint32
	inputs   []Input
	outputs  []Output
	coinbase bool
	witness  Witness

	txid        chainhash.Hash
	wtxid       chainhash.Hash
	baseSize    int
	totalSize   int
	inputValue  uint64
	outputValue uint64
	fee         int64
}

// New constructs a Transaction and derives its txid, wtxid, sizes and fee.
// Byte slices inside p are retained and must not be modified afterwards.
func New(p Params) (*Transaction, error) {
	if p.IsCoinbase && len(p.Inputs) != 1 {
		return nil, fmt.Errorf("coinbase must have exactly one input, got %d", len(p.Inputs))
	}

	t := &Transaction{
		version:  p.Version,
		lockTime: p.LockTime,
		inputs:   append([]Input(nil), p.Inputs...),
		outputs:  append([]Output(nil), p.Outputs...),
		coinbase: p.IsCoinbase,
	}
	if p.IsCoinbase {
		t.witness = p.Witness
	}

	outputValues := make([]uint64, 0, len(t.outputs))
	for _, out := range t.outputs {
		outputValues = append(outputValues, out.Value)
	}
	outputValue, err := safe.AddUint64(outputValues...)
	if err != nil {
		return nil, fmt.Errorf("sum output values: %w", err)
	}
	t.outputValue = outputValue

	if !t.coinbase {
		inputValues := make([]uint64, 0, len(t.inputs))
		for _, in := range t.inputs {
			if in.Prevout != nil {
				inputValues = append(inputValues, in.Prevout.Value)
			}
		}
		inputValue, err := safe.AddUint64(inputValues...)
		if err != nil {
			return nil, fmt.Errorf("sum input values: %w", err)
		}
		t.inputValue = inputValue

		if t.fee, err = fee(inputValue, outputValue); err != nil {
			return nil, err
		}
	}

	base := t.serialize(false)
	total := t.serialize(true)
	t.baseSize = len(base)
	t.totalSize = len(total)
	t.txid = chainhash.DoubleHashH(base)
	t.wtxid = chainhash.DoubleHashH(total)

	return t, nil
}

func fee(in, out uint64) (int64, error) {
	signedIn, err := safe.Int64(in)
	if err != nil {
		return 0, fmt.Errorf("input value: %w", err)
	}
	signedOut, err := safe.Int64(out)
	if err != nil {
		return 0, fmt.Errorf("output value: %w", err)
	}
	return signedIn - signedOut, nil
}

// Version returns the transaction version.
func (t *Transaction) Version() uint32 { return t.version }

// LockTime returns the transaction lock time.
func (t *Transaction) LockTime() uint32 { return t.lockTime }

// Inputs returns the inputs. The slice must not be modified.
func (t *Transaction) Inputs() []Input { return t.inputs }

// Outputs returns the outputs. The slice must not be modified.
func (t *Transaction) Outputs() []Output { return t.outputs }

// IsCoinbase reports whether the transaction is a coinbase.
func (t *Transaction) IsCoinbase() bool { return t.coinbase }

// Witness returns the coinbase witness stack, nil for other transactions.
func (t *Transaction) Witness() Witness { return t.witness }

// TxID returns the double-SHA256 of the non-witness serialization in internal byte
// order. Its String method renders the display form.
func (t *Transaction) TxID() chainhash.Hash { return t.txid }

// WTxID returns the double-SHA256 of the witness serialization in internal byte order.
func (t *Transaction) WTxID() chainhash.Hash { return t.wtxid }

// BaseSize is the length of the non-witness serialization.
func (t *Transaction) BaseSize() int { return t.baseSize }

// TotalSize is the length of the witness serialization.
func (t *Transaction) TotalSize() int { return t.totalSize }

// Weight is 3*BaseSize + TotalSize.
func (t *Transaction) Weight() int64 {
	return int64(t.baseSize*(WitnessScaleFactor-1) + t.totalSize)
}

// VirtualSize is the weight divided by four, rounded up.
func (t *Transaction) VirtualSize() int64 {
	return (t.Weight() + WitnessScaleFactor - 1) / WitnessScaleFactor
}

// InputValue is the sum of the prevout values. Zero for a coinbase.
func (t *Transaction) InputValue() uint64 { return t.inputValue }

// OutputValue is the sum of the output values.
func (t *Transaction) OutputValue() uint64 { return t.outputValue }

// Fee is InputValue minus OutputValue. It is negative for overspending transactions
// and zero for a coinbase.
func (t *Transaction) Fee() int64 { return t.fee }

// HasWitness reports whether any input carries a witness field. A coinbase has a
// witness when its top-level stack is present.
func (t *Transaction) HasWitness() bool {
	if t.coinbase {
		return t.witness != nil
	}
	for _, in := range t.inputs {
		if in.Witness != nil {
			return true
		}
	}
	return false
}

// Serialize encodes the transaction. The marker, flag and witness stacks are only
// written when includeWitness is set and the transaction has a witness.
func (t *Transaction) Serialize(includeWitness bool) []byte {
	return t.serialize(includeWitness)
}

func (t *Transaction) serialize(includeWitness bool) []byte {
	segwit := includeWitness && t.HasWitness()

	buf := make([]byte, 0, t.sizeHint())
	buf = serialize.AppendUint32LE(buf, t.version)
	if segwit {
		buf = append(buf, witnessMarker, witnessFlag)
	}

	buf = serialize.AppendVarInt(buf, uint64(len(t.inputs)))
	for _, in := range t.inputs {
		buf = append(buf, in.PrevTxID[:]...)
		buf = serialize.AppendUint32LE(buf, in.PrevIndex)
		buf = serialize.AppendVarInt(buf, uint64(len(in.ScriptSig)))
		buf = append(buf, in.ScriptSig...)
		buf = serialize.AppendUint32LE(buf, in.Sequence)
	}

	buf = serialize.AppendVarInt(buf, uint64(len(t.outputs)))
	for _, out := range t.outputs {
		buf = serialize.AppendUint64LE(buf, out.Value)
		buf = serialize.AppendVarInt(buf, uint64(len(out.PkScript)))
		buf = append(buf, out.PkScript...)
	}

	if segwit {
		for i := range t.inputs {
			buf = appendWitness(buf, t.inputWitness(i))
		}
	}

	return serialize.AppendUint32LE(buf, t.lockTime)
}

func (t *Transaction) inputWitness(i int) Witness {
	if t.coinbase && i == 0 {
		return t.witness
	}
	return t.inputs[i].Witness
}

// appendWitness writes the item count followed by each length-prefixed item. An
// absent witness encodes as a single zero byte, the same as an empty stack.
func appendWitness(buf []byte, w Witness) []byte {
	buf = serialize.AppendVarInt(buf, uint64(len(w)))
	for _, item := range w {
		buf = serialize.AppendVarInt(buf, uint64(len(item)))
		buf = append(buf, item...)
	}
	return buf
}

func (t *Transaction) sizeHint() int {
	n := 4 + 2 + 9 + 9 + 4
	for _, in := range t.inputs {
		n += chainhash.HashSize + 4 + 9 + len(in.ScriptSig) + 4
		for _, item := range in.Witness {
			n += 9 + len(item)
		}
	}
	for _, item := range t.witness {
		n += 9 + len(item)
	}
	for _, out := range t.outputs {
		n += 8 + 9 + len(out.PkScript)
	}
	return n
}

// MsgTx converts the transaction to its btcd wire form. Inputs whose witness field is
// present but empty lose the distinction, since wire treats an empty stack as absent.
func (t *Transaction) MsgTx() *wire.MsgTx {
	msg := wire.NewMsgTx(int32(t.version))
	for i, in := range t.inputs {
		txIn := wire.NewTxIn(wire.NewOutPoint(&in.PrevTxID, in.PrevIndex), in.ScriptSig, t.inputWitness(i))
		txIn.Sequence = in.Sequence
		msg.AddTxIn(txIn)
	}
	for _, out := range t.outputs {
		msg.AddTxOut(wire.NewTxOut(int64(out.Value), out.PkScript))
	}
	msg.LockTime = t.lockTime
	return msg
}
