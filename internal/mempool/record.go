package mempool

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/goodnatureofminers/blockinsight7000-miner/internal/hashing"
	"github.com/goodnatureofminers/blockinsight7000-miner/internal/tx"
)

const (
	defaultVersion  uint32 = 1
	defaultLockTime uint32 = 0
)

// ErrMalformedRecord marks a record that cannot be turned into a transaction at all.
var ErrMalformedRecord = errors.New("malformed transaction record")

// record is one mempool file. Missing version and locktime take their defaults;
// every other numeric field is required.
type record struct {
	Version  *uint32        `json:"version"`
	LockTime *uint32        `json:"locktime"`
	Vin      []recordInput  `json:"vin"`
	Vout     []recordOutput `json:"vout"`
}

type recordInput struct {
	TxID         string         `json:"txid"`
	Vout         *uint32        `json:"vout"`
	Prevout      *recordPrevout `json:"prevout"`
	ScriptSig    string         `json:"scriptsig"`
	ScriptSigAsm string         `json:"scriptsig_asm"`
	// Witness is nil when the field is absent and empty when it is [].
	Witness    []string `json:"witness"`
	IsCoinbase bool     `json:"is_coinbase"`
	Sequence   *uint32  `json:"sequence"`
}

type recordPrevout struct {
	ScriptPubKey        string `json:"scriptpubkey"`
	ScriptPubKeyAsm     string `json:"scriptpubkey_asm"`
	ScriptPubKeyType    string `json:"scriptpubkey_type"`
	ScriptPubKeyAddress string `json:"scriptpubkey_address"`
	Value               *int64 `json:"value"`
}

type recordOutput struct {
	ScriptPubKey        string `json:"scriptpubkey"`
	ScriptPubKeyAsm     string `json:"scriptpubkey_asm"`
	ScriptPubKeyType    string `json:"scriptpubkey_type"`
	ScriptPubKeyAddress string `json:"scriptpubkey_address"`
	Value               *int64 `json:"value"`
}

// Decode parses one mempool record into a transaction. Records that are not valid
// JSON or miss required fields fail with ErrMalformedRecord. Negative amounts and
// coinbase inputs fail with the matching tx sentinel.
func Decode(data []byte) (*tx.Transaction, error) {
	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	return r.transaction()
}

func (r record) transaction() (*tx.Transaction, error) {
	p := tx.Params{
		Version:  defaultVersion,
		LockTime: defaultLockTime,
		Inputs:   make([]tx.Input, 0, len(r.Vin)),
		Outputs:  make([]tx.Output, 0, len(r.Vout)),
	}
	if r.Version != nil {
		p.Version = *r.Version
	}
	if r.LockTime != nil {
		p.LockTime = *r.LockTime
	}

	for i, in := range r.Vin {
		input, err := in.input()
		if err != nil {
			return nil, fmt.Errorf("vin %d: %w", i, err)
		}
		p.Inputs = append(p.Inputs, input)
	}
	for i, out := range r.Vout {
		output, err := out.output()
		if err != nil {
			return nil, fmt.Errorf("vout %d: %w", i, err)
		}
		p.Outputs = append(p.Outputs, output)
	}

	t, err := tx.New(p)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	return t, nil
}

func (in recordInput) input() (tx.Input, error) {
	if in.IsCoinbase {
		return tx.Input{}, tx.ErrCoinbaseNotAllowed
	}
	prev, err := hashing.ParseID(in.TxID)
	if err != nil {
		return tx.Input{}, fmt.Errorf("%w: txid: %v", ErrMalformedRecord, err)
	}
	if in.Vout == nil {
		return tx.Input{}, fmt.Errorf("%w: missing vout", ErrMalformedRecord)
	}
	if in.Sequence == nil {
		return tx.Input{}, fmt.Errorf("%w: missing sequence", ErrMalformedRecord)
	}
	scriptSig, err := decodeHex("scriptsig", in.ScriptSig)
	if err != nil {
		return tx.Input{}, err
	}

	var witness tx.Witness
	if in.Witness != nil {
		witness = make(tx.Witness, 0, len(in.Witness))
		for j, item := range in.Witness {
			b, err := decodeHex(fmt.Sprintf("witness item %d", j), item)
			if err != nil {
				return tx.Input{}, err
			}
			witness = append(witness, b)
		}
	}

	if in.Prevout == nil {
		return tx.Input{}, fmt.Errorf("%w: missing prevout", ErrMalformedRecord)
	}
	prevout, err := in.Prevout.prevout()
	if err != nil {
		return tx.Input{}, err
	}

	return tx.Input{
		PrevTxID:  prev,
		PrevIndex: *in.Vout,
		ScriptSig: scriptSig,
		Sequence:  *in.Sequence,
		Witness:   witness,
		Prevout:   prevout,
	}, nil
}

func (p recordPrevout) prevout() (*tx.Prevout, error) {
	value, err := amount("prevout", p.Value)
	if err != nil {
		return nil, err
	}
	script, err := decodeHex("prevout scriptpubkey", p.ScriptPubKey)
	if err != nil {
		return nil, err
	}
	return &tx.Prevout{
		Value:      value,
		PkScript:   script,
		ScriptType: tx.ParseScriptType(p.ScriptPubKeyType),
		Address:    p.ScriptPubKeyAddress,
	}, nil
}

func (o recordOutput) output() (tx.Output, error) {
	value, err := amount("output", o.Value)
	if err != nil {
		return tx.Output{}, err
	}
	script, err := decodeHex("scriptpubkey", o.ScriptPubKey)
	if err != nil {
		return tx.Output{}, err
	}
	return tx.Output{Value: value, PkScript: script}, nil
}

func amount(field string, v *int64) (uint64, error) {
	if v == nil {
		return 0, fmt.Errorf("%w: missing %s value", ErrMalformedRecord, field)
	}
	if *v < 0 {
		return 0, fmt.Errorf("%w: %s value %d", tx.ErrNegativeValue, field, *v)
	}
	return uint64(*v), nil
}

func decodeHex(field, s string) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedRecord, field, err)
	}
	return b, nil
}
