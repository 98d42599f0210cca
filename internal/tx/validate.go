package tx

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

var (
	ErrNoInputs           = errors.New("transaction has no inputs")
	ErrNoOutputs          = errors.New("transaction has no outputs")
	ErrNegativeFee        = errors.New("outputs exceed inputs")
	ErrNonPositiveOutput  = errors.New("output value must be positive")
	ErrNegativeValue      = errors.New("negative value")
	ErrMissingPrevout     = errors.New("input has no prevout")
	ErrUnsupportedScript  = errors.New("unsupported script type")
	ErrAddressMismatch    = errors.New("prevout address mismatch")
	ErrAddressDerivation  = errors.New("cannot derive prevout address")
	ErrCoinbaseNotAllowed = errors.New("coinbase transactions are not accepted from the pool")
)

// Policy holds the validation choices that differ between deployments.
type Policy struct {
	// AllowZeroValueOutputs accepts outputs paying zero satoshis.
	AllowZeroValueOutputs bool
}

// ValidationError explains why a transaction is not eligible for a block.
type ValidationError struct {
	TxID chainhash.Hash
	// Input is the offending input index, or -1.
	Input  int
	Reason error
	Err    error
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("tx %s", e.TxID)
	if e.Input >= 0 {
		msg += fmt.Sprintf(" input %d", e.Input)
	}
	msg += ": " + e.Reason.Error()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the reason sentinel and the underlying cause to errors.Is.
func (e *ValidationError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Reason}
	}
	return []error{e.Reason, e.Err}
}

// Validate checks that a pool transaction may be included in a block. Signatures and
// scripts are not evaluated. Taproot inputs are accepted without address derivation.
func Validate(t *Transaction, policy Policy, addresses AddressDeriver) error {
	invalid := func(input int, reason, err error) error {
		return &ValidationError{TxID: t.TxID(), Input: input, Reason: reason, Err: err}
	}

	if t.IsCoinbase() {
		return invalid(-1, ErrCoinbaseNotAllowed, nil)
	}
	if len(t.Inputs()) == 0 {
		return invalid(-1, ErrNoInputs, nil)
	}
	if len(t.Outputs()) == 0 {
		return invalid(-1, ErrNoOutputs, nil)
	}

	if !policy.AllowZeroValueOutputs {
		for i, out := range t.Outputs() {
			if out.Value == 0 {
				return invalid(-1, ErrNonPositiveOutput, fmt.Errorf("output %d", i))
			}
		}
	}

	for i, in := range t.Inputs() {
		if in.Prevout == nil {
			return invalid(i, ErrMissingPrevout, nil)
		}

		switch in.Prevout.ScriptType {
		case V1P2TR:
			continue
		case P2PKH, P2SH, V0P2WPKH, V0P2WSH:
		default:
			return invalid(i, ErrUnsupportedScript, fmt.Errorf("script type %q", in.Prevout.ScriptType))
		}

		derived, err := addresses.DeriveAddress(in.Prevout.PkScript, in.Prevout.ScriptType)
		if err != nil {
			return invalid(i, ErrAddressDerivation, err)
		}
		if derived != in.Prevout.Address {
			return invalid(i, ErrAddressMismatch, fmt.Errorf("derived %s, declared %s", derived, in.Prevout.Address))
		}
	}

	if t.Fee() < 0 {
		return invalid(-1, ErrNegativeFee, fmt.Errorf("inputs %d, outputs %d", t.InputValue(), t.OutputValue()))
	}
	return nil
}
