package bitcoin

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/goodnatureofminers/blockinsight7000-miner/internal/tx"
)

var (
	ErrScriptClassMismatch = errors.New("script does not match its declared type")
	ErrNoAddress           = errors.New("script does not pay to a single address")
	ErrWrongNetwork        = errors.New("address belongs to another network")
)

var scriptClasses = map[tx.ScriptType]txscript.ScriptClass{
	tx.P2PKH:    txscript.PubKeyHashTy,
	tx.P2SH:     txscript.ScriptHashTy,
	tx.V0P2WPKH: txscript.WitnessV0PubKeyHashTy,
	tx.V0P2WSH:  txscript.WitnessV0ScriptHashTy,
	tx.V1P2TR:   txscript.WitnessV1TaprootTy,
}

// AddressCodec converts between locking scripts and addresses of one network.
type AddressCodec struct {
	params *chaincfg.Params
}

// NewAddressCodec creates a codec for network.
func NewAddressCodec(network Network) (*AddressCodec, error) {
	params, err := ChainParams(network)
	if err != nil {
		return nil, err
	}
	return &AddressCodec{params: params}, nil
}

// Params returns the network parameters of the codec.
func (c *AddressCodec) Params() *chaincfg.Params {
	return c.params
}

// DeriveAddress returns the address pkScript pays to. The script must be of the
// declared type.
func (c *AddressCodec) DeriveAddress(pkScript []byte, scriptType tx.ScriptType) (string, error) {
	want, ok := scriptClasses[scriptType]
	if !ok {
		return "", fmt.Errorf("%w: %s", tx.ErrUnsupportedScript, scriptType)
	}

	class, addrs, _, err := txscript.ExtractPkScriptAddrs(pkScript, c.params)
	if err != nil {
		return "", fmt.Errorf("extract script addresses: %w", err)
	}
	if class != want {
		return "", fmt.Errorf("%w: %s declared as %s", ErrScriptClassMismatch, class, scriptType)
	}
	if len(addrs) != 1 {
		return "", fmt.Errorf("%w: %d addresses", ErrNoAddress, len(addrs))
	}
	return addrs[0].EncodeAddress(), nil
}

// PayToAddress returns the locking script paying to address.
func (c *AddressCodec) PayToAddress(address string) ([]byte, error) {
	addr, err := btcutil.DecodeAddress(address, c.params)
	if err != nil {
		return nil, fmt.Errorf("decode address %q: %w", address, err)
	}
	if !addr.IsForNet(c.params) {
		return nil, fmt.Errorf("%w: %q is not a %s address", ErrWrongNetwork, address, c.params.Name)
	}
	script, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return nil, fmt.Errorf("payout script for %q: %w", address, err)
	}
	return script, nil
}
