package tx

// ScriptType tags the locking script of a previous output.
type ScriptType string

const (
	P2PKH    ScriptType = "p2pkh"
	P2SH     ScriptType = "p2sh"
	V0P2WPKH ScriptType = "v0_p2wpkh"
	V0P2WSH  ScriptType = "v0_p2wsh"
	V1P2TR   ScriptType = "v1_p2tr"
	Unknown  ScriptType = "unknown"
)

// ParseScriptType maps a record tag to a ScriptType. Tags outside the supported set map to Unknown.
func ParseScriptType(tag string) ScriptType {
	switch st := ScriptType(tag); st {
	case P2PKH, P2SH, V0P2WPKH, V0P2WSH, V1P2TR:
		return st
	default:
		return Unknown
	}
}
