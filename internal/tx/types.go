package tx

//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=$GOPACKAGE

type (
	// AddressDeriver derives the display address a locking script pays to.
	AddressDeriver interface {
		DeriveAddress(pkScript []byte, scriptType ScriptType) (string, error)
	}
)
