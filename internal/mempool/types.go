package mempool

import (
	"time"

	"github.com/goodnatureofminers/blockinsight7000-miner/internal/tx"
)

//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=$GOPACKAGE

type (
	Metrics interface {
		ObserveLoad(err error, files int, started time.Time)
		ObserveRecord(outcome Outcome)
	}
	AddressDeriver interface {
		DeriveAddress(pkScript []byte, scriptType tx.ScriptType) (string, error)
	}
)
