package mining

import (
	"time"
)

//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=$GOPACKAGE

type (
	Metrics interface {
		ObserveAssemble(err error, txCount int, weight int64, started time.Time)
		ObserveSearch(err error, hashes uint64, timeRolls int, started time.Time)
	}
	Clock interface {
		Now() time.Time
	}
)
