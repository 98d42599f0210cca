// Package mempool loads pending transactions from a directory of JSON records.
package mempool

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/goodnatureofminers/blockinsight7000-miner/internal/tx"
	"github.com/goodnatureofminers/blockinsight7000-miner/pkg/workerpool"
	"go.uber.org/zap"
)

const recordExt = ".json"

// ErrFilenameMismatch is returned when a file is not named after its transaction.
var ErrFilenameMismatch = errors.New("filename does not match txid")

// ErrDoubleSpend is returned for a transaction spending an outpoint already spent by
// an earlier file.
var ErrDoubleSpend = errors.New("outpoint already spent")

// Outcome classifies a mempool file.
type Outcome string

const (
	OutcomeValid       Outcome = "valid"
	OutcomeInvalid     Outcome = "invalid"
	OutcomeMalformed   Outcome = "malformed"
	OutcomeDoubleSpend Outcome = "double_spend"
)

// Rejection is a file that did not make it into the pool.
type Rejection struct {
	File    string
	Outcome Outcome
	Err     error
}

// Report is the result of loading a mempool directory.
type Report struct {
	// Transactions holds the accepted transactions ordered by filename.
	Transactions []*tx.Transaction
	Files        int
	Valid        int
	Invalid      int
	Malformed    int
	DoubleSpends int
	Rejected     []Rejection
}

// Config tunes a Loader.
type Config struct {
	Policy  tx.Policy
	Workers int
	// SkipFilenameCheck accepts files whatever their name.
	SkipFilenameCheck bool
}

// Loader reads, validates and deduplicates mempool records.
type Loader struct {
	logger    *zap.Logger
	metrics   Metrics
	addresses AddressDeriver
	cfg       Config
}

// NewLoader creates a Loader.
func NewLoader(logger *zap.Logger, metrics Metrics, addresses AddressDeriver, cfg Config) *Loader {
	return &Loader{
		logger:    logger.Named("mempool_loader"),
		metrics:   metrics,
		addresses: addresses,
		cfg:       cfg,
	}
}

type parsed struct {
	file    string
	tx      *tx.Transaction
	outcome Outcome
	err     error
}

// Load reads every *.json file in dir. Files are parsed concurrently; outcomes are
// applied in filename order, so the first file spending an outpoint wins.
func (l *Loader) Load(ctx context.Context, dir string) (report *Report, err error) {
	started := time.Now()
	files, err := listRecords(dir)
	defer func() {
		l.metrics.ObserveLoad(err, len(files), started)
	}()
	if err != nil {
		return nil, err
	}

	results, err := workerpool.Map(ctx, l.cfg.Workers, files, func(_ context.Context, file string) (parsed, error) {
		return l.parse(dir, file), nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse mempool: %w", err)
	}

	report = &Report{Files: len(files)}
	spent := make(map[wire.OutPoint]string)
	for _, res := range results {
		if res.outcome == OutcomeValid {
			if first, ok := doubleSpend(spent, res.tx); ok {
				res.outcome = OutcomeDoubleSpend
				res.err = fmt.Errorf("%w by %s", ErrDoubleSpend, first)
			} else {
				markSpent(spent, res.tx, res.file)
			}
		}
		l.apply(report, res)
	}

	l.logger.Info("mempool loaded",
		zap.String("dir", dir),
		zap.Int("files", report.Files),
		zap.Int("valid", report.Valid),
		zap.Int("invalid", report.Invalid),
		zap.Int("malformed", report.Malformed),
		zap.Int("double_spends", report.DoubleSpends),
	)
	return report, nil
}

func (l *Loader) apply(report *Report, res parsed) {
	l.metrics.ObserveRecord(res.outcome)

	switch res.outcome {
	case OutcomeValid:
		report.Valid++
		report.Transactions = append(report.Transactions, res.tx)
		return
	case OutcomeMalformed:
		report.Malformed++
		l.logger.Warn("skipping malformed record", zap.String("file", res.file), zap.Error(res.err))
	case OutcomeDoubleSpend:
		report.DoubleSpends++
		l.logger.Debug("skipping double spend", zap.String("file", res.file), zap.Error(res.err))
	default:
		report.Invalid++
		l.logger.Debug("skipping invalid transaction", zap.String("file", res.file), zap.Error(res.err))
	}
	report.Rejected = append(report.Rejected, Rejection{File: res.file, Outcome: res.outcome, Err: res.err})
}

func (l *Loader) parse(dir, file string) parsed {
	res := parsed{file: file}

	data, err := os.ReadFile(filepath.Join(dir, file))
	if err != nil {
		res.outcome, res.err = OutcomeMalformed, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
		return res
	}

	t, err := Decode(data)
	if err != nil {
		res.outcome, res.err = OutcomeInvalid, err
		if errors.Is(err, ErrMalformedRecord) {
			res.outcome = OutcomeMalformed
		}
		return res
	}

	if err := tx.Validate(t, l.cfg.Policy, l.addresses); err != nil {
		res.outcome, res.err = OutcomeInvalid, err
		return res
	}

	if !l.cfg.SkipFilenameCheck {
		if want := FileStem(t); strings.TrimSuffix(file, recordExt) != want {
			res.outcome, res.err = OutcomeInvalid, fmt.Errorf("%w: want %s%s", ErrFilenameMismatch, want, recordExt)
			return res
		}
	}

	res.tx, res.outcome = t, OutcomeValid
	return res
}

// FileStem returns the name a record file of t carries without its extension: the
// hex SHA-256 of the txid in internal byte order.
func FileStem(t *tx.Transaction) string {
	id := t.TxID()
	return hex.EncodeToString(chainhash.HashB(id[:]))
}

func listRecords(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read mempool dir: %w", err)
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() && strings.HasSuffix(e.Name(), recordExt) {
			files = append(files, e.Name())
		}
	}
	return files, nil
}

func doubleSpend(spent map[wire.OutPoint]string, t *tx.Transaction) (string, bool) {
	for _, in := range t.Inputs() {
		if first, ok := spent[wire.OutPoint{Hash: in.PrevTxID, Index: in.PrevIndex}]; ok {
			return first, true
		}
	}
	return "", false
}

func markSpent(spent map[wire.OutPoint]string, t *tx.Transaction, file string) {
	for _, in := range t.Inputs() {
		spent[wire.OutPoint{Hash: in.PrevTxID, Index: in.PrevIndex}] = file
	}
}
