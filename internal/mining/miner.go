package mining

import (
	"context"
	"fmt"
	"time"

	"github.com/goodnatureofminers/blockinsight7000-miner/internal/difficulty"
	"github.com/goodnatureofminers/blockinsight7000-miner/internal/tx"
	"go.uber.org/zap"
)

// Config tunes the nonce search.
type Config struct {
	Workers      int
	MaxTimeRolls int
}

// Miner assembles a block and mines it.
type Miner struct {
	logger   *zap.Logger
	metrics  Metrics
	clock    Clock
	searcher *Searcher
}

// NewMiner creates a Miner.
func NewMiner(logger *zap.Logger, metrics Metrics, clock Clock, cfg Config) *Miner {
	return &Miner{
		logger:   logger,
		metrics:  metrics,
		clock:    clock,
		searcher: NewSearcher(logger, cfg.Workers, cfg.MaxTimeRolls),
	}
}

// Mine assembles a block from candidates and searches for a nonce meeting tmpl.Target.
func (m *Miner) Mine(ctx context.Context, tmpl Template, candidates []*tx.Transaction) (*Result, error) {
	if tmpl.Timestamp.IsZero() {
		tmpl.Timestamp = m.clock.Now()
	}

	candidate, err := m.assemble(tmpl, candidates)
	if err != nil {
		return nil, fmt.Errorf("assemble block: %w", err)
	}

	logger := m.logger.With(
		zap.Uint32("height", tmpl.Height),
		zap.String("bits", fmt.Sprintf("%08x", candidate.Header.Bits)),
	)
	logger.Info("block assembled",
		zap.Int("transactions", len(candidate.Selected)),
		zap.Int64("weight", candidate.Weight),
		zap.Uint64("fees", candidate.Fees),
		zap.String("merkle_root", candidate.Header.MerkleRoot.String()),
		zap.Float64("difficulty", difficulty.Difficulty(candidate.Header.Bits)),
	)

	started := time.Now()
	header, stats, err := m.searcher.Search(ctx, candidate.Header, tmpl.Target)
	m.metrics.ObserveSearch(err, stats.Hashes, stats.TimeRolls, started)
	if err != nil {
		return nil, fmt.Errorf("search nonce: %w", err)
	}

	elapsed := time.Since(started)
	hash := header.Hash()
	logger.Info("block mined",
		zap.Uint32("nonce", header.Nonce),
		zap.String("hash", hash.String()),
		zap.Uint64("hashes", stats.Hashes),
		zap.Int("time_rolls", stats.TimeRolls),
		zap.Duration("elapsed", elapsed),
	)

	return &Result{
		Header:    header,
		Coinbase:  candidate.Coinbase,
		Selected:  candidate.Selected,
		Fees:      candidate.Fees,
		Weight:    candidate.Weight,
		Anomalies: candidate.Anomalies,
		Stats:     stats,
	}, nil
}

func (m *Miner) assemble(tmpl Template, candidates []*tx.Transaction) (candidate *Candidate, err error) {
	started := time.Now()
	defer func() {
		var (
			count  int
			weight int64
		)
		if candidate != nil {
			count, weight = len(candidate.Selected), candidate.Weight
		}
		m.metrics.ObserveAssemble(err, count, weight, started)
	}()
	return Assemble(m.logger, tmpl, candidates)
}
