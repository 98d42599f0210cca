package bitcoin

import (
	"context"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/goodnatureofminers/blockinsight7000-miner/internal/clock"
	"github.com/goodnatureofminers/blockinsight7000-miner/pkg/safe"
	"go.uber.org/zap"
)

// Tip is the best block known to a node.
type Tip struct {
	Height uint32
	Hash   chainhash.Hash
}

// NextHeight returns the height of a block built on the tip.
func (t Tip) NextHeight() (uint32, error) {
	next, err := safe.AddUint64(uint64(t.Height), 1)
	if err != nil {
		return 0, err
	}
	return safe.Uint32(next)
}

// TipSource reads the chain tip from a node, retrying failed calls.
type TipSource struct {
	client  ChainClient
	logger  *zap.Logger
	retries int
	delay   time.Duration
}

// NewTipSource creates a TipSource that retries a failed read up to retries times,
// waiting delay between attempts.
func NewTipSource(client ChainClient, logger *zap.Logger, retries int, delay time.Duration) *TipSource {
	if retries < 0 {
		retries = 0
	}
	return &TipSource{
		client:  client,
		logger:  logger.Named("tip_source"),
		retries: retries,
		delay:   delay,
	}
}

// Tip returns the current best block.
func (s *TipSource) Tip(ctx context.Context) (Tip, error) {
	for attempt := 0; ; attempt++ {
		tip, err := s.fetch()
		if err == nil {
			s.logger.Info("chain tip", zap.Uint32("height", tip.Height), zap.String("hash", tip.Hash.String()))
			return tip, nil
		}
		if attempt >= s.retries {
			return Tip{}, fmt.Errorf("fetch chain tip after %d attempts: %w", attempt+1, err)
		}

		s.logger.Warn("fetch chain tip failed, retrying", zap.Int("attempt", attempt+1), zap.Error(err))
		if err := clock.SleepWithContext(ctx, s.delay); err != nil {
			return Tip{}, err
		}
	}
}

func (s *TipSource) fetch() (Tip, error) {
	count, err := s.client.GetBlockCount()
	if err != nil {
		return Tip{}, fmt.Errorf("get block count: %w", err)
	}
	height, err := safe.Uint32(count)
	if err != nil {
		return Tip{}, fmt.Errorf("block count %d: %w", count, err)
	}
	hash, err := s.client.GetBlockHash(count)
	if err != nil {
		return Tip{}, fmt.Errorf("get block hash %d: %w", count, err)
	}
	return Tip{Height: height, Hash: *hash}, nil
}
