package mining

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// checkInterval is how many hashes a worker computes between cancellation checks.
const checkInterval = 1 << 14

// SearchStats describes the work done by one search.
type SearchStats struct {
	Hashes    uint64
	TimeRolls int
}

// Searcher looks for a nonce whose header hash is below the target.
type Searcher struct {
	logger       *zap.Logger
	workers      int
	maxTimeRolls int
	lastNonce    uint32
}

// NewSearcher returns a searcher running the given number of workers. With one
// worker or fewer the search runs on the calling goroutine.
func NewSearcher(logger *zap.Logger, workers, maxTimeRolls int) *Searcher {
	if workers < 1 {
		workers = 1
	}
	if maxTimeRolls < 0 {
		maxTimeRolls = 0
	}
	return &Searcher{
		logger:       logger.Named("searcher"),
		workers:      workers,
		maxTimeRolls: maxTimeRolls,
		lastNonce:    math.MaxUint32,
	}
}

// Search tries every nonce of header. When none qualifies the timestamp is moved one
// second forward and the nonces are tried again, at most maxTimeRolls times, before
// ErrNonceSpaceExhausted is returned. The comparison uses the full target.
func (s *Searcher) Search(ctx context.Context, header Header, target *big.Int) (Header, SearchStats, error) {
	tb, err := newTargetBytes(target)
	if err != nil {
		return header, SearchStats{}, err
	}

	var (
		stats  SearchStats
		hashes atomic.Uint64
	)
	for {
		nonce, found, err := s.searchHeader(ctx, header, &tb, &hashes)
		stats.Hashes = hashes.Load()
		if err != nil {
			return header, stats, err
		}
		if found {
			header.Nonce = nonce
			return header, stats, nil
		}
		if stats.TimeRolls >= s.maxTimeRolls {
			return header, stats, fmt.Errorf("%w after %d timestamp rolls", ErrNonceSpaceExhausted, stats.TimeRolls)
		}

		header.Timestamp = header.Timestamp.Add(time.Second)
		stats.TimeRolls++
		s.logger.Warn("nonce space exhausted, rolling timestamp",
			zap.Int("roll", stats.TimeRolls),
			zap.Time("timestamp", header.Timestamp),
		)
	}
}

func (s *Searcher) searchHeader(ctx context.Context, header Header, tb *targetBytes, hashes *atomic.Uint64) (uint32, bool, error) {
	base := header.array()

	if s.workers == 1 {
		nonce, found, err := scan(ctx, base, tb, 0, 1, s.lastNonce, nil, hashes)
		return nonce, found, err
	}

	var (
		once   sync.Once
		winner uint32
		stop   atomic.Bool
	)
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < s.workers && uint64(w) <= uint64(s.lastNonce); w++ {
		first := uint32(w)
		g.Go(func() error {
			nonce, found, err := scan(gctx, base, tb, first, uint32(s.workers), s.lastNonce, &stop, hashes)
			if err != nil {
				return err
			}
			if found {
				once.Do(func() {
					winner = nonce
					stop.Store(true)
				})
			}
			return nil
		})
	}

	err := g.Wait()
	if stop.Load() {
		return winner, true, nil
	}
	if err != nil {
		return 0, false, err
	}
	return 0, false, nil
}

// scan hashes nonces first, first+stride, ... up to last. It returns early once stop
// is set by another worker or ctx is done.
func scan(
	ctx context.Context,
	base [HeaderSize]byte,
	tb *targetBytes,
	first, stride, last uint32,
	stop *atomic.Bool,
	hashes *atomic.Uint64,
) (uint32, bool, error) {
	var done uint64
	defer func() {
		hashes.Add(done)
	}()

	for n := uint64(first); n <= uint64(last); n += uint64(stride) {
		if done%checkInterval == 0 {
			if stop != nil && stop.Load() {
				return 0, false, nil
			}
			if err := ctx.Err(); err != nil {
				return 0, false, err
			}
		}

		binary.LittleEndian.PutUint32(base[nonceOffset:], uint32(n))
		hash := chainhash.DoubleHashH(base[:])
		done++
		if tb.below(&hash) {
			return uint32(n), true, nil
		}
	}
	return 0, false, nil
}
