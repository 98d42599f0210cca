// Package main assembles a block from a mempool directory and mines it.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/btcsuite/btcd/rpcclient"
	"github.com/goodnatureofminers/blockinsight7000-miner/internal/bitcoin"
	"github.com/goodnatureofminers/blockinsight7000-miner/internal/clock"
	"github.com/goodnatureofminers/blockinsight7000-miner/internal/difficulty"
	"github.com/goodnatureofminers/blockinsight7000-miner/internal/mempool"
	"github.com/goodnatureofminers/blockinsight7000-miner/internal/metrics"
	"github.com/goodnatureofminers/blockinsight7000-miner/internal/mining"
	rpcclient2 "github.com/goodnatureofminers/blockinsight7000-miner/internal/pkg/btcd/rpcclient"
	"github.com/goodnatureofminers/blockinsight7000-miner/internal/repository/clickhouse"
	"github.com/goodnatureofminers/blockinsight7000-miner/internal/tx"
	"github.com/jessevdk/go-flags"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type config struct {
	MempoolDir            string          `long:"mempool-dir" env:"MINER_MEMPOOL_DIR" description:"directory of mempool JSON records" default:"mempool"`
	Output                string          `long:"output" env:"MINER_OUTPUT" description:"path of the block output file" default:"out.txt"`
	PayoutAddress         string          `long:"payout-address" env:"MINER_PAYOUT_ADDRESS" description:"address receiving the block reward" default:"1LuckyR1fFHEsXYyx5QK4UFzv3PEAepPMK"`
	Network               bitcoin.Network `long:"network" env:"MINER_NETWORK" description:"network name (mainnet, testnet, regtest, signet)" default:"mainnet"`
	PrevHash              string          `long:"prev-hash" env:"MINER_PREV_HASH" description:"previous block hash, 64 hex chars copied into the header as is" default:"ffffffffffffffffffffffffffffffffffffffffffffffffffffffff00000000"`
	Target                string          `long:"target" env:"MINER_TARGET" description:"big-endian hex target" default:"0000ffff00000000000000000000000000000000000000000000000000000000"`
	Height                uint32          `long:"height" env:"MINER_HEIGHT" description:"height of the block being mined" default:"834637"`
	Subsidy               float64         `long:"subsidy" env:"MINER_SUBSIDY" description:"block subsidy in BTC" default:"6.25"`
	ExtraNonce            string          `long:"extra-nonce" env:"MINER_EXTRA_NONCE" description:"bytes appended to the coinbase height push" default:"ExtraNonce"`
	MaxWeight             int64           `long:"max-weight" env:"MINER_MAX_WEIGHT" description:"block weight limit" default:"4000000"`
	CoinbaseReserve       int64           `long:"coinbase-reserve" env:"MINER_COINBASE_RESERVE" description:"weight kept free for the header and coinbase" default:"544"`
	AllowZeroValueOutputs bool            `long:"allow-zero-value-outputs" env:"MINER_ALLOW_ZERO_VALUE_OUTPUTS" description:"accept outputs paying zero satoshis"`
	SkipFilenameCheck     bool            `long:"skip-filename-check" env:"MINER_SKIP_FILENAME_CHECK" description:"accept mempool files whatever their name"`
	Workers               int             `long:"workers" env:"MINER_WORKERS" description:"parallel workers, 0 for one per CPU"`
	MaxTimeRolls          int             `long:"max-time-rolls" env:"MINER_MAX_TIME_ROLLS" description:"timestamp rolls after the nonce space runs out" default:"16"`
	RPCURL                string          `long:"rpc-url" env:"MINER_RPC_URL" description:"Bitcoin RPC URL; when set the chain tip supplies prev hash and height"`
	RPCUser               string          `long:"rpc-user" env:"MINER_RPC_USER" description:"Bitcoin RPC username"`
	RPCPassword           string          `long:"rpc-password" env:"MINER_RPC_PASSWORD" description:"Bitcoin RPC password"`
	RPCRetries            int             `long:"rpc-retries" env:"MINER_RPC_RETRIES" description:"retries of a failed chain tip read" default:"3"`
	RPCRetryDelay         time.Duration   `long:"rpc-retry-delay" env:"MINER_RPC_RETRY_DELAY" description:"delay between chain tip retries" default:"2s"`
	ClickhouseDSN         string          `long:"clickhouse-dsn" env:"MINER_CLICKHOUSE_DSN" description:"ClickHouse DSN; when set the mined block is archived"`
	MetricsAddr           string          `long:"metrics-addr" env:"MINER_METRICS_ADDR" description:"address for metrics server, empty to disable"`
}

func main() {
	cfg := config{}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := zap.NewDevelopment()
	if err != nil {
		panic("can't initialize zap logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync()
	}()

	if _, err := flags.ParseArgs(&cfg, os.Args); err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			return
		}
		logger.Fatal("failed to parse flags", zap.Error(err))
	}

	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("miner failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config, logger *zap.Logger) error {
	if cfg.MetricsAddr != "" {
		startMetricsServer(ctx, cfg.MetricsAddr, logger)
	}

	codec, err := bitcoin.NewAddressCodec(cfg.Network)
	if err != nil {
		return fmt.Errorf("init address codec: %w", err)
	}
	network := string(cfg.Network)

	tmpl, err := newTemplate(cfg, codec)
	if err != nil {
		return err
	}

	if cfg.RPCURL != "" {
		if err := applyChainTip(ctx, cfg, logger, &tmpl); err != nil {
			return err
		}
	}

	loader := mempool.NewLoader(logger, metrics.NewMempoolLoader(network), codec, mempool.Config{
		Policy:            tx.Policy{AllowZeroValueOutputs: cfg.AllowZeroValueOutputs},
		Workers:           cfg.Workers,
		SkipFilenameCheck: cfg.SkipFilenameCheck,
	})
	report, err := loader.Load(ctx, cfg.MempoolDir)
	if err != nil {
		return fmt.Errorf("load mempool: %w", err)
	}

	miner := mining.NewMiner(logger, metrics.NewMiner(network), clock.System{}, mining.Config{
		Workers:      cfg.Workers,
		MaxTimeRolls: cfg.MaxTimeRolls,
	})
	result, err := miner.Mine(ctx, tmpl, report.Transactions)
	if err != nil {
		return fmt.Errorf("mine block: %w", err)
	}

	if err := writeOutput(cfg.Output, result); err != nil {
		return err
	}
	if err := verifyOutput(logger, cfg.Output, tmpl); err != nil {
		return err
	}
	logger.Info("block written",
		zap.String("output", cfg.Output),
		zap.String("hash", result.Hash().String()),
		zap.Int("transactions", len(result.Selected)+1),
	)

	if cfg.ClickhouseDSN != "" {
		return archive(ctx, cfg.ClickhouseDSN, network, tmpl.Height, result)
	}
	return nil
}

func newTemplate(cfg config, codec *bitcoin.AddressCodec) (mining.Template, error) {
	prev, err := bitcoin.ParseRawHash(cfg.PrevHash)
	if err != nil {
		return mining.Template{}, fmt.Errorf("prev hash: %w", err)
	}
	target, err := difficulty.ParseTarget(cfg.Target)
	if err != nil {
		return mining.Template{}, fmt.Errorf("target: %w", err)
	}
	subsidy, err := bitcoin.BtcToSatoshis(cfg.Subsidy)
	if err != nil {
		return mining.Template{}, fmt.Errorf("subsidy: %w", err)
	}
	payout, err := codec.PayToAddress(cfg.PayoutAddress)
	if err != nil {
		return mining.Template{}, fmt.Errorf("payout address: %w", err)
	}

	return mining.Template{
		PrevBlock:       prev,
		Target:          target,
		Height:          cfg.Height,
		Subsidy:         subsidy,
		PayoutScript:    payout,
		ExtraNonce:      []byte(cfg.ExtraNonce),
		MaxWeight:       cfg.MaxWeight,
		CoinbaseReserve: cfg.CoinbaseReserve,
	}, nil
}

func applyChainTip(ctx context.Context, cfg config, logger *zap.Logger, tmpl *mining.Template) error {
	rpcClient, err := newRPCClient(cfg.RPCURL, cfg.RPCUser, cfg.RPCPassword)
	if err != nil {
		return fmt.Errorf("init rpc client: %w", err)
	}
	defer func() {
		rpcClient.Shutdown()
		rpcClient.WaitForShutdown()
	}()

	rpc := rpcclient2.NewObservedClient(rpcClient, metrics.NewRPCClient(string(cfg.Network)))
	tip, err := bitcoin.NewTipSource(rpc, logger, cfg.RPCRetries, cfg.RPCRetryDelay).Tip(ctx)
	if err != nil {
		return err
	}
	height, err := tip.NextHeight()
	if err != nil {
		return fmt.Errorf("next height: %w", err)
	}
	tmpl.PrevBlock, tmpl.Height = tip.Hash, height
	return nil
}

func writeOutput(path string, result *mining.Result) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close output: %w", closeErr)
		}
	}()
	return mining.WriteOutput(f, result)
}

func verifyOutput(logger *zap.Logger, path string, tmpl mining.Template) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open output: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	lines, err := mining.ReadOutput(f)
	if err != nil {
		return err
	}
	if err := mining.Verify(logger, lines, tmpl.Target); err != nil {
		return fmt.Errorf("verify output: %w", err)
	}
	return nil
}

func archive(ctx context.Context, dsn, network string, height uint32, result *mining.Result) error {
	repo, err := clickhouse.NewRepository(dsn, metrics.NewClickhouseRepository())
	if err != nil {
		return fmt.Errorf("init repository: %w", err)
	}
	defer func() {
		_ = repo.Close()
	}()

	block, err := clickhouse.NewMinedBlock(network, height, result, time.Now())
	if err != nil {
		return fmt.Errorf("build archive rows: %w", err)
	}
	if err := repo.InsertMinedBlock(ctx, block); err != nil {
		return fmt.Errorf("archive mined block: %w", err)
	}
	return nil
}

func startMetricsServer(ctx context.Context, addr string, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("starting metrics server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown metrics server", zap.Error(err))
		}
	}()
}

func newRPCClient(rawURL, user, password string) (*rpcclient.Client, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse rpc url: %w", err)
	}
	if parsed.Scheme != "http" {
		return nil, fmt.Errorf("rpc url scheme %q not supported, use http", parsed.Scheme)
	}
	if parsed.Host == "" {
		return nil, errors.New("rpc url missing host")
	}

	return rpcclient.New(&rpcclient.ConnConfig{
		Host:         parsed.Host,
		User:         user,
		Pass:         password,
		HTTPPostMode: true,
		DisableTLS:   true,
	}, nil)
}
