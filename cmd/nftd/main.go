package main

import (
	"context"
	"flag"
	"math/big"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	. "github.com/alexdcox/nftkit"
	"github.com/alexdcox/nftkit/evm"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
)

type _config struct {
	DatabasePath string        `json:"databasepath"`
	ChainID      uint64        `json:"chainid"`
	EthRpcURL    string        `json:"ethrpcurl"`
	RpcHostPort  string        `json:"rpchostport"`
	LogLevel     string        `json:"loglevel"`
	StaleTime    time.Duration `json:"staletime"`
	IPFSGateway  string        `json:"ipfsgateway"`
	PrivateKey   string        `json:"-"`
}

func (c *_config) Load() (err error) {
	flag.StringVar(&c.DatabasePath, "databasepath", "", "Path to the sqlite cache database (in-memory cache when empty)")
	flag.Uint64Var(&c.ChainID, "chainid", 1, "Chain id of the network to serve")
	flag.StringVar(&c.EthRpcURL, "ethrpcurl", "", "JSON-RPC endpoint of the node (defaults to the chain registry endpoint)")
	flag.StringVar(&c.RpcHostPort, "rpchostport", "localhost:3003", "Set host:port for the http/rpc listener")
	flag.StringVar(&c.LogLevel, "loglevel", "", "Set the log level (trace|debug|info|warn|error|fatal) Can also be set via the NFTD_LOG_LEVEL environment variable")
	flag.DurationVar(&c.StaleTime, "staletime", DefaultStaleTime, "How long a cached read is served without refetching")
	flag.StringVar(&c.IPFSGateway, "ipfsgateway", evm.DefaultIPFSGateway, "Gateway used to resolve ipfs:// metadata")
	flag.Parse()

	// keys never go on the command line
	c.PrivateKey = os.Getenv("NFTD_PRIVATE_KEY")

	if c.LogLevel == "" {
		if envLogLevel := os.Getenv("NFTD_LOG_LEVEL"); envLogLevel != "" {
			c.LogLevel = envLogLevel
		} else {
			c.LogLevel = "info"
		}
	}

	err = ChainID(c.ChainID).Validate()

	return
}

var log = Log()

var config *_config

func main() {
	config = &_config{}

	if err := config.Load(); err != nil {
		log.Fatal().Msgf("%+v", err)
	}

	logLevel, err := zerolog.ParseLevel(config.LogLevel)
	if err != nil {
		log.Fatal().Msgf("%+v", errors.WithStack(err))
	}

	log.Info().Msgf("setting log level to: '%s'", logLevel)
	zerolog.SetGlobalLevel(logLevel)

	var store CacheStore
	if config.DatabasePath != "" {
		store, err = NewSqlLiteCacheStore(config.DatabasePath)
	} else {
		store, err = NewMemoryCacheStore(nil)
	}
	if err != nil {
		log.Fatal().Msgf("%+v", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	client, err := NewClient(&ClientOptions{
		Chain:      StaticChainID(config.ChainID),
		Store:      store,
		StaleTime:  config.StaleTime,
		Registerer: registry,
	})
	if err != nil {
		log.Fatal().Msgf("%+v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	backend, err := evm.Dial(ctx, ChainID(config.ChainID), config.EthRpcURL)
	cancel()
	if err != nil {
		log.Fatal().Msgf("%+v", err)
	}

	transactor, err := loadTransactor(config.PrivateKey, config.ChainID)
	if err != nil {
		log.Fatal().Msgf("%+v", err)
	}

	metadata := evm.NewMetadataFetcher()
	metadata.Gateway = config.IPFSGateway

	resolver := evmResolver(&evm.Options{
		Backend:    backend,
		Transactor: transactor,
		Metadata:   metadata,
	})

	httpServer, err := NewHttpRpcServer(config, client, resolver, registry)
	if err != nil {
		log.Fatal().Msgf("%+v", err)
	}
	if transactor != nil {
		httpServer.signer = transactor.From
	}

	go func() {
		if err = httpServer.Start(); err != nil {
			log.Fatal().Msgf("%+v", err)
		}
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	<-c

	log.Info().Msg("caught interrupt/terminate signal, attempting graceful shutdown...")

	if err = httpServer.Stop(); err != nil {
		log.Fatal().Msgf("%+v", err)
	}

	backend.Close()

	if err = client.Close(); err != nil {
		log.Fatal().Msgf("%+v", err)
	}

	log.Info().Msg("graceful shutdown complete")
}

// loadTransactor returns nil when no key is configured, leaving the daemon
// read only.
func loadTransactor(hexKey string, chainID uint64) (*bind.TransactOpts, error) {
	if hexKey == "" {
		log.Warn().Msg("no signing key configured, writes will fail")
		return nil, nil
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, errors.Wrap(err, "invalid signing key")
	}

	transactor, err := bind.NewKeyedTransactorWithChainID(key, new(big.Int).SetUint64(chainID))
	if err != nil {
		return nil, errors.WithStack(err)
	}

	log.Info().Msgf("signing writes as %s", transactor.From.Hex())

	return transactor, nil
}

// contractResolver turns a path address into a handle the client can dispatch
// against.
type contractResolver func(ctx context.Context, address common.Address) (ContractHandle, error)

// evmResolver detects each contract's standards once and reuses the handle.
func evmResolver(options *evm.Options) contractResolver {
	var mu sync.Mutex
	resolved := map[common.Address]*evm.Contract{}

	return func(ctx context.Context, address common.Address) (ContractHandle, error) {
		mu.Lock()
		contract, ok := resolved[address]
		mu.Unlock()
		if ok {
			return contract, nil
		}

		contract, err := evm.NewContract(ctx, address, options)
		if err != nil {
			return nil, err
		}

		mu.Lock()
		resolved[address] = contract
		mu.Unlock()

		return contract, nil
	}
}
