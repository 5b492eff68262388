package nftkit

import (
	"math/big"
	"reflect"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

type ClientOptions struct {
	// Chain scopes every cache key. Defaults to Ethereum mainnet.
	Chain ChainIDProvider
	// Store holds cached query values. When nil an in-memory store is built
	// from Cache.
	Store      CacheStore
	Cache      *CacheConfig
	StaleTime  time.Duration
	Registerer prometheus.Registerer
}

func (o *ClientOptions) setDefaults() (err error) {
	if o.Chain == nil {
		o.Chain = defaultClientOptions.Chain
	}

	if o.StaleTime <= 0 {
		o.StaleTime = defaultClientOptions.StaleTime
	}

	if o.Store == nil {
		o.Store, err = NewMemoryCacheStore(o.Cache)
	}

	return
}

var defaultClientOptions = &ClientOptions{
	Chain:     StaticChainID(1),
	StaleTime: DefaultStaleTime,
}

// Client dispatches NFT reads and writes against caller supplied contract
// handles and caches the reads.
type Client struct {
	options *ClientOptions
	queries *QueryClient
	log     *zerolog.Logger
}

func NewClient(options *ClientOptions) (client *Client, err error) {
	if options == nil {
		options = &ClientOptions{}
	}
	if err = options.setDefaults(); err != nil {
		return nil, errors.Wrap(err, "failed to build cache store")
	}

	client = &Client{
		options: options,
		queries: NewQueryClient(options.Store, options.StaleTime, options.Registerer),
		log:     Log(),
	}

	return
}

func (c *Client) Queries() *QueryClient {
	return c.queries
}

// CachedEntries is the number of values currently held by the store.
func (c *Client) CachedEntries() int {
	return c.options.Store.Len()
}

func (c *Client) ChainID() ChainID {
	return c.options.Chain.ChainID()
}

// Invalidate drops cached reads under the given prefixes, see
// QueryClient.Invalidate.
func (c *Client) Invalidate(prefixes ...CacheKey) ([]CacheKey, error) {
	return c.queries.Invalidate(prefixes...)
}

// InvalidateContract drops every cached read of the handle's contract on the
// active chain.
func (c *Client) InvalidateContract(h ContractHandle) ([]CacheKey, error) {
	if isNilHandle(h) {
		return nil, noContract()
	}
	return c.queries.Invalidate(ContractKey(c.ChainID(), h.Address()))
}

func (c *Client) Close() (err error) {
	c.log.Info().Msg("closing client")
	c.queries.events.Close()
	return c.options.Store.Close()
}

// isNilHandle also catches typed nil pointers wrapped in the interface.
func isNilHandle(h ContractHandle) bool {
	if h == nil {
		return true
	}
	v := reflect.ValueOf(h)
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return v.IsNil()
	}
	return false
}

func handleAddress(h ContractHandle) common.Address {
	if isNilHandle(h) {
		return common.Address{}
	}
	return h.Address()
}

func cloneInt(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}
