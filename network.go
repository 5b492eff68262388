package nftkit

import (
	_ "embed"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

//go:embed chains.json
var chainsJson []byte

type ChainID uint64

func (id ChainID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

func (id ChainID) Valid() bool {
	_, ok := chainsByID[id]
	return ok
}

func (id ChainID) Validate() (err error) {
	if !id.Valid() {
		err = errors.Wrapf(ErrUnknownChain, "chain id %d", uint64(id))
	}
	return
}

func (id ChainID) Chain() (chain *Chain, err error) {
	return LookupChain(id)
}

type Currency struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
}

type Explorer struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	Standard string `json:"standard"`
}

type Chain struct {
	Name           string     `json:"name"`
	Chain          string     `json:"chain"`
	ShortName      string     `json:"shortName"`
	Slug           string     `json:"slug"`
	ChainID        ChainID    `json:"chainId"`
	NetworkID      uint64     `json:"networkId"`
	RPC            []string   `json:"rpc"`
	Faucets        []string   `json:"faucets"`
	NativeCurrency Currency   `json:"nativeCurrency"`
	InfoURL        string     `json:"infoURL"`
	Explorers      []Explorer `json:"explorers,omitempty"`
	Testnet        bool       `json:"testnet"`
}

// HTTPRPC returns the first http(s) endpoint, skipping websocket ones.
func (c *Chain) HTTPRPC() string {
	for _, rpc := range c.RPC {
		if strings.HasPrefix(rpc, "http://") || strings.HasPrefix(rpc, "https://") {
			return rpc
		}
	}
	return ""
}

var (
	chains       []Chain
	chainsByID   = map[ChainID]*Chain{}
	chainsBySlug = map[string]*Chain{}
)

func init() {
	var err error
	chains, err = parseChains(chainsJson)
	if err != nil {
		panic(errors.Wrap(err, "unable to parse embedded chain registry"))
	}
	for i := range chains {
		chainsByID[chains[i].ChainID] = &chains[i]
		chainsBySlug[chains[i].Slug] = &chains[i]
	}
}

func parseChains(data []byte) (out []Chain, err error) {
	if !gjson.ValidBytes(data) {
		return nil, errors.New("invalid chain registry json")
	}

	for _, c := range gjson.ParseBytes(data).Array() {
		chain := Chain{
			Name:      c.Get("name").String(),
			Chain:     c.Get("chain").String(),
			ShortName: c.Get("shortName").String(),
			Slug:      c.Get("slug").String(),
			ChainID:   ChainID(c.Get("chainId").Uint()),
			NetworkID: c.Get("networkId").Uint(),
			NativeCurrency: Currency{
				Name:     c.Get("nativeCurrency.name").String(),
				Symbol:   c.Get("nativeCurrency.symbol").String(),
				Decimals: int(c.Get("nativeCurrency.decimals").Int()),
			},
			InfoURL: c.Get("infoURL").String(),
			Testnet: c.Get("testnet").Bool(),
		}
		if chain.ChainID == 0 {
			return nil, errors.Errorf("chain '%s' has no chain id", chain.Name)
		}
		for _, rpc := range c.Get("rpc").Array() {
			chain.RPC = append(chain.RPC, rpc.String())
		}
		for _, faucet := range c.Get("faucets").Array() {
			chain.Faucets = append(chain.Faucets, faucet.String())
		}
		for _, e := range c.Get("explorers").Array() {
			chain.Explorers = append(chain.Explorers, Explorer{
				Name:     e.Get("name").String(),
				URL:      e.Get("url").String(),
				Standard: e.Get("standard").String(),
			})
		}
		out = append(out, chain)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ChainID < out[j].ChainID })

	return
}

func LookupChain(id ChainID) (*Chain, error) {
	if c, ok := chainsByID[id]; ok {
		return c, nil
	}
	return nil, errors.Wrapf(ErrUnknownChain, "chain id %d", uint64(id))
}

func LookupChainBySlug(slug string) (*Chain, error) {
	if c, ok := chainsBySlug[strings.ToLower(slug)]; ok {
		return c, nil
	}
	return nil, errors.Wrapf(ErrUnknownChain, "chain slug '%s'", slug)
}

// Chains returns a copy of the registry ordered by chain id.
func Chains() []Chain {
	out := make([]Chain, len(chains))
	copy(out, chains)
	return out
}

// ChainIDProvider supplies the network that scopes cache keys.
type ChainIDProvider interface {
	ChainID() ChainID
}

type StaticChainID ChainID

func (s StaticChainID) ChainID() ChainID { return ChainID(s) }

// ActiveChain is a ChainIDProvider that can be switched at runtime, e.g. when
// the connected wallet changes network.
type ActiveChain struct {
	id atomic.Uint64
}

func NewActiveChain(id ChainID) *ActiveChain {
	a := &ActiveChain{}
	a.id.Store(uint64(id))
	return a
}

func (a *ActiveChain) ChainID() ChainID {
	return ChainID(a.id.Load())
}

func (a *ActiveChain) Switch(id ChainID) (err error) {
	if err = id.Validate(); err != nil {
		return
	}
	old := a.id.Swap(uint64(id))
	if old != uint64(id) {
		log.Info().Msgf("active chain switched from %d to %d", old, uint64(id))
	}
	return
}
