package nftkit

import (
	"encoding/json"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mr-tron/base58"
	"golang.org/x/crypto/sha3"
)

// CacheKey is an ordered list of segments. Keys are compared and matched by
// prefix, segment by segment.
type CacheKey []string

// String renders the canonical form, a JSON array of the segments.
func (k CacheKey) String() string {
	if k == nil {
		return "[]"
	}
	b, _ := json.Marshal([]string(k))
	return string(b)
}

// Hash is base58(keccak256(String())), safe to use as a storage id.
func (k CacheKey) Hash() string {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(k.String()))
	return base58.Encode(h.Sum(nil))
}

func (k CacheKey) Equal(other CacheKey) bool {
	if len(k) != len(other) {
		return false
	}
	for i := range k {
		if k[i] != other[i] {
			return false
		}
	}
	return true
}

func (k CacheKey) HasPrefix(prefix CacheKey) bool {
	if len(prefix) > len(k) {
		return false
	}
	for i := range prefix {
		if k[i] != prefix[i] {
			return false
		}
	}
	return true
}

// prefixString is the canonical string of a prefix with the closing bracket
// removed, so that String() of any key under it starts with it.
func (k CacheKey) prefixString() string {
	s := k.String()
	if len(k) == 0 {
		return "["
	}
	return strings.TrimSuffix(s, "]")
}

// Operation is the segment following "nft" in contract keys.
func (k CacheKey) Operation() string {
	for i := 0; i < len(k)-1; i++ {
		if k[i] == "nft" {
			return k[i+1]
		}
	}
	return ""
}

func ParseCacheKey(s string) (key CacheKey, err error) {
	err = json.Unmarshal([]byte(s), &key)
	return
}

const (
	opGet                    = "get"
	opQueryAll               = "query.all"
	opTotalCount             = "query.totalCount"
	opTotalCirculatingSupply = "query.totalCirculatingSupply"
	opOwnedAll               = "query.owned.all"
	opBalanceOf              = "balanceOf"
)

func normalizeAddress(a common.Address) string {
	return strings.ToLower(a.Hex())
}

func argInt(name string, v *big.Int) []string {
	if v == nil {
		return nil
	}
	return []string{name + "=" + v.String()}
}

func argAddress(name string, a common.Address) []string {
	if isZeroAddress(a) {
		return nil
	}
	return []string{name + "=" + normalizeAddress(a)}
}

func ChainKey(chain ChainID) CacheKey {
	return CacheKey{"evm", chain.String()}
}

// ContractKey is the prefix of every key belonging to one contract.
func ContractKey(chain ChainID, contract common.Address) CacheKey {
	return append(ChainKey(chain), "contract", normalizeAddress(contract))
}

// WalletKey is the prefix of keys describing a wallet outside any one
// contract, e.g. native balances.
func WalletKey(chain ChainID, wallet common.Address) CacheKey {
	return append(ChainKey(chain), "wallet", normalizeAddress(wallet))
}

func nftKey(chain ChainID, contract common.Address, op string, args ...[]string) CacheKey {
	key := append(ContractKey(chain, contract), "nft", op)
	for _, a := range args {
		key = append(key, a...)
	}
	return key
}

func NFTKey(chain ChainID, contract common.Address, tokenID *big.Int) CacheKey {
	return nftKey(chain, contract, opGet, argInt("tokenId", tokenID))
}

func NFTsKey(chain ChainID, contract common.Address, params *QueryAllParams) CacheKey {
	p := params.normalized()
	return nftKey(chain, contract, opQueryAll,
		argInt("start", big.NewInt(int64(p.Start))),
		argInt("count", big.NewInt(int64(p.Count))))
}

func TotalCountKey(chain ChainID, contract common.Address) CacheKey {
	return nftKey(chain, contract, opTotalCount)
}

func TotalCirculatingSupplyKey(chain ChainID, contract common.Address, tokenID *big.Int) CacheKey {
	return nftKey(chain, contract, opTotalCirculatingSupply, argInt("tokenId", tokenID))
}

func OwnedNFTsKey(chain ChainID, contract, owner common.Address) CacheKey {
	return nftKey(chain, contract, opOwnedAll, argAddress("owner", owner))
}

func BalanceKey(chain ChainID, contract, owner common.Address, tokenID *big.Int) CacheKey {
	return nftKey(chain, contract, opBalanceOf, argAddress("owner", owner), argInt("tokenId", tokenID))
}

// InvalidationSet lists key prefixes a write must invalidate on settlement.
type InvalidationSet []CacheKey

func (s InvalidationSet) Add(keys ...CacheKey) InvalidationSet {
	for _, k := range keys {
		if !s.Contains(k) {
			s = append(s, k)
		}
	}
	return s
}

func (s InvalidationSet) Contains(key CacheKey) bool {
	for _, k := range s {
		if k.Equal(key) {
			return true
		}
	}
	return false
}

// Matches reports whether any prefix in the set covers key.
func (s InvalidationSet) Matches(key CacheKey) bool {
	for _, k := range s {
		if key.HasPrefix(k) {
			return true
		}
	}
	return false
}

// contractInvalidationSet covers the contract's own keys (tokens, supply and
// every owner's balance and ownership under it) plus the wallet keys of the
// given addresses.
func contractInvalidationSet(chain ChainID, contract common.Address, wallets ...common.Address) (set InvalidationSet) {
	set = set.Add(ContractKey(chain, contract))
	for _, w := range wallets {
		if !isZeroAddress(w) {
			set = set.Add(WalletKey(chain, w))
		}
	}
	return
}
