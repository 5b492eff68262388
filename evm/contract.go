package evm

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/alexdcox/nftkit"
	nftabi "github.com/alexdcox/nftkit/evm/abi"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

var (
	ErrNoSigner            = fmt.Errorf("no transactor configured for writes")
	ErrNotAnNFTContract    = fmt.Errorf("contract supports neither ERC721 nor ERC1155")
	ErrMetadataUnavailable = fmt.Errorf("token metadata unavailable")
)

var (
	InterfaceIDERC721           = [4]byte{0x80, 0xac, 0x58, 0xcd}
	InterfaceIDERC721Enumerable = [4]byte{0x78, 0x0e, 0x9d, 0x63}
	InterfaceIDERC1155          = [4]byte{0xd9, 0xb6, 0x7a, 0x26}
)

var (
	erc165ABI  abi.ABI
	erc721ABI  abi.ABI
	erc1155ABI abi.ABI
)

func init() {
	for _, a := range []struct {
		target *abi.ABI
		data   []byte
		name   string
	}{
		{&erc165ABI, nftabi.ERC165, "erc165"},
		{&erc721ABI, nftabi.ERC721, "erc721"},
		{&erc1155ABI, nftabi.ERC1155, "erc1155"},
	} {
		parsed, err := abi.JSON(bytes.NewReader(a.data))
		if err != nil {
			panic(errors.Wrapf(err, "failed to parse embedded %s abi", a.name))
		}
		*a.target = parsed
	}
}

// maxConcurrentReads bounds the per-token calls fanned out by list reads.
const maxConcurrentReads = 8

type Options struct {
	Backend bind.ContractBackend
	// Transactor signs writes. Reads work without one.
	Transactor *bind.TransactOpts
	Metadata   *MetadataFetcher
	// Standards skips interface detection when set.
	Standards []nftkit.TokenStandard
	// Enumerable marks an ERC721 contract listed in Standards as supporting
	// tokenOfOwnerByIndex.
	Enumerable bool
}

// Contract is a handle over a deployed token contract. It exposes ERC721()
// and ERC1155() according to what the contract reports via ERC-165.
type Contract struct {
	address    common.Address
	backend    bind.ContractBackend
	transactor *bind.TransactOpts
	metadata   *MetadataFetcher
	erc721     nftkit.ERC721
	erc1155    nftkit.ERC1155
}

var _ nftkit.ContractHandle = &Contract{}
var _ nftkit.ERC721Provider = &Contract{}
var _ nftkit.ERC1155Provider = &Contract{}

func NewContract(ctx context.Context, address common.Address, options *Options) (contract *Contract, err error) {
	if options == nil || options.Backend == nil {
		return nil, errors.New("contract backend is required")
	}

	contract = &Contract{
		address:    address,
		backend:    options.Backend,
		transactor: options.Transactor,
		metadata:   options.Metadata,
	}
	if contract.metadata == nil {
		contract.metadata = NewMetadataFetcher()
	}

	standards := options.Standards
	enumerable := options.Enumerable
	if len(standards) == 0 {
		standards, enumerable, err = contract.detect(ctx)
		if err != nil {
			return nil, err
		}
	}

	for _, s := range standards {
		switch s {
		case nftkit.StandardERC721:
			base := &erc721Token{bound: contract.bind(erc721ABI), c: contract}
			if enumerable {
				contract.erc721 = &erc721EnumerableToken{base}
			} else {
				contract.erc721 = base
			}
		case nftkit.StandardERC1155:
			contract.erc1155 = &erc1155Token{bound: contract.bind(erc1155ABI), c: contract}
		default:
			return nil, errors.Errorf("unknown token standard '%s'", s)
		}
	}

	log.Debug().Msgf("contract %s resolved as %v", address.Hex(), standards)

	return
}

func (c *Contract) Address() common.Address { return c.address }

func (c *Contract) ERC721() nftkit.ERC721 { return c.erc721 }

func (c *Contract) ERC1155() nftkit.ERC1155 { return c.erc1155 }

func (c *Contract) bind(parsed abi.ABI) *bind.BoundContract {
	return bind.NewBoundContract(c.address, parsed, c.backend, c.backend, c.backend)
}

func (c *Contract) detect(ctx context.Context) (standards []nftkit.TokenStandard, enumerable bool, err error) {
	probe := c.bind(erc165ABI)

	supports := func(id [4]byte) (bool, error) {
		var out []any
		if err := probe.Call(&bind.CallOpts{Context: ctx}, &out, "supportsInterface", id); err != nil {
			return false, err
		}
		return out[0].(bool), nil
	}

	is1155, err := supports(InterfaceIDERC1155)
	if err != nil {
		return nil, false, errors.Wrapf(err, "failed to probe %s for ERC1155", c.address.Hex())
	}
	is721, err := supports(InterfaceIDERC721)
	if err != nil {
		return nil, false, errors.Wrapf(err, "failed to probe %s for ERC721", c.address.Hex())
	}

	if is1155 {
		standards = append(standards, nftkit.StandardERC1155)
	}
	if is721 {
		standards = append(standards, nftkit.StandardERC721)
		if enumerable, err = supports(InterfaceIDERC721Enumerable); err != nil {
			return nil, false, errors.Wrapf(err, "failed to probe %s for ERC721Enumerable", c.address.Hex())
		}
	}

	if len(standards) == 0 {
		return nil, false, errors.Wrapf(ErrNotAnNFTContract, "%s", c.address.Hex())
	}

	return
}

func (c *Contract) signer(ctx context.Context) (*bind.TransactOpts, error) {
	if c.transactor == nil {
		return nil, errors.WithStack(ErrNoSigner)
	}
	opts := *c.transactor
	opts.Context = ctx
	return &opts, nil
}

func txResult(tx *types.Transaction, tokenID *big.Int) nftkit.TxResult {
	return nftkit.TxResult{Hash: tx.Hash(), TokenID: tokenID}
}

// isRevert reports whether the node executed the call and the contract
// rejected it, as opposed to the call never completing.
func isRevert(err error) bool {
	return err != nil && strings.Contains(err.Error(), "execution reverted")
}

func call[T any](ctx context.Context, bound *bind.BoundContract, method string, args ...any) (value T, err error) {
	var out []any
	if err = bound.Call(&bind.CallOpts{Context: ctx}, &out, method, args...); err != nil {
		return
	}
	if len(out) == 0 {
		return value, errors.Errorf("%s returned nothing", method)
	}
	value, ok := out[0].(T)
	if !ok {
		return value, errors.Errorf("%s returned %T", method, out[0])
	}
	return
}

// idRange lists the token ids a paged read covers, bounded by next.
func idRange(params nftkit.QueryAllParams, next *big.Int) (ids []*big.Int) {
	start := big.NewInt(int64(params.Start))
	end := new(big.Int).Add(start, big.NewInt(int64(params.Count)))
	if end.Cmp(next) > 0 {
		end = next
	}
	for id := new(big.Int).Set(start); id.Cmp(end) < 0; id = new(big.Int).Add(id, big.NewInt(1)) {
		ids = append(ids, id)
	}
	return
}

// getMany runs get for every id with bounded concurrency, keeping id order.
func getMany(ctx context.Context, ids []*big.Int, get func(ctx context.Context, id *big.Int) (nftkit.NFT, error)) ([]nftkit.NFT, error) {
	out := make([]nftkit.NFT, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentReads)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() (err error) {
			out[i], err = get(gctx, id)
			return
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
