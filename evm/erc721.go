package evm

import (
	"context"
	"math/big"

	"github.com/alexdcox/nftkit"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

type erc721Token struct {
	bound *bind.BoundContract
	c     *Contract
}

var (
	_ nftkit.ERC721         = &erc721Token{}
	_ nftkit.ERC721Supply   = &erc721Token{}
	_ nftkit.ERC721Mintable = &erc721Token{}
	_ nftkit.ERC721Burnable = &erc721Token{}

	_ nftkit.ERC721Enumerable = &erc721EnumerableToken{}
)

func (t *erc721Token) Get(ctx context.Context, tokenID *big.Int) (nft nftkit.NFT, err error) {
	// burned ids revert on ownerOf and usually tokenURI, they list with no
	// owner and bare metadata
	owner, err := call[common.Address](ctx, t.bound, "ownerOf", tokenID)
	if err != nil {
		if !isRevert(err) {
			return
		}
		log.Debug().Msgf("token %s of %s has no owner: %v", tokenID, t.c.address.Hex(), err)
		owner, err = common.Address{}, nil
	}
	uri, err := call[string](ctx, t.bound, "tokenURI", tokenID)
	if err != nil {
		if !isRevert(err) {
			return
		}
		uri, err = "", nil
	}
	meta := nftkit.NFTMetadata{ID: tokenID, URI: uri}
	if uri != "" {
		if meta, err = t.c.metadata.Fetch(ctx, uri, tokenID); err != nil {
			log.Warn().Msgf("token %s of %s has unreadable metadata: %v", tokenID, t.c.address.Hex(), err)
			meta = nftkit.NFTMetadata{ID: tokenID, URI: uri}
			err = nil
		}
	}
	return nftkit.NFT{
		Metadata: meta,
		Owner:    owner,
		Type:     nftkit.StandardERC721,
		Supply:   big.NewInt(1),
	}, nil
}

func (t *erc721Token) BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error) {
	return call[*big.Int](ctx, t.bound, "balanceOf", owner)
}

func (t *erc721Token) Transfer(ctx context.Context, to common.Address, tokenID *big.Int) (res nftkit.TxResult, err error) {
	opts, err := t.c.signer(ctx)
	if err != nil {
		return
	}
	tx, err := t.bound.Transact(opts, "safeTransferFrom", opts.From, to, tokenID)
	if err != nil {
		return
	}
	return txResult(tx, tokenID), nil
}

func (t *erc721Token) GetAll(ctx context.Context, params nftkit.QueryAllParams) ([]nftkit.NFT, error) {
	next, err := t.TotalCount(ctx)
	if err != nil {
		return nil, err
	}
	return getMany(ctx, idRange(params, next), t.Get)
}

// TotalCount is the number of ids ever minted, burned ones included.
func (t *erc721Token) TotalCount(ctx context.Context) (*big.Int, error) {
	return call[*big.Int](ctx, t.bound, "nextTokenIdToMint")
}

func (t *erc721Token) TotalCirculatingSupply(ctx context.Context) (*big.Int, error) {
	return call[*big.Int](ctx, t.bound, "totalSupply")
}

func (t *erc721Token) MintTo(ctx context.Context, to common.Address, metadata nftkit.NFTMetadata) (res nftkit.TxResult, err error) {
	opts, err := t.c.signer(ctx)
	if err != nil {
		return
	}
	uri, err := metadataURI(metadata)
	if err != nil {
		return
	}

	// best effort, the id is only known for sure once the tx is mined
	tokenID, idErr := t.TotalCount(ctx)
	if idErr != nil {
		tokenID = nil
	}

	tx, err := t.bound.Transact(opts, "mintTo", to, uri)
	if err != nil {
		return
	}
	return txResult(tx, tokenID), nil
}

func (t *erc721Token) Burn(ctx context.Context, tokenID *big.Int) (res nftkit.TxResult, err error) {
	opts, err := t.c.signer(ctx)
	if err != nil {
		return
	}
	tx, err := t.bound.Transact(opts, "burn", tokenID)
	if err != nil {
		return
	}
	return txResult(tx, tokenID), nil
}

type erc721EnumerableToken struct {
	*erc721Token
}

func (t *erc721EnumerableToken) GetOwned(ctx context.Context, owner common.Address) ([]nftkit.NFT, error) {
	balance, err := t.BalanceOf(ctx, owner)
	if err != nil {
		return nil, err
	}
	if !balance.IsInt64() {
		return nil, errors.Errorf("balance of %s is out of range", owner.Hex())
	}

	ids := make([]*big.Int, balance.Int64())
	for i := range ids {
		ids[i], err = call[*big.Int](ctx, t.bound, "tokenOfOwnerByIndex", owner, big.NewInt(int64(i)))
		if err != nil {
			return nil, err
		}
	}

	return getMany(ctx, ids, t.Get)
}
