package nftkit

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// NFT reads one token. Disabled without a handle or token id.
func (c *Client) NFT(h ContractHandle, tokenID *big.Int) *Query[NFT] {
	tokenID = cloneInt(tokenID)
	caps := ResolveCapabilities(h)
	key := NFTKey(c.ChainID(), handleAddress(h), tokenID)
	enabled := !isNilHandle(h) && tokenID != nil

	return NewQuery(c.queries, key, enabled, func(ctx context.Context) (NFT, error) {
		switch {
		case caps.ERC1155 != nil:
			return caps.ERC1155.Get(ctx, tokenID)
		case caps.ERC721 != nil:
			return caps.ERC721.Get(ctx, tokenID)
		}
		return NFT{}, unsupported(opGet)
	})
}

// NFTs pages through every token of the contract. A nil params reads the
// first DefaultQueryAllCount tokens.
func (c *Client) NFTs(h ContractHandle, params *QueryAllParams) *Query[[]NFT] {
	p := params.normalized()
	caps := ResolveCapabilities(h)
	key := NFTsKey(c.ChainID(), handleAddress(h), &p)

	return NewQuery(c.queries, key, !isNilHandle(h), func(ctx context.Context) ([]NFT, error) {
		if e, ok := erc1155Ext[ERC1155Enumerable](caps); ok {
			return e.GetAll(ctx, p)
		}
		if e, ok := erc721Ext[ERC721Supply](caps); ok {
			return e.GetAll(ctx, p)
		}
		return nil, unsupported(opQueryAll)
	})
}

func (c *Client) TotalCount(h ContractHandle) *Query[*big.Int] {
	caps := ResolveCapabilities(h)
	key := TotalCountKey(c.ChainID(), handleAddress(h))

	return NewQuery(c.queries, key, !isNilHandle(h), func(ctx context.Context) (*big.Int, error) {
		if e, ok := erc1155Ext[ERC1155Enumerable](caps); ok {
			return e.TotalCount(ctx)
		}
		if e, ok := erc721Ext[ERC721Supply](caps); ok {
			return e.TotalCount(ctx)
		}
		return nil, unsupported(opTotalCount)
	})
}

// TotalCirculatingSupply on a multi-token contract is per token id and is
// disabled without one; single-token contracts ignore tokenID.
func (c *Client) TotalCirculatingSupply(h ContractHandle, tokenID *big.Int) *Query[*big.Int] {
	tokenID = cloneInt(tokenID)
	caps := ResolveCapabilities(h)
	key := TotalCirculatingSupplyKey(c.ChainID(), handleAddress(h), tokenID)
	enabled := !isNilHandle(h) && !(caps.ERC1155 != nil && tokenID == nil)

	return NewQuery(c.queries, key, enabled, func(ctx context.Context) (*big.Int, error) {
		if caps.ERC1155 != nil {
			if tokenID == nil {
				return nil, missingArgument("tokenId")
			}
			return caps.ERC1155.TotalCirculatingSupply(ctx, tokenID)
		}
		if e, ok := erc721Ext[ERC721Supply](caps); ok {
			return e.TotalCirculatingSupply(ctx)
		}
		return nil, unsupported(opTotalCirculatingSupply)
	})
}

// OwnedNFTs lists the tokens held by owner. Disabled without an owner.
func (c *Client) OwnedNFTs(h ContractHandle, owner common.Address) *Query[[]NFT] {
	caps := ResolveCapabilities(h)
	key := OwnedNFTsKey(c.ChainID(), handleAddress(h), owner)
	enabled := !isNilHandle(h) && !isZeroAddress(owner)

	return NewQuery(c.queries, key, enabled, func(ctx context.Context) ([]NFT, error) {
		if e, ok := erc1155Ext[ERC1155Enumerable](caps); ok {
			return e.GetOwned(ctx, owner)
		}
		if e, ok := erc721Ext[ERC721Enumerable](caps); ok {
			return e.GetOwned(ctx, owner)
		}
		return nil, unsupported(opOwnedAll)
	})
}

// NFTBalance is owner's quantity of tokenID on a multi-token contract, or
// owner's token count on a single-token one. The multi-token form is disabled
// without a token id.
func (c *Client) NFTBalance(h ContractHandle, owner common.Address, tokenID *big.Int) *Query[*big.Int] {
	tokenID = cloneInt(tokenID)
	caps := ResolveCapabilities(h)
	key := BalanceKey(c.ChainID(), handleAddress(h), owner, tokenID)
	enabled := !isNilHandle(h) && !isZeroAddress(owner) && !(caps.ERC1155 != nil && tokenID == nil)

	return NewQuery(c.queries, key, enabled, func(ctx context.Context) (*big.Int, error) {
		switch {
		case caps.ERC1155 != nil:
			if tokenID == nil {
				return nil, missingArgument("tokenId")
			}
			return caps.ERC1155.BalanceOf(ctx, owner, tokenID)
		case caps.ERC721 != nil:
			return caps.ERC721.BalanceOf(ctx, owner)
		}
		return nil, unsupported(opBalanceOf)
	})
}
