package nftkit

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ContractHandle is a caller-owned reference to a deployed contract. It is
// only borrowed for the duration of a call.
type ContractHandle interface {
	Address() common.Address
}

// ERC721Provider is implemented by handles that may expose the single-token
// capability. Returning nil means the capability is absent.
type ERC721Provider interface {
	ERC721() ERC721
}

// ERC1155Provider is implemented by handles that may expose the multi-token
// capability. Returning nil means the capability is absent.
type ERC1155Provider interface {
	ERC1155() ERC1155
}

// ERC721 is the single-token capability: one unit per token id.
type ERC721 interface {
	Get(ctx context.Context, tokenID *big.Int) (NFT, error)
	BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error)
	Transfer(ctx context.Context, to common.Address, tokenID *big.Int) (TxResult, error)
}

type ERC721Supply interface {
	GetAll(ctx context.Context, params QueryAllParams) ([]NFT, error)
	TotalCount(ctx context.Context) (*big.Int, error)
	TotalCirculatingSupply(ctx context.Context) (*big.Int, error)
}

type ERC721Enumerable interface {
	GetOwned(ctx context.Context, owner common.Address) ([]NFT, error)
}

type ERC721Mintable interface {
	MintTo(ctx context.Context, to common.Address, metadata NFTMetadata) (TxResult, error)
}

type ERC721Burnable interface {
	Burn(ctx context.Context, tokenID *big.Int) (TxResult, error)
}

// ERC1155 is the multi-token capability: a quantity per token id.
type ERC1155 interface {
	Get(ctx context.Context, tokenID *big.Int) (NFT, error)
	BalanceOf(ctx context.Context, owner common.Address, tokenID *big.Int) (*big.Int, error)
	TotalCirculatingSupply(ctx context.Context, tokenID *big.Int) (*big.Int, error)
	Transfer(ctx context.Context, to common.Address, tokenID, amount *big.Int) (TxResult, error)
}

type ERC1155Enumerable interface {
	GetAll(ctx context.Context, params QueryAllParams) ([]NFT, error)
	TotalCount(ctx context.Context) (*big.Int, error)
	GetOwned(ctx context.Context, owner common.Address) ([]NFT, error)
}

type ERC1155Mintable interface {
	MintTo(ctx context.Context, to common.Address, metadata NFTMetadata, supply *big.Int) (TxResult, error)
	MintAdditionalSupplyTo(ctx context.Context, to common.Address, tokenID, amount *big.Int) (TxResult, error)
}

type ERC1155Burnable interface {
	Burn(ctx context.Context, tokenID, amount *big.Int) (TxResult, error)
}

type ERC1155Airdrop interface {
	Airdrop(ctx context.Context, tokenID *big.Int, recipients []AirdropRecipient) (TxResult, error)
}

// Capabilities is the resolved view of a handle. When both are set the
// multi-token capability takes precedence for every operation.
type Capabilities struct {
	ERC721  ERC721
	ERC1155 ERC1155
}

func (c Capabilities) None() bool {
	return c.ERC721 == nil && c.ERC1155 == nil
}

// Preferred reports which standard an operation will be routed to first.
func (c Capabilities) Preferred() TokenStandard {
	switch {
	case c.ERC1155 != nil:
		return StandardERC1155
	case c.ERC721 != nil:
		return StandardERC721
	}
	return ""
}

// ResolveCapabilities inspects the handle once. It never performs I/O.
func ResolveCapabilities(h ContractHandle) (caps Capabilities) {
	if isNilHandle(h) {
		return
	}
	if p, ok := h.(ERC721Provider); ok {
		caps.ERC721 = p.ERC721()
	}
	if p, ok := h.(ERC1155Provider); ok {
		caps.ERC1155 = p.ERC1155()
	}
	return
}

// extension returns the capability as T when it implements it. A nil
// capability never matches.
func extension[T any](capability any) (ext T, ok bool) {
	if capability == nil {
		return
	}
	ext, ok = capability.(T)
	return
}

func erc1155Ext[T any](c Capabilities) (T, bool) {
	return extension[T](c.ERC1155)
}

func erc721Ext[T any](c Capabilities) (T, bool) {
	return extension[T](c.ERC721)
}
