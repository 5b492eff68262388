package nftkit

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
)

type stubSingle struct{}

func (stubSingle) Get(context.Context, *big.Int) (NFT, error) { return NFT{}, nil }
func (stubSingle) BalanceOf(context.Context, common.Address) (*big.Int, error) {
	return big.NewInt(0), nil
}
func (stubSingle) Transfer(context.Context, common.Address, *big.Int) (TxResult, error) {
	return TxResult{}, nil
}
func (stubSingle) Burn(context.Context, *big.Int) (TxResult, error) { return TxResult{}, nil }

type stubMulti struct{}

func (stubMulti) Get(context.Context, *big.Int) (NFT, error) { return NFT{}, nil }
func (stubMulti) BalanceOf(context.Context, common.Address, *big.Int) (*big.Int, error) {
	return big.NewInt(0), nil
}
func (stubMulti) TotalCirculatingSupply(context.Context, *big.Int) (*big.Int, error) {
	return big.NewInt(0), nil
}
func (stubMulti) Transfer(context.Context, common.Address, *big.Int, *big.Int) (TxResult, error) {
	return TxResult{}, nil
}

type stubHandle struct {
	single ERC721
	multi  ERC1155
}

func (h *stubHandle) Address() common.Address { return storeContractA }
func (h *stubHandle) ERC721() ERC721          { return h.single }
func (h *stubHandle) ERC1155() ERC1155        { return h.multi }

type addressOnly struct{}

func (addressOnly) Address() common.Address { return storeContractA }

func TestResolveCapabilities(t *testing.T) {
	caps := ResolveCapabilities(&stubHandle{single: stubSingle{}, multi: stubMulti{}})
	assert.Equal(t, StandardERC1155, caps.Preferred())
	assert.False(t, caps.None())

	caps = ResolveCapabilities(&stubHandle{single: stubSingle{}})
	assert.Equal(t, StandardERC721, caps.Preferred())
	assert.Nil(t, caps.ERC1155)

	caps = ResolveCapabilities(addressOnly{})
	assert.True(t, caps.None())
	assert.Equal(t, TokenStandard(""), caps.Preferred())

	var typedNil *stubHandle
	assert.True(t, ResolveCapabilities(typedNil).None())
	assert.True(t, ResolveCapabilities(nil).None())
}

func TestCapabilityExtensions(t *testing.T) {
	caps := ResolveCapabilities(&stubHandle{single: stubSingle{}, multi: stubMulti{}})

	_, ok := erc721Ext[ERC721Burnable](caps)
	assert.True(t, ok)
	_, ok = erc721Ext[ERC721Supply](caps)
	assert.False(t, ok)
	_, ok = erc1155Ext[ERC1155Burnable](caps)
	assert.False(t, ok)
	_, ok = erc1155Ext[ERC1155Burnable](Capabilities{})
	assert.False(t, ok, "a missing capability never matches")
}
