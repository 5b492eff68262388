package nftkit

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

const (
	opMint       = "mint"
	opMintSupply = "mintSupply"
	opTransfer   = "transfer"
	opBurn       = "burn"
	opAirdrop    = "airdrop"
)

// writeTarget is what every write resolves before validating its params.
type writeTarget struct {
	caps  Capabilities
	set   InvalidationSet
	chain ChainID
	addr  common.Address
}

func (c *Client) target(h ContractHandle, wallets ...common.Address) (t writeTarget, err error) {
	if isNilHandle(h) {
		return t, noContract()
	}
	t.chain = c.ChainID()
	t.addr = h.Address()
	t.caps = ResolveCapabilities(h)
	t.set = contractInvalidationSet(t.chain, t.addr, wallets...)
	return
}

func defaultOne(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(1)
	}
	return new(big.Int).Set(v)
}

// MintNFT mints a new token to params.To. On a multi-token contract a nil
// Supply mints a single unit.
func (c *Client) MintNFT(h ContractHandle) *Mutation[MintParams, TxResult] {
	return newMutation(c.queries, opMint, func(ctx context.Context, p MintParams) (res TxResult, set InvalidationSet, err error) {
		t, err := c.target(h, p.To)
		if err != nil {
			return
		}
		set = t.set

		if isZeroAddress(p.To) {
			return res, set, missingArgument("to")
		}

		if m, ok := erc1155Ext[ERC1155Mintable](t.caps); ok {
			res, err = m.MintTo(ctx, p.To, p.Metadata, defaultOne(p.Supply))
			return
		}
		if m, ok := erc721Ext[ERC721Mintable](t.caps); ok {
			res, err = m.MintTo(ctx, p.To, p.Metadata)
			return
		}
		return res, set, unsupported(opMint)
	})
}

// MintNFTSupply adds supply to an existing multi-token id.
func (c *Client) MintNFTSupply(h ContractHandle) *Mutation[MintSupplyParams, TxResult] {
	return newMutation(c.queries, opMintSupply, func(ctx context.Context, p MintSupplyParams) (res TxResult, set InvalidationSet, err error) {
		t, err := c.target(h, p.To)
		if err != nil {
			return
		}
		set = t.set

		switch {
		case isZeroAddress(p.To):
			return res, set, missingArgument("to")
		case p.TokenID == nil:
			return res, set, missingArgument("tokenId")
		}

		m, ok := erc1155Ext[ERC1155Mintable](t.caps)
		if !ok {
			return res, set, unsupported(opMintSupply)
		}
		if p.AdditionalSupply == nil {
			return res, set, missingArgument("additionalSupply")
		}

		res, err = m.MintAdditionalSupplyTo(ctx, p.To, cloneInt(p.TokenID), cloneInt(p.AdditionalSupply))
		return
	})
}

// TransferNFT moves a token to params.To. Multi-token contracts also need an
// amount.
func (c *Client) TransferNFT(h ContractHandle) *Mutation[TransferParams, TxResult] {
	return newMutation(c.queries, opTransfer, func(ctx context.Context, p TransferParams) (res TxResult, set InvalidationSet, err error) {
		t, err := c.target(h, p.To)
		if err != nil {
			return
		}
		set = t.set

		switch {
		case isZeroAddress(p.To):
			return res, set, missingArgument("to")
		case p.TokenID == nil:
			return res, set, missingArgument("tokenId")
		}

		switch {
		case t.caps.ERC1155 != nil:
			if p.Amount == nil {
				return res, set, missingArgument("amount")
			}
			res, err = t.caps.ERC1155.Transfer(ctx, p.To, cloneInt(p.TokenID), cloneInt(p.Amount))
		case t.caps.ERC721 != nil:
			res, err = t.caps.ERC721.Transfer(ctx, p.To, cloneInt(p.TokenID))
		default:
			err = unsupported(opTransfer)
		}
		return
	})
}

// BurnNFT destroys a token, or an amount of it on multi-token contracts.
func (c *Client) BurnNFT(h ContractHandle) *Mutation[BurnParams, TxResult] {
	return newMutation(c.queries, opBurn, func(ctx context.Context, p BurnParams) (res TxResult, set InvalidationSet, err error) {
		t, err := c.target(h)
		if err != nil {
			return
		}
		set = t.set

		if p.TokenID == nil {
			return res, set, missingArgument("tokenId")
		}

		if b, ok := erc1155Ext[ERC1155Burnable](t.caps); ok {
			if p.Amount == nil {
				return res, set, missingArgument("amount")
			}
			res, err = b.Burn(ctx, cloneInt(p.TokenID), cloneInt(p.Amount))
			return
		}
		if b, ok := erc721Ext[ERC721Burnable](t.caps); ok {
			res, err = b.Burn(ctx, cloneInt(p.TokenID))
			return
		}
		return res, set, unsupported(opBurn)
	})
}

// AirdropNFT sends a multi-token id to many recipients in one transaction. A
// recipient without a quantity receives one unit.
func (c *Client) AirdropNFT(h ContractHandle) *Mutation[AirdropParams, TxResult] {
	return newMutation(c.queries, opAirdrop, func(ctx context.Context, p AirdropParams) (res TxResult, set InvalidationSet, err error) {
		wallets := make([]common.Address, 0, len(p.Recipients))
		for _, r := range p.Recipients {
			wallets = append(wallets, r.Address)
		}

		t, err := c.target(h, wallets...)
		if err != nil {
			return
		}
		set = t.set

		if p.TokenID == nil {
			return res, set, missingArgument("tokenId")
		}
		if len(p.Recipients) == 0 {
			return res, set, missingArgument("recipients")
		}
		recipients := make([]AirdropRecipient, 0, len(p.Recipients))
		for _, r := range p.Recipients {
			if isZeroAddress(r.Address) {
				return res, set, missingArgument("recipients.address")
			}
			recipients = append(recipients, AirdropRecipient{
				Address:  r.Address,
				Quantity: defaultOne(r.Quantity),
			})
		}

		a, ok := erc1155Ext[ERC1155Airdrop](t.caps)
		if !ok {
			return res, set, unsupported(opAirdrop)
		}

		res, err = a.Airdrop(ctx, cloneInt(p.TokenID), recipients)
		return
	})
}
