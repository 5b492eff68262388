package evm

import (
	"context"
	"math/big"

	"github.com/alexdcox/nftkit"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/pkg/errors"
)

type erc1155Token struct {
	bound *bind.BoundContract
	c     *Contract
}

var (
	_ nftkit.ERC1155           = &erc1155Token{}
	_ nftkit.ERC1155Enumerable = &erc1155Token{}
	_ nftkit.ERC1155Mintable   = &erc1155Token{}
	_ nftkit.ERC1155Burnable   = &erc1155Token{}
	_ nftkit.ERC1155Airdrop    = &erc1155Token{}
)

func (t *erc1155Token) Get(ctx context.Context, tokenID *big.Int) (nft nftkit.NFT, err error) {
	uri, err := call[string](ctx, t.bound, "uri", tokenID)
	if err != nil {
		return
	}
	supply, err := t.TotalCirculatingSupply(ctx, tokenID)
	if err != nil {
		return
	}
	meta, err := t.c.metadata.Fetch(ctx, uri, tokenID)
	if err != nil {
		log.Warn().Msgf("token %s of %s has unreadable metadata: %v", tokenID, t.c.address.Hex(), err)
		meta = nftkit.NFTMetadata{ID: tokenID, URI: uri}
		err = nil
	}
	return nftkit.NFT{
		Metadata: meta,
		Type:     nftkit.StandardERC1155,
		Supply:   supply,
	}, nil
}

func (t *erc1155Token) BalanceOf(ctx context.Context, owner common.Address, tokenID *big.Int) (*big.Int, error) {
	return call[*big.Int](ctx, t.bound, "balanceOf", owner, tokenID)
}

func (t *erc1155Token) TotalCirculatingSupply(ctx context.Context, tokenID *big.Int) (*big.Int, error) {
	return call[*big.Int](ctx, t.bound, "totalSupply", tokenID)
}

func (t *erc1155Token) Transfer(ctx context.Context, to common.Address, tokenID, amount *big.Int) (res nftkit.TxResult, err error) {
	opts, err := t.c.signer(ctx)
	if err != nil {
		return
	}
	tx, err := t.bound.Transact(opts, "safeTransferFrom", opts.From, to, tokenID, amount, []byte{})
	if err != nil {
		return
	}
	return txResult(tx, tokenID), nil
}

func (t *erc1155Token) GetAll(ctx context.Context, params nftkit.QueryAllParams) ([]nftkit.NFT, error) {
	next, err := t.TotalCount(ctx)
	if err != nil {
		return nil, err
	}
	return getMany(ctx, idRange(params, next), t.Get)
}

func (t *erc1155Token) TotalCount(ctx context.Context) (*big.Int, error) {
	return call[*big.Int](ctx, t.bound, "nextTokenIdToMint")
}

// GetOwned checks every minted id in one balanceOfBatch call and returns the
// ones owner holds, with QuantityOwned set.
func (t *erc1155Token) GetOwned(ctx context.Context, owner common.Address) (owned []nftkit.NFT, err error) {
	next, err := t.TotalCount(ctx)
	if err != nil {
		return
	}
	if !next.IsInt64() {
		return nil, errors.Errorf("token count %s is out of range", next)
	}

	n := int(next.Int64())
	if n == 0 {
		return
	}

	accounts := make([]common.Address, n)
	ids := make([]*big.Int, n)
	for i := range ids {
		accounts[i] = owner
		ids[i] = big.NewInt(int64(i))
	}

	balances, err := call[[]*big.Int](ctx, t.bound, "balanceOfBatch", accounts, ids)
	if err != nil {
		return
	}
	if len(balances) != n {
		return nil, errors.Errorf("balanceOfBatch returned %d balances for %d ids", len(balances), n)
	}

	var held []*big.Int
	quantities := map[string]*big.Int{}
	for i, b := range balances {
		if b.Sign() > 0 {
			held = append(held, ids[i])
			quantities[ids[i].String()] = b
		}
	}

	owned, err = getMany(ctx, held, t.Get)
	if err != nil {
		return nil, err
	}
	for i := range owned {
		owned[i].Owner = owner
		owned[i].QuantityOwned = quantities[held[i].String()]
	}
	return
}

// MintTo creates a new token id. The contract treats the max uint256 id as
// a request for the next free one.
func (t *erc1155Token) MintTo(ctx context.Context, to common.Address, metadata nftkit.NFTMetadata, supply *big.Int) (res nftkit.TxResult, err error) {
	opts, err := t.c.signer(ctx)
	if err != nil {
		return
	}
	uri, err := metadataURI(metadata)
	if err != nil {
		return
	}

	tokenID, idErr := t.TotalCount(ctx)
	if idErr != nil {
		tokenID = nil
	}

	tx, err := t.bound.Transact(opts, "mintTo", to, new(big.Int).Set(math.MaxBig256), uri, supply)
	if err != nil {
		return
	}
	return txResult(tx, tokenID), nil
}

func (t *erc1155Token) MintAdditionalSupplyTo(ctx context.Context, to common.Address, tokenID, amount *big.Int) (res nftkit.TxResult, err error) {
	opts, err := t.c.signer(ctx)
	if err != nil {
		return
	}
	tx, err := t.bound.Transact(opts, "mintTo", to, tokenID, "", amount)
	if err != nil {
		return
	}
	return txResult(tx, tokenID), nil
}

func (t *erc1155Token) Burn(ctx context.Context, tokenID, amount *big.Int) (res nftkit.TxResult, err error) {
	opts, err := t.c.signer(ctx)
	if err != nil {
		return
	}
	tx, err := t.bound.Transact(opts, "burn", opts.From, tokenID, amount)
	if err != nil {
		return
	}
	return txResult(tx, tokenID), nil
}

// Airdrop batches one safeTransferFrom per recipient into a multicall.
func (t *erc1155Token) Airdrop(ctx context.Context, tokenID *big.Int, recipients []nftkit.AirdropRecipient) (res nftkit.TxResult, err error) {
	opts, err := t.c.signer(ctx)
	if err != nil {
		return
	}

	calls := make([][]byte, 0, len(recipients))
	for _, r := range recipients {
		data, packErr := erc1155ABI.Pack("safeTransferFrom", opts.From, r.Address, tokenID, r.Quantity, []byte{})
		if packErr != nil {
			return res, errors.Wrapf(packErr, "failed to encode transfer to %s", r.Address.Hex())
		}
		calls = append(calls, data)
	}

	tx, err := t.bound.Transact(opts, "multicall", calls)
	if err != nil {
		return
	}
	return txResult(tx, tokenID), nil
}
