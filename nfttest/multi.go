package nfttest

import (
	"context"
	"math/big"
	"sync"

	"github.com/alexdcox/nftkit"
	"github.com/ethereum/go-ethereum/common"
)

// Multi is a multi-token capability with every extension.
type Multi struct {
	Recorder

	mu       sync.Mutex
	tokens   map[string]nftkit.NFT
	balances map[string]*big.Int
	gate     Gate
	err      error
}

var (
	_ nftkit.ERC1155           = &Multi{}
	_ nftkit.ERC1155Enumerable = &Multi{}
	_ nftkit.ERC1155Mintable   = &Multi{}
	_ nftkit.ERC1155Burnable   = &Multi{}
	_ nftkit.ERC1155Airdrop    = &Multi{}
)

func NewMulti() *Multi {
	return &Multi{
		tokens:   map[string]nftkit.NFT{},
		balances: map[string]*big.Int{},
	}
}

func balanceKey(owner common.Address, id *big.Int) string {
	return owner.Hex() + "/" + tokenKey(id)
}

func (m *Multi) SetToken(id int64, supply int64, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tokenID := big.NewInt(id)
	m.tokens[tokenID.String()] = nftkit.NFT{
		Metadata: nftkit.NFTMetadata{ID: tokenID, Name: name},
		Type:     nftkit.StandardERC1155,
		Supply:   big.NewInt(supply),
	}
}

func (m *Multi) SetBalance(owner common.Address, id int64, balance int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[balanceKey(owner, big.NewInt(id))] = big.NewInt(balance)
}

func (m *Multi) SetGate(g Gate) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gate = g
}

func (m *Multi) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *Multi) state() (Gate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gate, m.err
}

func (m *Multi) read(ctx context.Context) error {
	gate, err := m.state()
	if waitErr := gate.wait(ctx); waitErr != nil {
		return waitErr
	}
	return err
}

func (m *Multi) write() error {
	_, err := m.state()
	return err
}

func (m *Multi) Get(ctx context.Context, tokenID *big.Int) (nftkit.NFT, error) {
	m.record("Get", tokenID)
	if err := m.read(ctx); err != nil {
		return nftkit.NFT{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if nft, ok := m.tokens[tokenKey(tokenID)]; ok {
		return nft, nil
	}
	return nftkit.NFT{Metadata: nftkit.NFTMetadata{ID: tokenID}, Type: nftkit.StandardERC1155, Supply: big.NewInt(0)}, nil
}

func (m *Multi) BalanceOf(ctx context.Context, owner common.Address, tokenID *big.Int) (*big.Int, error) {
	m.record("BalanceOf", owner, tokenID)
	if err := m.read(ctx); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.balances[balanceKey(owner, tokenID)]; ok {
		return new(big.Int).Set(b), nil
	}
	return big.NewInt(0), nil
}

func (m *Multi) TotalCirculatingSupply(ctx context.Context, tokenID *big.Int) (*big.Int, error) {
	m.record("TotalCirculatingSupply", tokenID)
	if err := m.read(ctx); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if nft, ok := m.tokens[tokenKey(tokenID)]; ok && nft.Supply != nil {
		return new(big.Int).Set(nft.Supply), nil
	}
	return big.NewInt(0), nil
}

func (m *Multi) Transfer(ctx context.Context, to common.Address, tokenID, amount *big.Int) (nftkit.TxResult, error) {
	m.record("Transfer", to, tokenID, amount)
	if err := m.write(); err != nil {
		return nftkit.TxResult{}, err
	}
	return tx(tokenID), nil
}

func (m *Multi) GetAll(ctx context.Context, params nftkit.QueryAllParams) (out []nftkit.NFT, err error) {
	m.record("GetAll", params)
	if err = m.read(ctx); err != nil {
		return
	}
	for i := params.Start; i < params.Start+params.Count; i++ {
		m.mu.Lock()
		nft, ok := m.tokens[big.NewInt(int64(i)).String()]
		m.mu.Unlock()
		if ok {
			out = append(out, nft)
		}
	}
	return
}

func (m *Multi) TotalCount(ctx context.Context) (*big.Int, error) {
	m.record("TotalCount")
	if err := m.read(ctx); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return big.NewInt(int64(len(m.tokens))), nil
}

func (m *Multi) GetOwned(ctx context.Context, owner common.Address) (out []nftkit.NFT, err error) {
	m.record("GetOwned", owner)
	if err = m.read(ctx); err != nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, nft := range m.tokens {
		if b, ok := m.balances[owner.Hex()+"/"+id]; ok && b.Sign() > 0 {
			nft.Owner = owner
			nft.QuantityOwned = new(big.Int).Set(b)
			out = append(out, nft)
		}
	}
	return
}

func (m *Multi) MintTo(ctx context.Context, to common.Address, metadata nftkit.NFTMetadata, supply *big.Int) (nftkit.TxResult, error) {
	m.record("MintTo", to, metadata, supply)
	if err := m.write(); err != nil {
		return nftkit.TxResult{}, err
	}
	return tx(nil), nil
}

func (m *Multi) MintAdditionalSupplyTo(ctx context.Context, to common.Address, tokenID, amount *big.Int) (nftkit.TxResult, error) {
	m.record("MintAdditionalSupplyTo", to, tokenID, amount)
	if err := m.write(); err != nil {
		return nftkit.TxResult{}, err
	}
	return tx(tokenID), nil
}

func (m *Multi) Burn(ctx context.Context, tokenID, amount *big.Int) (nftkit.TxResult, error) {
	m.record("Burn", tokenID, amount)
	if err := m.write(); err != nil {
		return nftkit.TxResult{}, err
	}
	return tx(tokenID), nil
}

func (m *Multi) Airdrop(ctx context.Context, tokenID *big.Int, recipients []nftkit.AirdropRecipient) (nftkit.TxResult, error) {
	m.record("Airdrop", tokenID, recipients)
	if err := m.write(); err != nil {
		return nftkit.TxResult{}, err
	}
	return tx(tokenID), nil
}

// Core hides every extension, leaving the base multi-token methods.
func (m *Multi) Core() nftkit.ERC1155 {
	return multiCore{m}
}

type multiCore struct {
	m *Multi
}

func (c multiCore) Get(ctx context.Context, tokenID *big.Int) (nftkit.NFT, error) {
	return c.m.Get(ctx, tokenID)
}

func (c multiCore) BalanceOf(ctx context.Context, owner common.Address, tokenID *big.Int) (*big.Int, error) {
	return c.m.BalanceOf(ctx, owner, tokenID)
}

func (c multiCore) TotalCirculatingSupply(ctx context.Context, tokenID *big.Int) (*big.Int, error) {
	return c.m.TotalCirculatingSupply(ctx, tokenID)
}

func (c multiCore) Transfer(ctx context.Context, to common.Address, tokenID, amount *big.Int) (nftkit.TxResult, error) {
	return c.m.Transfer(ctx, to, tokenID, amount)
}
