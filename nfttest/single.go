package nfttest

import (
	"context"
	"math/big"
	"sync"

	"github.com/alexdcox/nftkit"
	"github.com/ethereum/go-ethereum/common"
)

// Single is a single-token capability with every extension.
type Single struct {
	Recorder

	mu       sync.Mutex
	tokens   map[string]nftkit.NFT
	balances map[common.Address]*big.Int
	gate     Gate
	err      error
}

var (
	_ nftkit.ERC721           = &Single{}
	_ nftkit.ERC721Supply     = &Single{}
	_ nftkit.ERC721Enumerable = &Single{}
	_ nftkit.ERC721Mintable   = &Single{}
	_ nftkit.ERC721Burnable   = &Single{}
)

func NewSingle() *Single {
	return &Single{
		tokens:   map[string]nftkit.NFT{},
		balances: map[common.Address]*big.Int{},
	}
}

func (s *Single) SetToken(id int64, owner common.Address, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tokenID := big.NewInt(id)
	s.tokens[tokenID.String()] = nftkit.NFT{
		Metadata: nftkit.NFTMetadata{ID: tokenID, Name: name},
		Owner:    owner,
		Type:     nftkit.StandardERC721,
		Supply:   big.NewInt(1),
	}
}

func (s *Single) SetBalance(owner common.Address, balance int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[owner] = big.NewInt(balance)
}

// SetGate makes reads wait for g. Writes are never gated.
func (s *Single) SetGate(g Gate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gate = g
}

// SetError makes every call fail with err.
func (s *Single) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *Single) state() (Gate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gate, s.err
}

func (s *Single) read(ctx context.Context) error {
	gate, err := s.state()
	if waitErr := gate.wait(ctx); waitErr != nil {
		return waitErr
	}
	return err
}

func (s *Single) write() error {
	_, err := s.state()
	return err
}

func (s *Single) Get(ctx context.Context, tokenID *big.Int) (nftkit.NFT, error) {
	s.record("Get", tokenID)
	if err := s.read(ctx); err != nil {
		return nftkit.NFT{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if nft, ok := s.tokens[tokenKey(tokenID)]; ok {
		return nft, nil
	}
	return nftkit.NFT{Metadata: nftkit.NFTMetadata{ID: tokenID}, Type: nftkit.StandardERC721}, nil
}

func (s *Single) BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error) {
	s.record("BalanceOf", owner)
	if err := s.read(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.balances[owner]; ok {
		return new(big.Int).Set(b), nil
	}
	return big.NewInt(0), nil
}

func (s *Single) Transfer(ctx context.Context, to common.Address, tokenID *big.Int) (nftkit.TxResult, error) {
	s.record("Transfer", to, tokenID)
	if err := s.write(); err != nil {
		return nftkit.TxResult{}, err
	}
	return tx(tokenID), nil
}

func (s *Single) GetAll(ctx context.Context, params nftkit.QueryAllParams) (out []nftkit.NFT, err error) {
	s.record("GetAll", params)
	if err = s.read(ctx); err != nil {
		return
	}
	for i := params.Start; i < params.Start+params.Count; i++ {
		s.mu.Lock()
		nft, ok := s.tokens[big.NewInt(int64(i)).String()]
		s.mu.Unlock()
		if ok {
			out = append(out, nft)
		}
	}
	return
}

func (s *Single) TotalCount(ctx context.Context) (*big.Int, error) {
	s.record("TotalCount")
	if err := s.read(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return big.NewInt(int64(len(s.tokens))), nil
}

func (s *Single) TotalCirculatingSupply(ctx context.Context) (*big.Int, error) {
	s.record("TotalCirculatingSupply")
	if err := s.read(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return big.NewInt(int64(len(s.tokens))), nil
}

func (s *Single) GetOwned(ctx context.Context, owner common.Address) (out []nftkit.NFT, err error) {
	s.record("GetOwned", owner)
	if err = s.read(ctx); err != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, nft := range s.tokens {
		if nft.Owner == owner {
			out = append(out, nft)
		}
	}
	return
}

func (s *Single) MintTo(ctx context.Context, to common.Address, metadata nftkit.NFTMetadata) (nftkit.TxResult, error) {
	s.record("MintTo", to, metadata)
	if err := s.write(); err != nil {
		return nftkit.TxResult{}, err
	}
	return tx(nil), nil
}

func (s *Single) Burn(ctx context.Context, tokenID *big.Int) (nftkit.TxResult, error) {
	s.record("Burn", tokenID)
	if err := s.write(); err != nil {
		return nftkit.TxResult{}, err
	}
	return tx(tokenID), nil
}

// Core hides every extension, leaving Get, BalanceOf and Transfer.
func (s *Single) Core() nftkit.ERC721 {
	return singleCore{s}
}

type singleCore struct {
	s *Single
}

func (c singleCore) Get(ctx context.Context, tokenID *big.Int) (nftkit.NFT, error) {
	return c.s.Get(ctx, tokenID)
}

func (c singleCore) BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error) {
	return c.s.BalanceOf(ctx, owner)
}

func (c singleCore) Transfer(ctx context.Context, to common.Address, tokenID *big.Int) (nftkit.TxResult, error) {
	return c.s.Transfer(ctx, to, tokenID)
}
