// Package nfttest provides in-memory contract handles that record every
// capability call, for exercising nftkit without a chain.
package nfttest

import (
	"context"
	"math/big"
	"sync"

	"github.com/alexdcox/nftkit"
	"github.com/ethereum/go-ethereum/common"
)

var (
	ContractAddress = common.HexToAddress("0x00000000000000000000000000000000000000c0")
	TxHash          = common.HexToHash("0x00000000000000000000000000000000000000000000000000000000000000aa")
)

type Call struct {
	Method string
	Args   []any
}

type Recorder struct {
	mu    sync.Mutex
	calls []Call
}

func (r *Recorder) record(method string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, Call{Method: method, Args: args})
}

func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call{}, r.calls...)
}

func (r *Recorder) Count(method string) (n int) {
	for _, c := range r.Calls() {
		if c.Method == method {
			n++
		}
	}
	return
}

// Last returns the most recent call of method.
func (r *Recorder) Last(method string) (call Call, ok bool) {
	calls := r.Calls()
	for i := len(calls) - 1; i >= 0; i-- {
		if calls[i].Method == method {
			return calls[i], true
		}
	}
	return
}

// Gate optionally holds reads until released. A nil Gate never blocks.
type Gate chan struct{}

func NewGate() Gate { return make(Gate) }

func (g Gate) Release() { close(g) }

func (g Gate) wait(ctx context.Context) error {
	if g == nil {
		return nil
	}
	select {
	case <-g:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Handle exposes whichever capabilities are set.
type Handle struct {
	Addr   common.Address
	Single nftkit.ERC721
	Multi  nftkit.ERC1155
}

var (
	_ nftkit.ContractHandle  = &Handle{}
	_ nftkit.ERC721Provider  = &Handle{}
	_ nftkit.ERC1155Provider = &Handle{}
)

func (h *Handle) Address() common.Address { return h.Addr }

func (h *Handle) ERC721() nftkit.ERC721 { return h.Single }

func (h *Handle) ERC1155() nftkit.ERC1155 { return h.Multi }

// BareHandle has an address and nothing else.
type BareHandle struct {
	Addr common.Address
}

func (h BareHandle) Address() common.Address { return h.Addr }

func NewSingleHandle() (*Handle, *Single) {
	s := NewSingle()
	return &Handle{Addr: ContractAddress, Single: s}, s
}

func NewMultiHandle() (*Handle, *Multi) {
	m := NewMulti()
	return &Handle{Addr: ContractAddress, Multi: m}, m
}

func NewDualHandle() (*Handle, *Single, *Multi) {
	s, m := NewSingle(), NewMulti()
	return &Handle{Addr: ContractAddress, Single: s, Multi: m}, s, m
}

func tx(tokenID *big.Int) nftkit.TxResult {
	return nftkit.TxResult{Hash: TxHash, TokenID: tokenID}
}

func tokenKey(id *big.Int) string {
	if id == nil {
		return "<nil>"
	}
	return id.String()
}
