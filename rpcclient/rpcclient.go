package rpcclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	. "github.com/alexdcox/nftkit"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

func NewRpcClient(hostPort string) (client *RpcClient, err error) {
	if hostPort == "" {
		return nil, errors.New("rpc host/port not configured")
	}
	if !strings.HasPrefix(hostPort, "http://") && !strings.HasPrefix(hostPort, "https://") {
		hostPort = "http://" + hostPort
	}
	client = &RpcClient{
		HostPort: strings.TrimSuffix(hostPort, "/"),
	}
	return
}

type RpcClient struct {
	HostPort string
}

func (c *RpcClient) req(method string, path string, body io.Reader) (rsp *http.Response, out []byte, err error) {
	req, err2 := http.NewRequest(method, c.HostPort+path, body)
	if err2 != nil {
		err = err2
		return
	}

	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/json")
	}

	rsp, err = http.DefaultClient.Do(req)
	if err != nil {
		err = errors.WithStack(err)
		return
	}
	defer rsp.Body.Close()

	out, err = io.ReadAll(rsp.Body)
	if err != nil {
		err = errors.WithStack(err)
		return
	}

	if rsp.Status[0] != '2' {
		errRsp := &RpcError{}
		if decodeErr := json.Unmarshal(out, errRsp); decodeErr == nil && errRsp.Err != "" {
			err = errRsp

			if stdErr := errRsp.StdErr(); stdErr != nil {
				err = stdErr
			}

			return
		}

		err = errors.Wrapf(ErrRpcFailed, "rpc response code %d with body %s", rsp.StatusCode, string(out))
		return
	}

	return
}

func (c *RpcClient) reqUnmarshal(method string, path string, body io.Reader, target any) (err error) {
	_, rspBody, err := c.req(method, path, body)
	if err != nil {
		return
	}

	err = json.Unmarshal(rspBody, target)
	if err != nil {
		err = errors.Wrapf(err, "unable to unmarshal body: %s", string(rspBody))
		return
	}

	return
}

func (c *RpcClient) get(path string, target any) (err error) {
	return c.reqUnmarshal(http.MethodGet, path, nil, target)
}

func (c *RpcClient) post(path string, in any, target any) (err error) {
	jsn, err := json.Marshal(in)
	if err != nil {
		err = errors.WithStack(err)
		return
	}

	return c.reqUnmarshal(http.MethodPost, path, bytes.NewReader(jsn), target)
}

func contractPath(contract common.Address, parts ...string) string {
	return "/contract/" + contract.Hex() + "/" + strings.Join(parts, "/")
}

func withQuery(path string, values url.Values) string {
	if encoded := values.Encode(); encoded != "" {
		return path + "?" + encoded
	}
	return path
}

type GetStatusOut struct {
	ChainID       ChainID `json:"chainId"`
	Chain         string  `json:"chain"`
	CachedEntries int     `json:"cachedEntries"`
	StaleTime     string  `json:"staleTime"`
	Signer        string  `json:"signer,omitempty"`
}

func (c *RpcClient) GetStatus() (out *GetStatusOut, err error) {
	out = &GetStatusOut{}
	err = c.get("/status", out)
	return
}

func (c *RpcClient) GetChains() (out []Chain, err error) {
	out = []Chain{}
	err = c.get("/chains", &out)
	return
}

func (c *RpcClient) GetChain(id ChainID) (out *Chain, err error) {
	out = &Chain{}
	err = c.get(fmt.Sprintf("/chains/%d", uint64(id)), out)
	return
}

// ValueOut carries a single integer read such as a balance or a count.
type ValueOut struct {
	Value *big.Int `json:"value"`
}

func (c *RpcClient) getValue(path string) (value *big.Int, err error) {
	out := &ValueOut{}
	if err = c.get(path, out); err != nil {
		return
	}
	return out.Value, nil
}

func (c *RpcClient) GetNFT(contract common.Address, tokenID *big.Int) (out *NFT, err error) {
	out = &NFT{}
	err = c.get(contractPath(contract, "nft", tokenID.String()), out)
	return
}

func (c *RpcClient) GetNFTs(contract common.Address, params *QueryAllParams) (out []NFT, err error) {
	values := url.Values{}
	if params != nil {
		if params.Start > 0 {
			values.Set("start", strconv.Itoa(params.Start))
		}
		if params.Count > 0 {
			values.Set("count", strconv.Itoa(params.Count))
		}
	}
	out = []NFT{}
	err = c.get(withQuery(contractPath(contract, "nfts"), values), &out)
	return
}

func (c *RpcClient) GetTotalCount(contract common.Address) (*big.Int, error) {
	return c.getValue(contractPath(contract, "total-count"))
}

func (c *RpcClient) GetCirculatingSupply(contract common.Address, tokenID *big.Int) (*big.Int, error) {
	values := url.Values{}
	if tokenID != nil {
		values.Set("tokenId", tokenID.String())
	}
	return c.getValue(withQuery(contractPath(contract, "circulating-supply"), values))
}

func (c *RpcClient) GetOwned(contract, owner common.Address) (out []NFT, err error) {
	out = []NFT{}
	err = c.get(contractPath(contract, "owned", owner.Hex()), &out)
	return
}

func (c *RpcClient) GetBalance(contract, owner common.Address, tokenID *big.Int) (*big.Int, error) {
	values := url.Values{}
	if tokenID != nil {
		values.Set("tokenId", tokenID.String())
	}
	return c.getValue(withQuery(contractPath(contract, "balance", owner.Hex()), values))
}

// MutationOut describes a settled write.
type MutationOut struct {
	ID          string      `json:"id"`
	Operation   string      `json:"operation"`
	Status      string      `json:"status"`
	Hash        common.Hash `json:"hash"`
	TokenID     *big.Int    `json:"tokenId,omitempty"`
	Invalidated []string    `json:"invalidated"`
}

func (c *RpcClient) mutate(contract common.Address, op string, in any) (out *MutationOut, err error) {
	out = &MutationOut{}
	err = c.post(contractPath(contract, op), in, out)
	return
}

func (c *RpcClient) Mint(contract common.Address, in *MintParams) (*MutationOut, error) {
	return c.mutate(contract, "mint", in)
}

func (c *RpcClient) MintSupply(contract common.Address, in *MintSupplyParams) (*MutationOut, error) {
	return c.mutate(contract, "mint-supply", in)
}

func (c *RpcClient) Transfer(contract common.Address, in *TransferParams) (*MutationOut, error) {
	return c.mutate(contract, "transfer", in)
}

func (c *RpcClient) Burn(contract common.Address, in *BurnParams) (*MutationOut, error) {
	return c.mutate(contract, "burn", in)
}

func (c *RpcClient) Airdrop(contract common.Address, in *AirdropParams) (*MutationOut, error) {
	return c.mutate(contract, "airdrop", in)
}

type InvalidateOut struct {
	Invalidated []string `json:"invalidated"`
}

func (c *RpcClient) Invalidate(contract common.Address) (out *InvalidateOut, err error) {
	out = &InvalidateOut{}
	err = c.post(contractPath(contract, "invalidate"), map[string]any{}, out)
	return
}

type RpcError struct {
	Err     string `json:"error"`
	Details string `json:"details"`
}

func (r *RpcError) Error() string {
	return r.Err
}

// StdErr maps the reported error back onto the package sentinel it names.
func (r *RpcError) StdErr() error {
	for _, a := range AllErrors {
		if r.Err == a.Error() {
			return errors.Wrap(a, r.Details)
		}
	}
	return nil
}
