package main

import (
	"encoding/json"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	. "github.com/alexdcox/nftkit"
	"github.com/alexdcox/nftkit/evm"
	"github.com/alexdcox/nftkit/rpcclient"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tidwall/gjson"
)

func NewHttpRpcServer(config *_config, client *Client, contracts contractResolver, registry *prometheus.Registry) (server *HttpRpcServer, err error) {
	if client == nil || contracts == nil {
		return nil, errors.New("client and contract resolver are required")
	}

	server = &HttpRpcServer{
		config:    config,
		client:    client,
		contracts: contracts,
		registry:  registry,
	}
	server.app = server.routes()

	return
}

type HttpRpcServer struct {
	app       *fiber.App
	client    *Client
	config    *_config
	contracts contractResolver
	registry  *prometheus.Registry
	signer    common.Address
}

func (s *HttpRpcServer) routes() *fiber.App {
	app := fiber.New(fiber.Config{
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          2 * time.Minute,
		IdleTimeout:           120 * time.Second,
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Use(func(c *fiber.Ctx) error {
		rsp := c.Next()
		log.Info().Msgf("http response: [%d] %s - %s %s", c.Response().StatusCode(), c.IP(), c.Method(), c.Path())
		return rsp
	})

	app.Get("/status", s.getStatus)
	app.Get("/chains", s.getChains)
	app.Get("/chains/:id", s.getChain)

	app.Get("/contract/:address/nft/:tokenId", s.getNFT)
	app.Get("/contract/:address/nfts", s.getNFTs)
	app.Get("/contract/:address/total-count", s.getTotalCount)
	app.Get("/contract/:address/circulating-supply", s.getCirculatingSupply)
	app.Get("/contract/:address/owned/:owner", s.getOwned)
	app.Get("/contract/:address/balance/:owner", s.getBalance)

	app.Post("/contract/:address/mint", s.postMint)
	app.Post("/contract/:address/mint-supply", s.postMintSupply)
	app.Post("/contract/:address/transfer", s.postTransfer)
	app.Post("/contract/:address/burn", s.postBurn)
	app.Post("/contract/:address/airdrop", s.postAirdrop)
	app.Post("/contract/:address/invalidate", s.postInvalidate)

	if s.registry != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))
	}

	return app
}

func (s *HttpRpcServer) Start() (err error) {
	log.Info().Msgf("http/rpc server listening on %s", s.config.RpcHostPort)

	err = errors.WithStack(s.app.Listen(s.config.RpcHostPort))

	return
}

func (s *HttpRpcServer) Stop() (err error) {
	return errors.WithStack(s.app.Shutdown())
}

func (s *HttpRpcServer) errorResponse(c *fiber.Ctx, err error) error {
	statusCode := http.StatusInternalServerError

	reportedErr := err

	for _, group := range []struct {
		status  int
		matches []error
	}{
		{http.StatusBadRequest, []error{ErrMissingArgument, ErrNoContractProvided, ErrInvalidParameter}},
		{http.StatusUnprocessableEntity, []error{ErrUnsupportedCapability, evm.ErrNotAnNFTContract, evm.ErrNoSigner}},
		{http.StatusNotFound, []error{ErrUnknownChain}},
	} {
		for _, match := range group.matches {
			if errors.Is(err, match) {
				reportedErr = match
				statusCode = group.status
				break
			}
		}
		if statusCode != http.StatusInternalServerError {
			break
		}
	}

	if statusCode == http.StatusInternalServerError {
		log.Error().Msgf("%s %s failed: %+v", c.Method(), c.Path(), err)
	}

	return c.Status(statusCode).JSON(map[string]any{
		"error":   reportedErr.Error(),
		"details": err.Error(),
	})
}

func invalidParameter(name, value string) error {
	return errors.Wrapf(ErrInvalidParameter, "%s '%s'", name, value)
}

func parseAddress(name, value string) (common.Address, error) {
	if value == "" {
		return common.Address{}, nil
	}
	if !common.IsHexAddress(value) {
		return common.Address{}, invalidParameter(name, value)
	}
	return common.HexToAddress(value), nil
}

// parseInt accepts decimal or 0x prefixed hex. An empty value is nil.
func parseInt(name, value string) (*big.Int, error) {
	if value == "" {
		return nil, nil
	}
	v, ok := new(big.Int).SetString(value, 0)
	if !ok || v.Sign() < 0 {
		return nil, invalidParameter(name, value)
	}
	return v, nil
}

func (s *HttpRpcServer) contract(c *fiber.Ctx) (ContractHandle, error) {
	address, err := parseAddress("address", c.Params("address"))
	if err != nil {
		return nil, err
	}
	return s.contracts(c.UserContext(), address)
}

// respond fetches q. A query left disabled by its arguments is reported as
// the argument that was missing.
func respond[T any](s *HttpRpcServer, c *fiber.Ctx, q *Query[T], missing string, wrap func(T) any) error {
	if !q.Enabled() {
		return s.errorResponse(c, errors.WithStack(&MissingArgumentError{Field: missing}))
	}
	data, err := q.Fetch(c.UserContext()).Get()
	if err != nil {
		return s.errorResponse(c, err)
	}
	if wrap != nil {
		return c.JSON(wrap(data))
	}
	return c.JSON(data)
}

func value(v *big.Int) any {
	return rpcclient.ValueOut{Value: v}
}

func (s *HttpRpcServer) getStatus(c *fiber.Ctx) error {
	out := rpcclient.GetStatusOut{
		ChainID:       s.client.ChainID(),
		CachedEntries: s.client.CachedEntries(),
		StaleTime:     s.client.Queries().StaleTime().String(),
	}
	if chain, err := LookupChain(out.ChainID); err == nil {
		out.Chain = chain.Name
	}
	if s.signer != (common.Address{}) {
		out.Signer = s.signer.Hex()
	}
	return c.JSON(out)
}

func (s *HttpRpcServer) getChains(c *fiber.Ctx) error {
	return c.JSON(Chains())
}

func (s *HttpRpcServer) getChain(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return s.errorResponse(c, invalidParameter("id", c.Params("id")))
	}
	chain, err := LookupChain(ChainID(id))
	if err != nil {
		return s.errorResponse(c, err)
	}
	return c.JSON(chain)
}

func (s *HttpRpcServer) getNFT(c *fiber.Ctx) error {
	h, err := s.contract(c)
	if err != nil {
		return s.errorResponse(c, err)
	}
	tokenID, err := parseInt("tokenId", c.Params("tokenId"))
	if err != nil {
		return s.errorResponse(c, err)
	}
	return respond(s, c, s.client.NFT(h, tokenID), "tokenId", nil)
}

func (s *HttpRpcServer) getNFTs(c *fiber.Ctx) error {
	h, err := s.contract(c)
	if err != nil {
		return s.errorResponse(c, err)
	}
	params := &QueryAllParams{
		Start: c.QueryInt("start", 0),
		Count: c.QueryInt("count", DefaultQueryAllCount),
	}
	return respond(s, c, s.client.NFTs(h, params), "contract", nil)
}

func (s *HttpRpcServer) getTotalCount(c *fiber.Ctx) error {
	h, err := s.contract(c)
	if err != nil {
		return s.errorResponse(c, err)
	}
	return respond(s, c, s.client.TotalCount(h), "contract", value)
}

func (s *HttpRpcServer) getCirculatingSupply(c *fiber.Ctx) error {
	h, err := s.contract(c)
	if err != nil {
		return s.errorResponse(c, err)
	}
	tokenID, err := parseInt("tokenId", c.Query("tokenId"))
	if err != nil {
		return s.errorResponse(c, err)
	}
	return respond(s, c, s.client.TotalCirculatingSupply(h, tokenID), "tokenId", value)
}

func (s *HttpRpcServer) getOwned(c *fiber.Ctx) error {
	h, err := s.contract(c)
	if err != nil {
		return s.errorResponse(c, err)
	}
	owner, err := parseAddress("owner", c.Params("owner"))
	if err != nil {
		return s.errorResponse(c, err)
	}
	return respond(s, c, s.client.OwnedNFTs(h, owner), "owner", nil)
}

func (s *HttpRpcServer) getBalance(c *fiber.Ctx) error {
	h, err := s.contract(c)
	if err != nil {
		return s.errorResponse(c, err)
	}
	owner, err := parseAddress("owner", c.Params("owner"))
	if err != nil {
		return s.errorResponse(c, err)
	}
	tokenID, err := parseInt("tokenId", c.Query("tokenId"))
	if err != nil {
		return s.errorResponse(c, err)
	}
	missing := "tokenId"
	if owner == (common.Address{}) {
		missing = "owner"
	}
	return respond(s, c, s.client.NFTBalance(h, owner, tokenID), missing, value)
}

// body parses the request as json. Large integers keep their precision since
// gjson exposes the raw number text.
func (s *HttpRpcServer) body(c *fiber.Ctx) (doc gjson.Result, err error) {
	if !strings.HasPrefix(c.Get("Content-Type"), "application/json") {
		return doc, errors.Wrap(ErrInvalidParameter, "expected a json body")
	}
	raw := c.Body()
	if len(raw) == 0 {
		return gjson.Parse("{}"), nil
	}
	if !gjson.ValidBytes(raw) {
		return doc, errors.Wrap(ErrInvalidParameter, "malformed json body")
	}
	return gjson.ParseBytes(raw), nil
}

func intField(doc gjson.Result, path string) (*big.Int, error) {
	v := doc.Get(path)
	switch v.Type {
	case gjson.Null:
		return nil, nil
	case gjson.Number:
		return parseInt(path, v.Raw)
	case gjson.String:
		return parseInt(path, v.Str)
	}
	return nil, invalidParameter(path, v.Raw)
}

func addressField(doc gjson.Result, path string) (common.Address, error) {
	v := doc.Get(path)
	if v.Type == gjson.Null {
		return common.Address{}, nil
	}
	if v.Type != gjson.String {
		return common.Address{}, invalidParameter(path, v.Raw)
	}
	return parseAddress(path, v.Str)
}

// settle runs one write and reports its settled state.
func settle[P any](s *HttpRpcServer, c *fiber.Ctx, m *Mutation[P, TxResult], params P) error {
	res, err := m.Mutate(c.UserContext(), params)
	if err != nil {
		return s.errorResponse(c, err)
	}

	state := m.State()
	out := rpcclient.MutationOut{
		ID:          state.ID.String(),
		Operation:   m.Operation(),
		Status:      state.Status.String(),
		Hash:        res.Hash,
		TokenID:     res.TokenID,
		Invalidated: make([]string, 0, len(state.Invalidated)),
	}
	for _, k := range state.Invalidated {
		out.Invalidated = append(out.Invalidated, k.String())
	}

	return c.JSON(out)
}

func (s *HttpRpcServer) postMint(c *fiber.Ctx) error {
	h, err := s.contract(c)
	if err != nil {
		return s.errorResponse(c, err)
	}
	doc, err := s.body(c)
	if err != nil {
		return s.errorResponse(c, err)
	}

	params := MintParams{}
	if params.To, err = addressField(doc, "to"); err != nil {
		return s.errorResponse(c, err)
	}
	if params.Supply, err = intField(doc, "supply"); err != nil {
		return s.errorResponse(c, err)
	}
	if meta := doc.Get("metadata"); meta.IsObject() {
		if err = json.Unmarshal([]byte(meta.Raw), &params.Metadata); err != nil {
			return s.errorResponse(c, errors.Wrap(ErrInvalidParameter, err.Error()))
		}
	}

	return settle(s, c, s.client.MintNFT(h), params)
}

func (s *HttpRpcServer) postMintSupply(c *fiber.Ctx) error {
	h, err := s.contract(c)
	if err != nil {
		return s.errorResponse(c, err)
	}
	doc, err := s.body(c)
	if err != nil {
		return s.errorResponse(c, err)
	}

	params := MintSupplyParams{}
	if params.To, err = addressField(doc, "to"); err != nil {
		return s.errorResponse(c, err)
	}
	if params.TokenID, err = intField(doc, "tokenId"); err != nil {
		return s.errorResponse(c, err)
	}
	if params.AdditionalSupply, err = intField(doc, "additionalSupply"); err != nil {
		return s.errorResponse(c, err)
	}

	return settle(s, c, s.client.MintNFTSupply(h), params)
}

func (s *HttpRpcServer) postTransfer(c *fiber.Ctx) error {
	h, err := s.contract(c)
	if err != nil {
		return s.errorResponse(c, err)
	}
	doc, err := s.body(c)
	if err != nil {
		return s.errorResponse(c, err)
	}

	params := TransferParams{}
	if params.To, err = addressField(doc, "to"); err != nil {
		return s.errorResponse(c, err)
	}
	if params.TokenID, err = intField(doc, "tokenId"); err != nil {
		return s.errorResponse(c, err)
	}
	if params.Amount, err = intField(doc, "amount"); err != nil {
		return s.errorResponse(c, err)
	}

	return settle(s, c, s.client.TransferNFT(h), params)
}

func (s *HttpRpcServer) postBurn(c *fiber.Ctx) error {
	h, err := s.contract(c)
	if err != nil {
		return s.errorResponse(c, err)
	}
	doc, err := s.body(c)
	if err != nil {
		return s.errorResponse(c, err)
	}

	params := BurnParams{}
	if params.TokenID, err = intField(doc, "tokenId"); err != nil {
		return s.errorResponse(c, err)
	}
	if params.Amount, err = intField(doc, "amount"); err != nil {
		return s.errorResponse(c, err)
	}

	return settle(s, c, s.client.BurnNFT(h), params)
}

func (s *HttpRpcServer) postAirdrop(c *fiber.Ctx) error {
	h, err := s.contract(c)
	if err != nil {
		return s.errorResponse(c, err)
	}
	doc, err := s.body(c)
	if err != nil {
		return s.errorResponse(c, err)
	}

	params := AirdropParams{}
	if params.TokenID, err = intField(doc, "tokenId"); err != nil {
		return s.errorResponse(c, err)
	}
	for i, r := range doc.Get("recipients").Array() {
		recipient := AirdropRecipient{}
		if recipient.Address, err = addressField(r, "address"); err != nil {
			return s.errorResponse(c, err)
		}
		if recipient.Quantity, err = intField(r, "quantity"); err != nil {
			return s.errorResponse(c, errors.Wrapf(err, "recipient %d", i))
		}
		params.Recipients = append(params.Recipients, recipient)
	}

	return settle(s, c, s.client.AirdropNFT(h), params)
}

func (s *HttpRpcServer) postInvalidate(c *fiber.Ctx) error {
	address, err := parseAddress("address", c.Params("address"))
	if err != nil {
		return s.errorResponse(c, err)
	}

	keys, err := s.client.Invalidate(ContractKey(s.client.ChainID(), address))
	if err != nil {
		return s.errorResponse(c, err)
	}

	out := rpcclient.InvalidateOut{Invalidated: make([]string, 0, len(keys))}
	for _, k := range keys {
		out.Invalidated = append(out.Invalidated, k.String())
	}

	log.Debug().Msgf("invalidated %d cached reads of %s", len(keys), address.Hex())

	return c.JSON(out)
}
