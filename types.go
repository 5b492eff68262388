package nftkit

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

type TokenStandard string

const (
	StandardERC721  TokenStandard = "ERC721"
	StandardERC1155 TokenStandard = "ERC1155"
)

type NFTMetadata struct {
	ID              *big.Int       `json:"id,omitempty" cbor:"id,omitempty"`
	URI             string         `json:"uri,omitempty" cbor:"uri,omitempty"`
	Name            string         `json:"name,omitempty" cbor:"name,omitempty"`
	Description     string         `json:"description,omitempty" cbor:"description,omitempty"`
	Image           string         `json:"image,omitempty" cbor:"image,omitempty"`
	ExternalURL     string         `json:"external_url,omitempty" cbor:"external_url,omitempty"`
	AnimationURL    string         `json:"animation_url,omitempty" cbor:"animation_url,omitempty"`
	BackgroundColor string         `json:"background_color,omitempty" cbor:"background_color,omitempty"`
	Properties      map[string]any `json:"properties,omitempty" cbor:"properties,omitempty"`
}

// MediaURL picks what a renderer should display: the animation when there is
// one, otherwise the image.
func (m NFTMetadata) MediaURL() string {
	if m.AnimationURL != "" {
		return m.AnimationURL
	}
	return m.Image
}

type NFT struct {
	Metadata      NFTMetadata    `json:"metadata" cbor:"metadata"`
	Owner         common.Address `json:"owner" cbor:"owner"`
	Type          TokenStandard  `json:"type" cbor:"type"`
	Supply        *big.Int       `json:"supply,omitempty" cbor:"supply,omitempty"`
	QuantityOwned *big.Int       `json:"quantityOwned,omitempty" cbor:"quantityOwned,omitempty"`
}

const DefaultQueryAllCount = 100

type QueryAllParams struct {
	Start int `json:"start"`
	Count int `json:"count"`
}

func (p *QueryAllParams) normalized() QueryAllParams {
	out := QueryAllParams{Count: DefaultQueryAllCount}
	if p == nil {
		return out
	}
	if p.Start > 0 {
		out.Start = p.Start
	}
	if p.Count > 0 {
		out.Count = p.Count
	}
	return out
}

type TxResult struct {
	Hash    common.Hash `json:"hash"`
	TokenID *big.Int    `json:"tokenId,omitempty"`
}

type MintParams struct {
	To       common.Address `json:"to"`
	Metadata NFTMetadata    `json:"metadata"`
	// Supply only applies to multi-token contracts; nil mints a single unit.
	Supply *big.Int `json:"supply,omitempty"`
}

type MintSupplyParams struct {
	To               common.Address `json:"to"`
	TokenID          *big.Int       `json:"tokenId"`
	AdditionalSupply *big.Int       `json:"additionalSupply"`
}

type TransferParams struct {
	To      common.Address `json:"to"`
	TokenID *big.Int       `json:"tokenId"`
	Amount  *big.Int       `json:"amount,omitempty"`
}

type BurnParams struct {
	TokenID *big.Int `json:"tokenId"`
	Amount  *big.Int `json:"amount,omitempty"`
}

type AirdropRecipient struct {
	Address  common.Address `json:"address"`
	Quantity *big.Int       `json:"quantity"`
}

type AirdropParams struct {
	TokenID    *big.Int           `json:"tokenId"`
	Recipients []AirdropRecipient `json:"recipients"`
}

func isZeroAddress(a common.Address) bool {
	return a == (common.Address{})
}
