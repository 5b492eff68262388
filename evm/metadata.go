package evm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/alexdcox/nftkit"
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

const DefaultIPFSGateway = "https://ipfs.io/ipfs/"

const dataJSONPrefix = "data:application/json"

// MetadataFetcher resolves token URIs into metadata documents.
type MetadataFetcher struct {
	HTTPClient *http.Client
	Gateway    string
}

func NewMetadataFetcher() *MetadataFetcher {
	return &MetadataFetcher{
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		Gateway:    DefaultIPFSGateway,
	}
}

// ResolveURI rewrites ipfs:// through the gateway and fills the ERC-1155
// {id} placeholder with the zero padded hex token id.
func (f *MetadataFetcher) ResolveURI(uri string, tokenID *big.Int) string {
	if tokenID != nil && strings.Contains(uri, "{id}") {
		uri = strings.ReplaceAll(uri, "{id}", fmt.Sprintf("%064x", tokenID))
	}
	if strings.HasPrefix(uri, "ipfs://") {
		gateway := f.Gateway
		if gateway == "" {
			gateway = DefaultIPFSGateway
		}
		path := strings.TrimPrefix(strings.TrimPrefix(uri, "ipfs://"), "ipfs/")
		uri = strings.TrimSuffix(gateway, "/") + "/" + path
	}
	return uri
}

// Fetch loads and parses the document at uri. An empty uri yields metadata
// carrying only the id.
func (f *MetadataFetcher) Fetch(ctx context.Context, uri string, tokenID *big.Int) (meta nftkit.NFTMetadata, err error) {
	meta.ID = tokenID
	meta.URI = uri

	if uri == "" {
		return
	}

	var body []byte
	if strings.HasPrefix(uri, dataJSONPrefix) {
		body, err = decodeDataURI(uri)
	} else {
		body, err = f.get(ctx, f.ResolveURI(uri, tokenID))
	}
	if err != nil {
		return
	}

	return ParseMetadata(body, tokenID, uri)
}

func (f *MetadataFetcher) get(ctx context.Context, resolved string) (body []byte, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, resolved, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid metadata uri '%s'", resolved)
	}

	client := f.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	rsp, err := client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch metadata from '%s'", resolved)
	}
	defer rsp.Body.Close()

	body, err = io.ReadAll(rsp.Body)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	if rsp.StatusCode/100 != 2 {
		return nil, errors.Wrapf(ErrMetadataUnavailable, "'%s' responded %d", resolved, rsp.StatusCode)
	}

	return
}

func decodeDataURI(uri string) (body []byte, err error) {
	header, payload, found := strings.Cut(uri, ",")
	if !found {
		return nil, errors.Errorf("malformed data uri")
	}
	if strings.HasSuffix(header, ";base64") {
		body, err = base64.StdEncoding.DecodeString(payload)
		return body, errors.Wrap(err, "failed to decode base64 data uri")
	}
	unescaped, err := url.PathUnescape(payload)
	if err != nil {
		return nil, errors.Wrap(err, "failed to unescape data uri")
	}
	return []byte(unescaped), nil
}

// ParseMetadata reads the OpenSea style metadata fields from body.
func ParseMetadata(body []byte, tokenID *big.Int, uri string) (meta nftkit.NFTMetadata, err error) {
	if !gjson.ValidBytes(body) {
		return meta, errors.Wrapf(ErrMetadataUnavailable, "metadata at '%s' is not valid json", uri)
	}

	doc := gjson.ParseBytes(body)

	meta = nftkit.NFTMetadata{
		ID:              tokenID,
		URI:             uri,
		Name:            doc.Get("name").String(),
		Description:     doc.Get("description").String(),
		Image:           doc.Get("image").String(),
		ExternalURL:     doc.Get("external_url").String(),
		AnimationURL:    doc.Get("animation_url").String(),
		BackgroundColor: doc.Get("background_color").String(),
	}

	if props := doc.Get("properties"); props.IsObject() {
		if m, ok := props.Value().(map[string]any); ok {
			meta.Properties = m
		}
	}
	if attrs := doc.Get("attributes"); attrs.Exists() {
		if meta.Properties == nil {
			meta.Properties = map[string]any{}
		}
		meta.Properties["attributes"] = attrs.Value()
	}

	return
}

// metadataURI is what gets written on chain for a mint: the explicit URI when
// there is one, otherwise the document inlined as a data uri.
func metadataURI(meta nftkit.NFTMetadata) (string, error) {
	if meta.URI != "" {
		return meta.URI, nil
	}
	doc := meta
	doc.ID = nil
	raw, err := json.Marshal(doc)
	if err != nil {
		return "", errors.WithStack(err)
	}
	return dataJSONPrefix + ";base64," + base64.StdEncoding.EncodeToString(raw), nil
}
