package abi

import _ "embed"

// Token standard ABIs, including the mint, burn and multicall extensions the
// SDK writes through.

//go:embed erc165.json
var ERC165 []byte

//go:embed erc721.json
var ERC721 []byte

//go:embed erc1155.json
var ERC1155 []byte
