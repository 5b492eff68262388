/*
Package nftkit is a chain-aware data layer for NFT contracts. Reads are
exposed as cached, coalesced queries and writes as mutations that invalidate
the cached reads they affect.

Contracts are reached through caller supplied handles which may expose the
single-token (ERC721) capability, the multi-token (ERC1155) capability, or
both. When both are present the multi-token capability wins. The evm package
provides handles backed by a JSON-RPC node.
*/

package nftkit
