package evm

import (
	"context"

	"github.com/alexdcox/nftkit"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
)

// Dial connects to rpcURL, or to the registry's first http endpoint for chain
// when rpcURL is empty, and checks the node is on the expected chain.
func Dial(ctx context.Context, chain nftkit.ChainID, rpcURL string) (client *ethclient.Client, err error) {
	if rpcURL == "" {
		info, lookupErr := nftkit.LookupChain(chain)
		if lookupErr != nil {
			return nil, lookupErr
		}
		if rpcURL = info.HTTPRPC(); rpcURL == "" {
			return nil, errors.Errorf("chain %s has no http rpc endpoint", chain)
		}
	}

	log.Info().Msgf("dialing chain %s at %s", chain, rpcURL)

	client, err = ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to dial %s", rpcURL)
	}

	remote, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, errors.Wrap(err, "failed to read chain id from node")
	}
	if remote.Uint64() != uint64(chain) {
		client.Close()
		return nil, errors.Errorf("node at %s is on chain %s, expected %s", rpcURL, remote, chain)
	}

	return
}
