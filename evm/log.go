package evm

import "github.com/alexdcox/nftkit"

var log = nftkit.Log()
