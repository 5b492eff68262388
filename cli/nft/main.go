package main

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"

	. "github.com/alexdcox/nftkit"
	"github.com/alexdcox/nftkit/rpcclient"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var log = Log()

var globalFlags struct {
	Host     string
	LogLevel string
}

var rootCmd = &cobra.Command{
	Use:           "nft",
	Short:         "Query and write NFT contracts through an nftd daemon",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if globalFlags.Host == "" {
			globalFlags.Host = os.Getenv("NFTD_HOST")
		}
		if globalFlags.Host == "" {
			globalFlags.Host = "localhost:3003"
		}
		if globalFlags.LogLevel != "" {
			return SetLogLevel(globalFlags.LogLevel)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&globalFlags.Host, "host", "", "nftd host:port (default from NFTD_HOST, then localhost:3003)")
	rootCmd.PersistentFlags().StringVar(&globalFlags.LogLevel, "loglevel", "", "Set the log level (trace|debug|info|warn|error|fatal)")

	rootCmd.AddCommand(statusCmd, chainsCmd)
	rootCmd.AddCommand(nftCmd, nftsCmd, totalCountCmd, supplyCmd, ownedCmd, balanceCmd)
	rootCmd.AddCommand(mintCmd, mintSupplyCmd, transferCmd, burnCmd, airdropCmd, invalidateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Error().Msgf("%+v", err)
		os.Exit(1)
	}
}

func client() (*rpcclient.RpcClient, error) {
	return rpcclient.NewRpcClient(globalFlags.Host)
}

func printJson(v any) error {
	j, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.WithStack(err)
	}
	fmt.Println(string(j))
	return nil
}

func parseAddress(name, value string) (common.Address, error) {
	if !common.IsHexAddress(value) {
		return common.Address{}, errors.Wrapf(ErrInvalidParameter, "%s '%s'", name, value)
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
		return nil, errors.Wrapf(ErrInvalidParameter, "%s '%s'", name, value)
	}
	return v, nil
}
