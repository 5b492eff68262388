package main

import (
	"strconv"

	. "github.com/alexdcox/nftkit"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the daemon's chain, signer and cache size",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := client()
		if err != nil {
			return err
		}
		out, err := c.GetStatus()
		if err != nil {
			return err
		}
		return printJson(out)
	},
}

var chainsCmd = &cobra.Command{
	Use:   "chains [chainId]",
	Short: "List known chains, or show one",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := client()
		if err != nil {
			return err
		}
		if len(args) == 0 {
			out, err := c.GetChains()
			if err != nil {
				return err
			}
			return printJson(out)
		}
		id, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return err
		}
		out, err := c.GetChain(ChainID(id))
		if err != nil {
			return err
		}
		return printJson(out)
	},
}

var nftCmd = &cobra.Command{
	Use:   "nft <contract> <tokenId>",
	Short: "Show one token with its metadata",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		contract, err := parseAddress("contract", args[0])
		if err != nil {
			return err
		}
		tokenID, err := parseInt("tokenId", args[1])
		if err != nil {
			return err
		}
		c, err := client()
		if err != nil {
			return err
		}
		out, err := c.GetNFT(contract, tokenID)
		if err != nil {
			return err
		}
		return printJson(out)
	},
}

var nftsFlags QueryAllParams

var nftsCmd = &cobra.Command{
	Use:   "nfts <contract>",
	Short: "List a page of tokens",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		contract, err := parseAddress("contract", args[0])
		if err != nil {
			return err
		}
		c, err := client()
		if err != nil {
			return err
		}
		out, err := c.GetNFTs(contract, &nftsFlags)
		if err != nil {
			return err
		}
		return printJson(out)
	},
}

var totalCountCmd = &cobra.Command{
	Use:   "total-count <contract>",
	Short: "Show how many token ids have been minted",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		contract, err := parseAddress("contract", args[0])
		if err != nil {
			return err
		}
		c, err := client()
		if err != nil {
			return err
		}
		out, err := c.GetTotalCount(contract)
		if err != nil {
			return err
		}
		return printJson(out)
	},
}

var supplyTokenID string

var supplyCmd = &cobra.Command{
	Use:   "supply <contract>",
	Short: "Show the circulating supply, of one token id on multi-token contracts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		contract, err := parseAddress("contract", args[0])
		if err != nil {
			return err
		}
		tokenID, err := parseInt("token-id", supplyTokenID)
		if err != nil {
			return err
		}
		c, err := client()
		if err != nil {
			return err
		}
		out, err := c.GetCirculatingSupply(contract, tokenID)
		if err != nil {
			return err
		}
		return printJson(out)
	},
}

var ownedCmd = &cobra.Command{
	Use:   "owned <contract> <owner>",
	Short: "List the tokens owner holds",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		contract, err := parseAddress("contract", args[0])
		if err != nil {
			return err
		}
		owner, err := parseAddress("owner", args[1])
		if err != nil {
			return err
		}
		c, err := client()
		if err != nil {
			return err
		}
		out, err := c.GetOwned(contract, owner)
		if err != nil {
			return err
		}
		return printJson(out)
	},
}

var balanceTokenID string

var balanceCmd = &cobra.Command{
	Use:   "balance <contract> <owner>",
	Short: "Show owner's balance, of one token id on multi-token contracts",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		contract, err := parseAddress("contract", args[0])
		if err != nil {
			return err
		}
		owner, err := parseAddress("owner", args[1])
		if err != nil {
			return err
		}
		tokenID, err := parseInt("token-id", balanceTokenID)
		if err != nil {
			return err
		}
		c, err := client()
		if err != nil {
			return err
		}
		out, err := c.GetBalance(contract, owner, tokenID)
		if err != nil {
			return err
		}
		return printJson(out)
	},
}

func init() {
	nftsCmd.Flags().IntVar(&nftsFlags.Start, "start", 0, "First token id")
	nftsCmd.Flags().IntVar(&nftsFlags.Count, "count", DefaultQueryAllCount, "Number of token ids")
	supplyCmd.Flags().StringVar(&supplyTokenID, "token-id", "", "Token id (multi-token contracts)")
	balanceCmd.Flags().StringVar(&balanceTokenID, "token-id", "", "Token id (multi-token contracts)")
}
