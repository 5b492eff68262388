package main

import (
	"strings"

	. "github.com/alexdcox/nftkit"
	"github.com/alexdcox/nftkit/rpcclient"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
)

var writeFlags struct {
	To               string
	TokenID          string
	Amount           string
	Supply           string
	AdditionalSupply string
	Name             string
	Description      string
	Image            string
	URI              string
	Recipients       []string
}

// writeCommand builds a write subcommand whose first argument is the
// contract address.
func writeCommand(use, short string, run func(c *rpcclient.RpcClient, contract common.Address) (*rpcclient.MutationOut, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <contract>",
		Short: short,
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
			out, err := run(c, contract)
			if err != nil {
				return err
			}
			return printJson(out)
		},
	}
}

// optionalAddress leaves a missing recipient for the daemon to report.
func optionalAddress(name, value string) (common.Address, error) {
	if value == "" {
		return common.Address{}, nil
	}
	return parseAddress(name, value)
}

var mintCmd = writeCommand("mint", "Mint a new token", func(c *rpcclient.RpcClient, contract common.Address) (*rpcclient.MutationOut, error) {
	to, err := optionalAddress("to", writeFlags.To)
	if err != nil {
		return nil, err
	}
	supply, err := parseInt("supply", writeFlags.Supply)
	if err != nil {
		return nil, err
	}
	return c.Mint(contract, &MintParams{
		To:     to,
		Supply: supply,
		Metadata: NFTMetadata{
			Name:        writeFlags.Name,
			Description: writeFlags.Description,
			Image:       writeFlags.Image,
			URI:         writeFlags.URI,
		},
	})
})

var mintSupplyCmd = writeCommand("mint-supply", "Mint more units of an existing multi-token id", func(c *rpcclient.RpcClient, contract common.Address) (*rpcclient.MutationOut, error) {
	to, err := optionalAddress("to", writeFlags.To)
	if err != nil {
		return nil, err
	}
	tokenID, err := parseInt("token-id", writeFlags.TokenID)
	if err != nil {
		return nil, err
	}
	additional, err := parseInt("additional-supply", writeFlags.AdditionalSupply)
	if err != nil {
		return nil, err
	}
	return c.MintSupply(contract, &MintSupplyParams{To: to, TokenID: tokenID, AdditionalSupply: additional})
})

var transferCmd = writeCommand("transfer", "Transfer a token from the daemon's signer", func(c *rpcclient.RpcClient, contract common.Address) (*rpcclient.MutationOut, error) {
	to, err := optionalAddress("to", writeFlags.To)
	if err != nil {
		return nil, err
	}
	tokenID, err := parseInt("token-id", writeFlags.TokenID)
	if err != nil {
		return nil, err
	}
	amount, err := parseInt("amount", writeFlags.Amount)
	if err != nil {
		return nil, err
	}
	return c.Transfer(contract, &TransferParams{To: to, TokenID: tokenID, Amount: amount})
})

var burnCmd = writeCommand("burn", "Burn a token held by the daemon's signer", func(c *rpcclient.RpcClient, contract common.Address) (*rpcclient.MutationOut, error) {
	tokenID, err := parseInt("token-id", writeFlags.TokenID)
	if err != nil {
		return nil, err
	}
	amount, err := parseInt("amount", writeFlags.Amount)
	if err != nil {
		return nil, err
	}
	return c.Burn(contract, &BurnParams{TokenID: tokenID, Amount: amount})
})

var airdropCmd = writeCommand("airdrop", "Send one multi-token id to many recipients", func(c *rpcclient.RpcClient, contract common.Address) (*rpcclient.MutationOut, error) {
	tokenID, err := parseInt("token-id", writeFlags.TokenID)
	if err != nil {
		return nil, err
	}
	params := &AirdropParams{TokenID: tokenID}
	for _, r := range writeFlags.Recipients {
		address, quantity, _ := strings.Cut(r, ":")
		recipient := AirdropRecipient{}
		if recipient.Address, err = parseAddress("recipient", address); err != nil {
			return nil, err
		}
		if recipient.Quantity, err = parseInt("quantity", quantity); err != nil {
			return nil, err
		}
		params.Recipients = append(params.Recipients, recipient)
	}
	return c.Airdrop(contract, params)
})

var invalidateCmd = &cobra.Command{
	Use:   "invalidate <contract>",
	Short: "Drop the daemon's cached reads of a contract",
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
		out, err := c.Invalidate(contract)
		if err != nil {
			return err
		}
		return printJson(out)
	},
}

func init() {
	for _, cmd := range []*cobra.Command{mintCmd, mintSupplyCmd, transferCmd} {
		cmd.Flags().StringVar(&writeFlags.To, "to", "", "Recipient address")
	}
	for _, cmd := range []*cobra.Command{mintSupplyCmd, transferCmd, burnCmd, airdropCmd} {
		cmd.Flags().StringVar(&writeFlags.TokenID, "token-id", "", "Token id")
	}
	for _, cmd := range []*cobra.Command{transferCmd, burnCmd} {
		cmd.Flags().StringVar(&writeFlags.Amount, "amount", "", "Units to move (multi-token contracts, default 1)")
	}

	mintCmd.Flags().StringVar(&writeFlags.Supply, "supply", "", "Initial supply (multi-token contracts, default 1)")
	mintCmd.Flags().StringVar(&writeFlags.Name, "name", "", "Metadata name")
	mintCmd.Flags().StringVar(&writeFlags.Description, "description", "", "Metadata description")
	mintCmd.Flags().StringVar(&writeFlags.Image, "image", "", "Metadata image url")
	mintCmd.Flags().StringVar(&writeFlags.URI, "uri", "", "Existing metadata uri, written instead of an inline document")

	mintSupplyCmd.Flags().StringVar(&writeFlags.AdditionalSupply, "additional-supply", "", "Units to add")

	airdropCmd.Flags().StringArrayVar(&writeFlags.Recipients, "recipient", nil, "Recipient as address[:quantity], repeatable")
}
