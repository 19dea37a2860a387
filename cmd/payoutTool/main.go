package main

import (
	"encoding/json"
	"fmt"
	"log"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/urfave/cli/v2"

	"github.com/Layr-Labs/eigenx-payouts-go/pkg/claims"
	"github.com/Layr-Labs/eigenx-payouts-go/pkg/merkle"
	"github.com/Layr-Labs/eigenx-payouts-go/pkg/payout-bindings/IPayoutManager"
)

func main() {
	app := &cli.App{
		Name:  "payout-tool",
		Usage: "Offline Merkle tree and claim proof tooling",
		Description: `Builds payout trees from a CSV of address,balance rows without a server.

Use it to:
- Reproduce the root of a snapshot from an exported holder list
- Print the inclusion proof of a wallet
- Verify a proof against a root
- Encode PayoutManager.claim calldata for an investor`,
		Version: "1.0.0",
		Commands: []*cli.Command{
			{
				Name:  "tree",
				Usage: "Build a tree and print its root, or the full tree with --full",
				Flags: []cli.Flag{
					holdersFlag(),
					&cli.BoolFlag{
						Name:  "full",
						Usage: "Print the full tree JSON",
					},
				},
				Action: treeCommand,
			},
			{
				Name:  "proof",
				Usage: "Print the inclusion proof of a wallet",
				Flags: []cli.Flag{
					holdersFlag(),
					walletFlag(),
				},
				Action: proofCommand,
			},
			{
				Name:  "verify",
				Usage: "Verify a wallet balance and proof against a root",
				Flags: []cli.Flag{
					walletFlag(),
					&cli.StringFlag{
						Name:     "root",
						Usage:    "Merkle root (0x hex)",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "balance",
						Usage:    "Wallet balance (decimal)",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "proof",
						Usage: "Comma separated sibling hashes, leaf side first",
					},
				},
				Action: verifyCommand,
			},
			{
				Name:  "claim-calldata",
				Usage: "Encode PayoutManager.claim calldata for a wallet",
				Flags: []cli.Flag{
					holdersFlag(),
					walletFlag(),
					&cli.StringFlag{
						Name:     "payout-id",
						Usage:    "On-chain payout id (decimal)",
						Required: true,
					},
				},
				Action: claimCalldataCommand,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func holdersFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "holders",
		Usage:    "CSV file of address,balance rows",
		Required: true,
	}
}

func walletFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "wallet",
		Usage:    "Wallet address",
		Required: true,
	}
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func walletAddress(c *cli.Context) (common.Address, error) {
	wallet := c.String("wallet")
	if !common.IsHexAddress(wallet) {
		return common.Address{}, fmt.Errorf("invalid wallet address %q", wallet)
	}
	return common.HexToAddress(wallet), nil
}

func treeCommand(c *cli.Context) error {
	tree, err := loadTree(c.String("holders"))
	if err != nil {
		return err
	}
	if c.Bool("full") {
		return printJSON(tree)
	}
	return printJSON(map[string]interface{}{
		"merkle_root_hash":   tree.RootHex(),
		"merkle_tree_depth":  tree.Depth,
		"total_asset_amount": tree.Total.String(),
		"holders":            tree.Size(),
	})
}

func proofCommand(c *cli.Context) error {
	wallet, err := walletAddress(c)
	if err != nil {
		return err
	}
	tree, err := loadTree(c.String("holders"))
	if err != nil {
		return err
	}
	path, err := tree.GetPath(wallet)
	if err != nil {
		return err
	}
	return printJSON(claims.PathResponse(path))
}

func verifyCommand(c *cli.Context) error {
	wallet, err := walletAddress(c)
	if err != nil {
		return err
	}
	root, err := parseHash(c.String("root"))
	if err != nil {
		return fmt.Errorf("invalid root: %w", err)
	}
	balance, ok := new(big.Int).SetString(c.String("balance"), 10)
	if !ok || balance.Sign() <= 0 {
		return fmt.Errorf("invalid balance %q", c.String("balance"))
	}

	proof := make([][32]byte, 0)
	for _, p := range strings.Split(c.String("proof"), ",") {
		if p = strings.TrimSpace(p); p == "" {
			continue
		}
		h, err := parseHash(p)
		if err != nil {
			return fmt.Errorf("invalid proof element %q: %w", p, err)
		}
		proof = append(proof, h)
	}

	leaf := merkle.HashLeaf(merkle.Leaf{Address: wallet, Balance: balance})
	if !merkle.VerifyProof(leaf, proof, root) {
		return fmt.Errorf("proof does not verify against root %s", hexutil.Encode(root[:]))
	}
	fmt.Println("proof is valid")
	return nil
}

func claimCalldataCommand(c *cli.Context) error {
	wallet, err := walletAddress(c)
	if err != nil {
		return err
	}
	payoutId, ok := new(big.Int).SetString(c.String("payout-id"), 10)
	if !ok || payoutId.Sign() < 0 {
		return fmt.Errorf("invalid payout id %q", c.String("payout-id"))
	}
	tree, err := loadTree(c.String("holders"))
	if err != nil {
		return err
	}
	path, err := tree.GetPath(wallet)
	if err != nil {
		return err
	}

	data, err := IPayoutManager.PackClaim(payoutId, path.Address, path.Balance, path.Proof)
	if err != nil {
		return fmt.Errorf("failed to encode claim: %w", err)
	}
	fmt.Println(hexutil.Encode(data))
	return nil
}

func parseHash(s string) ([32]byte, error) {
	var h [32]byte
	b, err := hexutil.Decode(strings.TrimSpace(s))
	if err != nil {
		return h, err
	}
	if len(b) != len(h) {
		return h, fmt.Errorf("expected %d bytes, got %d", len(h), len(b))
	}
	copy(h[:], b)
	return h, nil
}
