package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Layr-Labs/eigenx-payouts-go/pkg/merkle"
)

// readHolders parses address,balance rows. A first row whose balance column is not a number is
// treated as a header. Zero balances are skipped, the same way a snapshot drops empty holders.
func readHolders(r io.Reader) ([]merkle.Leaf, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 2
	reader.TrimLeadingSpace = true
	reader.Comment = '#'

	leaves := make([]merkle.Leaf, 0)
	for line := 1; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		addr := strings.TrimSpace(record[0])
		balance, ok := new(big.Int).SetString(strings.TrimSpace(record[1]), 10)
		if !ok {
			if line == 1 {
				continue
			}
			return nil, fmt.Errorf("line %d: invalid balance %q", line, record[1])
		}
		if !common.IsHexAddress(addr) {
			return nil, fmt.Errorf("line %d: invalid address %q", line, addr)
		}
		if balance.Sign() < 0 {
			return nil, fmt.Errorf("line %d: negative balance %s", line, balance)
		}
		if balance.Sign() == 0 {
			continue
		}
		leaves = append(leaves, merkle.Leaf{Address: common.HexToAddress(addr), Balance: balance})
	}
	return leaves, nil
}

func loadTree(path string) (*merkle.PayoutTree, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open holders file: %w", err)
	}
	defer f.Close()

	leaves, err := readHolders(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return merkle.BuildPayoutTree(leaves)
}
