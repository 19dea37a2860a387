package main

import (
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Layr-Labs/eigenx-payouts-go/pkg/merkle"
)

const holdersCSV = `address,balance
# funded at block 3
0x70997970C51812dc3A010C7d01b50e0d17dc79C8,10000
0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC, 15000
0x90F79bf6EB2c4f870365E785982E1f101E93b906,0
`

func Test_ReadHolders(t *testing.T) {
	leaves, err := readHolders(strings.NewReader(holdersCSV))
	require.NoError(t, err)
	require.Len(t, leaves, 2)
	assert.Equal(t, common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8"), leaves[0].Address)
	assert.Equal(t, big.NewInt(15000), leaves[1].Balance)

	tests := []struct {
		name  string
		input string
	}{
		{name: "bad address", input: "0x1234,10\n"},
		{name: "bad balance after header", input: "address,balance\n0x70997970C51812dc3A010C7d01b50e0d17dc79C8,ten\n"},
		{name: "negative balance", input: "0x70997970C51812dc3A010C7d01b50e0d17dc79C8,-1\n"},
		{name: "wrong column count", input: "0x70997970C51812dc3A010C7d01b50e0d17dc79C8,1,2\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := readHolders(strings.NewReader(tt.input))
			assert.Error(t, err)
		})
	}
}

func Test_LoadTree(t *testing.T) {
	path := filepath.Join(t.TempDir(), "holders.csv")
	require.NoError(t, os.WriteFile(path, []byte(holdersCSV), 0o600))

	tree, err := loadTree(path)
	require.NoError(t, err)
	assert.Equal(t, 1, tree.Depth)
	assert.Equal(t, "25000", tree.Total.String())

	p, err := tree.GetPath(common.HexToAddress("0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC"))
	require.NoError(t, err)
	assert.True(t, merkle.VerifyPath(p, tree.RootHash))

	_, err = loadTree(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

func Test_ParseHash(t *testing.T) {
	h, err := parseHash(" 0x" + strings.Repeat("ab", 32))
	require.NoError(t, err)
	assert.Equal(t, byte(0xab), h[31])

	_, err = parseHash("0xabcd")
	assert.Error(t, err)
	_, err = parseHash("zz")
	assert.Error(t, err)
}
