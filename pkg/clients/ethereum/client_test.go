package ethereum

import (
	"errors"
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
)

func Test_TransferTopic(t *testing.T) {
	assert.Equal(t,
		common.HexToHash("0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef"),
		TransferTopic,
	)
}

func Test_IsRangeTooLarge(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("connection refused"), false},
		{ErrRangeTooLarge, true},
		{fmt.Errorf("wrapped: %w", ErrRangeTooLarge), true},
		{errors.New("query returned more than 10000 results"), true},
		{errors.New("eth_getLogs block range is too large"), true},
		{errors.New("Log response size exceeded."), true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsRangeTooLarge(tt.err), "%v", tt.err)
	}
}

func Test_Registry(t *testing.T) {
	r := NewRegistry()
	assert.False(t, r.Has(31337))
	_, ok := r.Get(31337)
	assert.False(t, ok)
}
