package treeStore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_ContentID(t *testing.T) {
	a, err := ContentID([]byte(`{"depth":0}`))
	require.NoError(t, err)
	b, err := ContentID([]byte(`{"depth":0}`))
	require.NoError(t, err)
	c, err := ContentID([]byte(`{"depth":1}`))
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	// CIDv1 raw sha2-256 in base32
	assert.Regexp(t, "^bafkrei[a-z2-7]+$", a)
}

func Test_VerifyContent(t *testing.T) {
	data := []byte("payout tree")
	id, err := ContentID(data)
	require.NoError(t, err)

	require.NoError(t, VerifyContent(id, data))
	require.Error(t, VerifyContent(id, []byte("tampered")))
	require.Error(t, VerifyContent("not-a-cid", data))
}
