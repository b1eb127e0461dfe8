package bundle

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHash_Format(t *testing.T) {
	h := Hash([]byte("hello"))

	assert.True(t, strings.HasPrefix(h, "sha256:"))
	assert.Len(t, strings.TrimPrefix(h, "sha256:"), 64)
	assert.Equal(t, strings.ToLower(h), h)
}

func TestHash_Deterministic(t *testing.T) {
	data := []byte("the same bytes")

	assert.Equal(t, Hash(data), Hash(data))
}

func TestVerifyHash_RoundTrip(t *testing.T) {
	inputs := [][]byte{
		{},
		[]byte("a"),
		[]byte("var module = 1;\n"),
		{0xc6, 0x1f, 0xbc, 0x03, 0x05, 0x00, 0x00, 0x00},
		[]byte(strings.Repeat("x", 4096)),
	}

	for _, data := range inputs {
		assert.True(t, VerifyHash(data, Hash(data)))
	}
}

func TestHash_DistinctInputs(t *testing.T) {
	seen := map[string]string{}
	for i := 0; i < 200; i++ {
		data := []byte(fmt.Sprintf("bundle payload %d", i))
		h := Hash(data)
		prev, dup := seen[h]
		require.False(t, dup, "collision between %q and %q", prev, data)
		seen[h] = string(data)
	}
}

func TestVerifyHash_Mismatch(t *testing.T) {
	data := []byte("original")

	assert.False(t, VerifyHash([]byte("tampered"), Hash(data)))
	assert.False(t, VerifyHash(data, "sha256:deadbeef"))
	assert.False(t, VerifyHash(data, "md5:"+strings.Repeat("ab", 16)))
	assert.False(t, VerifyHash(data, "not-a-hash"))
}

func TestParseHash(t *testing.T) {
	algo, digest, err := ParseHash("sha256:ABCDEF0123")
	require.NoError(t, err)
	assert.Equal(t, "sha256", algo)
	assert.Equal(t, "abcdef0123", digest)

	_, _, err = ParseHash("sha256")
	assert.Error(t, err)

	_, _, err = ParseHash("sha256:")
	assert.Error(t, err)

	_, _, err = ParseHash("sha256:zzzz")
	assert.Error(t, err)
}
