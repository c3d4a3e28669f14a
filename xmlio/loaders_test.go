package xmlio

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeTextPassesThroughUTF8(t *testing.T) {
	out, err := DecodeText([]byte("hello"), "")
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
}

func TestDecodeTextUnknownEncodingFallsBackToRawBytes(t *testing.T) {
	out, err := DecodeText([]byte("hello"), "no-such-encoding")
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
}

func TestWrapLoadersWrapsReadFailureWithStack(t *testing.T) {
	resolve := func(uri string, noFileCheck bool) *string { return &uri }
	read := func(path string) ([]byte, error) { return nil, errors.New("boom") }
	loaders := WrapLoaders(resolve, read, nil, "")

	_, err := loaders.Read("whatever")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Contains(t, err.Error(), "reading whatever")
}

func TestWrapLoadersPassesThroughNilData(t *testing.T) {
	read := func(path string) ([]byte, error) { return nil, nil }
	loaders := WrapLoaders(nil, read, nil, "")
	data, err := loaders.Read("missing")
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestWrapLoadersDecodesBeforeReturning(t *testing.T) {
	read := func(path string) ([]byte, error) { return []byte("plain text"), nil }
	loaders := WrapLoaders(nil, read, nil, "")
	data, err := loaders.Read("doc.txt")
	require.NoError(t, err)
	assert.Equal(t, "plain text", string(data))
}
