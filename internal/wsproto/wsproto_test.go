package wsproto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type sample struct {
	Host string `msgpack:"host"`
	N    int    `msgpack:"n"`
}

func TestEncodeDecodeRoundTrips(t *testing.T) {
	in := sample{Host: "Stage1", N: 7}

	data, err := Encode(in)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	var out sample
	require.NoError(t, Decode(data, &out))
	require.Equal(t, in, out)
}
