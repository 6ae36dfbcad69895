package voice

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompressedMagnitudesProducesSixteenBins(t *testing.T) {
	chunk := make([]float32, 256)
	for i := range chunk {
		chunk[i] = float32(math.Sin(float64(i) * 0.1))
	}
	mags := compressedMagnitudes(chunk)
	require.Len(t, mags, fftBins)

	var total float64
	for _, m := range mags {
		require.GreaterOrEqual(t, m, 0.0)
		total += m
	}
	require.Greater(t, total, 0.0)
}

func TestCompressedMagnitudesHandlesEmptyChunk(t *testing.T) {
	mags := compressedMagnitudes(nil)
	for _, m := range mags {
		require.Zero(t, m)
	}
}
