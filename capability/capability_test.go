package capability

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hrefhref/sanoid/executor"
)

func TestParseCompressorDefaults(t *testing.T) {
	for _, v := range []string{"none", "no", "0", ""} {
		c, ok := ParseCompressor(v)
		require.True(t, ok)
		require.Equal(t, CompressorNone, c)
	}
}

func TestParseCompressorKnown(t *testing.T) {
	c, ok := ParseCompressor("gzip")
	require.True(t, ok)
	require.Equal(t, CompressorGzip, c)

	c, ok = ParseCompressor("lzo")
	require.True(t, ok)
	require.Equal(t, CompressorLZO, c)
}

func TestParseCompressorUnrecognized(t *testing.T) {
	c, ok := ParseCompressor("zstd")
	require.False(t, ok)
	require.Equal(t, CompressorNone, c)
}

func TestCompressionEnabledRequiresAllLocations(t *testing.T) {
	s := Set{Compressor: map[Location]bool{
		LocationSource: true,
		LocationTarget: false,
		LocationLocal:  true,
	}}
	require.False(t, s.CompressionEnabled(CompressorGzip, LocationSource, LocationTarget))
	require.True(t, s.CompressionEnabled(CompressorGzip, LocationSource, LocationLocal))
}

func TestCompressionDisabledWhenNoneSelected(t *testing.T) {
	s := Set{Compressor: map[Location]bool{LocationSource: true, LocationTarget: true}}
	require.False(t, s.CompressionEnabled(CompressorNone, LocationSource, LocationTarget))
}

func TestProbeAssumeAll(t *testing.T) {
	s := Probe(nil, nil, CompressorGzip, executor.Target{}, executor.Target{}, true)
	require.True(t, s.Pv)
	require.True(t, s.Mbuffer[LocationSource])
	require.True(t, s.Compressor[LocationTarget])
}
