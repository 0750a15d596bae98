package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateWindowSizeBounds(t *testing.T) {
	require.NoError(t, ValidateWindowSize("1"))
	require.NoError(t, ValidateWindowSize("8"))
	require.Error(t, ValidateWindowSize("0"))
	require.Error(t, ValidateWindowSize("not-a-number"))
}

func TestValidateBufferSizeBounds(t *testing.T) {
	require.NoError(t, ValidateBufferSize("1"))
	require.NoError(t, ValidateBufferSize("1400"))
	require.Error(t, ValidateBufferSize("0"))
	require.Error(t, ValidateBufferSize("1401"))
}

func TestValidateErrorRateBounds(t *testing.T) {
	require.NoError(t, ValidateErrorRate(""))
	require.NoError(t, ValidateErrorRate("0.25"))
	require.Error(t, ValidateErrorRate("1.5"))
	require.Error(t, ValidateErrorRate("-0.1"))
}

func TestDefaultClientSettings(t *testing.T) {
	s := DefaultClientSettings()
	require.Equal(t, DefaultWindowSize, s.WindowSize)
	require.Equal(t, DefaultBufferSize, s.BufferSize)
}
