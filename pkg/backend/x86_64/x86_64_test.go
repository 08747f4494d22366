package x86_64

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eldlink/eld/pkg/backend"
)

func TestAbsoluteRelocationIgnoresPlacement(t *testing.T) {
	b := New(false)
	v, err := b.Apply(backend.RelocationRequest{Type: R_X86_64_64, SymbolValue: 0x1000, Addend: 8})
	require.NoError(t, err)
	assert.Equal(t, uint64(0x1008), v)
}

func TestDefaultStartAddrDiffersForPIE(t *testing.T) {
	assert.Equal(t, uint64(0x400000), New(false).DefaultStartAddr())
	assert.Equal(t, uint64(0), New(true).DefaultStartAddr())
}

func TestUnsupportedRelocationTypeErrors(t *testing.T) {
	b := New(false)
	_, err := b.Scan(backend.RelocationRequest{Type: 9999})
	require.Error(t, err)
}
