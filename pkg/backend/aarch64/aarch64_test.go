package aarch64

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eldlink/eld/pkg/backend"
)

func TestCall26ScanDoesNotReserveASlot(t *testing.T) {
	b := New()
	res, err := b.Scan(backend.RelocationRequest{Type: R_AARCH64_CALL26})
	require.NoError(t, err)
	assert.Equal(t, backend.SlotNone, res.Slot)
}

func TestAbs64DynamicSymbolReservesGlobDat(t *testing.T) {
	b := New()
	res, err := b.Scan(backend.RelocationRequest{Type: R_AARCH64_ABS64, SymbolIsDyn: true})
	require.NoError(t, err)
	assert.Equal(t, backend.SlotDynamicReloc, res.Slot)
	assert.Equal(t, uint32(R_AARCH64_GLOB_DAT), res.DynRelocType)
}

func TestWidthMatchesRelocationSize(t *testing.T) {
	b := New()
	assert.Equal(t, 8, b.Width(R_AARCH64_ABS64))
	assert.Equal(t, 4, b.Width(R_AARCH64_CALL26))
}
