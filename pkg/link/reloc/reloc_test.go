package reloc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	backendx86 "github.com/eldlink/eld/pkg/backend/x86_64"
	"github.com/eldlink/eld/pkg/link/input"
	"github.com/eldlink/eld/pkg/link/section"
	"github.com/eldlink/eld/pkg/link/symtab"
)

func TestScanReservesGOTSlotForGOTPCREL(t *testing.T) {
	be := backendx86.New(false)
	s := NewScanner(be)

	f := input.NewFile("a.o", input.KindELFRelocObj)
	sec := section.NewSection(".text", section.KSRegular, f)
	code := section.NewRegionFragment(make([]byte, 16), 1)
	sec.AddFragment(code)

	rec := input.Relocation{TargetSection: sec, Offset: 4, Symbol: "foo", Type: backendx86.R_X86_64_GOTPCREL}
	require.NoError(t, s.Scan(Resolved{Rec: rec}))

	assert.True(t, s.NeedsGOT("foo"))
	assert.False(t, s.NeedsPLT("foo"))
}

func TestApplyComputesPCRelativeValue(t *testing.T) {
	be := backendx86.New(false)
	scanner := NewScanner(be)
	applier := NewApplier(be)

	out := section.NewOutputSectionEntry(".text")
	out.VMA = 0x401000

	f := input.NewFile("a.o", input.KindELFRelocObj)
	sec := section.NewSection(".text", section.KSRegular, f)
	out.AddSection(sec)
	code := section.NewRegionFragment(make([]byte, 16), 1)
	sec.AddFragment(code)
	code.PlaceAt(0)

	info := &symtab.ResolveInfo{Name: "foo"}
	callee := section.NewRegionFragment(make([]byte, 8), 1)
	calleeSec := section.NewSection(".text.foo", section.KSRegular, f)
	out.AddSection(calleeSec)
	calleeSec.AddFragment(callee)
	callee.PlaceAt(0x20)
	sym := symtab.NewSectionSymbol(info, section.FragmentRef{Frag: callee})

	rec := input.Relocation{TargetSection: sec, Offset: 4, Symbol: "foo", Type: backendx86.R_X86_64_PC32}
	require.NoError(t, scanner.Scan(Resolved{Rec: rec, Info: info, Symbol: sym}))

	applied, err := applier.Apply(Resolved{Rec: rec, Info: info, Symbol: sym}, scanner)
	require.NoError(t, err)

	// P = out.VMA + code.Offset() + 4 = 0x401004; S = out.VMA + 0x20 = 0x401020
	assert.Equal(t, uint64(0x401020-0x401004), applied.Value)
	assert.Equal(t, 4, applied.Width)
}

func TestApplyDiscardedTargetUsesBackendFallback(t *testing.T) {
	be := backendx86.New(false)
	scanner := NewScanner(be)
	applier := NewApplier(be)

	f := input.NewFile("a.o", input.KindELFRelocObj)
	sec := section.NewSection(".debug_info", section.KSDebug, f)
	frag := section.NewRegionFragment(make([]byte, 8), 1)
	sec.AddFragment(frag)
	frag.Discard()

	rec := input.Relocation{TargetSection: sec, Offset: 0, Symbol: "bar", Type: backendx86.R_X86_64_64}
	applied, err := applier.Apply(Resolved{Rec: rec}, scanner)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), applied.Value)
	assert.Equal(t, 8, applied.Width)
}
