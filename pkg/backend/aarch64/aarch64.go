// Package aarch64 is a minimal real Backend for the ELF AArch64 ABI,
// grounded on original_source/lib/Target/AArch64/AArch64Info.h's page size,
// default text address, and machine constant.
package aarch64

import (
	"encoding/binary"
	"fmt"

	"github.com/eldlink/eld/pkg/backend"
	"github.com/eldlink/eld/pkg/link/section"
	"github.com/eldlink/eld/pkg/utils"
)

// ELF AArch64 relocation type codes (ELF for the ARM 64-bit architecture).
const (
	R_AARCH64_NONE             = 0
	R_AARCH64_ABS64            = 257
	R_AARCH64_ABS32            = 258
	R_AARCH64_ADR_PREL_PG_HI21 = 275
	R_AARCH64_JUMP26           = 282
	R_AARCH64_CALL26           = 283
	R_AARCH64_GLOB_DAT         = 1025
	R_AARCH64_RELATIVE         = 1027
)

// Backend implements backend.Backend for AArch64.
type Backend struct {
	finished bool
}

func New() *Backend { return &Backend{finished: true} }

func (b *Backend) Name() string { return "aarch64" }

func (b *Backend) Machine() uint16 { return 183 } // EM_AARCH64

// AArch64Info's abiPageSize is 0x1000 despite the 64K hardware page some
// AArch64 kernels use; the comment in AArch64Info.h notes this directly.
func (b *Backend) SegmentHint() backend.SegmentHint {
	return backend.SegmentHint{MaxPageSize: 0x1000, SeparateRODATA: false}
}

// DefaultStartAddr mirrors AArch64Info::startAddr for a Linux, non-script
// executable link.
func (b *Backend) DefaultStartAddr() uint64 { return 0x400000 }

func (b *Backend) ShouldSkip(r backend.RelocationRequest) bool {
	return r.Type == R_AARCH64_NONE
}

func (b *Backend) Scan(r backend.RelocationRequest) (backend.ScanResult, error) {
	switch r.Type {
	case R_AARCH64_CALL26, R_AARCH64_JUMP26:
		return backend.ScanResult{}, nil
	case R_AARCH64_ABS64, R_AARCH64_ABS32:
		if r.SymbolIsDyn {
			return backend.ScanResult{Slot: backend.SlotDynamicReloc, DynRelocType: R_AARCH64_GLOB_DAT}, nil
		}
		return backend.ScanResult{}, nil
	case R_AARCH64_ADR_PREL_PG_HI21:
		return backend.ScanResult{}, nil
	default:
		return backend.ScanResult{}, fmt.Errorf("aarch64: unsupported relocation type %d", r.Type)
	}
}

func (b *Backend) Apply(r backend.RelocationRequest) (uint64, error) {
	s := r.SymbolValue + uint64(r.Addend)
	switch r.Type {
	case R_AARCH64_ABS64, R_AARCH64_ABS32:
		return s, nil
	case R_AARCH64_CALL26, R_AARCH64_JUMP26:
		var p uint64
		if r.Target != nil && r.Target.Owner != nil && r.Target.Owner.Output != nil {
			p = r.Target.Owner.Output.VMA + r.Target.Offset() + r.Offset
		}
		imm26 := (s - p) >> 2
		return b.packImm26(r, imm26), nil
	default:
		return 0, fmt.Errorf("aarch64: unsupported relocation type %d", r.Type)
	}
}

// packImm26 merges a 26-bit branch-immediate into bits [0:26) of the
// existing instruction word, leaving the BL/B opcode bits [26:32) the
// assembler already encoded untouched. CALL26/JUMP26's immediate field is
// pre-zeroed by the assembler, so BitView.Write's OR-in-place semantics
// alone are enough to place it correctly.
func (b *Backend) packImm26(r backend.RelocationRequest, imm26 uint64) uint64 {
	var word uint32
	if r.Target != nil && r.Target.Kind == section.KindRegion {
		end := r.Offset + 4
		if end <= uint64(len(r.Target.Region)) {
			word = binary.LittleEndian.Uint32(r.Target.Region[r.Offset:end])
		}
	}
	view := utils.CreateBitView(&word)
	view.Write(uint32(imm26), 0, 26)
	return uint64(word)
}

func (b *Backend) Width(relocType uint32) int {
	if relocType == R_AARCH64_ABS64 {
		return 8
	}
	return 4
}

func (b *Backend) ValueForDiscardedRelocation(r backend.RelocationRequest) uint64 { return 0 }

func (b *Backend) MarkFinished(v bool) { b.finished = v }

func (b *Backend) Finished() bool { return b.finished }

var _ backend.Backend = (*Backend)(nil)
