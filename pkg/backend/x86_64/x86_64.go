// Package x86_64 is a minimal real Backend for the ELF x86_64 psABI,
// exercising the pkg/backend.Relocator/Backend traits with enough actual
// relocation arithmetic to round-trip the relocation engine's own tests.
// It does not aim for full psABI coverage (spec §1 keeps byte-level detail
// out of the core); it covers the relocation types that appear in ordinary
// -fPIC and non-PIC C/C++ object code.
package x86_64

import (
	"fmt"

	"github.com/eldlink/eld/pkg/backend"
)

// ELF x86_64 relocation type codes (System V x86-64 psABI).
const (
	R_X86_64_NONE      = 0
	R_X86_64_64        = 1
	R_X86_64_PC32      = 2
	R_X86_64_GOT32     = 3
	R_X86_64_PLT32     = 4
	R_X86_64_COPY      = 5
	R_X86_64_GLOB_DAT  = 6
	R_X86_64_JUMP_SLOT = 7
	R_X86_64_RELATIVE  = 8
	R_X86_64_GOTPCREL  = 9
	R_X86_64_32        = 10
	R_X86_64_32S       = 11
)

// Backend implements backend.Backend for x86_64, matching
// x86_64StandaloneInfo's default load address for non-PIE executables
// (original_source/lib/Target/x86_64/x86_64StandaloneInfo.h).
type Backend struct {
	PIE      bool
	finished bool
}

// New creates an x86_64 backend; pie selects the value DefaultStartAddr
// reports (0 for PIE, 0x400000 for a fixed non-PIE executable). The layout
// engine does not consult DefaultStartAddr. The backend starts finished (no
// branch islands pending), and nothing in this module calls MarkFinished.
func New(pie bool) *Backend { return &Backend{PIE: pie, finished: true} }

func (b *Backend) Name() string { return "x86_64" }

func (b *Backend) Machine() uint16 { return 62 } // EM_X86_64

func (b *Backend) SegmentHint() backend.SegmentHint {
	return backend.SegmentHint{MaxPageSize: 0x1000, SeparateRODATA: false}
}

// DefaultStartAddr mirrors x86_64StandaloneInfo::startAddr for the
// non-script, non-PIE case.
func (b *Backend) DefaultStartAddr() uint64 {
	if b.PIE {
		return 0
	}
	return 0x400000
}

func (b *Backend) ShouldSkip(r backend.RelocationRequest) bool {
	return r.Type == R_X86_64_NONE
}

func (b *Backend) Scan(r backend.RelocationRequest) (backend.ScanResult, error) {
	switch r.Type {
	case R_X86_64_PLT32:
		return backend.ScanResult{Slot: backend.SlotPLT}, nil
	case R_X86_64_GOT32, R_X86_64_GOTPCREL:
		return backend.ScanResult{Slot: backend.SlotGOT}, nil
	case R_X86_64_64, R_X86_64_32, R_X86_64_32S:
		if r.SymbolIsDyn {
			return backend.ScanResult{Slot: backend.SlotDynamicReloc, DynRelocType: R_X86_64_GLOB_DAT}, nil
		}
		return backend.ScanResult{}, nil
	case R_X86_64_PC32:
		return backend.ScanResult{}, nil
	default:
		return backend.ScanResult{}, fmt.Errorf("x86_64: unsupported relocation type %d", r.Type)
	}
}

// pcRelativeBase returns the PC the relocation is relative to: the
// relocated byte's own output address (psABI: P, the place being relocated).
func pcRelativeBase(r backend.RelocationRequest) uint64 {
	if r.Target == nil {
		return 0
	}
	return r.Target.Owner.Output.VMA + r.Target.Offset() + r.Offset
}

func (b *Backend) Apply(r backend.RelocationRequest) (uint64, error) {
	s := r.SymbolValue + uint64(r.Addend)
	switch r.Type {
	case R_X86_64_64, R_X86_64_32, R_X86_64_32S:
		return s, nil
	case R_X86_64_PC32, R_X86_64_PLT32, R_X86_64_GOTPCREL:
		p := pcRelativeBase(r)
		return s - p, nil
	case R_X86_64_GOT32:
		return s, nil
	default:
		return 0, fmt.Errorf("x86_64: unsupported relocation type %d", r.Type)
	}
}

func (b *Backend) Width(relocType uint32) int {
	switch relocType {
	case R_X86_64_64:
		return 8
	default:
		return 4
	}
}

func (b *Backend) ValueForDiscardedRelocation(r backend.RelocationRequest) uint64 {
	// GNU ld's convention for a reference into a discarded section:
	// resolve to zero rather than fail the link.
	return 0
}

// MarkFinished sets the value Finished reports. Nothing in this module
// calls it.
func (b *Backend) MarkFinished(v bool) { b.finished = v }

func (b *Backend) Finished() bool { return b.finished }

var _ backend.Backend = (*Backend)(nil)
