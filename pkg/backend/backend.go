// Package backend declares the small capability traits spec §1 keeps out
// of the core: target-specific relocation arithmetic (Relocator) and the
// wider per-target knobs the layout/relocation engines consult (Backend).
// A conforming implementation is required for an end-to-end link; its
// internal shape beyond these interfaces is not prescribed.
package backend

import "github.com/eldlink/eld/pkg/link/section"

// RelocationRequest is everything a Relocator needs to scan or apply one
// relocation: the raw input record plus the resolved symbol placement.
type RelocationRequest struct {
	Type   uint32
	Addend int64
	Offset uint64 // offset within the target fragment
	Target *section.Fragment

	SymbolName  string
	SymbolValue uint64
	SymbolIsDyn bool
	SymbolIsTLS bool
}

// SlotKind enumerates the dynamic bookkeeping a scan can request (spec
// §4.7: "may reserve a PLT slot, a GOT slot, a dynamic relocation entry,
// or request a copy relocation").
type SlotKind int

const (
	SlotNone SlotKind = iota
	SlotPLT
	SlotGOT
	SlotDynamicReloc
	SlotCopyReloc
)

// ScanResult reports what a Relocator.Scan call decided to reserve.
type ScanResult struct {
	Slot         SlotKind
	DynRelocType uint32 // valid when Slot == SlotDynamicReloc
}

// Relocator is the per-target relocation arithmetic trait (spec §1).
// Implementations live outside the core; pkg/backend/x86_64 and
// pkg/backend/aarch64 provide minimal reference implementations exercised
// by the engine's own tests.
type Relocator interface {
	// Name identifies the target, e.g. "x86_64", "aarch64".
	Name() string

	// ShouldSkip reports whether the relocation scan should skip r
	// entirely (e.g. a relocation type the target backend does not track
	// dynamically).
	ShouldSkip(r RelocationRequest) bool

	// Scan performs the scan-phase decision for r (spec §4.7 scan phase).
	Scan(r RelocationRequest) (ScanResult, error)

	// Apply computes the final relocated value for r (spec §4.7 apply
	// phase) once layout has fixed every address.
	Apply(r RelocationRequest) (uint64, error)

	// Width returns the number of bytes Apply's result occupies at the
	// target offset, for the write-back step.
	Width(relocType uint32) int

	// ValueForDiscardedRelocation returns the value to substitute when a
	// relocation's target section was discarded (spec §4.7 apply phase).
	ValueForDiscardedRelocation(r RelocationRequest) uint64
}

// SegmentHint is the minimal per-target knob the layout engine needs when
// synthesizing default program headers (spec §4.8 step 4): the page size
// that governs file-offset/VMA congruence, and whether this target wants
// a separate read-only-data PT_LOAD (the "--rosegment" knob from
// original_source/include/eld/Config/TargetOptions.h, SPEC_FULL §12).
type SegmentHint struct {
	MaxPageSize    uint64
	SeparateRODATA bool
}

// Backend is the capability set spec §1 calls out explicitly: "the core
// does not embed a specific target; all target-specific behavior is
// reached through the Backend capability set."
type Backend interface {
	Relocator
	Machine() uint16 // ELF e_machine value
	SegmentHint() SegmentHint

	// Finished is consulted by the layout engine's relaxation loop (spec
	// §4.8 step 8): it returns false while the backend still wants another
	// {create segments -> relax -> re-create segments} iteration (e.g. a
	// branch island grew, or a PC-relative reach shrank).
	Finished() bool
}
