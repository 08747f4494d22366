// Package reloc implements spec §4.7's two-phase relocation protocol: a
// scan phase that reserves PLT/GOT/dynamic-reloc slots while symbol
// addresses are still unknown, and an apply phase that writes final values
// once layout has fixed every address.
package reloc

import (
	"fmt"

	"github.com/eldlink/eld/pkg/backend"
	"github.com/eldlink/eld/pkg/link/input"
	"github.com/eldlink/eld/pkg/link/symtab"
)

// Resolved pairs a raw input relocation with the NamePool entry its symbol
// resolved to, so the scanner doesn't need its own lookup pass.
type Resolved struct {
	Rec    input.Relocation
	Info   *symtab.ResolveInfo
	Symbol *symtab.LdSymbol // nil if Info has no placement yet
}

// PendingCopyReloc records a copy relocation queued during scan, to be
// finalized once the layout engine has assigned the .bss/.dynbss region
// (spec §4.7 scan phase: "request a copy relocation").
type PendingCopyReloc struct {
	SymbolName string
	Size       uint64
	Align      uint64
}

// Scanner runs the scan phase for one target backend over a set of
// resolved relocations.
type Scanner struct {
	be backend.Relocator

	copyRelocs []PendingCopyReloc
	gotSlots   map[string]bool
	pltSlots   map[string]bool
	dynRelocs  int
}

// NewScanner creates a Scanner bound to be.
func NewScanner(be backend.Relocator) *Scanner {
	return &Scanner{
		be:       be,
		gotSlots: make(map[string]bool),
		pltSlots: make(map[string]bool),
	}
}

// Scan processes one resolved relocation. It skips relocations the backend
// declares uninteresting, then reserves whatever dynamic bookkeeping
// Relocator.Scan decides the relocation needs.
func (s *Scanner) Scan(r Resolved) error {
	req := s.request(r)

	if s.be.ShouldSkip(req) {
		return nil
	}

	result, err := s.be.Scan(req)
	if err != nil {
		return fmt.Errorf("reloc: scan %s against %q: %w", r.Rec.Symbol, s.be.Name(), err)
	}

	switch result.Slot {
	case backend.SlotGOT:
		s.gotSlots[r.Rec.Symbol] = true
	case backend.SlotPLT:
		s.pltSlots[r.Rec.Symbol] = true
	case backend.SlotDynamicReloc:
		s.dynRelocs++
	case backend.SlotCopyReloc:
		s.copyRelocs = append(s.copyRelocs, PendingCopyReloc{SymbolName: r.Rec.Symbol})
	}
	return nil
}

func (s *Scanner) request(r Resolved) backend.RelocationRequest {
	req := backend.RelocationRequest{
		Type:       r.Rec.Type,
		Addend:     r.Rec.Addend,
		SymbolName: r.Rec.Symbol,
	}
	if frag, fragOff, ok := r.Rec.TargetSection.LocateFragment(r.Rec.Offset); ok {
		req.Target = frag
		req.Offset = fragOff
	}
	if r.Symbol != nil {
		req.SymbolValue = r.Symbol.Value()
	}
	if r.Info != nil {
		req.SymbolIsDyn = r.Info.IsDyn()
		req.SymbolIsTLS = r.Info.Type == symtab.TypeTLS
	}
	return req
}

// NeedsGOT reports whether sym has a GOT slot reserved.
func (s *Scanner) NeedsGOT(sym string) bool { return s.gotSlots[sym] }

// NeedsPLT reports whether sym has a PLT slot reserved.
func (s *Scanner) NeedsPLT(sym string) bool { return s.pltSlots[sym] }

// DynamicRelocCount returns the number of dynamic relocation entries
// reserved so far, for the layout engine's .rela.dyn sizing.
func (s *Scanner) DynamicRelocCount() int { return s.dynRelocs }

// CopyRelocs returns the queued copy relocations for the layout engine to
// place into .bss/.dynbss.
func (s *Scanner) CopyRelocs() []PendingCopyReloc { return s.copyRelocs }
