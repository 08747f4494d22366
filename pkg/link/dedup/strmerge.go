// Package dedup implements spec §4.6's at-most-one-copy guarantee for
// mergeable strings and COMDAT groups.
package dedup

import (
	"sync"

	"github.com/eldlink/eld/pkg/link/section"
)

// StringMerger deduplicates MergeableStrings. Alloc strings are scoped per
// output section (spec: "Alloc strings: per output section"); non-alloc
// strings under --global-string-merge share one program-wide map.
type StringMerger struct {
	globalScope   map[string]*section.MergeableString
	globalEnabled bool
	mu            sync.Mutex
}

// NewStringMerger creates a merger; globalStringMerge mirrors
// --global-string-merge.
func NewStringMerger(globalStringMerge bool) *StringMerger {
	return &StringMerger{globalScope: make(map[string]*section.MergeableString), globalEnabled: globalStringMerge}
}

// MergeFragment deduplicates every MergeableString in frag against the
// appropriate scope map and assigns output offsets to the survivors.
// alloc selects per-output-section scoping (out's own map) vs. the
// program-wide non-alloc map.
func (m *StringMerger) MergeFragment(frag *section.Fragment, out *section.OutputSectionEntry, alloc bool) {
	scope := m.scopeFor(out, alloc)
	if scope == nil {
		// Non-alloc, --global-string-merge disabled: nothing is shared
		// across fragments, but duplicates within the same fragment still
		// collapse (matches GNU ld's baseline SHF_MERGE behavior).
		scope = make(map[string]*section.MergeableString)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var cursor uint64
	for _, ms := range frag.MergeStrings {
		key := string(ms.Data)
		if survivor, ok := scope[key]; ok {
			ms.Excluded = true
			ms.Survivor = survivor
			continue
		}
		ms.OutputOffset = cursor
		cursor += uint64(len(ms.Data))
		scope[key] = ms
	}
}

func (m *StringMerger) scopeFor(out *section.OutputSectionEntry, alloc bool) map[string]*section.MergeableString {
	if alloc {
		if out == nil {
			return nil
		}
		return out.MergeScope()
	}
	if m.globalEnabled {
		return m.globalScope
	}
	return nil
}

// RewriteRelocationOffset implements spec §4.6's relocation-rewrite
// contract: a relocation whose target offset lies within a merged range is
// redirected to survivor.output_offset + (relocation_target -
// original_input_offset).
func RewriteRelocationOffset(frag *section.Fragment, targetOffset uint64) (uint64, bool) {
	for _, ms := range frag.MergeStrings {
		end := ms.InputOffset + uint64(len(ms.Data))
		if targetOffset >= ms.InputOffset && targetOffset < end {
			delta := targetOffset - ms.InputOffset
			return ms.ResolvedOffset() + delta, true
		}
	}
	return 0, false
}
