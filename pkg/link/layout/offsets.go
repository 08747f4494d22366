package layout

import "github.com/eldlink/eld/pkg/link/section"

// PlaceFragments concatenates every input section entry claims, in rule
// order, into entry's merged output-section address space: each fragment's
// final offset (as Fragment.PlaceAt records it) is relative to entry's own
// VMA, matching FragmentRef.OutputVMA's "owner's output VMA plus the
// fragment's own offset" contract. Returns the entry's resulting size.
func PlaceFragments(entry *section.OutputSectionEntry) uint64 {
	var cursor uint64
	for _, rule := range entry.Rules {
		for _, sec := range rule.Matched() {
			for _, frag := range sec.Fragments {
				if frag.Discarded() {
					continue
				}
				cursor = section.AlignUp(cursor, max64(frag.Align, 1))
				frag.PlaceAt(cursor)
				cursor += frag.Size()
			}
		}
	}
	entry.Size = cursor
	return cursor
}

func max64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}

// AssignSegmentOffsets performs spec §4.8 step 7: for each PT_LOAD segment
// in order, align the first section to page size, then pack the remaining
// sections contiguously, treating a NOBITS (.bss-like, no fragment data
// backing ever written) output section as consuming no file bytes while
// still consuming memory.
func AssignSegmentOffsets(segments []*Segment, pageSize uint64, startFileOffset, startVAddr uint64) {
	fileOff := startFileOffset
	vaddr := startVAddr

	for _, seg := range segments {
		if seg.Type != PTLoad {
			continue
		}
		segFileStart := section.AlignUp(fileOff, pageSize)
		// File offset and virtual address must be congruent modulo the
		// page size within a PT_LOAD (spec §4.8 step 4 invariant).
		vaddr = section.AlignUp(vaddr, pageSize) + (segFileStart % pageSize)
		seg.Offset = segFileStart
		seg.VAddr = vaddr
		seg.PAddr = vaddr

		cursor := segFileStart
		vcursor := vaddr
		for _, out := range seg.Sections {
			align := max64(out.Prolog.Align, 1)
			vcursor = section.AlignUp(vcursor, align)
			out.VMA = vcursor
			out.LMA = vcursor
			if out.Prolog.LMA != nil {
				// The AT() expression is not evaluated: LMA stays equal
				// to VMA, so the segment's PAddr equals its VAddr.
				out.LMA = vcursor
			}

			if isNobits(out) {
				out.Offset = cursor
				vcursor += out.Size
				continue
			}
			cursor = section.AlignUp(cursor, align)
			out.Offset = cursor
			cursor += out.Size
			vcursor += out.Size
		}
		seg.Filesz = cursor - segFileStart
		seg.Memsz = vcursor - vaddr
		fileOff = cursor
		vaddr = vcursor
	}
}

// isNobits reports whether out holds no file content (a .bss-shaped output
// section: SHF_ALLOC without SHF_WRITE's companion progbits data). The
// engine core treats this as an opaque property of the section kind rather
// than inspecting sh_type directly, since sh_type is ObjectReader/Writer's
// concern; callers set Prolog.Type to the target's SHT_NOBITS value.
func isNobits(out *section.OutputSectionEntry) bool {
	return out.Prolog.Type == shtNobits
}

// shtNobits mirrors ELF's SHT_NOBITS constant; kept local to avoid layout
// depending on pkg/objfmt for one numeric constant.
const shtNobits = 8
