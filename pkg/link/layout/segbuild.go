package layout

import "github.com/eldlink/eld/pkg/link/section"

// relroBoundary is the output-section name GNU ld convention uses for the
// read-only-after-relocation region. When --relro is active, only sections
// named .data.rel.ro, .data.rel.ro.local, .got or .dynamic count as RELRO
// when PT_LOADs are split, and PT_GNU_RELRO covers a single section:
// .data.rel.ro if present, otherwise .got.
const relroBoundary = ".data.rel.ro"

// SynthesizeDefaultSegments implements spec §4.8 step 4: scan allocated
// output sections in order, opening a new PT_LOAD whenever permissions
// change, LMA/VMA decouple, or a non-RELRO section follows a RELRO one;
// also emit the fixed single-purpose segments (INTERP, DYNAMIC, TLS,
// NOTE for a section named .note, GNU_EH_FRAME, GNU_RELRO) when their
// backing sections exist, plus an unconditional GNU_STACK. No PT_PHDR
// segment is emitted.
func SynthesizeDefaultSegments(sm *section.SectionMap, relro bool) []*Segment {
	var segments []*Segment
	var cur *Segment
	inRelro := false

	for _, entry := range sm.Entries() {
		if !entry.Prolog.Flags.Has(section.SHFAlloc) {
			continue
		}
		wantRelro := relro && isBeforeOrAtRelroBoundary(entry.Name)
		flags := flagsFor(entry.Prolog.Flags)

		needNew := cur == nil ||
			Flags(cur.Flags) != flags ||
			(inRelro && !wantRelro) ||
			(entry.Prolog.LMA != nil)

		if needNew {
			cur = &Segment{Type: PTLoad, Flags: flags}
			segments = append(segments, cur)
		}
		cur.AddSection(entry)
		inRelro = wantRelro
	}

	segments = append(segments, fixedPurposeSegments(sm, relro)...)
	return segments
}

func isBeforeOrAtRelroBoundary(name string) bool {
	return name == relroBoundary || name == ".got" || name == ".dynamic" || name == ".data.rel.ro.local"
}

// fixedPurposeSegments emits the single-purpose headers spec §4.8 step 4
// names, each gated on the presence of its backing section.
func fixedPurposeSegments(sm *section.SectionMap, relro bool) []*Segment {
	var out []*Segment
	add := func(t uint32, flags Flags, names ...string) {
		for _, n := range names {
			e, ok := sm.Find(n)
			if !ok {
				continue
			}
			seg := &Segment{Type: t, Flags: flags}
			seg.AddSection(e)
			out = append(out, seg)
			return
		}
	}

	add(PTInterp, PFRead, ".interp")
	add(PTDynamic, PFRead|PFWrite, ".dynamic")
	add(PTTLS, PFRead, ".tdata", ".tbss")
	add(PTNote, PFRead, ".note")
	add(PTGNUEhFrame, PFRead, ".eh_frame_hdr")
	if relro {
		add(PTGNURelro, PFRead, relroBoundary, ".got")
	}
	out = append(out, &Segment{Type: PTGNUStack, Flags: PFRead | PFWrite})
	return out
}
