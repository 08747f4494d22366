package objfmt

import (
	"encoding/binary"
	"fmt"
	"io"
	"sort"

	"github.com/eldlink/eld/pkg/link/layout"
	"github.com/eldlink/eld/pkg/link/section"
)

// ObjectWriter serializes a finished link (spec §4.8's output of the
// layout engine) to an ELF64 image. Mirrors ObjectReader's role on the
// output side of the §6 boundary.
type ObjectWriter interface {
	Write(w io.Writer, result *layout.Result, sm *section.SectionMap, entry uint64) error
}

// ELFWriter is the concrete, encoding/binary-backed ObjectWriter. Like
// ELFReader, it stays deliberately shallow: only what the C8 layout engine
// actually produces (segments, output sections, fragment bytes) gets
// serialized, not a general-purpose ELF mutation API.
type ELFWriter struct {
	ByteOrder binary.ByteOrder
}

// NewELFWriter returns a little-endian (x86-64/AArch64 default) writer.
func NewELFWriter() *ELFWriter {
	return &ELFWriter{ByteOrder: binary.LittleEndian}
}

const (
	elfHeaderSize    = 64
	programHeaderSize = 56
)

// programWriter mirrors the teacher's dump/writer idiom (one struct
// wrapping the destination plus the data, one write<Block> method per
// logical region) from mc/programfilewriter.go, adapted from a text
// assembly dump to a binary ELF image.
type programWriter struct {
	w      io.Writer
	order  binary.ByteOrder
	result *layout.Result
	sm     *section.SectionMap
	entry  uint64
}

// Write lays out, in order: the ELF header, the program header table, then
// each output section's bytes at the file offsets the layout engine
// already computed. It trusts layout.AssignSegmentOffsets/PlaceFragments to
// have produced a consistent, non-overlapping plan; this stage only copies
// bytes to where that plan says they go.
func (ew *ELFWriter) Write(w io.Writer, result *layout.Result, sm *section.SectionMap, entry uint64) error {
	pw := &programWriter{w: w, order: ew.ByteOrder, result: result, sm: sm, entry: entry}
	return pw.write()
}

func (pw *programWriter) write() error {
	buf := make([]byte, 0, 4096)
	buf = pw.appendHeader(buf)
	buf = pw.appendProgramHeaders(buf)

	if _, err := pw.w.Write(buf); err != nil {
		return fmt.Errorf("objfmt: writing ELF/program headers: %w", err)
	}

	return pw.writeSections()
}

func (pw *programWriter) appendHeader(buf []byte) []byte {
	hdr := make([]byte, elfHeaderSize)
	copy(hdr[0:4], []byte{0x7f, 'E', 'L', 'F'})
	hdr[4] = 2 // ELFCLASS64
	hdr[5] = 1 // ELFDATA2LSB; TODO: flip for big-endian targets once the backend reports endianness
	hdr[6] = 1 // EV_CURRENT
	pw.order.PutUint16(hdr[16:18], 2)                           // ET_EXEC
	pw.order.PutUint16(hdr[18:20], 0x3e)                        // EM_X86_64; backend-selected in a real target matrix
	pw.order.PutUint32(hdr[20:24], 1)                           // EV_CURRENT
	pw.order.PutUint64(hdr[24:32], pw.entry)                    // e_entry
	pw.order.PutUint64(hdr[32:40], elfHeaderSize)               // e_phoff
	pw.order.PutUint16(hdr[52:54], elfHeaderSize)               // e_ehsize
	pw.order.PutUint16(hdr[54:56], programHeaderSize)           // e_phentsize
	pw.order.PutUint16(hdr[56:58], uint16(len(pw.result.Segments))) // e_phnum
	return append(buf, hdr...)
}

func (pw *programWriter) appendProgramHeaders(buf []byte) []byte {
	for _, seg := range pw.result.Segments {
		ph := make([]byte, programHeaderSize)
		pw.order.PutUint32(ph[0:4], seg.Type)
		pw.order.PutUint32(ph[4:8], uint32(seg.Flags))
		pw.order.PutUint64(ph[8:16], seg.Offset)
		pw.order.PutUint64(ph[16:24], seg.VAddr)
		pw.order.PutUint64(ph[24:32], seg.PAddr)
		pw.order.PutUint64(ph[32:40], seg.Filesz)
		pw.order.PutUint64(ph[40:48], seg.Memsz)
		pw.order.PutUint64(ph[48:56], seg.Align)
		buf = append(buf, ph...)
	}
	return buf
}

// writeSections emits each output section's fragment bytes at its file
// offset, in ascending offset order (spec §4.8 step 7's offsets are
// authoritative; this stage never recomputes them).
func (pw *programWriter) writeSections() error {
	entries := append([]*section.OutputSectionEntry(nil), pw.sm.Entries()...)
	sort.Slice(entries, func(i, j int) bool { return entries[i].Offset < entries[j].Offset })

	var pos uint64
	for _, e := range entries {
		if isNobitsEntry(e) {
			continue // SHT_NOBITS: occupies memory, not file space
		}
		if e.Offset < pos {
			return fmt.Errorf("objfmt: output section %s offset 0x%x overlaps previous write at 0x%x", e.Name, e.Offset, pos)
		}
		if gap := e.Offset - pos; gap > 0 {
			if _, err := pw.w.Write(make([]byte, gap)); err != nil {
				return err
			}
			pos += gap
		}
		n, err := pw.writeSectionBody(e)
		if err != nil {
			return fmt.Errorf("objfmt: writing section %s: %w", e.Name, err)
		}
		pos += n
	}
	return nil
}

func (pw *programWriter) writeSectionBody(e *section.OutputSectionEntry) (uint64, error) {
	var total uint64
	for _, s := range e.Sections() {
		for _, f := range s.Fragments {
			if f.Discarded() {
				continue
			}
			b := fragmentBytes(f)
			if _, err := pw.w.Write(b); err != nil {
				return total, err
			}
			total += uint64(len(b))
		}
	}
	return total, nil
}

// fragmentBytes renders a Fragment's payload, matching the Kind-specific
// storage fragment.go documents on Fragment.Size().
func fragmentBytes(f *section.Fragment) []byte {
	switch f.Kind {
	case section.KindFill:
		out := make([]byte, f.Size())
		if f.FillValue != 0 {
			var pattern [4]byte
			binary.LittleEndian.PutUint32(pattern[:], f.FillValue)
			for i := range out {
				out[i] = pattern[i%4]
			}
		}
		return out
	case section.KindString:
		return f.StringValue
	case section.KindHash:
		return f.HashPayload
	case section.KindEhFrameHdr:
		return f.EhFrameHdrPayload
	case section.KindBuildID:
		return f.BuildIDPayload
	case section.KindTiming:
		return f.TimingPayload
	case section.KindMergeString:
		var out []byte
		for _, m := range f.MergeStrings {
			if !m.Excluded {
				out = append(out, m.Data...)
			}
		}
		return out
	default: // KindRegion
		return f.Region
	}
}

const shtNobits = 8

// isNobitsEntry reports whether every input section contributing to e is
// SHT_NOBITS (the .bss case: occupies memory, occupies no file space).
// A mix of NOBITS and PROGBITS contributors is a script-authoring error
// this stage does not try to repair; it treats the entry as PROGBITS.
func isNobitsEntry(e *section.OutputSectionEntry) bool {
	secs := e.Sections()
	if len(secs) == 0 {
		return false
	}
	for _, s := range secs {
		if s.Type != shtNobits {
			return false
		}
	}
	return true
}
