// Package layout implements spec §4.8: output-section placement, program
// header synthesis, file-offset assignment, the backend-driven relaxation
// loop, and the standard/magic symbols layout is responsible for defining.
package layout

import "strings"

// orphanBucket is one entry of the default placement order (spec §4.8 step
// 1's "SHO_* coarse ordering"), concretized per
// original_source/lib/Object/ObjectBuilder.cpp's default bucket table
// (SPEC_FULL §12).
type orphanBucket struct {
	order  int
	prefix string
}

var orphanOrder = []orphanBucket{
	{0, ".interp"},
	{10, ".note"},
	{20, ".hash"},
	{20, ".gnu.hash"},
	{30, ".dynsym"},
	{40, ".dynstr"},
	{50, ".rel."},
	{50, ".rela."},
	{60, ".init"},
	{70, ".plt"},
	{80, ".text"},
	{90, ".fini"},
	{100, ".rodata"},
	{110, ".eh_frame_hdr"},
	{111, ".eh_frame"},
	{120, ".gcc_except_table"},
	{130, ".tdata"},
	{130, ".tbss"},
	{140, ".preinit_array"},
	{141, ".init_array"},
	{142, ".fini_array"},
	{150, ".dynamic"},
	{160, ".got"},
	{170, ".data"},
	{180, ".bss"},
	{190, ".comment"},
	{250, ".debug"},
}

// defaultOrphanOrder is the bucket assigned when no prefix in orphanOrder
// matches: placed after every known bucket but before debug info never
// reaches here anyway (it has its own ".debug" bucket), so practically this
// only catches target-specific or application-specific section names.
const defaultOrphanOrder = 200

// OrderFor returns the coarse placement rank for an orphan section name,
// used to pick an insertion point among the existing output-section
// sequence (spec §4.8 step 1).
func OrderFor(name string) int {
	best := -1
	bestLen := -1
	for _, b := range orphanOrder {
		if strings.HasPrefix(name, b.prefix) && len(b.prefix) > bestLen {
			best = b.order
			bestLen = len(b.prefix)
		}
	}
	if best < 0 {
		return defaultOrphanOrder
	}
	return best
}
