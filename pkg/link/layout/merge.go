package layout

import "github.com/eldlink/eld/pkg/link/section"

// MergeInputSections folds every input section claimed by entry's rules
// into the entry's own alignment and flags (spec §4.8 step 2: "set
// alignments to the max of contributors; update section flags by union plus
// the mask rules"). SHF_MERGE, SHF_STRINGS, and SHF_LINK_ORDER are dropped
// from the union the moment one contributor lacks them, since those three
// flags describe a per-section encoding contract rather than a permission
// that simply accumulates.
func MergeInputSections(entry *section.OutputSectionEntry) {
	const maskFlags = section.SHFMerge | section.SHFStrings | section.SHFLinkOrder

	var union section.SHFlags
	maskSurvives := maskFlags
	any := false

	for _, rule := range entry.Rules {
		for _, sec := range rule.Matched() {
			any = true
			union |= sec.Flags &^ maskFlags
			maskSurvives &= sec.Flags
			if sec.Align > entry.Prolog.Align {
				entry.Prolog.Align = sec.Align
			}
		}
	}
	if !any {
		maskSurvives = 0
	}
	entry.Prolog.Flags = union | maskSurvives
}
