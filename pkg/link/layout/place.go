package layout

import "github.com/eldlink/eld/pkg/link/section"

// PlaceOrphans inserts sections with no script-matched output entry into sm
// at the position given by the default ordering table (spec §4.8 step 1).
// Each orphan gets its own synthesized OutputSectionEntry unless one
// already exists under the section's own name, matching GNU ld's behavior
// of naming an orphan's output section after the input section itself.
func PlaceOrphans(sm *section.SectionMap, orphans []*section.Section, policy string) []*section.Section {
	var warnings []*section.Section
	for _, sec := range orphans {
		entry, existed := sm.Find(sec.Name)
		if !existed {
			entry = section.NewOutputSectionEntry(sec.Name)
			entry.MarkOrphan()
			rank := OrderFor(sec.Name)
			idx := insertionIndex(sm, rank)
			sm.InsertAt(idx, entry)
			rule := entry.CreateDefaultRule()
			rule.RecordMatch(sec, 0)
		} else {
			rule := entry.Rules[len(entry.Rules)-1]
			rule.RecordMatch(sec, 0)
		}
		entry.AddSection(sec)
		if policy != "" {
			warnings = append(warnings, sec)
		}
	}
	return warnings
}

// insertionIndex finds where an orphan of the given coarse rank belongs
// among sm's existing entries: after the last entry whose own rank is <=
// rank, preserving relative order among same-rank orphans.
func insertionIndex(sm *section.SectionMap, rank int) int {
	entries := sm.Entries()
	idx := len(entries)
	for i, e := range entries {
		if OrderFor(e.Name) > rank {
			idx = i
			break
		}
	}
	return idx
}
