package section

// SectionMap is the ordered collection of OutputSectionEntry plus a
// special-sections side map (spec §3). Iteration order defines
// output-section order when the script does not impose one.
type SectionMap struct {
	entries []*OutputSectionEntry
	byName  map[string]*OutputSectionEntry
	special map[string]*OutputSectionEntry
}

// NewSectionMap returns an empty map.
func NewSectionMap() *SectionMap {
	return &SectionMap{byName: make(map[string]*OutputSectionEntry), special: make(map[string]*OutputSectionEntry)}
}

// GetOrCreate returns the existing entry named name, or creates and
// appends one, preserving insertion order.
func (m *SectionMap) GetOrCreate(name string) *OutputSectionEntry {
	if e, ok := m.byName[name]; ok {
		return e
	}
	e := NewOutputSectionEntry(name)
	m.byName[name] = e
	m.entries = append(m.entries, e)
	return e
}

// Find looks up an existing entry without creating one.
func (m *SectionMap) Find(name string) (*OutputSectionEntry, bool) {
	e, ok := m.byName[name]
	return e, ok
}

// Entries returns the ordered entry list; callers must not mutate it.
func (m *SectionMap) Entries() []*OutputSectionEntry { return m.entries }

// InsertAt inserts e at position idx, used by the orphan-placement pass to
// honor the SHO_* coarse ordering table (spec §4.8 step 1, SPEC_FULL §12).
func (m *SectionMap) InsertAt(idx int, e *OutputSectionEntry) {
	if idx < 0 {
		idx = 0
	}
	if idx > len(m.entries) {
		idx = len(m.entries)
	}
	m.entries = append(m.entries, nil)
	copy(m.entries[idx+1:], m.entries[idx:])
	m.entries[idx] = e
	m.byName[e.Name] = e
}

// SetSpecial registers a special-section (one outside the normal output
// ordering, e.g. a debug or discard bucket) under name.
func (m *SectionMap) SetSpecial(name string, e *OutputSectionEntry) { m.special[name] = e }

// Special looks up a special-section by name.
func (m *SectionMap) Special(name string) (*OutputSectionEntry, bool) {
	e, ok := m.special[name]
	return e, ok
}
