package input

// Archive is a lazily-materialized ar archive (spec §4.2).
type Archive struct {
	File *File // Kind == KindArchive

	// index maps a global symbol name to the member(s) that define it,
	// built once on first use ("Archives cache their index on first use").
	index        map[string][]string
	members      map[string]*File
	extracted    map[string]bool
	indexBuilt   bool
	wholeArchive bool
}

// NewArchive wraps a KindArchive File with extraction bookkeeping.
func NewArchive(f *File, wholeArchive bool) *Archive {
	return &Archive{File: f, index: make(map[string][]string), members: make(map[string]*File), extracted: make(map[string]bool), wholeArchive: wholeArchive}
}

// BuildIndex records which member defines which global symbol. Callers
// supply the (memberName -> defined globals) map the archive reader
// produced; BuildIndex itself performs no I/O (that belongs to
// ObjectReader, out of scope per spec §1).
func (a *Archive) BuildIndex(memberGlobals map[string][]string) {
	if a.indexBuilt {
		return
	}
	for member, globals := range memberGlobals {
		for _, g := range globals {
			a.index[g] = append(a.index[g], member)
		}
	}
	a.indexBuilt = true
}

// RegisterMember attaches the materialized File for a member name, called
// by the reader the first time a member is actually parsed.
func (a *Archive) RegisterMember(name string, f *File) { a.members[name] = f }

// Member returns the materialized File for name, if already read.
func (a *Archive) Member(name string) (*File, bool) {
	f, ok := a.members[name]
	return f, ok
}

// CandidatesFor returns the member names that define symbol name,
// according to the archive index.
func (a *Archive) CandidatesFor(name string) []string { return a.index[name] }

// ShouldExtract implements spec §4.2's extraction policy: "a member is
// pulled in iff it defines a currently-undefined global, honours
// --whole-archive, --start-lib/--end-lib, and AS_NEEDED. Already-extracted
// members are idempotent."
func (a *Archive) ShouldExtract(member string, undefined func(name string) bool) bool {
	if a.extracted[member] {
		return false
	}
	if a.wholeArchive {
		return true
	}
	for sym, members := range a.index {
		for _, m := range members {
			if m == member && undefined(sym) {
				return true
			}
		}
	}
	return false
}

// MarkExtracted records that member has been pulled into the link,
// making subsequent ShouldExtract calls for it a no-op (idempotence).
func (a *Archive) MarkExtracted(member string) { a.extracted[member] = true }

// Extracted reports whether member has already been pulled in.
func (a *Archive) Extracted(member string) bool { return a.extracted[member] }

// AllMembers returns every member name known to the archive index, used by
// --whole-archive to force-extract everything.
func (a *Archive) AllMembers() []string {
	seen := make(map[string]bool)
	var out []string
	for _, members := range a.index {
		for _, m := range members {
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	return out
}
