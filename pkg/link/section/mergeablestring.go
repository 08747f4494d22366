package section

// MergeableString is one NUL-delimited piece of a SHF_MERGE|SHF_STRINGS
// input section (spec §3, §4.6). The dedup pass (pkg/link/dedup) is the
// only writer of Excluded/OutputOffset after construction.
type MergeableString struct {
	Owner       *Fragment // the MergeString fragment this piece was split from
	Data        []byte
	InputOffset uint64

	// OutputOffset is UnsetOffset until the dedup pass assigns a survivor.
	OutputOffset uint64
	Excluded     bool

	// Survivor points at the MergeableString this one was deduplicated
	// against, nil if this instance is itself the survivor.
	Survivor *MergeableString
}

// UnsetOffset is the sentinel for MergeableString.OutputOffset before the
// dedup pass runs.
const UnsetOffset = ^uint64(0)

// NewMergeableString constructs an unmerged piece; Excluded and
// OutputOffset take on their pre-dedup defaults.
func NewMergeableString(owner *Fragment, data []byte, inputOffset uint64) *MergeableString {
	return &MergeableString{Owner: owner, Data: data, InputOffset: inputOffset, OutputOffset: UnsetOffset}
}

// ResolvedOffset returns the output offset a relocation into this string
// should use: the survivor's offset if this piece was deduplicated away,
// or its own offset otherwise (spec §4.6's relocation-rewrite contract).
func (m *MergeableString) ResolvedOffset() uint64 {
	if m.Excluded && m.Survivor != nil {
		return m.Survivor.ResolvedOffset()
	}
	return m.OutputOffset
}

// SplitMergeableStrings splits a NUL-delimited byte blob into
// MergeableStrings recording each piece's offset within data, per spec
// §4.6: "for every SHF_MERGE|SHF_STRINGS input section, split on NUL".
func SplitMergeableStrings(owner *Fragment, data []byte) []*MergeableString {
	var out []*MergeableString
	start := 0
	for i, b := range data {
		if b == 0 {
			out = append(out, NewMergeableString(owner, data[start:i+1], uint64(start)))
			start = i + 1
		}
	}
	if start < len(data) {
		out = append(out, NewMergeableString(owner, data[start:], uint64(start)))
	}
	return out
}
