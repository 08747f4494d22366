package section

// LocateFragment finds the fragment that contains byte offset off within s,
// using each fragment's Align/Size in sequence order (the same arithmetic
// AddFragment uses to grow s.size). This is placement-independent: it works
// during the relocation scan phase, before the layout engine has called
// PlaceAt on anything, because every fragment's position relative to its
// section start is already fixed once all fragments have been added.
func (s *Section) LocateFragment(off uint64) (frag *Fragment, fragOffset uint64, ok bool) {
	var cursor uint64
	for _, f := range s.Fragments {
		cursor = AlignUp(cursor, max64(f.Align, 1))
		sz := f.Size()
		if off >= cursor && off < cursor+sz {
			return f, off - cursor, true
		}
		cursor += sz
	}
	return nil, 0, false
}
