package dedup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eldlink/eld/pkg/link/section"
)

func TestMergeFragment_TwoIdenticalInputsProduceOneCopy(t *testing.T) {
	// spec.md §8 scenario 4: two inputs each contribute "hello\0world\0" to
	// .rodata.str1.1; the output must contain exactly 12 bytes.
	out := section.NewOutputSectionEntry(".rodata.str1.1")
	merger := NewStringMerger(false)

	data1 := []byte("hello\x00world\x00")
	frag1 := &section.Fragment{Kind: section.KindMergeString}
	frag1.MergeStrings = section.SplitMergeableStrings(frag1, data1)

	data2 := []byte("hello\x00world\x00")
	frag2 := &section.Fragment{Kind: section.KindMergeString}
	frag2.MergeStrings = section.SplitMergeableStrings(frag2, data2)

	merger.MergeFragment(frag1, out, true)
	merger.MergeFragment(frag2, out, true)

	require.Len(t, frag1.MergeStrings, 2)
	require.Len(t, frag2.MergeStrings, 2)

	for _, ms := range frag2.MergeStrings {
		assert.True(t, ms.Excluded)
		require.NotNil(t, ms.Survivor)
	}

	survivingBytes := 0
	for _, ms := range frag1.MergeStrings {
		assert.False(t, ms.Excluded)
		survivingBytes += len(ms.Data)
	}
	assert.Equal(t, 12, survivingBytes)
}

func TestRewriteRelocationOffset(t *testing.T) {
	data := []byte("hello\x00world\x00")
	frag := &section.Fragment{Kind: section.KindMergeString}
	frag.MergeStrings = section.SplitMergeableStrings(frag, data)
	frag.MergeStrings[0].OutputOffset = 100
	frag.MergeStrings[1].OutputOffset = 200

	off, ok := RewriteRelocationOffset(frag, 6) // inside "world\0"
	require.True(t, ok)
	assert.Equal(t, uint64(200), off)
}

func TestGroupTracker_FirstSignatureWins(t *testing.T) {
	tr := NewGroupTracker()
	won1, _ := tr.Claim("_ZN1CC1Ev", "a.o")
	won2, winner := tr.Claim("_ZN1CC1Ev", "b.o")

	assert.True(t, won1)
	assert.False(t, won2)
	assert.Equal(t, "a.o", winner)
}
