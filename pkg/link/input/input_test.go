package input

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBinarySymbolNames(t *testing.T) {
	start, end, size := BinarySymbolNames("data/payload.bin")
	assert.Equal(t, "_binary_data_payload_bin_start", start)
	assert.Equal(t, "_binary_data_payload_bin_end", end)
	assert.Equal(t, "_binary_data_payload_bin_size", size)
}

func TestNewBinaryInput(t *testing.T) {
	f, frag := NewBinaryInput("blob.bin", []byte{1, 2, 3, 4})
	require.Len(t, f.Sections, 1)
	assert.Equal(t, ".data", f.Sections[0].Name)
	assert.Equal(t, uint64(4), frag.Size())
	assert.Len(t, f.Globals, 3)
}

func TestArchiveShouldExtract(t *testing.T) {
	af := NewFile("libfoo.a", KindArchive)
	a := NewArchive(af, false)
	a.BuildIndex(map[string][]string{"member1.o": {"foo"}, "member2.o": {"bar"}})

	undefinedSet := map[string]bool{"foo": true}
	undefined := func(name string) bool { return undefinedSet[name] }

	assert.True(t, a.ShouldExtract("member1.o", undefined))
	assert.False(t, a.ShouldExtract("member2.o", undefined))

	a.MarkExtracted("member1.o")
	assert.False(t, a.ShouldExtract("member1.o", undefined), "already-extracted members are idempotent")
}

func TestArchiveWholeArchiveExtractsEverything(t *testing.T) {
	af := NewFile("libfoo.a", KindArchive)
	a := NewArchive(af, true)
	a.BuildIndex(map[string][]string{"member1.o": {"foo"}})

	assert.True(t, a.ShouldExtract("member1.o", func(string) bool { return false }))
}

func TestGroupReaderFixedPoint(t *testing.T) {
	// a.o (in libA) defines "a" and needs "b"; b.o in libB
	// defines "b". Neither library alone satisfies the other; the group
	// reader must converge after sweeping both.
	libA := NewArchive(NewFile("libA.a", KindArchive), false)
	libA.BuildIndex(map[string][]string{"a.o": {"a"}})
	libB := NewArchive(NewFile("libB.a", KindArchive), false)
	libB.BuildIndex(map[string][]string{"b.o": {"b"}})

	undefinedSet := map[string]bool{"a": true}
	var extractedOrder []string

	reader := NewGroupReader(
		func(name string) bool { return undefinedSet[name] },
		func(a *Archive, member string) {
			extractedOrder = append(extractedOrder, member)
			if member == "a.o" {
				delete(undefinedSet, "a")
				undefinedSet["b"] = true
			} else if member == "b.o" {
				delete(undefinedSet, "b")
			}
		},
	)

	group := NewGroup(libA, libB)
	reader.Read([]*Group{group})

	assert.ElementsMatch(t, []string{"a.o", "b.o"}, extractedOrder)
}
