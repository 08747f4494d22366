package symtab

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockOrigin is a minimal Origin for resolver tests.
type mockOrigin struct {
	name    string
	dynamic bool
	bitcode bool
}

func (m *mockOrigin) Describe() string  { return m.name }
func (m *mockOrigin) IsDynamic() bool   { return m.dynamic }
func (m *mockOrigin) IsBitcode() bool   { return m.bitcode }

func TestInsertSymbol_WeakThenStrong(t *testing.T) {
	// spec.md §8 scenario 1: a.o defines foo weak at 0x10, b.o defines foo
	// global at 0x30. The surviving foo must come from b.o.
	pool := NewNamePool(false)
	a := &mockOrigin{name: "a.o"}
	b := &mockOrigin{name: "b.o"}

	_, err := pool.InsertSymbol(InsertParams{Origin: a, Name: "foo", Type: TypeFunction, Desc: DescDefined, Binding: BindingWeak, Value: 0x10})
	require.NoError(t, err)

	res, err := pool.InsertSymbol(InsertParams{Origin: b, Name: "foo", Type: TypeFunction, Desc: DescDefined, Binding: BindingGlobal, Value: 0x30})
	require.NoError(t, err)

	assert.True(t, res.Overridden)
	assert.Equal(t, b, res.Info.Origin)
	assert.Equal(t, BindingGlobal, res.Info.Binding)
}

func TestInsertSymbol_CommonGrowth(t *testing.T) {
	// spec.md §8 scenario 2: commons of size 50, 10, 200 converge on 200.
	pool := NewNamePool(false)
	a := &mockOrigin{name: "a.o"}
	b := &mockOrigin{name: "b.o"}
	c := &mockOrigin{name: "c.o"}

	_, err := pool.InsertSymbol(InsertParams{Origin: a, Name: "foo", Desc: DescCommon, Size: 50})
	require.NoError(t, err)
	_, err = pool.InsertSymbol(InsertParams{Origin: b, Name: "foo", Desc: DescCommon, Size: 10})
	require.NoError(t, err)
	res, err := pool.InsertSymbol(InsertParams{Origin: c, Name: "foo", Desc: DescCommon, Size: 200})
	require.NoError(t, err)

	info, ok := pool.FindInfo("foo")
	require.True(t, ok)
	assert.Equal(t, uint64(200), info.Size)
	assert.Equal(t, c, info.Origin)
	assert.True(t, res.Overridden)
}

func TestInsertSymbol_CommonLargerAlignmentTiebreak(t *testing.T) {
	pool := NewNamePool(false)
	a := &mockOrigin{name: "a.o"}
	b := &mockOrigin{name: "b.o"}

	_, err := pool.InsertSymbol(InsertParams{Origin: a, Name: "foo", Desc: DescCommon, Size: 16, Align: 4})
	require.NoError(t, err)
	res, err := pool.InsertSymbol(InsertParams{Origin: b, Name: "foo", Desc: DescCommon, Size: 16, Align: 16})
	require.NoError(t, err)

	assert.True(t, res.Overridden)
	assert.Equal(t, uint64(16), res.Info.Align)
}

func TestInsertSymbol_SharedOverridesUndefined(t *testing.T) {
	// spec.md §8 scenario 3: a.so defines foo, b.o references foo undefined.
	pool := NewNamePool(false)
	so := &mockOrigin{name: "a.so", dynamic: true}
	obj := &mockOrigin{name: "b.o"}

	_, err := pool.InsertSymbol(InsertParams{Origin: so, Name: "foo", IsDyn: true, Desc: DescDefined, Binding: BindingGlobal})
	require.NoError(t, err)
	res, err := pool.InsertSymbol(InsertParams{Origin: obj, Name: "foo", Desc: DescUndefined, Binding: BindingGlobal})
	require.NoError(t, err)

	assert.False(t, res.Overridden)
	assert.True(t, res.Info.IsDyn())
}

func TestInsertSymbol_MultipleDefinitionIsAnError(t *testing.T) {
	pool := NewNamePool(false)
	a := &mockOrigin{name: "a.o"}
	b := &mockOrigin{name: "b.o"}

	_, err := pool.InsertSymbol(InsertParams{Origin: a, Name: "foo", Desc: DescDefined, Binding: BindingGlobal})
	require.NoError(t, err)
	_, err = pool.InsertSymbol(InsertParams{Origin: b, Name: "foo", Desc: DescDefined, Binding: BindingGlobal})
	require.Error(t, err)

	var rerr *ResolveError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, ErrMultipleDefinition, rerr.Kind)
}

func TestInsertSymbol_AllowMultipleDefinitionKeepsFirst(t *testing.T) {
	pool := NewNamePool(true)
	a := &mockOrigin{name: "a.o"}
	b := &mockOrigin{name: "b.o"}

	_, err := pool.InsertSymbol(InsertParams{Origin: a, Name: "foo", Desc: DescDefined, Binding: BindingGlobal})
	require.NoError(t, err)
	res, err := pool.InsertSymbol(InsertParams{Origin: b, Name: "foo", Desc: DescDefined, Binding: BindingGlobal})
	require.NoError(t, err)

	assert.False(t, res.Overridden)
	assert.Equal(t, a, res.Info.Origin)
}

func TestInsertSymbol_BothWeakFirstWins(t *testing.T) {
	pool := NewNamePool(false)
	a := &mockOrigin{name: "a.o"}
	b := &mockOrigin{name: "b.o"}

	_, err := pool.InsertSymbol(InsertParams{Origin: a, Name: "foo", Desc: DescDefined, Binding: BindingWeak})
	require.NoError(t, err)
	res, err := pool.InsertSymbol(InsertParams{Origin: b, Name: "foo", Desc: DescDefined, Binding: BindingWeak})
	require.NoError(t, err)

	assert.False(t, res.Overridden)
	assert.Equal(t, a, res.Info.Origin)
}

func TestInsertSymbol_PatchableConflict(t *testing.T) {
	pool := NewNamePool(false)
	a := &mockOrigin{name: "a.o"}
	b := &mockOrigin{name: "b.o"}

	_, err := pool.InsertSymbol(InsertParams{Origin: a, Name: "foo", Desc: DescDefined, Binding: BindingGlobal, IsPatchable: true})
	require.NoError(t, err)
	_, err = pool.InsertSymbol(InsertParams{Origin: b, Name: "foo", Desc: DescDefined, Binding: BindingGlobal})
	require.Error(t, err)

	var rerr *ResolveError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, ErrPatchableConflict, rerr.Kind)
}

func TestInsertSymbol_BitcodeThenNativeDoNotConflict(t *testing.T) {
	// spec.md §4.1 rule 4: a bitcode definition and a later native
	// definition of the same name do not conflict pre-LTO.
	pool := NewNamePool(false)
	bc := &mockOrigin{name: "a.bc", bitcode: true}
	native := &mockOrigin{name: "b.o"}

	_, err := pool.InsertSymbol(InsertParams{Origin: bc, Name: "foo", Desc: DescDefined, Binding: BindingGlobal})
	require.NoError(t, err)
	res, err := pool.InsertSymbol(InsertParams{Origin: native, Name: "foo", Desc: DescDefined, Binding: BindingGlobal})
	require.NoError(t, err)

	assert.True(t, res.Overridden)
	assert.Equal(t, native, res.Info.Origin)
	assert.False(t, res.Info.Flags.has(FlagInBitcode))
}

func TestVisibilityOnlyTightens(t *testing.T) {
	pool := NewNamePool(false)
	a := &mockOrigin{name: "a.o"}
	b := &mockOrigin{name: "b.o"}

	_, err := pool.InsertSymbol(InsertParams{Origin: a, Name: "foo", Desc: DescUndefined, Visibility: VisibilityHidden})
	require.NoError(t, err)
	res, err := pool.InsertSymbol(InsertParams{Origin: b, Name: "foo", Desc: DescUndefined, Visibility: VisibilityDefault})
	require.NoError(t, err)

	assert.Equal(t, VisibilityHidden, res.Info.Visibility)
}

func TestWrapRewriting(t *testing.T) {
	pool := NewNamePool(false)
	pool.SetWrap("malloc")

	assert.Equal(t, "__wrap_malloc", pool.RewriteReference("malloc"))
	assert.Equal(t, "malloc", pool.RewriteReference("__real_malloc"))
	assert.Equal(t, "other", pool.RewriteReference("other"))
}
