package symtab

import "sync"

// InsertParams bundles insert_symbol's argument list (spec §4.1) — wide
// enough that callers build it with named fields instead of a long
// positional call.
type InsertParams struct {
	Origin        Origin
	Name          string
	IsDyn         bool
	Type          Type
	Desc          Desc
	Binding       Binding
	Size          uint64
	Align         uint64 // common-symbol alignment, spec §4.1 rule 2
	Value         uint64
	Visibility    Visibility
	SectionBacked bool // true if the declaration names a concrete output section (vs. SHN_ABS/SHN_UNDEF)
	IsPostLTO     bool
	IsPatchable   bool
}

// InsertResult is insert_symbol's return value: the resolved info and
// whether the new declaration supplanted whatever was there before.
type InsertResult struct {
	Info       *ResolveInfo
	Overridden bool
}

// NamePool is the canonical owner of one ResolveInfo per symbol name
// (spec §3, §4.1). Insertion is the sole resolution gate.
type NamePool struct {
	mu   sync.Mutex
	info map[string]*ResolveInfo

	// wraps maps "foo" -> "__wrap_foo" style renames and the inverse
	// "__real_foo" -> "foo" table, populated once from --wrap flags before
	// any insert runs (spec §4.1 rule 5).
	wraps    map[string]string
	unwraps  map[string]string
	wrapUsed map[string]bool

	allowMultipleDefinition bool
}

// NewNamePool creates an empty pool. allowMultipleDefinition mirrors
// --allow-multiple-definition (spec §4.1 step 1).
func NewNamePool(allowMultipleDefinition bool) *NamePool {
	return &NamePool{
		info:     make(map[string]*ResolveInfo),
		wraps:    make(map[string]string),
		unwraps:  make(map[string]string),
		wrapUsed: make(map[string]bool),
		allowMultipleDefinition: allowMultipleDefinition,
	}
}

// SetWrap registers a --wrap=foo mapping (spec §4.1 rule 5).
func (p *NamePool) SetWrap(name string) {
	wrapped := "__wrap_" + name
	real := "__real_" + name
	p.wraps[name] = wrapped
	p.unwraps[real] = name
}

// RewriteReference applies wrap rewriting to a reference name before
// resolution: a reference to foo becomes __wrap_foo, a reference to
// __real_foo becomes foo. Returns the rewritten name unchanged if no
// --wrap applies.
func (p *NamePool) RewriteReference(name string) string {
	if wrapped, ok := p.wraps[name]; ok {
		p.wrapUsed[name] = true
		return wrapped
	}
	if real, ok := p.unwraps[name]; ok {
		return real
	}
	return name
}

// UnresolvedWraps returns the --wrap targets that were registered but
// never referenced anywhere (candidate ErrUnresolvedWrap diagnostics if
// the caller treats an unused wrap as an error; by default ELD-like
// linkers only warn).
func (p *NamePool) UnresolvedWraps() []string {
	var out []string
	for name := range p.wraps {
		if !p.wrapUsed[name] {
			out = append(out, name)
		}
	}
	return out
}

// FindInfo returns the ResolveInfo for name, if any.
func (p *NamePool) FindInfo(name string) (*ResolveInfo, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	info, ok := p.info[name]
	return info, ok
}

// FindSymbol returns the prevailing LdSymbol for name, if resolved.
func (p *NamePool) FindSymbol(name string) (*LdSymbol, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	info, ok := p.info[name]
	if !ok || info.Out == nil {
		return nil, false
	}
	return info.Out, true
}

// CreateSymbol performs bare creation without resolution semantics:
// internal synthesis (standard symbols, section symbols) that is known by
// construction not to conflict with anything.
func (p *NamePool) CreateSymbol(origin Origin, name string, isDyn bool, t Type, desc Desc, binding Binding, size uint64, vis Visibility, isPostLTO bool) *ResolveInfo {
	p.mu.Lock()
	defer p.mu.Unlock()
	info := &ResolveInfo{Name: name, Type: t, Desc: desc, Binding: binding, Visibility: vis, Size: size, Origin: origin}
	if isDyn {
		info.markDyn()
	}
	p.info[name] = info
	return info
}

// precedence ranks a (desc, binding) pair per spec §4.1 step 1: "defined
// -in-reloc > defined-in-shared > weak-defined > common > undefined".
// Higher wins.
func precedence(desc Desc, binding Binding, isDyn bool) int {
	switch {
	case desc == DescDefined && !isDyn && binding != BindingWeak:
		return 4
	case desc == DescDefined && isDyn:
		return 3
	case desc == DescDefined && binding == BindingWeak:
		return 2
	case desc == DescCommon:
		return 1
	default:
		return 0
	}
}

// InsertSymbol is the only path by which symbols enter the link (spec
// §4.1). It applies the resolution steps in resolveLocked's own order
// (8, 4, 2, 3, 1); wrap rewriting is done separately by RewriteReference.
func (p *NamePool) InsertSymbol(params InsertParams) (InsertResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	existing, have := p.info[params.Name]
	if !have {
		info := p.newInfoLocked(params)
		return InsertResult{Info: info, Overridden: false}, nil
	}

	return p.resolveLocked(existing, params)
}

func (p *NamePool) newInfoLocked(params InsertParams) *ResolveInfo {
	info := &ResolveInfo{
		Name:       params.Name,
		Type:       params.Type,
		Desc:       params.Desc,
		Binding:    params.Binding,
		Visibility: params.Visibility,
		Size:       params.Size,
		Align:      params.Align,
		Origin:     params.Origin,
	}
	if params.IsDyn {
		info.markDyn()
	}
	if params.Origin != nil && params.Origin.IsBitcode() {
		info.Flags |= FlagInBitcode
	}
	if params.IsPatchable && params.Desc == DescDefined {
		info.Flags |= FlagPatchable
	}
	p.info[params.Name] = info
	return info
}

// resolveLocked applies spec §4.1 steps 1-8 against an existing entry.
func (p *NamePool) resolveLocked(existing *ResolveInfo, params InsertParams) (InsertResult, error) {
	// Step 8: patchable conflict — flagging patchable while another
	// defined copy exists is an error, independent of precedence.
	if params.IsPatchable && params.Desc == DescDefined && existing.Desc == DescDefined {
		return InsertResult{}, &ResolveError{Kind: ErrPatchableConflict, Name: params.Name, ExistingOrigin: describe(existing.Origin), NewOrigin: describe(params.Origin)}
	}
	if existing.Flags.has(FlagPatchable) && params.Desc == DescDefined {
		return InsertResult{}, &ResolveError{Kind: ErrPatchableConflict, Name: params.Name, ExistingOrigin: describe(existing.Origin), NewOrigin: describe(params.Origin)}
	}

	// Step 4: bitcode awareness — a bitcode definition and a later native
	// definition never conflict pre-LTO; the incoming native definition
	// simply supersedes the placeholder, and the LTO bridge later tells us
	// which one actually prevails.
	if existing.Flags.has(FlagInBitcode) && existing.Desc == DescDefined && params.Desc == DescDefined && !existing.Flags.has(FlagIsAlias) {
		if params.Origin == nil || !params.Origin.IsBitcode() {
			p.overwriteLocked(existing, params)
			return InsertResult{Info: existing, Overridden: true}, nil
		}
	}

	// Step 2: common promotion.
	if existing.Desc == DescCommon && params.Desc == DescDefined {
		p.overwriteLocked(existing, params)
		return InsertResult{Info: existing, Overridden: true}, nil
	}
	if existing.Desc == DescDefined && params.Desc == DescCommon {
		// Defined already wins regardless of common size (spec rule 2).
		applyVisibilityAndScope(existing, params)
		return InsertResult{Info: existing, Overridden: false}, nil
	}
	if existing.Desc == DescCommon && params.Desc == DescCommon {
		if params.Size > existing.Size || (params.Size == existing.Size && params.Align > existing.Align) {
			p.overwriteLocked(existing, params)
			return InsertResult{Info: existing, Overridden: true}, nil
		}
		applyVisibilityAndScope(existing, params)
		return InsertResult{Info: existing, Overridden: false}, nil
	}

	// Step 3: weak vs shared — a weak undefined regular-object reference
	// can be satisfied by a shared-object definition.
	if existing.Desc == DescUndefined && existing.Binding == BindingWeak && params.Desc == DescDefined && params.IsDyn {
		p.overwriteLocked(existing, params)
		existing.Binding = BindingWeak
		existing.markDyn()
		return InsertResult{Info: existing, Overridden: true}, nil
	}
	if existing.Desc == DescDefined && existing.IsDyn() && params.Desc == DescUndefined && params.Binding == BindingWeak {
		applyVisibilityAndScope(existing, params)
		return InsertResult{Info: existing, Overridden: false}, nil
	}

	// Step 1: precedence table.
	oldRank := precedence(existing.Desc, existing.Binding, existing.IsDyn())
	newRank := precedence(params.Desc, params.Binding, params.IsDyn)

	switch {
	case newRank > oldRank:
		p.overwriteLocked(existing, params)
		return InsertResult{Info: existing, Overridden: true}, nil
	case newRank < oldRank:
		applyVisibilityAndScope(existing, params)
		return InsertResult{Info: existing, Overridden: false}, nil
	default:
		// Equal precedence.
		if existing.Desc == DescUndefined && params.Desc == DescUndefined {
			applyVisibilityAndScope(existing, params)
			return InsertResult{Info: existing, Overridden: false}, nil
		}
		if existing.Desc == DescDefined && params.Desc == DescDefined {
			bothWeak := existing.Binding == BindingWeak && params.Binding == BindingWeak
			if bothWeak {
				// "first wins" among identical-precedence weaks.
				applyVisibilityAndScope(existing, params)
				return InsertResult{Info: existing, Overridden: false}, nil
			}
			if !p.allowMultipleDefinition {
				return InsertResult{}, &ResolveError{Kind: ErrMultipleDefinition, Name: params.Name, ExistingOrigin: describe(existing.Origin), NewOrigin: describe(params.Origin)}
			}
			// --allow-multiple-definition: first one wins, matching GNU ld.
			applyVisibilityAndScope(existing, params)
			return InsertResult{Info: existing, Overridden: false}, nil
		}
		applyVisibilityAndScope(existing, params)
		return InsertResult{Info: existing, Overridden: false}, nil
	}
}

func (p *NamePool) overwriteLocked(existing *ResolveInfo, params InsertParams) {
	existing.Type = params.Type
	existing.Desc = params.Desc
	existing.Binding = params.Binding
	existing.Size = params.Size
	existing.Align = params.Align
	existing.Origin = params.Origin
	if params.IsDyn {
		existing.markDyn()
	}
	if params.Origin != nil && params.Origin.IsBitcode() {
		existing.Flags |= FlagInBitcode
	} else {
		existing.Flags &^= FlagInBitcode
	}
	if params.IsPatchable {
		existing.Flags |= FlagPatchable
	}
	applyVisibilityAndScope(existing, params)
}

func applyVisibilityAndScope(existing *ResolveInfo, params InsertParams) {
	existing.downgradeVisibility(params.Visibility)
}

// SetPlacement records sym as info's prevailing out-symbol. Called by the
// component that turns a resolved declaration into a concrete placement
// (pkg/link/input while reading objects, pkg/link/layout for standard
// symbols) once resolution for that name has settled.
func (p *NamePool) SetPlacement(info *ResolveInfo, sym *LdSymbol) {
	p.mu.Lock()
	defer p.mu.Unlock()
	info.Out = sym
}

// Names returns every name currently in the pool; callers needing a
// deterministic order should sort the result themselves.
func (p *NamePool) Names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.info))
	for name := range p.info {
		out = append(out, name)
	}
	return out
}

func describe(o Origin) string {
	if o == nil {
		return "<internal>"
	}
	return o.Describe()
}
